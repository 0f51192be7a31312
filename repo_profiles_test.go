package access_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	access "github.com/tidewatch/go-access"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupProfilesRepo(t *testing.T) (access.Profiles, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateProfiles)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})

	return access.NewProfilesRepository(db), db
}

func TestListPendingOrdersByCreation(t *testing.T) {
	repo, _ := setupProfilesRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"third", "first", "second"} {
		offset := map[string]time.Duration{
			"first":  0,
			"second": time.Hour,
			"third":  2 * time.Hour,
		}[name]

		created := base.Add(offset)
		_, err := repo.Register(ctx, &access.Profile{
			FullName:     name,
			Username:     name,
			Email:        name + "@reef.example",
			PasswordHash: "seeded",
			CreatedAt:    &created,
		})
		require.NoError(t, err, "seed %d", i)
	}

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Equal(t, "first", pending[0].Username)
	assert.Equal(t, "second", pending[1].Username)
	assert.Equal(t, "third", pending[2].Username)
}

func TestListPendingExcludesRejectedAndNonPending(t *testing.T) {
	repo, _ := setupProfilesRepo(t)
	ctx := context.Background()

	_, err := repo.Register(ctx, &access.Profile{
		FullName: "Ada Admin", Username: "ada", Email: "ada@reef.example",
		PasswordHash: "seeded", Role: access.RoleAdmin,
	})
	require.NoError(t, err)

	_, err = repo.Register(ctx, &access.Profile{
		FullName: "Rex Rejected", Username: "rex", Email: "rex@reef.example",
		PasswordHash: "seeded", RejectionStatus: true, RejectionReason: "incomplete",
	})
	require.NoError(t, err)

	waiting, err := repo.Register(ctx, &access.Profile{
		FullName: "Pat Pending", Username: "pat", Email: "pat@reef.example",
		PasswordHash: "seeded",
	})
	require.NoError(t, err)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, waiting.ID, pending[0].ID)
}

func TestGetByIdentifierResolution(t *testing.T) {
	repo, _ := setupProfilesRepo(t)
	ctx := context.Background()

	created, err := repo.Register(ctx, &access.Profile{
		FullName: "Ada Admin", Username: "ada", Email: "ada@reef.example",
		PasswordHash: "seeded",
	})
	require.NoError(t, err)

	for _, identifier := range []string{
		created.ID.String(),
		"ada@reef.example",
		"ada",
	} {
		found, err := repo.GetByIdentifier(ctx, identifier)
		require.NoError(t, err, "identifier %q", identifier)
		assert.Equal(t, created.ID, found.ID)
	}

	_, err = repo.GetByIdentifier(ctx, "nobody")
	require.Error(t, err)
	assert.True(t, access.IsNotFound(err))
}

func TestRemoveIsSoftDelete(t *testing.T) {
	repo, db := setupProfilesRepo(t)
	ctx := context.Background()

	created, err := repo.Register(ctx, &access.Profile{
		FullName: "Pat Pending", Username: "pat", Email: "pat@reef.example",
		PasswordHash: "seeded",
	})
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, created.ID))

	_, err = repo.GetByIdentifier(ctx, created.ID.String())
	require.Error(t, err)
	assert.True(t, access.IsNotFound(err))

	// the row survives with a tombstone
	var count int
	err = db.NewRaw("SELECT COUNT(*) FROM profiles WHERE deleted_at IS NOT NULL").Scan(ctx, &count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// removing a missing account reports not found
	err = repo.Remove(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, access.IsNotFound(err))
}

func TestSetRoleAndRejectionCycle(t *testing.T) {
	repo, _ := setupProfilesRepo(t)
	ctx := context.Background()

	created, err := repo.Register(ctx, &access.Profile{
		FullName: "Pat Pending", Username: "pat", Email: "pat@reef.example",
		PasswordHash: "seeded",
	})
	require.NoError(t, err)

	_, err = repo.MarkRejected(ctx, created.ID, "blurry id photo")
	require.NoError(t, err)

	found, err := repo.GetByIdentifier(ctx, created.ID.String())
	require.NoError(t, err)
	assert.True(t, found.IsRejected())

	require.NoError(t, repo.ClearRejection(ctx, created.ID))

	found, err = repo.GetByIdentifier(ctx, created.ID.String())
	require.NoError(t, err)
	assert.False(t, found.RejectionStatus)
	assert.Empty(t, found.RejectionReason)

	_, err = repo.SetRole(ctx, created.ID, access.RoleApproved)
	require.NoError(t, err)

	found, err = repo.GetByIdentifier(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, access.RoleApproved, found.Role)
}
