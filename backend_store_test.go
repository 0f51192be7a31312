package access_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	access "github.com/tidewatch/go-access"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateProfiles = `CREATE TABLE profiles (
    id TEXT NOT NULL PRIMARY KEY,
    role TEXT NOT NULL,
    fullname TEXT NOT NULL,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    profile_picture TEXT,
    password_hash TEXT,
    rejection_status BOOLEAN DEFAULT FALSE,
    rejection_reason TEXT DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP
);`

func setupStoreBackend(t *testing.T) (*access.StoreBackend, access.RepositoryManager) {
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

	repo := access.NewRepositoryManager(db)
	repo.MustValidate()

	return access.NewStoreBackend(repo, configStub{}), repo
}

// seedProfile inserts an account directly, bypassing bcrypt to keep the
// suite fast. Password-dependent paths get their own tests.
func seedProfile(t *testing.T, repo access.RepositoryManager, profile *access.Profile) *access.Profile {
	t.Helper()

	created, err := repo.Profiles().Register(context.Background(), profile)
	require.NoError(t, err)
	return created
}

func TestStoreBackendRegisterLoginApproveFlow(t *testing.T) {
	backend, _ := setupStoreBackend(t)
	ctx := context.Background()

	identity, err := backend.Register(ctx, access.Registration{
		FullName: "Pat Pending",
		Username: "pat",
		Email:    "pat@reef.example",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotNil(t, identity)

	// registration signs the account in; the token survives for restore
	restored, err := backend.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, identity.ID(), restored.ID())

	profile, err := backend.GetProfile(ctx, identity.ID())
	require.NoError(t, err)
	assert.Equal(t, access.RolePending, profile.Role)
	assert.Equal(t, access.ClassPending, access.Classify(profile))

	pending, err := backend.PendingProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, backend.ApproveAccount(ctx, identity.ID()))

	profile, err = backend.GetProfile(ctx, identity.ID())
	require.NoError(t, err)
	assert.Equal(t, access.RoleApproved, profile.Role)

	pending, err = backend.PendingProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = backend.Login(ctx, access.Credentials{
		Email:    "pat@reef.example",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, access.ErrInvalidCredentials)

	again, err := backend.Login(ctx, access.Credentials{
		Email:    "pat@reef.example",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, identity.ID(), again.ID())

	require.NoError(t, backend.Logout(ctx))

	restored, err = backend.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)
}

func TestStoreBackendRegisterRejectsDuplicates(t *testing.T) {
	backend, repo := setupStoreBackend(t)
	ctx := context.Background()

	seedProfile(t, repo, &access.Profile{
		FullName:     "Ada Admin",
		Username:     "ada",
		Email:        "ada@reef.example",
		PasswordHash: "seeded",
	})

	_, err := backend.Register(ctx, access.Registration{
		FullName: "Imposter",
		Username: "other",
		Email:    "ada@reef.example",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrDuplicateAccount)

	_, err = backend.Register(ctx, access.Registration{
		FullName: "Imposter",
		Username: "ada",
		Email:    "other@reef.example",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrDuplicateAccount)
}

func TestStoreBackendLoginUnknownEmail(t *testing.T) {
	backend, _ := setupStoreBackend(t)

	_, err := backend.Login(context.Background(), access.Credentials{
		Email:    "ghost@reef.example",
		Password: "whatever",
	})
	assert.ErrorIs(t, err, access.ErrInvalidCredentials)
}

func TestStoreBackendRejectRemovesAccount(t *testing.T) {
	backend, repo := setupStoreBackend(t)
	ctx := context.Background()

	created := seedProfile(t, repo, &access.Profile{
		FullName:     "Pat Pending",
		Username:     "pat",
		Email:        "pat@reef.example",
		PasswordHash: "seeded",
	})

	require.NoError(t, backend.RejectAccount(ctx, created.ID.String()))

	_, err := backend.GetProfile(ctx, created.ID.String())
	assert.ErrorIs(t, err, access.ErrAccountNotFound)

	pending, err := backend.PendingProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// removing again reports not found rather than silently succeeding
	err = backend.DeleteAccount(ctx, created.ID.String())
	assert.ErrorIs(t, err, access.ErrAccountNotFound)
}

func TestStoreBackendDeclineAndResubmitCycle(t *testing.T) {
	backend, repo := setupStoreBackend(t)
	ctx := context.Background()

	created := seedProfile(t, repo, &access.Profile{
		FullName:     "Pat Pending",
		Username:     "pat",
		Email:        "pat@reef.example",
		PasswordHash: "seeded",
	})
	id := created.ID.String()

	flag := true
	reason := "blurry id photo"
	require.NoError(t, backend.UpdateProfile(ctx, id, access.ProfilePatch{
		RejectionStatus: &flag,
		RejectionReason: &reason,
	}))

	profile, err := backend.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.True(t, profile.IsRejected())
	assert.Equal(t, reason, profile.RejectionReason)
	assert.Equal(t, access.ClassRejected, access.Classify(profile))

	// declined accounts leave the actionable queue
	pending, err := backend.PendingProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, backend.ClearRejection(ctx, id))

	profile, err = backend.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.False(t, profile.IsRejected())
	assert.Empty(t, profile.RejectionReason)

	pending, err = backend.PendingProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStoreBackendApproveClearsRejectionFlag(t *testing.T) {
	backend, repo := setupStoreBackend(t)
	ctx := context.Background()

	created := seedProfile(t, repo, &access.Profile{
		FullName:        "Pat Pending",
		Username:        "pat",
		Email:           "pat@reef.example",
		PasswordHash:    "seeded",
		RejectionStatus: true,
		RejectionReason: "blurry id photo",
	})

	require.NoError(t, backend.ApproveAccount(ctx, created.ID.String()))

	profile, err := backend.GetProfile(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, access.RoleApproved, profile.Role)
	assert.False(t, profile.RejectionStatus)
}

func TestStoreBackendEmitsAuthEvents(t *testing.T) {
	backend, _ := setupStoreBackend(t)
	ctx := context.Background()

	var events []access.AuthEvent
	unsubscribe := backend.OnAuthStateChange(func(event access.AuthEvent, identity access.Identity) {
		events = append(events, event)
	})
	defer unsubscribe()

	_, err := backend.Register(ctx, access.Registration{
		FullName: "Pat Pending",
		Username: "pat",
		Email:    "pat@reef.example",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	require.NoError(t, backend.RefreshSession(ctx))
	require.NoError(t, backend.Logout(ctx))

	require.Equal(t, []access.AuthEvent{
		access.AuthEventSignedIn,
		access.AuthEventTokenRefreshed,
		access.AuthEventSignedOut,
	}, events)

	// no session left to refresh
	err = backend.RefreshSession(ctx)
	assert.ErrorIs(t, err, access.ErrAccountNotFound)
}

func TestStoreBackendGetProfileByEmailOrUsername(t *testing.T) {
	backend, repo := setupStoreBackend(t)
	ctx := context.Background()

	created := seedProfile(t, repo, &access.Profile{
		FullName:     "Ada Admin",
		Username:     "ada",
		Email:        "ada@reef.example",
		PasswordHash: "seeded",
		Role:         access.RoleAdmin,
	})

	byEmail, err := backend.GetProfile(ctx, "ada@reef.example")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byUsername, err := backend.GetProfile(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUsername.ID)

	_, err = backend.GetProfile(ctx, "nobody")
	assert.ErrorIs(t, err, access.ErrAccountNotFound)
}
