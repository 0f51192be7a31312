package access

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ClearRejectionSQL = `UPDATE "profiles" AS "prf"
SET
	"rejection_status" = FALSE,
	"rejection_reason" = ''
WHERE
	"prf"."deleted_at" IS NULL
AND (
	"prf"."id" = ?
) RETURNING *;`

var RemoveProfileSQL = `UPDATE "profiles" AS "prf"
SET
	"deleted_at" = CURRENT_TIMESTAMP
WHERE
	"prf"."deleted_at" IS NULL
AND (
	"prf"."id" = ?
) RETURNING *;`

type Profiles interface {
	repository.Repository[*Profile]

	Register(ctx context.Context, profile *Profile) (*Profile, error)
	RegisterTx(ctx context.Context, tx bun.IDB, profile *Profile) (*Profile, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Profile, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Profile, error)
	SetRole(ctx context.Context, id uuid.UUID, role Role) (*Profile, error)
	SetRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role Role) (*Profile, error)
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) (*Profile, error)
	MarkRejectedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, reason string) (*Profile, error)
	ClearRejection(ctx context.Context, id uuid.UUID) error
	ClearRejectionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	ListPending(ctx context.Context) ([]*Profile, error)
	ListPendingTx(ctx context.Context, tx bun.IDB) ([]*Profile, error)
	Remove(ctx context.Context, id uuid.UUID) error
	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (a *profiles) Register(ctx context.Context, profile *Profile) (*Profile, error) {
	return a.RegisterTx(ctx, a.db, profile)
}

func (a *profiles) RegisterTx(ctx context.Context, tx bun.IDB, profile *Profile) (*Profile, error) {
	prepareProfileDefaults(profile)
	return a.Repository.CreateTx(ctx, tx, profile)
}

func (a *profiles) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Profile, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *profiles) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Profile, error) {
	options := resolveProfileIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Profile{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *profiles) SetRole(ctx context.Context, id uuid.UUID, role Role) (*Profile, error) {
	return a.SetRoleTx(ctx, a.db, id, role)
}

func (a *profiles) SetRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role Role) (*Profile, error) {
	record := &Profile{
		ID:   id,
		Role: role,
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (a *profiles) MarkRejected(ctx context.Context, id uuid.UUID, reason string) (*Profile, error) {
	return a.MarkRejectedTx(ctx, a.db, id, reason)
}

func (a *profiles) MarkRejectedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, reason string) (*Profile, error) {
	record := &Profile{
		ID:              id,
		RejectionStatus: true,
		RejectionReason: reason,
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (a *profiles) ClearRejection(ctx context.Context, id uuid.UUID) error {
	return a.ClearRejectionTx(ctx, a.db, id)
}

func (a *profiles) ClearRejectionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	// NOTE: Raw SQL so the zero values actually persist; the ORM update
	// path drops them.
	res, err := a.Repository.RawTx(ctx, tx, ClearRejectionSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *profiles) ListPending(ctx context.Context) ([]*Profile, error) {
	return a.ListPendingTx(ctx, a.db)
}

func (a *profiles) ListPendingTx(ctx context.Context, tx bun.IDB) ([]*Profile, error) {
	records := []*Profile{}

	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.role = ?", RolePending).
		Where("?TableAlias.rejection_status IS NOT TRUE").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *profiles) Remove(ctx context.Context, id uuid.UUID) error {
	return a.RemoveTx(ctx, a.db, id)
}

func (a *profiles) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, tx, RemoveProfileSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func prepareProfileDefaults(record *Profile) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RolePending
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveProfileIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
