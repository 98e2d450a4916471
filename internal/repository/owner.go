package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/util"
)

type OwnerRepository interface {
	FindByID(ctx context.Context, id string) (*model.Owner, error)
	FindByEmail(ctx context.Context, email string) (*model.Owner, error)
	Create(ctx context.Context, params model.CreateOwnerParams) (*model.Owner, error)
	// Lock takes a row lock on the owner for the rest of the transaction.
	Lock(ctx context.Context, id string) error
	WithTx(tx *sqlx.Tx) OwnerRepository
}

type ownerRepo struct {
	db database.DBTX
}

func NewOwnerRepository(db *sqlx.DB) OwnerRepository {
	return &ownerRepo{db: db}
}

func (r *ownerRepo) WithTx(tx *sqlx.Tx) OwnerRepository {
	return &ownerRepo{db: tx}
}

func (r *ownerRepo) FindByID(ctx context.Context, id string) (*model.Owner, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var owner model.Owner
	err := r.db.GetContext(ctx, &owner, `SELECT * FROM owners WHERE id = $1`, id)
	return HandleNotFound(&owner, err)
}

func (r *ownerRepo) FindByEmail(ctx context.Context, email string) (*model.Owner, error) {
	var owner model.Owner
	err := r.db.GetContext(ctx, &owner, `SELECT * FROM owners WHERE lower(email) = lower($1)`, email)
	return HandleNotFound(&owner, err)
}

func (r *ownerRepo) Create(ctx context.Context, params model.CreateOwnerParams) (*model.Owner, error) {
	var owner model.Owner
	err := r.db.GetContext(ctx, &owner, `
		INSERT INTO owners (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, uuid.NewString(), params.Email, params.Name, params.PasswordHash)
	if isUniqueViolation(err, "") {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

func (r *ownerRepo) Lock(ctx context.Context, id string) error {
	var locked string
	return r.db.GetContext(ctx, &locked, `SELECT id FROM owners WHERE id = $1 FOR UPDATE`, id)
}
