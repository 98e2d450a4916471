package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
)

// TokenRepository is the registry of rotating codes. A code is valid only
// while a row for it exists with expires_at >= now.
type TokenRepository interface {
	Create(ctx context.Context, params model.CreateTokenParams) (*model.RotatingToken, error)
	FindValid(ctx context.Context, sessionID, value string, now time.Time) (*model.RotatingToken, error)
	DeleteExpiredForSession(ctx context.Context, sessionID string, now time.Time) (int64, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) TokenRepository
}

type tokenRepo struct {
	db database.DBTX
}

func NewTokenRepository(db *sqlx.DB) TokenRepository {
	return &tokenRepo{db: db}
}

func (r *tokenRepo) WithTx(tx *sqlx.Tx) TokenRepository {
	return &tokenRepo{db: tx}
}

func (r *tokenRepo) Create(ctx context.Context, params model.CreateTokenParams) (*model.RotatingToken, error) {
	var token model.RotatingToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO rotating_tokens (session_id, token_value, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.SessionID, params.TokenValue, params.IssuedAt, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepo) FindValid(ctx context.Context, sessionID, value string, now time.Time) (*model.RotatingToken, error) {
	var token model.RotatingToken
	err := r.db.GetContext(ctx, &token, `
		SELECT * FROM rotating_tokens
		WHERE session_id = $1 AND token_value = $2 AND expires_at >= $3
		LIMIT 1
	`, sessionID, value, now)
	return HandleNotFound(&token, err)
}

func (r *tokenRepo) DeleteExpiredForSession(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM rotating_tokens WHERE session_id = $1 AND expires_at < $2
	`, sessionID, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *tokenRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rotating_tokens WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rotating_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
