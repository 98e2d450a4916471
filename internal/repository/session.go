package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/util"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.SessionSummary, error)
	CountActiveByOwner(ctx context.Context, ownerID string) (int, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// MarkEnded flips an active session to ended. It reports false when the
	// session was not active.
	MarkEnded(ctx context.Context, id string, endedAt time.Time) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

// FindByID treats ids that are not UUIDs as missing.
func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var session model.Session
	err := r.db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE id = $1`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.SessionSummary, error) {
	summaries := []model.SessionSummary{}
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT s.*,
			(SELECT COUNT(*) FROM accepted_scans a WHERE a.session_id = s.id) AS accepted_count,
			(SELECT COUNT(*) FROM rejected_scans j WHERE j.session_id = s.id::text) AS rejected_count,
			(SELECT COUNT(*) FROM archived_scans v WHERE v.session_id = s.id) AS archived_count
		FROM sessions s
		WHERE s.owner_id = $1
		ORDER BY s.started_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *sessionRepo) CountActiveByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions WHERE owner_id = $1 AND is_active
	`, ownerID)
	return count, err
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (id, owner_id, anchor_lat, anchor_lon, started_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING *
	`, uuid.NewString(), params.OwnerID, params.AnchorLat, params.AnchorLon, params.StartedAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) MarkEnded(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			is_active = FALSE,
			ended_at = $2
		WHERE id = $1 AND is_active
	`, id, endedAt)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
