package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
)

// RejectedScanRepository is append-only.
type RejectedScanRepository interface {
	Create(ctx context.Context, params model.CreateRejectedScanParams) error
	FindBySession(ctx context.Context, sessionID string, limit int) ([]model.RejectedScan, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

type rejectedScanRepo struct {
	db database.DBTX
}

func NewRejectedScanRepository(db *sqlx.DB) RejectedScanRepository {
	return &rejectedScanRepo{db: db}
}

func (r *rejectedScanRepo) Create(ctx context.Context, params model.CreateRejectedScanParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rejected_scans (
			id, session_id, subject_id, first_name, last_name, device_id,
			client_lat, client_lon, client_ts, claim_nonce, client_version,
			code, reason, rejected_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, uuid.NewString(), params.SessionID, params.SubjectID, params.FirstName, params.LastName, params.DeviceID,
		params.ClientLat, params.ClientLon, params.ClientTS, params.ClaimNonce, params.ClientVersion,
		params.Code, params.Reason, params.RejectedAt)
	return err
}

func (r *rejectedScanRepo) FindBySession(ctx context.Context, sessionID string, limit int) ([]model.RejectedScan, error) {
	scans := []model.RejectedScan{}
	err := r.db.SelectContext(ctx, &scans, `
		SELECT * FROM rejected_scans
		WHERE session_id = $1
		ORDER BY rejected_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return scans, nil
}

func (r *rejectedScanRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM rejected_scans WHERE session_id = $1`, sessionID)
	return count, err
}
