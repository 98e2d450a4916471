package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
)

type ArchiveRepository interface {
	// ArchiveSession copies every accepted record of the session into the
	// archive and returns the number of rows copied. Rows already archived are
	// left untouched.
	ArchiveSession(ctx context.Context, sessionID string, archivedAt time.Time) (int64, error)
	ArchiveScan(ctx context.Context, scanID string, archivedAt time.Time) (int64, error)
	FindBySession(ctx context.Context, sessionID string) ([]model.ArchivedScan, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	WithTx(tx *sqlx.Tx) ArchiveRepository
}

type archiveRepo struct {
	db database.DBTX
}

func NewArchiveRepository(db *sqlx.DB) ArchiveRepository {
	return &archiveRepo{db: db}
}

func (r *archiveRepo) WithTx(tx *sqlx.Tx) ArchiveRepository {
	return &archiveRepo{db: tx}
}

const archiveColumns = `
	id, session_id, subject_id, first_name, last_name, device_id,
	client_lat, client_lon, client_ts, claim_nonce, issuance_nonce,
	client_version, distance_m, manual_reason, verified_at`

func (r *archiveRepo) ArchiveSession(ctx context.Context, sessionID string, archivedAt time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO archived_scans (`+archiveColumns+`, archived_at)
		SELECT `+archiveColumns+`, $2::timestamptz
		FROM accepted_scans
		WHERE session_id = $1
		ON CONFLICT (session_id, device_id) DO NOTHING
	`, sessionID, archivedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *archiveRepo) ArchiveScan(ctx context.Context, scanID string, archivedAt time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO archived_scans (`+archiveColumns+`, archived_at)
		SELECT `+archiveColumns+`, $2::timestamptz
		FROM accepted_scans
		WHERE id = $1
		ON CONFLICT (session_id, device_id) DO NOTHING
	`, scanID, archivedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *archiveRepo) FindBySession(ctx context.Context, sessionID string) ([]model.ArchivedScan, error) {
	scans := []model.ArchivedScan{}
	err := r.db.SelectContext(ctx, &scans, `
		SELECT * FROM archived_scans WHERE session_id = $1 ORDER BY verified_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return scans, nil
}

func (r *archiveRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM archived_scans WHERE session_id = $1`, sessionID)
	return count, err
}
