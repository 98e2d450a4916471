package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
)

const acceptedSessionDeviceKey = "accepted_scans_session_device_key"

type AcceptedScanRepository interface {
	ExistsForDevice(ctx context.Context, sessionID, deviceID string) (bool, error)
	// Create inserts an accepted record. A conflict on (session_id, device_id)
	// yields ErrDuplicateDevice. With RequireActiveSession set, an inactive
	// session yields ErrSessionInactive and nothing is written.
	Create(ctx context.Context, params model.CreateAcceptedScanParams) (*model.AcceptedScan, error)
	FindBySession(ctx context.Context, sessionID string) ([]model.AcceptedScan, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	WithTx(tx *sqlx.Tx) AcceptedScanRepository
}

type acceptedScanRepo struct {
	db database.DBTX
}

func NewAcceptedScanRepository(db *sqlx.DB) AcceptedScanRepository {
	return &acceptedScanRepo{db: db}
}

func (r *acceptedScanRepo) WithTx(tx *sqlx.Tx) AcceptedScanRepository {
	return &acceptedScanRepo{db: tx}
}

func (r *acceptedScanRepo) ExistsForDevice(ctx context.Context, sessionID, deviceID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM accepted_scans WHERE session_id = $1 AND device_id = $2
		)
	`, sessionID, deviceID)
	return exists, err
}

// The active-session guard takes a share lock on the session row so that an
// insert cannot interleave with a concurrent end-and-archive.
const insertAcceptedScan = `
	INSERT INTO accepted_scans (
		id, session_id, subject_id, first_name, last_name, device_id,
		client_lat, client_lon, client_ts, claim_nonce, issuance_nonce,
		client_version, distance_m, manual_reason, verified_at
	)
	SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text,
		$7::double precision, $8::double precision, $9::timestamptz, $10::text, $11::text,
		$12::text, $13::double precision, $14::text, $15::timestamptz
	WHERE NOT $16::boolean OR EXISTS (
		SELECT 1 FROM sessions WHERE id = $2::uuid AND is_active FOR SHARE
	)
	RETURNING *
`

func (r *acceptedScanRepo) Create(ctx context.Context, params model.CreateAcceptedScanParams) (*model.AcceptedScan, error) {
	var scan model.AcceptedScan
	err := r.db.GetContext(ctx, &scan, insertAcceptedScan,
		uuid.NewString(), params.SessionID, params.SubjectID, params.FirstName, params.LastName, params.DeviceID,
		params.ClientLat, params.ClientLon, params.ClientTS, params.ClaimNonce, params.IssuanceNonce,
		params.ClientVersion, params.DistanceM, params.ManualReason, params.VerifiedAt,
		params.RequireActiveSession,
	)
	if isUniqueViolation(err, acceptedSessionDeviceKey) {
		return nil, ErrDuplicateDevice
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionInactive
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (r *acceptedScanRepo) FindBySession(ctx context.Context, sessionID string) ([]model.AcceptedScan, error) {
	scans := []model.AcceptedScan{}
	err := r.db.SelectContext(ctx, &scans, `
		SELECT * FROM accepted_scans WHERE session_id = $1 ORDER BY verified_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return scans, nil
}

func (r *acceptedScanRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accepted_scans WHERE session_id = $1`, sessionID)
	return count, err
}
