package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
)

// setupTestDB connects to TEST_DATABASE_URL, applies migrations and empties
// every table. Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, database.Migrate(dsn, "up"))

	db, err := database.Connect(dsn)
	require.NoError(t, err)

	_, err = db.Exec(`TRUNCATE archived_scans, rejected_scans, accepted_scans, rotating_tokens, sessions, owners`)
	require.NoError(t, err)

	return db
}

func createTestOwner(t *testing.T, db *database.DB, email string) *model.Owner {
	t.Helper()
	owner, err := NewOwnerRepository(db.DB).Create(context.Background(), model.CreateOwnerParams{
		Email:        email,
		Name:         "Test Owner",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
	})
	require.NoError(t, err)
	return owner
}

func createTestSession(t *testing.T, db *database.DB, ownerID string) *model.Session {
	t.Helper()
	session, err := NewSessionRepository(db.DB).Create(context.Background(), model.CreateSessionParams{
		OwnerID:   ownerID,
		AnchorLat: 44.8125,
		AnchorLon: 20.4612,
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
	})
	require.NoError(t, err)
	return session
}

func acceptedParams(sessionID, deviceID string) model.CreateAcceptedScanParams {
	now := time.Now().UTC()
	return model.CreateAcceptedScanParams{
		SessionID:            sessionID,
		SubjectID:            "2021/0042",
		FirstName:            "Ana",
		LastName:             "Petrović",
		DeviceID:             deviceID,
		ClientLat:            44.8126,
		ClientLon:            20.4612,
		ClientTS:             now,
		ClaimNonce:           "claim-nonce",
		IssuanceNonce:        "issuance-nonce",
		ClientVersion:        "1.4.0",
		DistanceM:            11.1,
		VerifiedAt:           now,
		RequireActiveSession: true,
	}
}
