package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/sse"
	"github.com/openclaw/attendance-server-go/internal/validator"
)

const (
	manualDevicePrefix  = "manual-override-"
	manualClientVersion = "manual-override"
	defaultManualReason = "Manual adjustment by session owner"
)

type ManualAdjustmentRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required,max=64"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Reason    string `json:"reason" validate:"max=500"`
	DeviceID  string `json:"device_id" validate:"max=200"`
}

// AdjustmentService lets a session owner record attendance the pipeline
// refused. Only ownership and the device uniqueness constraint apply.
type AdjustmentService struct {
	validator   *validator.Validator
	sessionRepo repository.SessionRepository
	scanRepo    repository.AcceptedScanRepository
	archiveRepo repository.ArchiveRepository
	publisher   EventPublisher
	sideEffects *SideEffects
	now         func() time.Time
}

func NewAdjustmentService(
	v *validator.Validator,
	sessionRepo repository.SessionRepository,
	scanRepo repository.AcceptedScanRepository,
	archiveRepo repository.ArchiveRepository,
	publisher EventPublisher,
	sideEffects *SideEffects,
) *AdjustmentService {
	return &AdjustmentService{
		validator:   v,
		sessionRepo: sessionRepo,
		scanRepo:    scanRepo,
		archiveRepo: archiveRepo,
		publisher:   publisher,
		sideEffects: sideEffects,
		now:         time.Now,
	}
}

func (s *AdjustmentService) Add(ctx context.Context, owner *model.Owner, req ManualAdjustmentRequest) (*model.AcceptedScan, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	session, err := findOwnedSession(ctx, s.sessionRepo, owner, req.SessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = manualDevicePrefix + uuid.NewString()
	}
	reason := normalizeName(req.Reason)
	if reason == "" {
		reason = defaultManualReason
	}

	scan, err := s.scanRepo.Create(ctx, model.CreateAcceptedScanParams{
		SessionID:     session.ID,
		SubjectID:     normalizeName(req.SubjectID),
		FirstName:     normalizeName(req.FirstName),
		LastName:      normalizeName(req.LastName),
		DeviceID:      deviceID,
		ClientLat:     session.AnchorLat,
		ClientLon:     session.AnchorLon,
		ClientTS:      now,
		ClaimNonce:    uuid.NewString(),
		ClientVersion: manualClientVersion,
		DistanceM:     0,
		ManualReason:  &reason,
		VerifiedAt:    now,
	})
	if errors.Is(err, repository.ErrDuplicateDevice) {
		return nil, apperrors.DuplicateDevice()
	}
	if err != nil {
		return nil, fmt.Errorf("record manual scan: %w", err)
	}

	// Re-read the session: it may have ended while the insert was in flight.
	if err := s.archiveIfEnded(ctx, session.ID, scan.ID, now); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Str("scanId", scan.ID).
			Msg("failed to archive manual scan for ended session")
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("ownerId", owner.ID).
		Str("deviceId", deviceID).
		Str("reason", reason).
		Msg("manual attendance recorded")

	s.sideEffects.Go(ctx, "publish manual scan", func(ctx context.Context) error {
		return publishEvent(ctx, s.publisher, session.ID, sse.EventScanAccepted, scan)
	})

	return scan, nil
}

func (s *AdjustmentService) archiveIfEnded(ctx context.Context, sessionID, scanID string, now time.Time) error {
	current, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if current == nil || current.IsActive {
		return nil
	}
	_, err = s.archiveRepo.ArchiveScan(ctx, scanID, now)
	return err
}
