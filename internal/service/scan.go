package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/attendance-server-go/internal/geo"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/sse"
	"github.com/openclaw/attendance-server-go/internal/token"
	"github.com/openclaw/attendance-server-go/internal/validator"
)

const acceptedMessage = "Attendance recorded successfully"

// ClaimRequest is an unverified presence claim as submitted by a device.
type ClaimRequest struct {
	SessionID     string   `json:"session_id" validate:"required"`
	Token         string   `json:"token" validate:"required,max=200"`
	IssuanceNonce string   `json:"issuance_nonce" validate:"max=128"`
	SubjectID     string   `json:"subject_id" validate:"required,max=64"`
	FirstName     string   `json:"first_name" validate:"required,max=100"`
	LastName      string   `json:"last_name" validate:"required,max=100"`
	ClientLat     *float64 `json:"client_lat" validate:"required"`
	ClientLon     *float64 `json:"client_lon" validate:"required"`
	ClientTS      string   `json:"client_ts" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DeviceID      string   `json:"device_id" validate:"required,max=200"`
	ClaimNonce    string   `json:"claim_nonce" validate:"required,max=128"`
	ClientVersion string   `json:"client_version" validate:"max=50"`

	// malformed lists fields whose JSON type was wrong.
	malformed []string
}

// Verdict is the outcome of a claim. Rejections are verdicts, not errors.
type Verdict struct {
	Valid     bool                `json:"valid"`
	Message   string              `json:"message,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	Code      model.RejectionCode `json:"code,omitempty"`
	DistanceM *float64            `json:"distance_m,omitempty"`
}

type ScanServiceConfig struct {
	GPSTolerance       float64
	TimestampTolerance time.Duration
}

type ScanService struct {
	codec         *token.Codec
	validator     *validator.Validator
	sessionRepo   repository.SessionRepository
	tokenRepo     repository.TokenRepository
	scanRepo      repository.AcceptedScanRepository
	rejectionRepo repository.RejectedScanRepository
	publisher     EventPublisher
	sideEffects   *SideEffects
	cfg           ScanServiceConfig
	now           func() time.Time
}

func NewScanService(
	codec *token.Codec,
	v *validator.Validator,
	sessionRepo repository.SessionRepository,
	tokenRepo repository.TokenRepository,
	scanRepo repository.AcceptedScanRepository,
	rejectionRepo repository.RejectedScanRepository,
	publisher EventPublisher,
	sideEffects *SideEffects,
	cfg ScanServiceConfig,
) *ScanService {
	return &ScanService{
		codec:         codec,
		validator:     v,
		sessionRepo:   sessionRepo,
		tokenRepo:     tokenRepo,
		scanRepo:      scanRepo,
		rejectionRepo: rejectionRepo,
		publisher:     publisher,
		sideEffects:   sideEffects,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Submit runs a claim through the validation pipeline. The first failing check
// produces a rejected verdict; a returned error always means an infrastructure
// fault.
func (s *ScanService) Submit(ctx context.Context, req ClaimRequest) (*Verdict, error) {
	now := s.now()

	// 1. completeness
	if len(req.malformed) > 0 {
		return s.reject(ctx, req, now, model.RejectMissingFields, "Malformed fields: "+strings.Join(req.malformed, ", ")), nil
	}
	if err := s.validator.Validate(req); err != nil {
		var fe *validator.FieldError
		if !errors.As(err, &fe) {
			return nil, fmt.Errorf("validate claim: %w", err)
		}
		return s.reject(ctx, req, now, model.RejectMissingFields, missingFieldsReason(fe)), nil
	}
	clientTS, err := time.Parse(time.RFC3339, req.ClientTS)
	if err != nil {
		return s.reject(ctx, req, now, model.RejectMissingFields, "Malformed fields: client_ts"), nil
	}
	claimed := geo.Point{Lat: *req.ClientLat, Lon: *req.ClientLon}

	// 2. coordinate plausibility
	if !claimed.Valid() {
		return s.reject(ctx, req, now, model.RejectInvalidGPS, "Invalid GPS coordinates format"), nil
	}

	// 3. session existence and activity
	session, err := s.sessionRepo.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || !session.IsActive {
		return s.reject(ctx, req, now, model.RejectSessionInactive, "Session not found or inactive"), nil
	}

	// 4. device dedup fast path; the unique constraint at commit is authoritative
	recorded, err := s.scanRepo.ExistsForDevice(ctx, session.ID, req.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("check device: %w", err)
	}
	if recorded {
		return s.rejectDuplicate(ctx, req, now), nil
	}

	// 5. token structure and age
	if !s.codec.CheckFormat(req.Token, now, s.codec.Validity()) {
		return s.reject(ctx, req, now, model.RejectTokenInvalid, "Invalid or expired QR token"), nil
	}

	// 6. token registry
	registered, err := s.tokenRepo.FindValid(ctx, session.ID, req.Token, now)
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	if registered == nil {
		return s.reject(ctx, req, now, model.RejectTokenNotFound, "QR token not found or expired"), nil
	}

	// 7. timestamp skew
	skew := now.Sub(clientTS)
	if skew < 0 {
		skew = -skew
	}
	if skew > s.cfg.TimestampTolerance {
		return s.reject(ctx, req, now, model.RejectClockSkew, fmt.Sprintf(
			"Clock synchronization issue. Time difference: %.1fs (max %.0fs)",
			skew.Seconds(), s.cfg.TimestampTolerance.Seconds(),
		)), nil
	}

	// 8. geodesic distance
	distance := geo.Distance(session.Anchor(), claimed)
	if distance > s.cfg.GPSTolerance {
		return s.reject(ctx, req, now, model.RejectTooFar, fmt.Sprintf(
			"You are too far from the session location (%.0fm away, max %.0fm)",
			distance, s.cfg.GPSTolerance,
		)), nil
	}

	// 9. commit
	scan, err := s.scanRepo.Create(ctx, model.CreateAcceptedScanParams{
		SessionID:            session.ID,
		SubjectID:            normalizeName(req.SubjectID),
		FirstName:            normalizeName(req.FirstName),
		LastName:             normalizeName(req.LastName),
		DeviceID:             req.DeviceID,
		ClientLat:            claimed.Lat,
		ClientLon:            claimed.Lon,
		ClientTS:             clientTS,
		ClaimNonce:           req.ClaimNonce,
		IssuanceNonce:        req.IssuanceNonce,
		ClientVersion:        req.ClientVersion,
		DistanceM:            distance,
		VerifiedAt:           now,
		RequireActiveSession: true,
	})
	switch {
	case errors.Is(err, repository.ErrDuplicateDevice):
		return s.rejectDuplicate(ctx, req, now), nil
	case errors.Is(err, repository.ErrSessionInactive):
		return s.reject(ctx, req, now, model.RejectSessionInactive, "Session not found or inactive"), nil
	case err != nil:
		return nil, fmt.Errorf("record scan: %w", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("deviceId", scan.DeviceID).
		Float64("distanceM", distance).
		Msg("scan accepted")

	s.sideEffects.Go(ctx, "publish accepted scan", func(ctx context.Context) error {
		return publishEvent(ctx, s.publisher, session.ID, sse.EventScanAccepted, scan)
	})

	rounded := math.Round(distance)
	return &Verdict{Valid: true, Message: acceptedMessage, DistanceM: &rounded}, nil
}

func (s *ScanService) rejectDuplicate(ctx context.Context, req ClaimRequest, now time.Time) *Verdict {
	return s.reject(ctx, req, now, model.RejectDeviceRecorded,
		"This device has already submitted a valid scan for this session")
}

type rejectionEvent struct {
	Code       model.RejectionCode `json:"code"`
	Reason     string              `json:"reason"`
	SubjectID  string              `json:"subject_id,omitempty"`
	DeviceID   string              `json:"device_id,omitempty"`
	RejectedAt time.Time           `json:"rejected_at"`
}

// reject logs the rejection and schedules its persistence. Neither can change
// the verdict.
func (s *ScanService) reject(ctx context.Context, req ClaimRequest, now time.Time, code model.RejectionCode, reason string) *Verdict {
	log.Warn().
		Str("sessionId", req.SessionID).
		Str("deviceId", req.DeviceID).
		Str("code", string(code)).
		Str("reason", reason).
		Msg("scan rejected")

	params := rejectionParams(req, code, reason, now)
	s.sideEffects.Go(ctx, "record rejection", func(ctx context.Context) error {
		return s.rejectionRepo.Create(ctx, params)
	})

	if code != model.RejectMissingFields && req.SessionID != "" {
		event := rejectionEvent{
			Code:       code,
			Reason:     reason,
			SubjectID:  req.SubjectID,
			DeviceID:   req.DeviceID,
			RejectedAt: now,
		}
		s.sideEffects.Go(ctx, "publish rejected scan", func(ctx context.Context) error {
			return publishEvent(ctx, s.publisher, req.SessionID, sse.EventScanRejected, event)
		})
	}

	return &Verdict{Valid: false, Reason: reason, Code: code}
}

func rejectionParams(req ClaimRequest, code model.RejectionCode, reason string, now time.Time) model.CreateRejectedScanParams {
	params := model.CreateRejectedScanParams{
		SessionID:     optional(req.SessionID),
		SubjectID:     optional(req.SubjectID),
		FirstName:     optional(req.FirstName),
		LastName:      optional(req.LastName),
		DeviceID:      optional(req.DeviceID),
		ClientTS:      optional(req.ClientTS),
		ClaimNonce:    optional(req.ClaimNonce),
		ClientVersion: optional(req.ClientVersion),
		Code:          code,
		Reason:        reason,
		RejectedAt:    now,
	}
	// Non-finite coordinates are left out of the log
	if req.ClientLat != nil && !math.IsNaN(*req.ClientLat) && !math.IsInf(*req.ClientLat, 0) {
		params.ClientLat = req.ClientLat
	}
	if req.ClientLon != nil && !math.IsNaN(*req.ClientLon) && !math.IsInf(*req.ClientLon, 0) {
		params.ClientLon = req.ClientLon
	}
	return params
}

func missingFieldsReason(fe *validator.FieldError) string {
	if len(fe.Missing) > 0 {
		return "Missing required fields: " + strings.Join(fe.Missing, ", ")
	}
	return "Malformed fields: " + strings.Join(fe.Fields, ", ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
