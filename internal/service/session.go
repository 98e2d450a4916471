package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/geo"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/sse"
)

var errAlreadyEnded = errors.New("session already ended")

type EndSessionResult struct {
	SessionID     string    `json:"session_id"`
	EndedAt       time.Time `json:"ended_at"`
	ArchivedCount int       `json:"archived_count"`
	RevokedTokens int       `json:"revoked_tokens"`
}

type SessionServiceConfig struct {
	// AllowConcurrent lifts the one-active-session-per-owner policy.
	AllowConcurrent bool
}

// SessionService drives the Active -> Ended lifecycle. Sessions are created
// active and never reactivated.
type SessionService struct {
	tx          TxRunner
	ownerRepo   repository.OwnerRepository
	sessionRepo repository.SessionRepository
	tokenRepo   repository.TokenRepository
	archiveRepo repository.ArchiveRepository
	publisher   EventPublisher
	sideEffects *SideEffects
	cfg         SessionServiceConfig
	now         func() time.Time
}

func NewSessionService(
	tx TxRunner,
	ownerRepo repository.OwnerRepository,
	sessionRepo repository.SessionRepository,
	tokenRepo repository.TokenRepository,
	archiveRepo repository.ArchiveRepository,
	publisher EventPublisher,
	sideEffects *SideEffects,
	cfg SessionServiceConfig,
) *SessionService {
	return &SessionService{
		tx:          tx,
		ownerRepo:   ownerRepo,
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		archiveRepo: archiveRepo,
		publisher:   publisher,
		sideEffects: sideEffects,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Start opens a session anchored at (lat, lon). The owner row is locked for
// the duration so two concurrent starts cannot both pass the active check.
func (s *SessionService) Start(ctx context.Context, owner *model.Owner, lat, lon float64) (*model.Session, error) {
	if owner == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if !geo.ValidCoordinates(lat, lon) {
		return nil, apperrors.ValidationError("Invalid anchor coordinates")
	}

	var session *model.Session
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ownerRepo.WithTx(tx).Lock(ctx, owner.ID); err != nil {
			return fmt.Errorf("lock owner: %w", err)
		}

		sessions := s.sessionRepo.WithTx(tx)
		if !s.cfg.AllowConcurrent {
			active, err := sessions.CountActiveByOwner(ctx, owner.ID)
			if err != nil {
				return fmt.Errorf("count active sessions: %w", err)
			}
			if active > 0 {
				return apperrors.ActiveSessionExists()
			}
		}

		created, err := sessions.Create(ctx, model.CreateSessionParams{
			OwnerID:   owner.ID,
			AnchorLat: lat,
			AnchorLon: lon,
			StartedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		session = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("ownerId", owner.ID).
		Float64("anchorLat", lat).
		Float64("anchorLon", lon).
		Msg("session started")

	return session, nil
}

// End closes an owned active session, snapshots its accepted records into the
// archive and revokes every outstanding token. When the transactional path
// fails the session is still flagged inactive and the archive and revocation
// are retried individually.
func (s *SessionService) End(ctx context.Context, owner *model.Owner, sessionID string) (*EndSessionResult, error) {
	session, err := findOwnedSession(ctx, s.sessionRepo, owner, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apperrors.SessionEnded()
	}

	result := &EndSessionResult{SessionID: session.ID, EndedAt: s.now()}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		ended, err := s.sessionRepo.WithTx(tx).MarkEnded(ctx, session.ID, result.EndedAt)
		if err != nil {
			return fmt.Errorf("mark ended: %w", err)
		}
		if !ended {
			return errAlreadyEnded
		}

		archived, err := s.archiveRepo.WithTx(tx).ArchiveSession(ctx, session.ID, result.EndedAt)
		if err != nil {
			return fmt.Errorf("archive scans: %w", err)
		}
		result.ArchivedCount = int(archived)

		revoked, err := s.tokenRepo.WithTx(tx).DeleteBySession(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		result.RevokedTokens = int(revoked)
		return nil
	})

	switch {
	case errors.Is(err, errAlreadyEnded):
		return nil, apperrors.SessionEnded()
	case err != nil:
		log.Error().Err(err).Str("sessionId", session.ID).Msg("transactional session end failed, ending step by step")
		result, err = s.endStepwise(ctx, session.ID, result.EndedAt)
		if err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("sessionId", session.ID).
		Int("archivedCount", result.ArchivedCount).
		Int("revokedTokens", result.RevokedTokens).
		Msg("session ended")

	s.sideEffects.Go(ctx, "publish session end", func(ctx context.Context) error {
		return publishEvent(ctx, s.publisher, session.ID, sse.EventSessionEnded, result)
	})

	return result, nil
}

// endStepwise flags the session first: a session left active forever is worse
// than a partial archive, which can be rebuilt from the untouched live table.
func (s *SessionService) endStepwise(ctx context.Context, sessionID string, endedAt time.Time) (*EndSessionResult, error) {
	ended, err := s.sessionRepo.MarkEnded(ctx, sessionID, endedAt)
	if err != nil {
		return nil, fmt.Errorf("mark ended: %w", err)
	}
	if !ended {
		return nil, apperrors.SessionEnded()
	}

	result := &EndSessionResult{SessionID: sessionID, EndedAt: endedAt}

	if archived, err := s.archiveRepo.ArchiveSession(ctx, sessionID, endedAt); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("archive failed after session end")
	} else {
		result.ArchivedCount = int(archived)
	}

	if revoked, err := s.tokenRepo.DeleteBySession(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("token revocation failed after session end")
	} else {
		result.RevokedTokens = int(revoked)
	}

	return result, nil
}

func (s *SessionService) List(ctx context.Context, owner *model.Owner) ([]model.SessionSummary, error) {
	if owner == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	summaries, err := s.sessionRepo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summaries, nil
}

func (s *SessionService) Get(ctx context.Context, owner *model.Owner, sessionID string) (*model.Session, error) {
	return findOwnedSession(ctx, s.sessionRepo, owner, sessionID)
}
