package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/token"
	"github.com/openclaw/attendance-server-go/internal/util"
)

// TokenPayload is the blob a claimant's device must echo back verbatim.
type TokenPayload struct {
	SessionID     string `json:"session_id"`
	Token         string `json:"token"`
	IssuanceNonce string `json:"issuance_nonce"`
	Timestamp     int64  `json:"timestamp"`
}

type IssuedToken struct {
	Payload         TokenPayload `json:"payload"`
	ValiditySeconds int          `json:"validity_seconds"`
	RotationSeconds int          `json:"rotation_interval_seconds"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

type TokenService struct {
	codec       *token.Codec
	sessionRepo repository.SessionRepository
	tokenRepo   repository.TokenRepository
	sideEffects *SideEffects
	rotation    time.Duration
	now         func() time.Time
}

func NewTokenService(
	codec *token.Codec,
	sessionRepo repository.SessionRepository,
	tokenRepo repository.TokenRepository,
	sideEffects *SideEffects,
	rotation time.Duration,
) *TokenService {
	return &TokenService{
		codec:       codec,
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		sideEffects: sideEffects,
		rotation:    rotation,
		now:         time.Now,
	}
}

// Issue registers a fresh rotating token for an owned active session.
func (s *TokenService) Issue(ctx context.Context, owner *model.Owner, sessionID string) (*IssuedToken, error) {
	session, err := findOwnedSession(ctx, s.sessionRepo, owner, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apperrors.SessionNotActive()
	}

	now := s.now()
	value, expiresAt := s.codec.Issue(session.ID, now)

	if _, err := s.tokenRepo.Create(ctx, model.CreateTokenParams{
		SessionID:  session.ID,
		TokenValue: value,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	s.sideEffects.Go(ctx, "expired token cleanup", func(ctx context.Context) error {
		removed, err := s.tokenRepo.DeleteExpiredForSession(ctx, session.ID, now)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Debug().Str("sessionId", session.ID).Int64("removed", removed).Msg("expired tokens removed")
		}
		return nil
	})

	nonce, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate issuance nonce: %w", err)
	}

	return &IssuedToken{
		Payload: TokenPayload{
			SessionID:     session.ID,
			Token:         value,
			IssuanceNonce: nonce,
			Timestamp:     now.UnixMilli(),
		},
		ValiditySeconds: int(s.codec.Validity() / time.Second),
		RotationSeconds: int(s.rotation / time.Second),
		ExpiresAt:       expiresAt,
	}, nil
}
