package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/security"
	"github.com/openclaw/attendance-server-go/internal/util"
)

const minPasswordLength = 8

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Owner     *model.Owner `json:"owner"`
}

type AuthService struct {
	ownerRepo repository.OwnerRepository
	jwt       *security.JWTManager
	tokenTTL  time.Duration
}

func NewAuthService(ownerRepo repository.OwnerRepository, jwt *security.JWTManager, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		ownerRepo: ownerRepo,
		jwt:       jwt,
		tokenTTL:  tokenTTL,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// equalizeTiming burns one bcrypt comparison so unknown emails cost the same as wrong passwords.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = util.HashPassword("timing-equalizer")
	})
	util.CheckPasswordHash(password, dummyHash)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	owner, err := s.ownerRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find owner: %w", err)
	}

	if owner == nil {
		equalizeTiming(password)
		return nil, apperrors.Unauthorized("Invalid email or password")
	}
	if !util.CheckPasswordHash(password, owner.PasswordHash) {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	token, expiresAt, err := s.jwt.SignOwnerToken(owner.ID, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign owner token: %w", err)
	}

	log.Info().Str("ownerId", owner.ID).Msg("owner logged in")

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Owner: owner}, nil
}

// ResolveOwner maps a bearer credential to its owner.
func (s *AuthService) ResolveOwner(ctx context.Context, token string) (*model.Owner, error) {
	ownerID, err := s.jwt.ParseOwnerToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired token").WithCause(err)
	}

	owner, err := s.ownerRepo.FindByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("find owner: %w", err)
	}
	if owner == nil {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	return owner, nil
}

func (s *AuthService) CreateOwner(ctx context.Context, email, name, password string) (*model.Owner, error) {
	email = normalizeEmail(email)
	name = normalizeName(name)
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.ValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	owner, err := s.ownerRepo.Create(ctx, model.CreateOwnerParams{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		return nil, apperrors.Conflict("An owner with this email already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("create owner: %w", err)
	}

	log.Info().Str("ownerId", owner.ID).Msg("owner created")
	return owner, nil
}
