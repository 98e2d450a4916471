package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/attendance-server-go/internal/audit"
	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/model"
)

type contextKey string

const OwnerContextKey contextKey = "owner"

func GetOwner(ctx context.Context) *model.Owner {
	if owner, ok := ctx.Value(OwnerContextKey).(*model.Owner); ok {
		return owner
	}
	return nil
}

// WithOwner stores owner in ctx the way OwnerAuthMiddleware does.
func WithOwner(ctx context.Context, owner *model.Owner) context.Context {
	return context.WithValue(ctx, OwnerContextKey, owner)
}

// OwnerResolver maps a bearer credential to its owner.
// *service.AuthService satisfies it.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, token string) (*model.Owner, error)
}

type OwnerAuthMiddleware struct {
	resolver OwnerResolver
}

func NewOwnerAuthMiddleware(resolver OwnerResolver) *OwnerAuthMiddleware {
	return &OwnerAuthMiddleware{resolver: resolver}
}

func (m *OwnerAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		owner, err := m.resolver.ResolveOwner(r.Context(), token)
		if err != nil {
			if apperrors.GetCode(err) == apperrors.ErrCodeUnauthorized {
				audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
				writeError(w, err)
				return
			}
			log.Error().Err(err).Msg("auth middleware: owner lookup failed")
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// extractToken prefers the Authorization header. The query parameter exists
// for EventSource clients, which cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return r.URL.Query().Get("token")
}
