package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/attendance-server-go/internal/audit"
	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/service"
	"github.com/openclaw/attendance-server-go/internal/validator"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	ResolveOwner(ctx context.Context, token string) (*model.Owner, error)
}

type AuthHandler struct {
	auth      Authenticator
	validator *validator.Validator
	// loginLimit wraps the login route; nil leaves it unlimited.
	loginLimit func(http.Handler) http.Handler
}

func NewAuthHandler(auth Authenticator, v *validator.Validator, loginLimit func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{auth: auth, validator: v, loginLimit: loginLimit}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.loginLimit != nil {
			r.Use(h.loginLimit)
		}
		r.Post("/login", h.Login)
	})
	r.Post("/verify", h.Verify)

	return r
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=200"`
}

// POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, apperrors.ValidationError(err.Error()))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeUnauthorized {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventLoginFailure,
				Details: map[string]any{"email": req.Email},
			})
		}
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, OwnerID: result.Owner.ID})
	writeJSON(w, http.StatusOK, result)
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /v1/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, apperrors.Unauthorized("Invalid or expired token"))
		return
	}

	owner, err := h.auth.ResolveOwner(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"owner": owner})
}
