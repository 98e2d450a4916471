package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/httputil"
	"github.com/openclaw/attendance-server-go/internal/middleware"
	"github.com/openclaw/attendance-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError answers with the AppError carried by err. Anything else is an
// infrastructure fault: logged in full here, generic on the wire.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.GetCode(err) == apperrors.ErrCodeInternal {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	httputil.WriteError(w, err)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return apperrors.ValidationError("Request body too large")
		}
		return apperrors.ValidationError("Invalid request body")
	}
	return nil
}

// requireOwner returns the authenticated owner or writes a 401.
func requireOwner(w http.ResponseWriter, r *http.Request) *model.Owner {
	owner := middleware.GetOwner(r.Context())
	if owner == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
	}
	return owner
}
