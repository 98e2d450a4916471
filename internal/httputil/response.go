package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
)

const genericErrorMessage = "An unexpected error occurred"

// statusByCode lists every code a client can receive. Anything missing is a 500.
var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeValidation:       http.StatusBadRequest,
	apperrors.ErrCodeMissingRequired:  http.StatusBadRequest,
	apperrors.ErrCodeSessionNotActive: http.StatusBadRequest,

	apperrors.ErrCodeUnauthorized: http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:    http.StatusForbidden,
	apperrors.ErrCodeNotFound:     http.StatusNotFound,

	apperrors.ErrCodeConflict:            http.StatusConflict,
	apperrors.ErrCodeActiveSessionExists: http.StatusConflict,
	apperrors.ErrCodeSessionEnded:        http.StatusConflict,
	apperrors.ErrCodeDuplicateDevice:     http.StatusConflict,

	apperrors.ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Int("status", status).Msg("failed to write response body")
	}
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError renders err with the status its code maps to. Errors that are not
// AppErrors collapse to a generic 500 body.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(genericErrorMessage)
	}
	WriteErrorWithStatus(w, StatusFromCode(appErr.Code), appErr)
}

func WriteErrorWithStatus(w http.ResponseWriter, status int, err *apperrors.AppError) {
	WriteJSON(w, status, ErrorResponse{
		Error:   err.Message,
		Code:    err.Code,
		Details: err.Details,
	})
}

func StatusFromCode(code apperrors.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
