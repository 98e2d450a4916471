package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/attendance-server-go/internal/audit"
	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/export"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/service"
	"github.com/openclaw/attendance-server-go/internal/validator"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type SessionManager interface {
	Start(ctx context.Context, owner *model.Owner, lat, lon float64) (*model.Session, error)
	End(ctx context.Context, owner *model.Owner, sessionID string) (*service.EndSessionResult, error)
	List(ctx context.Context, owner *model.Owner) ([]model.SessionSummary, error)
	Get(ctx context.Context, owner *model.Owner, sessionID string) (*model.Session, error)
}

type TokenIssuer interface {
	Issue(ctx context.Context, owner *model.Owner, sessionID string) (*service.IssuedToken, error)
}

type ManualAdjuster interface {
	Add(ctx context.Context, owner *model.Owner, req service.ManualAdjustmentRequest) (*model.AcceptedScan, error)
}

type Reporter interface {
	Scans(ctx context.Context, owner *model.Owner, sessionID string, rejectedLimit int) (*service.SessionScansReport, error)
	Archive(ctx context.Context, owner *model.Owner, sessionID string) (*service.SessionArchiveReport, error)
	Sheet(ctx context.Context, owner *model.Owner, sessionID string) (*export.Sheet, error)
}

// SessionHandler serves the owner-scoped session API. Every route expects an
// authenticated owner in the request context.
type SessionHandler struct {
	sessions    SessionManager
	tokens      TokenIssuer
	adjustments ManualAdjuster
	reports     Reporter
	events      http.Handler
	validator   *validator.Validator
}

func NewSessionHandler(
	sessions SessionManager,
	tokens TokenIssuer,
	adjustments ManualAdjuster,
	reports Reporter,
	events http.Handler,
	v *validator.Validator,
) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		tokens:      tokens,
		adjustments: adjustments,
		reports:     reports,
		events:      events,
		validator:   v,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Start)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/end", h.End)
		r.Get("/token", h.IssueToken)
		r.Post("/manual", h.AddManual)
		r.Get("/scans", h.Scans)
		r.Get("/archive", h.Archive)
		r.Get("/export", h.Export)
		if h.events != nil {
			r.Get("/events", h.events.ServeHTTP)
		}
	})

	return r
}

type startSessionRequest struct {
	AnchorLat *float64 `json:"anchor_lat" validate:"required"`
	AnchorLon *float64 `json:"anchor_lon" validate:"required"`
}

// POST /v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, apperrors.ValidationError(err.Error()))
		return
	}

	session, err := h.sessions.Start(r.Context(), owner, *req.AnchorLat, *req.AnchorLon)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventSessionStart, OwnerID: owner.ID, SessionID: session.ID})
	writeJSON(w, http.StatusCreated, session)
}

// GET /v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	summaries, err := h.sessions.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []model.SessionSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

// GET /v1/sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	session, err := h.sessions.Get(r.Context(), owner, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// POST /v1/sessions/{sessionID}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	result, err := h.sessions.End(r.Context(), owner, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionEnd,
		OwnerID:   owner.ID,
		SessionID: result.SessionID,
		Details:   map[string]any{"archived": result.ArchivedCount},
	})
	writeJSON(w, http.StatusOK, result)
}

// GET /v1/sessions/{sessionID}/token
func (h *SessionHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	issued, err := h.tokens.Issue(r.Context(), owner, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, issued)
}

// POST /v1/sessions/{sessionID}/manual
// The path decides the session; a session_id in the body is ignored.
func (h *SessionHandler) AddManual(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var req service.ManualAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.SessionID = chi.URLParam(r, "sessionID")

	scan, err := h.adjustments.Add(r.Context(), owner, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventManualAdjustment,
		OwnerID:   owner.ID,
		SessionID: scan.SessionID,
		Details:   map[string]any{"subject_id": scan.SubjectID, "device_id": scan.DeviceID},
	})
	writeJSON(w, http.StatusCreated, scan)
}

// GET /v1/sessions/{sessionID}/scans
func (h *SessionHandler) Scans(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	report, err := h.reports.Scans(r.Context(), owner, chi.URLParam(r, "sessionID"), ParseLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if report.Accepted == nil {
		report.Accepted = []model.AcceptedScan{}
	}
	if report.Rejected == nil {
		report.Rejected = []model.RejectedScan{}
	}

	writeJSON(w, http.StatusOK, report)
}

// GET /v1/sessions/{sessionID}/archive
func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	report, err := h.reports.Archive(r.Context(), owner, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if report.Archived == nil {
		report.Archived = []model.ArchivedScan{}
	}

	writeJSON(w, http.StatusOK, report)
}

// GET /v1/sessions/{sessionID}/export?format=csv|xlsx
// The file is rendered into memory first so a failure can still be reported
// as a JSON error.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	format, err := service.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	sheet, err := h.reports.Sheet(r.Context(), owner, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	contentType := contentTypeCSV
	switch format {
	case model.ExportFormatXLSX:
		contentType = contentTypeXLSX
		err = export.WriteXLSX(&buf, sheet)
	default:
		err = export.WriteCSV(&buf, sheet)
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("render %s export: %w", format, err))
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventExport,
		OwnerID:   owner.ID,
		SessionID: sheet.SessionID,
		Details:   map[string]any{"format": string(format), "rows": len(sheet.Rows)},
	})

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(sheet, string(format))))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
