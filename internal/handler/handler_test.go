package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/attendance-server-go/internal/export"
	"github.com/openclaw/attendance-server-go/internal/httputil"
	"github.com/openclaw/attendance-server-go/internal/middleware"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/service"
)

var testOwner = &model.Owner{ID: "owner-1", Email: "owner@example.com", Name: "Dana Owner"}

type mockSessionManager struct {
	startFunc func(ctx context.Context, owner *model.Owner, lat, lon float64) (*model.Session, error)
	endFunc   func(ctx context.Context, owner *model.Owner, id string) (*service.EndSessionResult, error)
	listFunc  func(ctx context.Context, owner *model.Owner) ([]model.SessionSummary, error)
	getFunc   func(ctx context.Context, owner *model.Owner, id string) (*model.Session, error)
}

func (m *mockSessionManager) Start(ctx context.Context, owner *model.Owner, lat, lon float64) (*model.Session, error) {
	return m.startFunc(ctx, owner, lat, lon)
}

func (m *mockSessionManager) End(ctx context.Context, owner *model.Owner, id string) (*service.EndSessionResult, error) {
	return m.endFunc(ctx, owner, id)
}

func (m *mockSessionManager) List(ctx context.Context, owner *model.Owner) ([]model.SessionSummary, error) {
	return m.listFunc(ctx, owner)
}

func (m *mockSessionManager) Get(ctx context.Context, owner *model.Owner, id string) (*model.Session, error) {
	return m.getFunc(ctx, owner, id)
}

type mockTokenIssuer struct {
	issueFunc func(ctx context.Context, owner *model.Owner, id string) (*service.IssuedToken, error)
}

func (m *mockTokenIssuer) Issue(ctx context.Context, owner *model.Owner, id string) (*service.IssuedToken, error) {
	return m.issueFunc(ctx, owner, id)
}

type mockAdjuster struct {
	addFunc func(ctx context.Context, owner *model.Owner, req service.ManualAdjustmentRequest) (*model.AcceptedScan, error)
}

func (m *mockAdjuster) Add(ctx context.Context, owner *model.Owner, req service.ManualAdjustmentRequest) (*model.AcceptedScan, error) {
	return m.addFunc(ctx, owner, req)
}

type mockReporter struct {
	scansFunc   func(ctx context.Context, owner *model.Owner, id string, limit int) (*service.SessionScansReport, error)
	archiveFunc func(ctx context.Context, owner *model.Owner, id string) (*service.SessionArchiveReport, error)
	sheetFunc   func(ctx context.Context, owner *model.Owner, id string) (*export.Sheet, error)
}

func (m *mockReporter) Scans(ctx context.Context, owner *model.Owner, id string, limit int) (*service.SessionScansReport, error) {
	return m.scansFunc(ctx, owner, id, limit)
}

func (m *mockReporter) Archive(ctx context.Context, owner *model.Owner, id string) (*service.SessionArchiveReport, error) {
	return m.archiveFunc(ctx, owner, id)
}

func (m *mockReporter) Sheet(ctx context.Context, owner *model.Owner, id string) (*export.Sheet, error) {
	return m.sheetFunc(ctx, owner, id)
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// serve routes req through router, authenticated as owner when owner is non-nil.
func serve(router chi.Router, req *http.Request, owner *model.Owner) *httptest.ResponseRecorder {
	if owner != nil {
		req = req.WithContext(middleware.WithOwner(req.Context(), owner))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
