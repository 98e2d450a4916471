package handler

import (
	"context"
	"net/http"

	"github.com/openclaw/attendance-server-go/internal/service"
)

type ClaimSubmitter interface {
	Submit(ctx context.Context, req service.ClaimRequest) (*service.Verdict, error)
}

// ScanHandler accepts claims from unauthenticated devices.
type ScanHandler struct {
	scans ClaimSubmitter
}

func NewScanHandler(scans ClaimSubmitter) *ScanHandler {
	return &ScanHandler{scans: scans}
}

// POST /v1/scans
// Every protocol rejection is a 200 with valid=false; only infrastructure
// faults produce an error status.
func (h *ScanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req service.ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	verdict, err := h.scans.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}
