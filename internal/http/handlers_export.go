// Package httpx provides HTTP handlers and utilities for the sproutlog API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/sproutlog/sproutlog/internal/domain/model"
	"github.com/sproutlog/sproutlog/internal/service"
)

// ExportHandlers provides HTTP handlers for export-job operations.
type ExportHandlers struct {
	Svc *service.ExportService
}

type submitExportRequest struct {
	Format model.ExportFormat `json:"format"`
}

// SubmitExport handles POST /api/export/{child}.
func (h *ExportHandlers) SubmitExport(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("child")
	if childID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("child id is required")})
		return
	}

	var body submitExportRequest
	if !DecodeJSON(w, r, &body) {
		return
	}

	job, err := h.Svc.Submit(r.Context(), &model.CreateJobRequest{
		OwnerID: UserID(r.Context()),
		ChildID: childID,
		Format:  body.Format,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, job.StatusSnapshot())
}

// GetExportStatus handles GET /api/export/jobs/{id}/status.
func (h *ExportHandlers) GetExportStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Svc.GetStatus(r.Context(), r.PathValue("id"), UserID(r.Context()))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// GetExportResult handles GET /api/export/jobs/{id}/result.
func (h *ExportHandlers) GetExportResult(w http.ResponseWriter, r *http.Request) {
	contentType, payload, err := h.Svc.FetchResult(r.Context(), r.PathValue("id"), UserID(r.Context()))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
