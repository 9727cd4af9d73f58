package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/sproutlog/sproutlog/internal/domain/model"
	"github.com/sproutlog/sproutlog/internal/service"
)

// EventHandlers provides HTTP handlers for care activity ingestion.
type EventHandlers struct {
	Svc *service.EventService
}

type logEventRequest struct {
	Kind       model.EventKind `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// LogEvent handles POST /api/events/{child}.
func (h *EventHandlers) LogEvent(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("child")
	if childID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("child id is required")})
		return
	}

	var body logEventRequest
	if !DecodeJSON(w, r, &body) {
		return
	}

	stored, err := h.Svc.Log(r.Context(), UserID(r.Context()), model.TrackedEvent{
		ChildID:    childID,
		Kind:       body.Kind,
		OccurredAt: body.OccurredAt,
	}, time.Now().UTC())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, stored)
}
