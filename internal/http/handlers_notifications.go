package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sproutlog/sproutlog/internal/domain/model"
	"github.com/sproutlog/sproutlog/internal/service"
)

// NotificationHandlers provides HTTP handlers for the notification feed and
// preference operations.
type NotificationHandlers struct {
	Svc *service.NotificationService
}

// ListNotifications handles GET /api/notifications.
func (h *NotificationHandlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	opts := model.NotificationListOptions{
		RecipientID: UserID(r.Context()),
		UnreadOnly:  r.URL.Query().Get("unread_only") == "true",
		Limit:       parseIntQuery(r, "limit", 0),
	}

	items, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if items == nil {
		items = []*model.Notification{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationHandlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.Svc.UnreadCount(r.Context(), UserID(r.Context()))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.MarkRead(r.Context(), r.PathValue("id"), UserID(r.Context())); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationHandlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.Svc.MarkAllRead(r.Context(), UserID(r.Context()))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"marked": count})
}

// GetPreferences handles GET /api/notifications/preferences/{child}.
func (h *NotificationHandlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	pref, err := h.Svc.GetPreferences(r.Context(), UserID(r.Context()), r.PathValue("child"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, pref)
}

type preferenceRequest struct {
	NotifyFeedings   bool              `json:"notify_feedings"`
	NotifyDiapers    bool              `json:"notify_diapers"`
	NotifyNaps       bool              `json:"notify_naps"`
	ReminderInterval string            `json:"reminder_interval"`
	QuietHours       model.QuietWindow `json:"quiet_hours"`
}

// PutPreferences handles PUT /api/notifications/preferences/{child}.
func (h *NotificationHandlers) PutPreferences(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("child")
	if childID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("child id is required")})
		return
	}

	var body preferenceRequest
	if !DecodeJSON(w, r, &body) {
		return
	}

	interval, err := model.ParseReminderInterval(body.ReminderInterval)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_interval", Err: err})
		return
	}

	stored, err := h.Svc.UpsertPreferences(r.Context(), &model.NotificationPreference{
		UserID:           UserID(r.Context()),
		ChildID:          childID,
		NotifyFeedings:   body.NotifyFeedings,
		NotifyDiapers:    body.NotifyDiapers,
		NotifyNaps:       body.NotifyNaps,
		ReminderInterval: interval,
		QuietHours:       body.QuietHours,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stored)
}

func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
