package httpx

import (
	"log/slog"
	"net/http"

	"github.com/sproutlog/sproutlog/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Exports       *service.ExportService
	Notifications *service.NotificationService
	Events        *service.EventService
	Logger        *slog.Logger
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	exportHandlers := &ExportHandlers{Svc: services.Exports}
	notificationHandlers := &NotificationHandlers{Svc: services.Notifications}
	eventHandlers := &EventHandlers{Svc: services.Events}

	registerExportRoutes(mux, exportHandlers)
	registerNotificationRoutes(mux, notificationHandlers)
	registerEventRoutes(mux, eventHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerExportRoutes(mux *http.ServeMux, h *ExportHandlers) {
	mux.HandleFunc("POST /api/export/{child}", RequireUser(h.SubmitExport))
	mux.HandleFunc("GET /api/export/jobs/{id}/status", RequireUser(h.GetExportStatus))
	mux.HandleFunc("GET /api/export/jobs/{id}/result", RequireUser(h.GetExportResult))
}

func registerEventRoutes(mux *http.ServeMux, h *EventHandlers) {
	mux.HandleFunc("POST /api/events/{child}", RequireUser(h.LogEvent))
}

func registerNotificationRoutes(mux *http.ServeMux, h *NotificationHandlers) {
	mux.HandleFunc("GET /api/notifications", RequireUser(h.ListNotifications))
	mux.HandleFunc("GET /api/notifications/unread-count", RequireUser(h.UnreadCount))
	mux.HandleFunc("POST /api/notifications/{id}/read", RequireUser(h.MarkRead))
	mux.HandleFunc("POST /api/notifications/read-all", RequireUser(h.MarkAllRead))
	mux.HandleFunc("GET /api/notifications/preferences/{child}", RequireUser(h.GetPreferences))
	mux.HandleFunc("PUT /api/notifications/preferences/{child}", RequireUser(h.PutPreferences))
}
