// handler.go — основной обработчик API Edge Module.
// Объединяет доменные обработчики, регистрирует маршруты на chi-роутере
// и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/godevedge/edge-module/internal/service"
)

// APIHandler — основной обработчик API Edge Module.
type APIHandler struct {
	health  *HealthHandler
	ingest  *service.IngestService
	devices *service.DeviceService
	uploads *service.UploadService
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	ingest *service.IngestService,
	devices *service.DeviceService,
	uploads *service.UploadService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:  health,
		ingest:  ingest,
		devices: devices,
		uploads: uploads,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует все маршруты API на роутере.
func (h *APIHandler) Routes(router chi.Router) {
	router.Get("/health/live", h.health.HealthLive)
	router.Get("/health/ready", h.health.HealthReady)
	router.Get("/metrics", h.health.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/uploads", h.ListUploads)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", h.ListDevices)
			r.Post("/", h.CreateDevice)
			r.Post("/upload", h.UploadCSV)
			r.Get("/model/{model}", h.ListDevicesByModel)
			r.Get("/model/{model}/csv", h.ExportDevicesByModel)
			r.Get("/{id}", h.GetDevice)
			r.Put("/{id}", h.UpdateDevice)
			r.Delete("/{id}", h.DeleteDevice)
		})
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
