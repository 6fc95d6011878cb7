// devices.go — проксирующие обработчики устройств.
// GET    /api/v1/devices                    — полный список
// POST   /api/v1/devices                    — создание одного устройства
// GET    /api/v1/devices/model/{model}      — список по модели
// GET    /api/v1/devices/model/{model}/csv  — экспорт списка в CSV
// GET    /api/v1/devices/{id}               — устройство по серийному номеру
// PUT    /api/v1/devices/{id}               — обновление
// DELETE /api/v1/devices/{id}               — удаление
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/godevedge/edge-module/internal/api/errors"
	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
	"github.com/bigkaa/godevedge/edge-module/internal/service"
)

// ListDevices — полный список устройств.
func (h *APIHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context(), "")
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

// ListDevicesByModel — список устройств выбранной модели.
func (h *APIHandler) ListDevicesByModel(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context(), chi.URLParam(r, "model"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

// GetDevice — устройство по серийному номеру.
func (h *APIHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	device, err := h.devices.Get(r.Context(), id)
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// CreateDevice — создание одного устройства в реестре.
func (h *APIHandler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var device model.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		apierrors.ValidationError(w, "некорректное JSON-тело запроса")
		return
	}

	if err := h.devices.Create(r.Context(), device); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

// UpdateDevice — обновление устройства в реестре.
func (h *APIHandler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var device model.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		apierrors.ValidationError(w, "некорректное JSON-тело запроса")
		return
	}

	updated, err := h.devices.Update(r.Context(), id, device)
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteDevice — удаление устройства из реестра.
func (h *APIHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.devices.Delete(r.Context(), id); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportDevicesByModel — экспорт устройств выбранной модели в CSV
// с заголовком id,model,description.
// CSV собирается в буфер до записи ответа, чтобы ошибка реестра
// не превратилась в обрезанный файл с кодом 200.
func (h *APIHandler) ExportDevicesByModel(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.devices.ExportCSV(r.Context(), chi.URLParam(r, "model"), &buf); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="devices.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeDeviceError транслирует ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "устройство не найдено")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrRegistryUnavailable):
		apierrors.RegistryUnavailable(w, "реестр устройств недоступен")
	default:
		h.logger.Error("Ошибка операции с устройством", "error", err)
		apierrors.InternalError(w, "внутренняя ошибка")
	}
}
