// uploads.go — обработчики загрузки CSV и просмотра квитанций.
// POST /api/v1/devices/upload — загрузка CSV-файла (multipart, поле file)
// GET  /api/v1/uploads        — список квитанций о загрузках
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	apierrors "github.com/bigkaa/godevedge/edge-module/internal/api/errors"
	"github.com/bigkaa/godevedge/edge-module/internal/csvfile"
	"github.com/bigkaa/godevedge/edge-module/internal/service"
)

// maxUploadSize — предел размера тела запроса загрузки (32 МБ).
const maxUploadSize = 32 << 20

// UploadCSV — загрузка CSV-файла с устройствами.
// Файл передаётся в поле file, отправитель — в поле submitted_by
// или заголовке X-Submitted-By. Успех — 201 с полным списком
// разобранных записей и поимённым исходом отправки: частичные отказы
// реестра видны в outcomes, а не в HTTP-статусе.
func (h *APIHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	// Ограничиваем тело целиком: без MaxBytesReader ParseMultipartForm
	// ограничивает только память, а гигантский файл уходит на диск.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.WriteError(w, http.StatusRequestEntityTooLarge,
				apierrors.CodeValidationError,
				fmt.Sprintf("файл превышает предел %d байт", maxErr.Limit))
			return
		}
		apierrors.ValidationError(w, "некорректная multipart-форма: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "поле file обязательно")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		apierrors.InternalError(w, "ошибка чтения файла")
		return
	}

	submittedBy := r.FormValue("submitted_by")
	if submittedBy == "" {
		submittedBy = r.Header.Get("X-Submitted-By")
	}

	result, err := h.ingest.Ingest(r.Context(), header.Filename, data, submittedBy)
	if err != nil {
		var malformed *csvfile.MalformedError
		switch {
		case errors.As(err, &malformed):
			apierrors.MalformedFile(w, malformed.Reason, malformed.Line)
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, "файл с таким именем уже загружался")
		default:
			h.logger.Error("Ошибка загрузки CSV", "file", header.Filename, "error", err)
			apierrors.InternalError(w, "ошибка обработки файла")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListUploads — список квитанций о загрузках в порядке вставки.
func (h *APIHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.uploads.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка квитанций", "error", err)
		apierrors.InternalError(w, "ошибка получения списка квитанций")
		return
	}

	writeJSON(w, http.StatusOK, uploads)
}
