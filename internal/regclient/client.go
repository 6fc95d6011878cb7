// Пакет regclient — HTTP-клиент для взаимодействия с реестром устройств.
// Операции: CreateDevice (POST /api/devices) с классификацией исхода,
// а также прямые проксирующие операции Get/List/Update/Delete.
// Клиент не хранит состояние между вызовами и безопасен для
// конкурентного использования. Повторы запросов — ответственность
// вызывающего кода, не клиента.
package regclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
)

// Outcome — классифицированный исход отправки одной записи в реестр.
type Outcome string

const (
	// OutcomeAccepted — реестр принял запись (2xx).
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRejectedClient — реестр отклонил запись как некорректную (4xx).
	// Повтор бессмыслен.
	OutcomeRejectedClient Outcome = "rejected_client"
	// OutcomeRejectedServer — ошибка реестра (5xx) или транспортный сбой.
	// Повтор допустим по политике вызывающего кода.
	OutcomeRejectedServer Outcome = "rejected_server"
	// OutcomeTimeout — запрос не уложился в таймаут.
	OutcomeTimeout Outcome = "timeout"
)

// Retryable сообщает, допускает ли исход повтор отправки.
func (o Outcome) Retryable() bool {
	return o == OutcomeRejectedServer || o == OutcomeTimeout
}

// APIError — ошибка не-2xx ответа реестра для проксирующих операций.
type APIError struct {
	StatusCode int
	Body       string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return fmt.Sprintf("реестр вернул статус %d: %s", e.StatusCode, e.Body)
}

// Client — HTTP-клиент реестра устройств.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент реестра.
// baseURL — базовый URL реестра (без trailing slash).
// timeout — таймаут одного запроса (EM_REGISTRY_TIMEOUT).
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "registry_client")),
	}
}

// CreateDevice отправляет одну запись устройства в реестр и классифицирует
// исход. Ровно один исходящий запрос на вызов, без внутренних повторов.
func (c *Client) CreateDevice(ctx context.Context, device model.Device) Outcome {
	body, err := json.Marshal(device)
	if err != nil {
		// Device сериализуем всегда; сюда попадать не должны
		c.logger.Error("Ошибка сериализации устройства", slog.String("error", err.Error()))
		return OutcomeRejectedClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/devices", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("Ошибка создания запроса CreateDevice", slog.String("error", err.Error()))
		return OutcomeRejectedServer
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return OutcomeTimeout
		}
		return OutcomeRejectedServer
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeAccepted
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return OutcomeRejectedClient
	default:
		return OutcomeRejectedServer
	}
}

// GetDevice запрашивает устройство по серийному номеру.
// GET /api/devices/{id}.
func (c *Client) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	if err := c.doJSON(ctx, http.MethodGet, "/api/devices/"+url.PathEscape(id), nil, &device); err != nil {
		return nil, fmt.Errorf("запрос устройства %s: %w", id, err)
	}
	return &device, nil
}

// ListDevices запрашивает полный список устройств.
// GET /api/devices.
func (c *Client) ListDevices(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := c.doJSON(ctx, http.MethodGet, "/api/devices", nil, &devices); err != nil {
		return nil, fmt.Errorf("запрос списка устройств: %w", err)
	}
	return devices, nil
}

// UpdateDevice обновляет устройство в реестре.
// PUT /api/devices/{id}.
func (c *Client) UpdateDevice(ctx context.Context, id string, device model.Device) (*model.Device, error) {
	var updated model.Device
	if err := c.doJSON(ctx, http.MethodPut, "/api/devices/"+url.PathEscape(id), device, &updated); err != nil {
		return nil, fmt.Errorf("обновление устройства %s: %w", id, err)
	}
	return &updated, nil
}

// DeleteDevice удаляет устройство из реестра.
// DELETE /api/devices/{id}.
func (c *Client) DeleteDevice(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/devices/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("удаление устройства %s: %w", id, err)
	}
	return nil
}

// doJSON выполняет запрос к реестру с JSON-телом и декодирует JSON-ответ.
// out == nil — тело ответа игнорируется. Не-2xx ответ — *APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("сериализация тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("декодирование ответа реестра: %w", err)
	}
	return nil
}

// CheckReady проверяет доступность реестра для readiness probe.
// Лёгкий запрос: тело ответа не декодируется и не читается целиком,
// проба не должна дорожать с ростом реестра.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *Client) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/devices", nil)
	if err != nil {
		return "fail", fmt.Sprintf("формирование запроса к реестру: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("реестр недоступен: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "fail", fmt.Sprintf("реестр вернул статус %d", resp.StatusCode)
	}
	return "ok", "реестр отвечает"
}

// isTimeout проверяет, является ли транспортная ошибка таймаутом.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}
