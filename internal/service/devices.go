// devices.go — проксирующие операции над реестром устройств.
// Edge Module не хранит устройства: каждая операция транслируется
// в вызов реестра. Списки кэшируются в CacheService, мутации
// сбрасывают кэш.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bigkaa/godevedge/edge-module/internal/csvfile"
	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
	"github.com/bigkaa/godevedge/edge-module/internal/regclient"
)

// RegistryAPI — операции реестра устройств, нужные проксирующему сервису.
// Реализуется regclient.Client.
type RegistryAPI interface {
	CreateDevice(ctx context.Context, device model.Device) regclient.Outcome
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	ListDevices(ctx context.Context) ([]model.Device, error)
	UpdateDevice(ctx context.Context, id string, device model.Device) (*model.Device, error)
	DeleteDevice(ctx context.Context, id string) error
}

// DeviceService — проксирующий сервис устройств.
type DeviceService struct {
	registry RegistryAPI
	cache    *CacheService
	logger   *slog.Logger
}

// NewDeviceService создаёт проксирующий сервис устройств.
// cache может быть nil — тогда каждый запрос списка идёт в реестр.
func NewDeviceService(registry RegistryAPI, cache *CacheService, logger *slog.Logger) *DeviceService {
	return &DeviceService{
		registry: registry,
		cache:    cache,
		logger:   logger.With(slog.String("component", "device_service")),
	}
}

// Get возвращает устройство по серийному номеру.
func (s *DeviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	device, err := s.registry.GetDevice(ctx, id)
	if err != nil {
		return nil, mapRegistryError(err)
	}
	return device, nil
}

// List возвращает список устройств, опционально отфильтрованный по модели.
// Фильтрация выполняется локально: реестр отдаёт полный список.
// Результат кэшируется по значению фильтра.
func (s *DeviceService) List(ctx context.Context, modelFilter string) ([]model.Device, error) {
	if s.cache != nil {
		if devices, ok := s.cache.Get(modelFilter); ok {
			return devices, nil
		}
	}

	all, err := s.registry.ListDevices(ctx)
	if err != nil {
		return nil, mapRegistryError(err)
	}

	devices := all
	if modelFilter != "" {
		devices = make([]model.Device, 0, len(all))
		for _, d := range all {
			if d.Model == modelFilter {
				devices = append(devices, d)
			}
		}
	}

	if s.cache != nil {
		s.cache.Set(modelFilter, devices)
	}
	return devices, nil
}

// ExportCSV выписывает устройства выбранной модели в CSV-формате
// с заголовком id,model,description.
func (s *DeviceService) ExportCSV(ctx context.Context, modelFilter string, w io.Writer) error {
	devices, err := s.List(ctx, modelFilter)
	if err != nil {
		return err
	}
	if err := csvfile.Write(w, devices); err != nil {
		return fmt.Errorf("формирование CSV: %w", err)
	}
	return nil
}

// Create создаёт одно устройство в реестре.
func (s *DeviceService) Create(ctx context.Context, device model.Device) error {
	if reason := device.Validate(); reason != "" {
		return fmt.Errorf("%w: %s", ErrValidation, reason)
	}

	switch outcome := s.registry.CreateDevice(ctx, device); outcome {
	case regclient.OutcomeAccepted:
	case regclient.OutcomeRejectedClient:
		return fmt.Errorf("%w: реестр отклонил устройство %q", ErrValidation, device.ID)
	default:
		return fmt.Errorf("%w: устройство %q не создано (%s)", ErrRegistryUnavailable, device.ID, outcome)
	}

	s.invalidate()
	s.logger.Info("Устройство создано", slog.String("device", device.ID))
	return nil
}

// Update обновляет устройство в реестре.
func (s *DeviceService) Update(ctx context.Context, id string, device model.Device) (*model.Device, error) {
	if reason := device.Validate(); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrValidation, reason)
	}

	updated, err := s.registry.UpdateDevice(ctx, id, device)
	if err != nil {
		return nil, mapRegistryError(err)
	}

	s.invalidate()
	s.logger.Info("Устройство обновлено", slog.String("device", id))
	return updated, nil
}

// Delete удаляет устройство из реестра.
func (s *DeviceService) Delete(ctx context.Context, id string) error {
	if err := s.registry.DeleteDevice(ctx, id); err != nil {
		return mapRegistryError(err)
	}

	s.invalidate()
	s.logger.Info("Устройство удалено", slog.String("device", id))
	return nil
}

// invalidate сбрасывает кэш списков после мутации.
func (s *DeviceService) invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// mapRegistryError транслирует ошибку клиента реестра в ошибку сервисного слоя.
// 404 — ErrNotFound, 409 — ErrConflict, прочие 4xx — ErrValidation,
// 5xx и транспортные сбои — ErrRegistryUnavailable.
func mapRegistryError(err error) error {
	var apiErr *regclient.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case apiErr.StatusCode == http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrConflict, apiErr.Body)
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return fmt.Errorf("%w: %s", ErrValidation, apiErr.Body)
		default:
			return fmt.Errorf("%w: статус %d", ErrRegistryUnavailable, apiErr.StatusCode)
		}
	}
	return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
}
