// devices_test.go — тесты проксирующего сервиса устройств.
package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/bigkaa/godevedge/edge-module/internal/csvfile"
	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
	"github.com/bigkaa/godevedge/edge-module/internal/regclient"
)

// fakeRegistry — in-memory реализация RegistryAPI.
type fakeRegistry struct {
	devices   []model.Device
	listCalls int
	getErr    error
	updateErr error
	deleteErr error
}

func (f *fakeRegistry) CreateDevice(_ context.Context, device model.Device) regclient.Outcome {
	f.devices = append(f.devices, device)
	return regclient.OutcomeAccepted
}

func (f *fakeRegistry) GetDevice(_ context.Context, id string) (*model.Device, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, d := range f.devices {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, &regclient.APIError{StatusCode: http.StatusNotFound}
}

func (f *fakeRegistry) ListDevices(_ context.Context) ([]model.Device, error) {
	f.listCalls++
	return append([]model.Device(nil), f.devices...), nil
}

func (f *fakeRegistry) UpdateDevice(_ context.Context, id string, device model.Device) (*model.Device, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i, d := range f.devices {
		if d.ID == id {
			f.devices[i] = device
			return &device, nil
		}
	}
	return nil, &regclient.APIError{StatusCode: http.StatusNotFound}
}

func (f *fakeRegistry) DeleteDevice(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, d := range f.devices {
		if d.ID == id {
			f.devices = append(f.devices[:i], f.devices[i+1:]...)
			return nil
		}
	}
	return &regclient.APIError{StatusCode: http.StatusNotFound}
}

func testDevices() []model.Device {
	return []model.Device{
		{ID: "A1", Model: "X1", Description: "desc1"},
		{ID: "A2", Model: "X1", Description: "desc2"},
		{ID: "B1", Model: "Y2", Description: "other"},
	}
}

func TestDeviceListModelFilter(t *testing.T) {
	registry := &fakeRegistry{devices: testDevices()}
	svc := NewDeviceService(registry, nil, testLogger())

	devices, err := svc.List(context.Background(), "X1")
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}

	// Фильтрация локальная, порядок реестра сохраняется
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, ожидается 2", len(devices))
	}
	if devices[0].ID != "A1" || devices[1].ID != "A2" {
		t.Errorf("порядок нарушен: %v", devices)
	}
}

func TestDeviceListAll(t *testing.T) {
	registry := &fakeRegistry{devices: testDevices()}
	svc := NewDeviceService(registry, nil, testLogger())

	devices, err := svc.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(devices) != 3 {
		t.Errorf("len(devices) = %d, ожидается 3", len(devices))
	}
}

func TestDeviceListCached(t *testing.T) {
	registry := &fakeRegistry{devices: testDevices()}
	cache := NewCacheService(8, time.Minute)
	svc := NewDeviceService(registry, cache, testLogger())

	if _, err := svc.List(context.Background(), "X1"); err != nil {
		t.Fatalf("первый List() ошибка: %v", err)
	}
	if _, err := svc.List(context.Background(), "X1"); err != nil {
		t.Fatalf("второй List() ошибка: %v", err)
	}

	// Второй запрос обслуживается из кэша
	if registry.listCalls != 1 {
		t.Errorf("вызовов ListDevices = %d, ожидается 1", registry.listCalls)
	}
}

func TestDeviceMutationInvalidatesCache(t *testing.T) {
	registry := &fakeRegistry{devices: testDevices()}
	cache := NewCacheService(8, time.Minute)
	svc := NewDeviceService(registry, cache, testLogger())

	if _, err := svc.List(context.Background(), ""); err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}

	if err := svc.Create(context.Background(), model.Device{ID: "C1", Model: "Z3"}); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	devices, err := svc.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() после Create() ошибка: %v", err)
	}
	if registry.listCalls != 2 {
		t.Errorf("вызовов ListDevices = %d, ожидается 2 (кэш сброшен мутацией)", registry.listCalls)
	}
	if len(devices) != 4 {
		t.Errorf("len(devices) = %d, ожидается 4", len(devices))
	}
}

func TestDeviceGetNotFound(t *testing.T) {
	registry := &fakeRegistry{}
	svc := NewDeviceService(registry, nil, testLogger())

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидается ErrNotFound, получено: %v", err)
	}
}

func TestDeviceGetRegistryDown(t *testing.T) {
	registry := &fakeRegistry{getErr: &regclient.APIError{StatusCode: http.StatusBadGateway}}
	svc := NewDeviceService(registry, nil, testLogger())

	_, err := svc.Get(context.Background(), "A1")
	if !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("ожидается ErrRegistryUnavailable, получено: %v", err)
	}
}

func TestDeviceCreateInvalid(t *testing.T) {
	registry := &fakeRegistry{}
	svc := NewDeviceService(registry, nil, testLogger())

	err := svc.Create(context.Background(), model.Device{ID: "bad_id!", Model: "X1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидается ErrValidation, получено: %v", err)
	}
	// До реестра невалидное устройство не доходит
	if len(registry.devices) != 0 {
		t.Errorf("устройств в реестре = %d, ожидается 0", len(registry.devices))
	}
}

func TestDeviceUpdate(t *testing.T) {
	registry := &fakeRegistry{devices: testDevices()}
	svc := NewDeviceService(registry, nil, testLogger())

	updated, err := svc.Update(context.Background(), "A1", model.Device{ID: "A1", Model: "X2", Description: "new"})
	if err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	if updated.Model != "X2" {
		t.Errorf("Model = %q, ожидается X2", updated.Model)
	}
}

func TestDeviceDeleteNotFound(t *testing.T) {
	registry := &fakeRegistry{}
	svc := NewDeviceService(registry, nil, testLogger())

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидается ErrNotFound, получено: %v", err)
	}
}

func TestDeviceExportCSVRoundTrip(t *testing.T) {
	registry := &fakeRegistry{devices: testDevices()}
	svc := NewDeviceService(registry, nil, testLogger())

	var buf bytes.Buffer
	if err := svc.ExportCSV(context.Background(), "X1", &buf); err != nil {
		t.Fatalf("ExportCSV() ошибка: %v", err)
	}

	// Экспорт и повторный разбор дают идентичную последовательность записей
	parsed, err := csvfile.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse() экспортированного CSV ошибка: %v", err)
	}
	want := []model.Device{
		{ID: "A1", Model: "X1", Description: "desc1"},
		{ID: "A2", Model: "X1", Description: "desc2"},
	}
	if !reflect.DeepEqual(parsed, want) {
		t.Errorf("round-trip: получено %v, ожидается %v", parsed, want)
	}
}
