package regclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockRegistry создаёт mock HTTP-сервер реестра устройств.
func setupMockRegistry(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestCreateDevice_Accepted(t *testing.T) {
	var received model.Device
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, ожидается application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("декодирование тела: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	client := New(server.URL, 5*time.Second, testLogger())
	device := model.Device{ID: "A1", Model: "X1", Description: "desc"}

	outcome := client.CreateDevice(context.Background(), device)
	if outcome != OutcomeAccepted {
		t.Errorf("outcome = %q, ожидается accepted", outcome)
	}
	if received != device {
		t.Errorf("реестр получил %+v, ожидается %+v", received, device)
	}
}

func TestCreateDevice_RejectedClient(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	client := New(server.URL, 5*time.Second, testLogger())
	outcome := client.CreateDevice(context.Background(), model.Device{ID: "A1", Model: "X1"})
	if outcome != OutcomeRejectedClient {
		t.Errorf("outcome = %q, ожидается rejected_client", outcome)
	}
	if outcome.Retryable() {
		t.Error("rejected_client не должен быть retryable")
	}
}

func TestCreateDevice_RejectedServer(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := New(server.URL, 5*time.Second, testLogger())
	outcome := client.CreateDevice(context.Background(), model.Device{ID: "A1", Model: "X1"})
	if outcome != OutcomeRejectedServer {
		t.Errorf("outcome = %q, ожидается rejected_server", outcome)
	}
	if !outcome.Retryable() {
		t.Error("rejected_server должен быть retryable")
	}
}

func TestCreateDevice_TransportError(t *testing.T) {
	// Закрытый сервер — транспортный сбой, классифицируется как rejected_server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(server.URL, time.Second, testLogger())
	outcome := client.CreateDevice(context.Background(), model.Device{ID: "A1", Model: "X1"})
	if outcome != OutcomeRejectedServer {
		t.Errorf("outcome = %q, ожидается rejected_server", outcome)
	}
}

func TestCreateDevice_Timeout(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	client := New(server.URL, 20*time.Millisecond, testLogger())
	outcome := client.CreateDevice(context.Background(), model.Device{ID: "A1", Model: "X1"})
	if outcome != OutcomeTimeout {
		t.Errorf("outcome = %q, ожидается timeout", outcome)
	}
	if !outcome.Retryable() {
		t.Error("timeout должен быть retryable")
	}
}

func TestGetDevice(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices/SN-01" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.Device{ID: "SN-01", Model: "X1", Description: "desc"})
	})

	client := New(server.URL, 5*time.Second, testLogger())
	device, err := client.GetDevice(context.Background(), "SN-01")
	if err != nil {
		t.Fatalf("GetDevice() вернул ошибку: %v", err)
	}
	if device.ID != "SN-01" || device.Model != "X1" {
		t.Errorf("GetDevice() = %+v", device)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := New(server.URL, 5*time.Second, testLogger())
	_, err := client.GetDevice(context.Background(), "unknown")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидается *APIError, получено: %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, ожидается 404", apiErr.StatusCode)
	}
}

func TestListDevices(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]model.Device{
			{ID: "A1", Model: "X1"},
			{ID: "A2", Model: "Y2"},
		})
	})

	client := New(server.URL, 5*time.Second, testLogger())
	devices, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() вернул ошибку: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("len(devices) = %d, ожидается 2", len(devices))
	}
}

func TestUpdateDevice(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices/A1" || r.Method != http.MethodPut {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var device model.Device
		if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(device)
	})

	client := New(server.URL, 5*time.Second, testLogger())
	updated, err := client.UpdateDevice(context.Background(), "A1", model.Device{ID: "A1", Model: "X2"})
	if err != nil {
		t.Fatalf("UpdateDevice() вернул ошибку: %v", err)
	}
	if updated.Model != "X2" {
		t.Errorf("Model = %q, ожидается X2", updated.Model)
	}
}

func TestDeleteDevice(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices/A1" || r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	client := New(server.URL, 5*time.Second, testLogger())
	if err := client.DeleteDevice(context.Background(), "A1"); err != nil {
		t.Fatalf("DeleteDevice() вернул ошибку: %v", err)
	}
}

// Проба готовности не разбирает тело: огромный или даже битый
// список устройств не должен влиять на результат.
func TestCheckReady_DoesNotDecodeBody(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("это не JSON"))
	})

	client := New(server.URL, 5*time.Second, testLogger())
	status, message := client.CheckReady()
	if status != "ok" {
		t.Errorf("status = %q (%s), ожидается ok", status, message)
	}
}

func TestCheckReady_RegistryDown(t *testing.T) {
	server := setupMockRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := New(server.URL, 5*time.Second, testLogger())
	status, _ := client.CheckReady()
	if status != "fail" {
		t.Errorf("status = %q, ожидается fail", status)
	}
}
