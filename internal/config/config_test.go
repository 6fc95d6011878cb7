package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения для теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"EM_DB_HOST":      "localhost",
		"EM_DB_NAME":      "devedge",
		"EM_DB_USER":      "devedge",
		"EM_DB_PASSWORD":  "secret",
		"EM_REGISTRY_URL": "http://registry:8080",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DBMaxConns != 4 {
		t.Errorf("DBMaxConns = %d, ожидается 4", cfg.DBMaxConns)
	}
	if cfg.RegistryTimeout != 30*time.Second {
		t.Errorf("RegistryTimeout = %v, ожидается 30s", cfg.RegistryTimeout)
	}
	if cfg.DispatchWorkers != 1 {
		t.Errorf("DispatchWorkers = %d, ожидается 1", cfg.DispatchWorkers)
	}
	if cfg.DispatchMaxRetries != 0 {
		t.Errorf("DispatchMaxRetries = %d, ожидается 0", cfg.DispatchMaxRetries)
	}
	if cfg.DispatchRetryBackoff != 500*time.Millisecond {
		t.Errorf("DispatchRetryBackoff = %v, ожидается 500ms", cfg.DispatchRetryBackoff)
	}
	if cfg.NATSSubject != "devices.csv.uploaded" {
		t.Errorf("NATSSubject = %q, ожидается devices.csv.uploaded", cfg.NATSSubject)
	}
	if cfg.CacheSize != 128 {
		t.Errorf("CacheSize = %d, ожидается 128", cfg.CacheSize)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{"EM_DB_HOST", "EM_DB_NAME", "EM_DB_USER", "EM_DB_PASSWORD", "EM_REGISTRY_URL"}

	for _, missing := range required {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			envs[missing] = ""
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() без %s должен вернуть ошибку", missing)
			}
		})
	}
}

func TestLoad_RegistryURLTrailingSlash(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_REGISTRY_URL"] = "http://registry:8080/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.RegistryURL != "http://registry:8080" {
		t.Errorf("RegistryURL = %q, trailing slash должен быть убран", cfg.RegistryURL)
	}
}

func TestLoad_PortOutOfRange(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_PORT"] = "9000"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() с EM_PORT=9000 должен вернуть ошибку")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_LOG_LEVEL"] = "verbose"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() с недопустимым EM_LOG_LEVEL должен вернуть ошибку")
	}
}

func TestLoad_DispatchWorkersOutOfRange(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_DISPATCH_WORKERS"] = "100"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() с EM_DISPATCH_WORKERS=100 должен вернуть ошибку")
	}
}

func TestLoad_DBMaxConnsOutOfRange(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_DB_MAX_CONNS"] = "64"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() не вернул ошибку при EM_DB_MAX_CONNS=64")
	}
}

func TestLoad_SMTPWithoutRecipients(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_SMTP_ADDR"] = "smtp.example.com:25"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() с EM_SMTP_ADDR без EM_SMTP_FROM/EM_SMTP_TO должен вернуть ошибку")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_PORT"] = "8003"
	envs["EM_LOG_LEVEL"] = "debug"
	envs["EM_LOG_FORMAT"] = "text"
	envs["EM_REGISTRY_TIMEOUT"] = "5s"
	envs["EM_DISPATCH_WORKERS"] = "8"
	envs["EM_DISPATCH_MAX_RETRIES"] = "3"
	envs["EM_DISPATCH_RETRY_BACKOFF"] = "100ms"
	envs["EM_NATS_URL"] = "nats://nats:4222"
	envs["EM_SMTP_ADDR"] = "smtp.example.com:25"
	envs["EM_SMTP_FROM"] = "edge@example.com"
	envs["EM_SMTP_TO"] = "ops@example.com"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8003 {
		t.Errorf("Port = %d, ожидается 8003", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.RegistryTimeout != 5*time.Second {
		t.Errorf("RegistryTimeout = %v, ожидается 5s", cfg.RegistryTimeout)
	}
	if cfg.DispatchWorkers != 8 {
		t.Errorf("DispatchWorkers = %d, ожидается 8", cfg.DispatchWorkers)
	}
	if cfg.DispatchMaxRetries != 3 {
		t.Errorf("DispatchMaxRetries = %d, ожидается 3", cfg.DispatchMaxRetries)
	}
	if cfg.DispatchRetryBackoff != 100*time.Millisecond {
		t.Errorf("DispatchRetryBackoff = %v, ожидается 100ms", cfg.DispatchRetryBackoff)
	}
	if cfg.NATSURL != "nats://nats:4222" {
		t.Errorf("NATSURL = %q, ожидается nats://nats:4222", cfg.NATSURL)
	}
	if cfg.SMTPFrom != "edge@example.com" {
		t.Errorf("SMTPFrom = %q, ожидается edge@example.com", cfg.SMTPFrom)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5432, DBName: "devedge",
		DBUser: "user", DBPassword: "pass", DBSSLMode: "disable",
	}

	expected := "host=db port=5432 dbname=devedge user=user password=pass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, expected)
	}
}
