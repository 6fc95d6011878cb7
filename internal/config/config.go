// Пакет config — загрузка и валидация конфигурации Edge Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Edge Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений
	DBMaxConns int

	// --- Реестр устройств ---

	// Базовый URL реестра устройств (например, http://registry:8080)
	RegistryURL string
	// Таймаут одного запроса к реестру
	RegistryTimeout time.Duration

	// --- Диспетчеризация записей ---

	// Количество воркеров отправки записей в реестр (1 — последовательно)
	DispatchWorkers int
	// Максимум повторов при ServerError/Timeout (0 — без повторов)
	DispatchMaxRetries int
	// Начальная задержка экспоненциального backoff между повторами
	DispatchRetryBackoff time.Duration

	// --- Уведомления ---

	// URL NATS (пустая строка — уведомления в topic отключены)
	NATSURL string
	// Subject для уведомлений о завершении загрузки
	NATSSubject string
	// Адрес SMTP-сервера host:port (пустая строка — email отключён)
	SMTPAddr string
	// Адрес отправителя email
	SMTPFrom string
	// Адрес получателя email
	SMTPTo string

	// --- Кэш списка устройств ---

	// Максимальное количество записей LRU-кэша
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Мониторинг зависимостей ---

	// Имя группы topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// EM_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("EM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("EM_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("EM_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// EM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("EM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("EM_LOG_LEVEL: %w", err)
	}

	// EM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("EM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("EM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// EM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("EM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// EM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("EM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("EM_DB_PORT: %w", err)
	}

	// EM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("EM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// EM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("EM_DB_USER")
	if err != nil {
		return nil, err
	}

	// EM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("EM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// EM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("EM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("EM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// EM_DB_MAX_CONNS — размер пула подключений (по умолчанию 4)
	cfg.DBMaxConns, err = getEnvInt("EM_DB_MAX_CONNS", 4)
	if err != nil {
		return nil, fmt.Errorf("EM_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 32 {
		return nil, fmt.Errorf("EM_DB_MAX_CONNS: значение %d вне допустимого диапазона 1-32", cfg.DBMaxConns)
	}

	// --- Реестр устройств ---

	// EM_REGISTRY_URL — обязательный
	cfg.RegistryURL, err = getEnvRequired("EM_REGISTRY_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.RegistryURL = strings.TrimRight(cfg.RegistryURL, "/")

	// EM_REGISTRY_TIMEOUT — таймаут запроса к реестру (по умолчанию 30s)
	cfg.RegistryTimeout, err = getEnvDuration("EM_REGISTRY_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_REGISTRY_TIMEOUT: %w", err)
	}

	// --- Диспетчеризация записей ---

	// EM_DISPATCH_WORKERS — количество воркеров отправки (по умолчанию 1)
	cfg.DispatchWorkers, err = getEnvInt("EM_DISPATCH_WORKERS", 1)
	if err != nil {
		return nil, fmt.Errorf("EM_DISPATCH_WORKERS: %w", err)
	}
	if cfg.DispatchWorkers < 1 || cfg.DispatchWorkers > 64 {
		return nil, fmt.Errorf("EM_DISPATCH_WORKERS: значение %d вне допустимого диапазона 1-64", cfg.DispatchWorkers)
	}

	// EM_DISPATCH_MAX_RETRIES — максимум повторов (по умолчанию 0)
	cfg.DispatchMaxRetries, err = getEnvInt("EM_DISPATCH_MAX_RETRIES", 0)
	if err != nil {
		return nil, fmt.Errorf("EM_DISPATCH_MAX_RETRIES: %w", err)
	}
	if cfg.DispatchMaxRetries < 0 || cfg.DispatchMaxRetries > 10 {
		return nil, fmt.Errorf("EM_DISPATCH_MAX_RETRIES: значение %d вне допустимого диапазона 0-10", cfg.DispatchMaxRetries)
	}

	// EM_DISPATCH_RETRY_BACKOFF — начальная задержка повтора (по умолчанию 500ms)
	cfg.DispatchRetryBackoff, err = getEnvDuration("EM_DISPATCH_RETRY_BACKOFF", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("EM_DISPATCH_RETRY_BACKOFF: %w", err)
	}

	// --- Уведомления ---

	// EM_NATS_URL — URL NATS (опционально, пустая строка отключает topic)
	cfg.NATSURL = getEnvDefault("EM_NATS_URL", "")

	// EM_NATS_SUBJECT — subject уведомлений (по умолчанию devices.csv.uploaded)
	cfg.NATSSubject = getEnvDefault("EM_NATS_SUBJECT", "devices.csv.uploaded")

	// EM_SMTP_ADDR — адрес SMTP-сервера (опционально)
	cfg.SMTPAddr = getEnvDefault("EM_SMTP_ADDR", "")

	// EM_SMTP_FROM / EM_SMTP_TO — обязательны, если SMTP включён
	cfg.SMTPFrom = getEnvDefault("EM_SMTP_FROM", "")
	cfg.SMTPTo = getEnvDefault("EM_SMTP_TO", "")
	if cfg.SMTPAddr != "" && (cfg.SMTPFrom == "" || cfg.SMTPTo == "") {
		return nil, fmt.Errorf("EM_SMTP_ADDR задан, но EM_SMTP_FROM или EM_SMTP_TO пусты")
	}

	// --- Кэш списка устройств ---

	// EM_CACHE_SIZE — размер LRU-кэша (по умолчанию 128)
	cfg.CacheSize, err = getEnvInt("EM_CACHE_SIZE", 128)
	if err != nil {
		return nil, fmt.Errorf("EM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("EM_CACHE_SIZE: значение %d должно быть положительным", cfg.CacheSize)
	}

	// EM_CACHE_TTL — TTL записи кэша (по умолчанию 30s)
	cfg.CacheTTL, err = getEnvDuration("EM_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// EM_DEPHEALTH_GROUP — имя группы (по умолчанию devedge)
	cfg.DephealthGroup = getEnvDefault("EM_DEPHEALTH_GROUP", "devedge")

	// EM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("EM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// EM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("EM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для метрик/лейблов).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
