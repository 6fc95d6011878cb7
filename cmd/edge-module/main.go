// Точка входа Edge Module — пограничный модуль приёма CSV-файлов с устройствами.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт клиент реестра устройств, NATS-уведомитель, сервисный слой и
// API handlers, запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"

	"github.com/bigkaa/godevedge/edge-module/internal/api/handlers"
	"github.com/bigkaa/godevedge/edge-module/internal/config"
	"github.com/bigkaa/godevedge/edge-module/internal/database"
	"github.com/bigkaa/godevedge/edge-module/internal/notify"
	"github.com/bigkaa/godevedge/edge-module/internal/regclient"
	"github.com/bigkaa/godevedge/edge-module/internal/repository"
	"github.com/bigkaa/godevedge/edge-module/internal/server"
	"github.com/bigkaa/godevedge/edge-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Edge Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("EM_DEPHEALTH_GROUP") == "" {
		logger.Warn("EM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиент реестра устройств
	registryClient := regclient.New(cfg.RegistryURL, cfg.RegistryTimeout, logger)
	logger.Info("Клиент реестра устройств создан",
		slog.String("url", cfg.RegistryURL),
		slog.Duration("timeout", cfg.RegistryTimeout),
	)

	// 6. NATS для уведомлений (опционально)
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL,
			nats.Name("edge-module"),
			nats.RetryOnFailedConnect(true),
		)
		if err != nil {
			// Уведомления — fire-and-forget, их отсутствие не блокирует запуск
			logger.Warn("NATS недоступен, уведомления в topic отключены",
				slog.String("url", cfg.NATSURL),
				slog.String("error", err.Error()),
			)
			natsConn = nil
		} else {
			defer natsConn.Close()
			logger.Info("Подключение к NATS установлено",
				slog.String("url", cfg.NATSURL),
				slog.String("subject", cfg.NATSSubject),
			)
		}
	} else {
		logger.Info("EM_NATS_URL не задан, уведомления в topic отключены")
	}

	notifier := notify.New(natsConn, cfg, logger)

	// 7. Repositories
	uploadRepo := repository.NewFileUploadRepository(pool)

	// 8. Кэш списков устройств
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)

	// 9. Services
	ingestSvc := service.NewIngestService(
		registryClient, uploadRepo, notifier, cache,
		cfg.DispatchWorkers, cfg.DispatchMaxRetries, cfg.DispatchRetryBackoff,
		logger,
	)
	devicesSvc := service.NewDeviceService(registryClient, cache, logger)
	uploadsSvc := service.NewUploadService(uploadRepo, logger)

	// 10. Readiness checkers (PostgreSQL + реестр устройств)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker, registryClient)

	// 11. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		ingestSvc,
		devicesSvc,
		uploadsSvc,
		logger,
	)

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL + реестр)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"edge-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.RegistryURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Edge Module остановлен")
}
