// ingest.go — оркестратор конвейера загрузки CSV.
//
// Последовательность стадий одной загрузки:
//
//	Разбор → Отправка → Квитанция → Уведомление
//
// Разбор работает по принципу «всё или ничего»: структурно некорректный
// файл не порождает ни одной отправки и ни одной квитанции. Отправка,
// напротив, переживает отказ отдельных записей — плохая запись не
// блокирует остальные. Квитанция создаётся после отправки независимо от
// её исходов; конфликт имени файла не откатывает уже принятые реестром
// записи (распределённой транзакции нет, это осознанное упрощение).
// Уведомление — fire-and-forget, его сбой не меняет результат загрузки.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godevedge/edge-module/internal/csvfile"
	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
	"github.com/bigkaa/godevedge/edge-module/internal/notify"
	"github.com/bigkaa/godevedge/edge-module/internal/regclient"
	"github.com/bigkaa/godevedge/edge-module/internal/repository"
)

// OutcomeSkipped — запись не отправлялась: загрузка была отменена до того,
// как до записи дошла очередь. Дополняет классификацию исходов regclient.
const OutcomeSkipped regclient.Outcome = "skipped"

// Prometheus-метрики конвейера загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "em_csv_uploads_total",
			Help: "Общее количество загрузок CSV по результату (success, malformed, conflict, error).",
		},
		[]string{"result"},
	)
	dispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "em_devices_dispatched_total",
			Help: "Общее количество отправленных в реестр записей по исходу.",
		},
		[]string{"outcome"},
	)
)

// RegistryDispatcher — отправка одной записи в реестр устройств.
// Реализуется regclient.Client.
type RegistryDispatcher interface {
	CreateDevice(ctx context.Context, device model.Device) regclient.Outcome
}

// CompletionNotifier — уведомление о завершении загрузки.
// Реализуется notify.Notifier.
type CompletionNotifier interface {
	Notify(ctx context.Context, summary notify.Summary)
}

// IngestResult — итог одной загрузки CSV.
// Outcomes выровнен с Devices по индексу исходной строки файла.
type IngestResult struct {
	FileName string              `json:"file_name"`
	Devices  []model.Device      `json:"devices"`
	Outcomes []regclient.Outcome `json:"outcomes"`
	Accepted int                 `json:"accepted"`
	Rejected int                 `json:"rejected"`
}

// IngestService — оркестратор конвейера загрузки CSV.
type IngestService struct {
	registry RegistryDispatcher
	repo     repository.FileUploadRepository
	notifier CompletionNotifier
	cache    *CacheService

	workers    int
	maxRetries int
	backoff    time.Duration

	logger *slog.Logger
}

// NewIngestService создаёт оркестратор загрузки.
// workers — размер пула отправки (1 — последовательная отправка),
// maxRetries и backoff — политика повторов для ServerError/Timeout.
// notifier и cache могут быть nil.
func NewIngestService(
	registry RegistryDispatcher,
	repo repository.FileUploadRepository,
	notifier CompletionNotifier,
	cache *CacheService,
	workers int,
	maxRetries int,
	backoff time.Duration,
	logger *slog.Logger,
) *IngestService {
	if workers < 1 {
		workers = 1
	}
	return &IngestService{
		registry:   registry,
		repo:       repo,
		notifier:   notifier,
		cache:      cache,
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger.With(slog.String("component", "ingest_service")),
	}
}

// Ingest выполняет полный конвейер загрузки одного CSV-файла.
//
// Ошибки разбора возвращаются как *csvfile.MalformedError (через errors.As),
// конфликт имени файла — как ErrConflict. Отказ отдельных записей при
// отправке ошибкой не является: он отражается в Outcomes и счётчиках
// результата.
func (s *IngestService) Ingest(ctx context.Context, fileName string, data []byte, submittedBy string) (*IngestResult, error) {
	// Стадия 1: разбор. Fail-fast — некорректный файл не порождает
	// ни отправок, ни квитанции.
	devices, err := csvfile.Parse(data)
	if err != nil {
		uploadsTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("разбор файла %q: %w", fileName, err)
	}

	// Стадия 2: отправка каждой записи в реестр.
	outcomes := s.dispatch(ctx, devices)

	result := &IngestResult{
		FileName: fileName,
		Devices:  devices,
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		dispatchedTotal.WithLabelValues(string(o)).Inc()
		if o == regclient.OutcomeAccepted {
			result.Accepted++
		} else {
			result.Rejected++
		}
	}

	// Реестр мог измениться — кэшированные списки устарели
	if s.cache != nil && len(devices) > 0 {
		s.cache.Purge()
	}

	// Стадия 3: квитанция. Количество — разобранные строки, не принятые
	// реестром. Отправленные записи при конфликте не откатываются.
	uploadedAt := time.Now().UTC()
	receipt := &model.FileUpload{
		FileName:    fileName,
		DeviceCount: len(devices),
		UploadedAt:  uploadedAt,
		UploadedBy:  submittedBy,
	}
	if err := s.repo.Create(ctx, receipt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			uploadsTotal.WithLabelValues("conflict").Inc()
			return nil, fmt.Errorf("%w: файл %q уже загружался", ErrConflict, fileName)
		}
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("запись квитанции для %q: %w", fileName, err)
	}

	uploadsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Загрузка CSV завершена",
		slog.String("file", fileName),
		slog.Int("parsed", len(devices)),
		slog.Int("accepted", result.Accepted),
		slog.Int("rejected", result.Rejected),
	)

	// Стадия 4: уведомление. Отдельная горутина с контекстом, не
	// привязанным к запросу: отмена запроса не обрывает уведомление,
	// а его сбой виден только в логах.
	if s.notifier != nil {
		summary := notify.Summary{
			FileName:    fileName,
			Parsed:      len(devices),
			Accepted:    result.Accepted,
			Rejected:    result.Rejected,
			SubmittedBy: submittedBy,
			UploadedAt:  uploadedAt,
		}
		go s.notifier.Notify(context.WithoutCancel(ctx), summary)
	}

	return result, nil
}

// dispatch отправляет записи в реестр через ограниченный пул воркеров.
// Исходы собираются по индексу исходной строки, а не по порядку
// завершения. Отмена контекста прекращает выдачу новых записей
// (оставшиеся помечаются OutcomeSkipped), начатые запросы завершаются
// или отваливаются по таймауту сами.
func (s *IngestService) dispatch(ctx context.Context, devices []model.Device) []regclient.Outcome {
	outcomes := make([]regclient.Outcome, len(devices))
	if len(devices) == 0 {
		return outcomes
	}

	workers := s.workers
	if workers > len(devices) {
		workers = len(devices)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = s.dispatchOne(ctx, devices[i])
			}
		}()
	}

feed:
	for i := range devices {
		// Проверка до select: при уже отменённом контексте select
		// выбирает готовый case случайно
		if ctx.Err() != nil {
			s.markSkipped(outcomes, i)
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			s.markSkipped(outcomes, i)
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// markSkipped помечает записи начиная с from как невыданные.
func (s *IngestService) markSkipped(outcomes []regclient.Outcome, from int) {
	for j := from; j < len(outcomes); j++ {
		outcomes[j] = OutcomeSkipped
	}
	s.logger.Warn("Отправка прервана отменой контекста",
		slog.Int("skipped", len(outcomes)-from))
}

// dispatchOne отправляет одну запись с повторами по политике сервиса.
// Повторяются только исходы ServerError/Timeout; задержка между
// попытками растёт экспоненциально от backoff.
func (s *IngestService) dispatchOne(ctx context.Context, device model.Device) regclient.Outcome {
	outcome := s.registry.CreateDevice(ctx, device)

	for attempt := 1; attempt <= s.maxRetries && outcome.Retryable(); attempt++ {
		delay := s.backoff << (attempt - 1)
		s.logger.Debug("Повтор отправки записи",
			slog.String("device", device.ID),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return outcome
		}
		outcome = s.registry.CreateDevice(ctx, device)
	}

	return outcome
}
