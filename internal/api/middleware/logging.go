// logging.go — middleware логирования HTTP-запросов конвейера загрузки.
// Запросы liveness/readiness-проб и скрейпы /metrics не логируются:
// они приходят каждые несколько секунд и забивают журнал.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// quietPaths — пути, запросы к которым не попадают в журнал.
var quietPaths = map[string]bool{
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// loggingResponseWriter перехватывает статус-код и объём отданного тела.
// Объём важен для CSV-экспорта: по нему видно, сколько байт ушло клиенту.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lw.ResponseWriter.Write(b)
	lw.bytes += int64(n)
	return n, err
}

// Unwrap открывает оригинальный ResponseWriter для http.ResponseController.
func (lw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

// levelForStatus выбирает уровень записи по статус-коду ответа:
// INFO до 399, WARN для клиентских ошибок, ERROR для серверных.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger возвращает middleware, пишущий одну запись на запрос:
// метод, путь, статус, длительность, объём ответа и адрес клиента.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	httpLogger := logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			lw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(lw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", lw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", lw.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if q := r.URL.RawQuery; q != "" {
				attrs = append(attrs, slog.String("query", q))
			}

			httpLogger.LogAttrs(r.Context(), levelForStatus(lw.status), "Запрос обработан", attrs...)
		})
	}
}
