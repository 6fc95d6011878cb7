// Пакет notify — отправка уведомлений о завершении обработки CSV-файла.
// Два канала: публикация JSON-сообщения в NATS и письмо по SMTP.
// Оба канала опциональны и работают по принципу fire-and-forget:
// ошибка уведомления логируется на уровне WARN и никогда не влияет
// на результат загрузки.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/bigkaa/godevedge/edge-module/internal/config"
)

// Summary — итог обработки одного CSV-файла.
// Сериализуется в JSON для NATS и в текст для email.
type Summary struct {
	// EventID — уникальный идентификатор события
	EventID string `json:"event_id"`
	// FileName — имя обработанного файла
	FileName string `json:"file_name"`
	// Parsed — количество разобранных записей
	Parsed int `json:"parsed"`
	// Accepted — количество записей, принятых реестром
	Accepted int `json:"accepted"`
	// Rejected — количество записей, отклонённых или не доставленных
	Rejected int `json:"rejected"`
	// SubmittedBy — идентификатор отправителя (может быть пустым)
	SubmittedBy string `json:"submitted_by,omitempty"`
	// UploadedAt — время завершения обработки
	UploadedAt time.Time `json:"uploaded_at"`
}

// publisher — канал публикации сообщений. Его реализует *nats.Conn;
// в тестах подставляется запоминающая заглушка.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier рассылает уведомления о завершении загрузки.
type Notifier struct {
	pub     publisher
	subject string

	smtpAddr string
	smtpFrom string
	smtpTo   string

	logger *slog.Logger
}

// New создаёт Notifier. nc может быть nil — тогда канал NATS отключён.
// SMTP отключён, если cfg.SMTPAddr пуст.
func New(nc *nats.Conn, cfg *config.Config, logger *slog.Logger) *Notifier {
	n := &Notifier{
		subject:  cfg.NATSSubject,
		smtpAddr: cfg.SMTPAddr,
		smtpFrom: cfg.SMTPFrom,
		smtpTo:   cfg.SMTPTo,
		logger:   logger.With(slog.String("component", "notifier")),
	}
	if nc != nil {
		n.pub = nc
	}
	return n
}

// Notify отправляет уведомление по всем включённым каналам.
// Метод никогда не возвращает ошибку: сбой уведомления — не сбой загрузки.
func (n *Notifier) Notify(ctx context.Context, summary Summary) {
	if summary.EventID == "" {
		summary.EventID = uuid.New().String()
	}

	n.publishNATS(ctx, summary)
	n.sendEmail(summary)
}

// publishNATS публикует JSON-сообщение в subject.
func (n *Notifier) publishNATS(ctx context.Context, summary Summary) {
	if n.pub == nil {
		return
	}
	if err := ctx.Err(); err != nil {
		n.logger.Warn("Публикация в NATS пропущена: контекст завершён",
			slog.String("error", err.Error()))
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		n.logger.Warn("Ошибка сериализации уведомления", slog.String("error", err.Error()))
		return
	}

	if err := n.pub.Publish(n.subject, data); err != nil {
		n.logger.Warn("Ошибка публикации уведомления в NATS",
			slog.String("subject", n.subject),
			slog.String("error", err.Error()),
		)
		return
	}

	n.logger.Debug("Уведомление опубликовано в NATS",
		slog.String("subject", n.subject),
		slog.String("file", summary.FileName),
	)
}

// sendEmail отправляет письмо с итогом обработки.
func (n *Notifier) sendEmail(summary Summary) {
	if n.smtpAddr == "" {
		return
	}

	msg := buildEmail(n.smtpFrom, n.smtpTo, summary)
	if err := smtp.SendMail(n.smtpAddr, nil, n.smtpFrom, []string{n.smtpTo}, msg); err != nil {
		n.logger.Warn("Ошибка отправки email-уведомления",
			slog.String("addr", n.smtpAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	n.logger.Debug("Email-уведомление отправлено",
		slog.String("to", n.smtpTo),
		slog.String("file", summary.FileName),
	)
}

// buildEmail формирует RFC 5322 сообщение с итогом обработки файла.
func buildEmail(from, to string, summary Summary) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Загрузка файла %s завершена\r\n", summary.FileName)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Файл: %s\r\n", summary.FileName)
	fmt.Fprintf(&b, "Разобрано записей: %d\r\n", summary.Parsed)
	fmt.Fprintf(&b, "Принято реестром: %d\r\n", summary.Accepted)
	fmt.Fprintf(&b, "Отклонено: %d\r\n", summary.Rejected)
	if summary.SubmittedBy != "" {
		fmt.Fprintf(&b, "Отправитель: %s\r\n", summary.SubmittedBy)
	}
	fmt.Fprintf(&b, "Время: %s\r\n", summary.UploadedAt.Format(time.RFC3339))
	return []byte(b.String())
}
