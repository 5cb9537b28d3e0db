package smtp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
)

// ErrInvalidHeader адрес получателя содержит перевод строки. Повтор не поможет.
var ErrInvalidHeader = errors.New("invalid mail header value")

// Message письмо в виде простого текста.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer отправляет письма через транспорт, по одному соединению на письмо.
type Mailer struct {
	transport TransportInterface
	timeout   time.Duration
	log       *slog.Logger
}

// NewMailer создает Mailer. timeout ограничивает отправку одного письма.
func NewMailer(transport TransportInterface, timeout time.Duration, log *slog.Logger) *Mailer {
	return &Mailer{
		transport: transport,
		timeout:   timeout,
		log:       log,
	}
}

// Send отправляет письмо. Тема кодируется по RFC 2047, поэтому переводы строк
// и не-ASCII символы в ней не попадают в заголовки как есть.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	const op = "smtp.Send"
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	for _, addr := range msg.To {
		if strings.ContainsAny(addr, "\r\n") {
			return fmt.Errorf("%s: %w: recipient %q", op, ErrInvalidHeader, addr)
		}
	}

	from := m.transport.GetSMTPUser()
	raw := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		msg.Body,
	}, "\r\n")

	client, err := m.transport.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		m.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, addr := range msg.To {
		if err := client.Rcpt(addr); err != nil {
			m.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		m.log.Error("failed to get data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = wc.Write([]byte(raw)); err != nil {
		m.log.Error("failed to write email body", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = wc.Close(); err != nil {
		m.log.Error("failed to close data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = client.Quit(); err != nil {
		m.log.Warn("failed to quit SMTP client", sl.Err(err))
	}

	m.log.Debug("email sent", slog.Any("to", msg.To))
	return nil
}
