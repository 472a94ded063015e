// mail — доставка писем сброса пароля.
//
// Со стороны сервисного слоя отправка — fire-and-forget: ретраи и
// обработка отказов SMTP-сервера не входят в контракт Sender.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"credential-service/internal/config"
	logctx "credential-service/internal/pkg/log"
	"credential-service/internal/pkg/redact"

	gomail "github.com/wneessen/go-mail"
)

// Sender — контракт исходящей почты credential-слоя.
type Sender interface {
	// SendPasswordReset отправляет письмо со ссылкой сброса пароля.
	SendPasswordReset(ctx context.Context, to, rawResetToken string) error
}

// SMTPSender — реализация Sender поверх go-mail.
// Если SMTP-хост не сконфигурирован, отправка переходит в режим заглушки:
// факт «отправки» логируется (без токена), письмо не уходит.
type SMTPSender struct {
	cfg    config.SMTPConfig
	client *gomail.Client
}

// NewSMTPSender создаёт отправителя. Пустой cfg.Host — валидная
// конфигурация (режим заглушки для local/dev).
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	const op = "mail.NewSMTPSender"

	if cfg.Host == "" {
		return &SMTPSender{cfg: cfg}, nil
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SMTPSender{cfg: cfg, client: client}, nil
}

// SendPasswordReset отправляет письмо со ссылкой сброса пароля.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, rawResetToken string) error {
	const op = "mail.SMTPSender.SendPasswordReset"

	lg := logctx.From(ctx)

	if s.client == nil {
		lg.Warn("password_reset_email_skipped",
			slog.String("op", op),
			slog.String("to", redact.Email(to)),
			slog.String("reason", "smtp is not configured"),
		)
		return nil
	}

	link := s.resetLink(rawResetToken)

	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg.Subject("Password Reset Request")
	msg.SetBodyString(gomail.TypeTextPlain,
		"You requested a password reset.\n\n"+
			"Follow the link to set a new password (valid for 1 hour):\n"+
			link+"\n\n"+
			"If you did not request a reset, ignore this email.\n")

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("password_reset_email_sent",
		slog.String("op", op),
		slog.String("to", redact.Email(to)),
	)

	return nil
}

// resetLink собирает ссылку вида <reset_url>?token=<raw>.
func (s *SMTPSender) resetLink(rawResetToken string) string {
	return s.cfg.ResetURL + "?token=" + url.QueryEscape(rawResetToken)
}

// Проверка на соответствие интерфейсу Sender.
var _ Sender = (*SMTPSender)(nil)
