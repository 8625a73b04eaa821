package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/infra/config"
	"github.com/arklim/account-auth-service/internal/infra/logger"
)

const defaultSendTimeout = 15 * time.Second

// SMTPMailer delivers emails through an SMTP relay.
type SMTPMailer struct {
	client  *gomail.Client
	from    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewSMTPMailer builds a mailer from cfg. The sender defaults to the SMTP username.
func NewSMTPMailer(cfg config.MailSettings, log *zap.Logger) (*SMTPMailer, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("mail host is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = strings.TrimSpace(cfg.Username)
	}
	if from == "" {
		return nil, fmt.Errorf("mail sender is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(timeout),
	}
	if cfg.SSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &SMTPMailer{client: client, from: from, timeout: timeout, logger: log}, nil
}

// Send delivers msg, bounded by the configured timeout.
func (m *SMTPMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	out, err := buildMessage(m.from, msg)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.client.DialAndSendWithContext(sendCtx, out); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	logger.WithContext(ctx, m.logger).Info("email sent",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func buildMessage(from string, msg domain.EmailMessage) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	return out, nil
}
