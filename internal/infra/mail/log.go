package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/infra/logger"
)

// LogMailer writes emails to the log instead of sending them. It is used when
// no SMTP relay is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{logger: log}
}

// Send logs the recipient and subject. The body is only logged at debug level.
func (m *LogMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	log := logger.WithContext(ctx, m.logger)
	log.Info("email delivery disabled, message logged",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	log.Debug("email body", zap.String("html", msg.HTMLBody))
	return nil
}
