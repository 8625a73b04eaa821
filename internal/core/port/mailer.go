package port

import (
	"context"
	"time"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

// Mailer delivers rendered emails.
type Mailer interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// EmailComposer renders the account emails.
type EmailComposer interface {
	Verification(to, name, code string, ttl time.Duration) (domain.EmailMessage, error)
	PasswordReset(to, name, token, code string, ttl time.Duration) (domain.EmailMessage, error)
	PasswordChanged(to, name string) (domain.EmailMessage, error)
	Welcome(to, name string) (domain.EmailMessage, error)
	AdminRegistration(email, name string, at time.Time) (domain.EmailMessage, error)
	AdminEmail() string
}
