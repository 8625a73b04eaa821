package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
)

// Notifier renders and delivers account emails.
type Notifier struct {
	composer port.EmailComposer
	mailer   port.Mailer
	codeTTL  time.Duration
}

// NewNotifier wires a composer to a mailer. codeTTL is quoted in code emails.
func NewNotifier(composer port.EmailComposer, mailer port.Mailer, codeTTL time.Duration) (*Notifier, error) {
	if composer == nil || mailer == nil {
		return nil, errors.New("notifier requires a composer and a mailer")
	}
	return &Notifier{composer: composer, mailer: mailer, codeTTL: codeTTL}, nil
}

func (n *Notifier) deliver(ctx context.Context, kind string, msg domain.EmailMessage, err error) error {
	if err != nil {
		return fmt.Errorf("render %s email: %w", kind, err)
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	return nil
}

func (n *Notifier) Verification(ctx context.Context, user *domain.User, code string) error {
	msg, err := n.composer.Verification(user.Email, user.Name.FirstName, code, n.codeTTL)
	return n.deliver(ctx, "verification", msg, err)
}

func (n *Notifier) PasswordReset(ctx context.Context, user *domain.User, token, code string) error {
	msg, err := n.composer.PasswordReset(user.Email, user.Name.FirstName, token, code, n.codeTTL)
	return n.deliver(ctx, "password reset", msg, err)
}

func (n *Notifier) PasswordChanged(ctx context.Context, user *domain.User) error {
	msg, err := n.composer.PasswordChanged(user.Email, user.Name.FirstName)
	return n.deliver(ctx, "password changed", msg, err)
}

func (n *Notifier) Welcome(ctx context.Context, user *domain.User) error {
	msg, err := n.composer.Welcome(user.Email, user.Name.FirstName)
	return n.deliver(ctx, "welcome", msg, err)
}

// AdminRegistration tells the administrator about a new account. It is a no-op
// when no administrator address is configured.
func (n *Notifier) AdminRegistration(ctx context.Context, user *domain.User) error {
	if n.composer.AdminEmail() == "" {
		return nil
	}
	msg, err := n.composer.AdminRegistration(user.Email, user.Name.String(), user.CreatedAt)
	return n.deliver(ctx, "admin registration", msg, err)
}
