package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/infra/logger"
	"github.com/arklim/account-auth-service/internal/infra/security"
	"github.com/arklim/account-auth-service/internal/repository"
)

// ResetPasswordInput carries the reset form.
type ResetPasswordInput struct {
	Email       string
	Token       string
	Code        string
	NewPassword string
}

// PasswordService coordinates password reset and change flows.
type PasswordService struct {
	users    port.UserRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicyValidator
	codes    port.CodeGenerator
	ledger   *RevocationLedger
	notifier *Notifier
	runtime
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(deps Dependencies, opts ...Option) (*PasswordService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &PasswordService{
		users:    deps.Users,
		hasher:   deps.Hasher,
		policy:   deps.Policy,
		codes:    deps.Codes,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		runtime:  newRuntime(opts),
	}, nil
}

// RequestPasswordReset emails a reset link and code when email belongs to an
// account. It reports nothing to the caller so registered and unknown emails
// are indistinguishable; failures are only logged.
func (s *PasswordService) RequestPasswordReset(ctx context.Context, email string) {
	var err error
	ctx, done := s.begin(ctx, "forgot_password")
	defer done(&err)

	log := s.log(ctx).With(zap.String("email", logger.MaskEmail(domain.NormalizeEmail(email))))

	user, err := s.users.FindByEmail(ctx, email, port.ProjectionProfile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("password reset requested for unknown email")
			err = nil
			return
		}
		log.Error("password reset lookup failed", zap.Error(err))
		return
	}

	plain, digest, tokenExpires, err := s.codes.ResetToken()
	if err != nil {
		log.Error("failed to generate reset token", zap.Error(err))
		return
	}
	code, codeExpires, err := s.codes.VerificationCode()
	if err != nil {
		log.Error("failed to generate reset code", zap.Error(err))
		return
	}

	user.SetResetToken(digest, tokenExpires)
	user.SetVerificationCode(code, codeExpires)
	if err = s.users.Save(ctx, user); err != nil {
		log.Error("failed to store reset token", zap.Error(err))
		return
	}

	if err = s.notifier.PasswordReset(ctx, user, plain, code); err != nil {
		log.Error("failed to send password reset email", zap.Error(err))
		return
	}

	s.publish(ctx, "user.password_reset_requested", func(ctx context.Context) error {
		return s.events.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
			UserID:            user.ID,
			RequestedAt:       s.clock(),
			MaskedDestination: logger.MaskEmail(user.Email),
			ExpiresAt:         tokenExpires,
		})
	})
}

// VerifyResetCredentials checks a reset token and code without consuming them.
func (s *PasswordService) VerifyResetCredentials(ctx context.Context, email, token, code string) (err error) {
	ctx, done := s.begin(ctx, "verify_reset_token")
	defer done(&err)

	_, err = s.loadResetUser(ctx, email, token, code, port.ProjectionProfile)
	return err
}

// ResetPassword replaces the password of the account proven by token and code,
// then revokes every session of that account.
func (s *PasswordService) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	ctx, done := s.begin(ctx, "reset_password")
	defer done(&err)

	if err := s.policy.Validate(in.NewPassword); err != nil {
		return validationError("newPassword", err.Error())
	}

	user, err := s.loadResetUser(ctx, in.Email, in.Token, in.Code, port.ProjectionCredentials)
	if err != nil {
		return err
	}
	if err := s.ensureFresh(user, in.NewPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return internalError("", err)
	}

	now := s.clock()
	user.ArchivePassword(hash, now)
	user.ClearResetToken()
	user.ClearVerificationCode()
	user.LastPasswordReset = &now
	if err := s.users.Save(ctx, user); err != nil {
		return internalError("", err)
	}

	return s.afterPasswordUpdate(ctx, user, "", domain.RevocationPasswordReset)
}

// ChangePassword replaces the session owner's password after checking the current
// one, revoking every other session of the account.
func (s *PasswordService) ChangePassword(ctx context.Context, session *Session, currentPassword, newPassword string) (err error) {
	ctx, done := s.begin(ctx, "change_password")
	defer done(&err)

	user, err := s.users.FindByID(ctx, session.Claims.UserID, port.ProjectionCredentials)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return internalError("Failed to change password.", err)
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return internalError("Failed to change password.", err)
	}
	if !ok {
		return wrongCurrentPassword()
	}

	if err := s.policy.Validate(newPassword); err != nil {
		return validationError("newPassword", err.Error())
	}
	if err := s.ensureFresh(user, newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError("Failed to change password.", err)
	}
	user.ArchivePassword(hash, s.clock())
	if err := s.users.Save(ctx, user); err != nil {
		return internalError("Failed to change password.", err)
	}

	return s.afterPasswordUpdate(ctx, user, session.Token, domain.RevocationPasswordChange)
}

func (s *PasswordService) loadResetUser(ctx context.Context, email, token, code string, projection port.UserProjection) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email, projection)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidResetCredentials()
		}
		return nil, internalError("", err)
	}

	now := s.clock()
	if !user.ResetTokenActive(now) || !user.VerificationCodeActive(now) {
		return nil, invalidResetCredentials()
	}
	tokenOK := security.EqualSecrets(*user.ResetTokenHash, security.HashToken(strings.TrimSpace(token)))
	codeOK := security.EqualSecrets(*user.VerificationCode, strings.TrimSpace(code))
	if !tokenOK || !codeOK {
		return nil, invalidResetCredentials()
	}
	return user, nil
}

// ensureFresh rejects the current password and any password in the history.
func (s *PasswordService) ensureFresh(user *domain.User, password string) error {
	same, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return internalError("", err)
	}
	if same {
		return ErrSamePassword
	}
	for _, entry := range user.PasswordHistory {
		reused, err := s.hasher.Verify(password, entry.Hash)
		if err != nil {
			return internalError("", err)
		}
		if reused {
			return ErrPasswordReused
		}
	}
	return nil
}

// afterPasswordUpdate runs once the new hash is persisted. Failures past this
// point are reported but the password change stands.
func (s *PasswordService) afterPasswordUpdate(ctx context.Context, user *domain.User, keepToken string, reason domain.RevocationReason) error {
	log := s.log(ctx).With(zap.String("user_id", user.ID), zap.String("reason", string(reason)))

	if err := s.ledger.RevokeUser(ctx, user.ID, keepToken, reason); err != nil {
		log.Error("failed to revoke sessions after password update", zap.Error(err))
		return internalError("", err)
	}
	publishSessionsRevoked(ctx, s.runtime, user.ID, reason, keepToken != "")

	notifyErr := s.notifier.PasswordChanged(ctx, user)
	if notifyErr != nil {
		log.Error("failed to send password changed email", zap.Error(notifyErr))
	}

	s.publish(ctx, "user.password_changed", func(ctx context.Context) error {
		return s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			UserID:           user.ID,
			ChangedAt:        s.clock(),
			ChangedBy:        string(reason),
			NotificationSent: notifyErr == nil,
		})
	})

	if notifyErr != nil {
		return internalError("", notifyErr)
	}
	log.Info("password updated")
	return nil
}
