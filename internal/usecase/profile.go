package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/repository"
)

// ProfileService exposes the signed-in user's own account.
type ProfileService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	ledger *RevocationLedger
	runtime
}

// NewProfileService constructs a ProfileService instance.
func NewProfileService(deps Dependencies, opts ...Option) (*ProfileService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &ProfileService{
		users:   deps.Users,
		hasher:  deps.Hasher,
		ledger:  deps.Ledger,
		runtime: newRuntime(opts),
	}, nil
}

// Profile returns the public view of the session owner.
func (s *ProfileService) Profile(ctx context.Context, session *Session) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, session.Claims.UserID, port.ProjectionProfile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("Failed to get user profile.", err)
	}
	return publicView(user), nil
}

// UpdateProfile replaces the session owner's name.
func (s *ProfileService) UpdateProfile(ctx context.Context, session *Session, firstName, lastName string) (_ *domain.User, err error) {
	ctx, done := s.begin(ctx, "update_profile")
	defer done(&err)

	name, verr := normalizeName(firstName, lastName)
	if verr != nil {
		return nil, verr
	}

	user, err := s.users.FindByID(ctx, session.Claims.UserID, port.ProjectionProfile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("Failed to update profile.", err)
	}

	user.Name = name
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("Failed to update profile.", err)
	}
	return publicView(user), nil
}

// DeleteAccount removes the session owner after checking password and revokes
// every token of the account.
func (s *ProfileService) DeleteAccount(ctx context.Context, session *Session, password string) (err error) {
	ctx, done := s.begin(ctx, "delete_account")
	defer done(&err)

	user, err := s.users.FindByID(ctx, session.Claims.UserID, port.ProjectionCredentials)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return internalError("Failed to delete account.", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return internalError("Failed to delete account.", err)
	}
	if !ok {
		return ErrWrongPassword
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return internalError("Failed to delete account.", err)
	}

	if err := s.ledger.RevokeUser(ctx, user.ID, "", domain.RevocationAccountDeleted); err != nil {
		s.log(ctx).Error("failed to revoke sessions of deleted account", zap.String("user_id", user.ID), zap.Error(err))
		return internalError("Failed to delete account.", err)
	}

	now := s.clock()
	publishSessionsRevoked(ctx, s.runtime, user.ID, domain.RevocationAccountDeleted, false)
	s.publish(ctx, "user.deleted", func(ctx context.Context) error {
		return s.events.PublishUserDeleted(ctx, domain.UserDeletedEvent{UserID: user.ID, DeletedAt: now})
	})
	return nil
}
