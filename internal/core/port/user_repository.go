package port

import (
	"context"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

// UserProjection selects which columns a lookup loads.
type UserProjection int

const (
	// ProjectionProfile loads everything except the password hash and history.
	ProjectionProfile UserProjection = iota
	// ProjectionCredentials additionally loads the password hash and history.
	ProjectionCredentials
)

// UserRepository exposes persistence behavior for users.
//
// Lookups return repository.ErrNotFound when no user matches and Create
// returns repository.ErrDuplicate when the email is already taken. Save
// persists the whole record atomically; credential fields are only written
// when the user was loaded with ProjectionCredentials.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string, projection UserProjection) (*domain.User, error)
	FindByID(ctx context.Context, id string, projection UserProjection) (*domain.User, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
}
