package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/repository"
)

// UserRepository keeps users in process memory. It backs the "memory" storage
// driver and the HTTP tests.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
	now     func() time.Time
}

// NewUserRepository constructs an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// FindByEmail looks a user up by case-insensitive email.
func (r *UserRepository) FindByEmail(_ context.Context, email string, projection port.UserProjection) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return project(r.byID[id], projection), nil
}

// FindByID looks a user up by identifier.
func (r *UserRepository) FindByID(_ context.Context, id string, projection port.UserProjection) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return project(user, projection), nil
}

// Create stores a new user, rejecting duplicate emails.
func (r *UserRepository) Create(_ context.Context, user domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = domain.NormalizeEmail(user.Email)
	if _, taken := r.byEmail[user.Email]; taken {
		return nil, repository.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	stored := clone(user)
	r.byID[user.ID] = stored
	r.byEmail[user.Email] = user.ID
	return project(stored, port.ProjectionCredentials), nil
}

// Save replaces the stored record. Credentials are kept when the caller did
// not load them.
func (r *UserRepository) Save(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return repository.ErrNotFound
	}

	user.UpdatedAt = r.now().UTC()
	next := clone(*user)
	next.Email = existing.Email
	next.CreatedAt = existing.CreatedAt
	if !user.HasCredentials() {
		next.PasswordHash = existing.PasswordHash
		next.PasswordHistory = existing.PasswordHistory
	}
	r.byID[user.ID] = next
	return nil
}

// Delete removes the user.
func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, user.Email)
	return nil
}

func project(user domain.User, projection port.UserProjection) *domain.User {
	out := clone(user)
	if projection != port.ProjectionCredentials {
		out.PasswordHash = ""
		out.PasswordHistory = nil
	}
	return &out
}

func clone(user domain.User) domain.User {
	out := user
	out.VerificationCode = copyPtr(user.VerificationCode)
	out.VerificationCodeExpires = copyPtr(user.VerificationCodeExpires)
	out.ResetTokenHash = copyPtr(user.ResetTokenHash)
	out.ResetTokenExpires = copyPtr(user.ResetTokenExpires)
	out.PasswordChangedAt = copyPtr(user.PasswordChangedAt)
	out.LastPasswordReset = copyPtr(user.LastPasswordReset)
	if user.PasswordHistory != nil {
		out.PasswordHistory = append([]domain.PasswordHistoryEntry(nil), user.PasswordHistory...)
	}
	return out
}

func copyPtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
