package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/repository"
)

const usersTable = "auth.users"

var profileColumns = []string{
	"id",
	"email",
	"first_name",
	"last_name",
	"is_email_verified",
	"verification_code",
	"verification_code_expires",
	"reset_token_hash",
	"reset_token_expires",
	"reset_attempts",
	"password_changed_at",
	"last_password_reset",
	"created_at",
	"updated_at",
}

var credentialColumns = append(append([]string(nil), profileColumns...), "password_hash", "password_history")

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		exec:    tx,
		builder: r.builder,
		now:     r.now,
	}
}

// FindByEmail looks a user up by case-insensitive email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string, projection port.UserProjection) (*domain.User, error) {
	return r.findOne(ctx, squirrel.Expr("lower(email) = ?", domain.NormalizeEmail(email)), projection)
}

// FindByID looks a user up by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string, projection port.UserProjection) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, squirrel.Eq{"id": id}, projection)
}

func (r *UserRepository) findOne(ctx context.Context, where squirrel.Sqlizer, projection port.UserProjection) (*domain.User, error) {
	withCredentials := projection == port.ProjectionCredentials
	columns := profileColumns
	if withCredentials {
		columns = credentialColumns
	}

	stmt, args, err := r.builder.
		Select(columns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...), withCredentials)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// Create inserts a new user row. A missing ID is generated.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = domain.NormalizeEmail(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	history, err := encodeHistory(user.PasswordHistory)
	if err != nil {
		return nil, err
	}

	stmt, args, err := r.builder.Insert(usersTable).
		Columns(credentialColumns...).
		Values(
			user.ID,
			user.Email,
			user.Name.FirstName,
			user.Name.LastName,
			user.IsEmailVerified,
			user.VerificationCode,
			user.VerificationCodeExpires,
			user.ResetTokenHash,
			user.ResetTokenExpires,
			user.ResetAttempts,
			user.PasswordChangedAt,
			user.LastPasswordReset,
			user.CreatedAt,
			user.UpdatedAt,
			user.PasswordHash,
			history,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &user, nil
}

// Save writes the whole record in one statement. The password hash and history
// are only written when the user carries credentials.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	if user == nil {
		return fmt.Errorf("save user: nil user")
	}
	user.UpdatedAt = r.now().UTC()

	update := r.builder.Update(usersTable).
		Set("first_name", user.Name.FirstName).
		Set("last_name", user.Name.LastName).
		Set("is_email_verified", user.IsEmailVerified).
		Set("verification_code", user.VerificationCode).
		Set("verification_code_expires", user.VerificationCodeExpires).
		Set("reset_token_hash", user.ResetTokenHash).
		Set("reset_token_expires", user.ResetTokenExpires).
		Set("reset_attempts", user.ResetAttempts).
		Set("password_changed_at", user.PasswordChangedAt).
		Set("last_password_reset", user.LastPasswordReset).
		Set("updated_at", user.UpdatedAt)

	if user.HasCredentials() {
		history, err := encodeHistory(user.PasswordHistory)
		if err != nil {
			return err
		}
		update = update.
			Set("password_hash", user.PasswordHash).
			Set("password_history", history)
	}

	stmt, args, err := update.Where(squirrel.Eq{"id": user.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the user row.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(usersTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row, withCredentials bool) (*domain.User, error) {
	var user domain.User
	dest := []any{
		&user.ID,
		&user.Email,
		&user.Name.FirstName,
		&user.Name.LastName,
		&user.IsEmailVerified,
		&user.VerificationCode,
		&user.VerificationCodeExpires,
		&user.ResetTokenHash,
		&user.ResetTokenExpires,
		&user.ResetAttempts,
		&user.PasswordChangedAt,
		&user.LastPasswordReset,
		&user.CreatedAt,
		&user.UpdatedAt,
	}

	var history []byte
	if withCredentials {
		dest = append(dest, &user.PasswordHash, &history)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if withCredentials && len(history) > 0 {
		if err := json.Unmarshal(history, &user.PasswordHistory); err != nil {
			return nil, fmt.Errorf("decode password history: %w", err)
		}
	}
	return &user, nil
}

func encodeHistory(entries []domain.PasswordHistoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []domain.PasswordHistoryEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode password history: %w", err)
	}
	return payload, nil
}
