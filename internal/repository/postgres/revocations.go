package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

const revokedTokensTable = "auth.revoked_tokens"

var revocationColumns = []string{
	"id",
	"token_hash",
	"user_id",
	"exclude_token_hash",
	"reason",
	"created_at",
	"expires_at",
}

// RevocationRepository is the durable revocation ledger.
type RevocationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRevocationRepository constructs a ledger backed by any executor that satisfies pgExecutor.
func NewRevocationRepository(exec pgExecutor) *RevocationRepository {
	return &RevocationRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a ledger entry.
func (r *RevocationRepository) Append(ctx context.Context, entry domain.RevokedToken) error {
	if (entry.TokenHash == nil) == (entry.UserID == nil) {
		return fmt.Errorf("revocation entry must target exactly one of token or user")
	}
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}

	stmt, args, err := r.builder.Insert(revokedTokensTable).
		Columns(revocationColumns...).
		Values(
			entry.ID,
			entry.TokenHash,
			entry.UserID,
			entry.ExcludeTokenHash,
			string(entry.Reason),
			entry.CreatedAt,
			entry.ExpiresAt,
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert revocation sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether any entry rejects the token.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenHash, userID string, issuedAt time.Time) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From(revokedTokensTable).
		Where(squirrel.Or{
			squirrel.Eq{"token_hash": tokenHash},
			squirrel.And{
				squirrel.Eq{"user_id": userID},
				squirrel.GtOrEq{"created_at": issuedAt},
				squirrel.Or{
					squirrel.Eq{"exclude_token_hash": nil},
					squirrel.NotEq{"exclude_token_hash": tokenHash},
				},
			},
		}).
		Limit(1).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build revocation lookup sql: %w", err)
	}

	var revoked bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&revoked); err != nil {
		return false, fmt.Errorf("query revocation: %w", err)
	}
	return revoked, nil
}

// ListActive returns entries that can still match an unexpired token.
func (r *RevocationRepository) ListActive(ctx context.Context, now time.Time) ([]domain.RevokedToken, error) {
	stmt, args, err := r.builder.
		Select(revocationColumns...).
		From(revokedTokensTable).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list revocations sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list revocations: %w", err)
	}
	defer rows.Close()

	var entries []domain.RevokedToken
	for rows.Next() {
		var (
			entry  domain.RevokedToken
			reason string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TokenHash,
			&entry.UserID,
			&entry.ExcludeTokenHash,
			&reason,
			&entry.CreatedAt,
			&entry.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan revocation: %w", err)
		}
		entry.Reason = domain.RevocationReason(reason)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revocations: %w", err)
	}
	return entries, nil
}

// PurgeExpired deletes entries whose tokens have all expired.
func (r *RevocationRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	stmt, args, err := r.builder.
		Delete(revokedTokensTable).
		Where(squirrel.LtOrEq{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge revocations sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	return tag.RowsAffected(), nil
}
