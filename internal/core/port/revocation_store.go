package port

import (
	"context"
	"time"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

// RevocationStore is the durable, append-only revocation ledger.
type RevocationStore interface {
	Append(ctx context.Context, entry domain.RevokedToken) error
	IsRevoked(ctx context.Context, tokenHash, userID string, issuedAt time.Time) (bool, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.RevokedToken, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// RevocationCache mirrors ledger entries for fast per-request checks.
type RevocationCache interface {
	Store(ctx context.Context, entry domain.RevokedToken) error
	IsRevoked(ctx context.Context, tokenHash, userID string, issuedAt time.Time) (bool, error)
}
