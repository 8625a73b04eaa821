package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

// RevocationRepository is an append-only in-memory revocation ledger.
type RevocationRepository struct {
	mu      sync.RWMutex
	entries []domain.RevokedToken
}

// NewRevocationRepository constructs an empty ledger.
func NewRevocationRepository() *RevocationRepository {
	return &RevocationRepository{}
}

// Append records entry.
func (r *RevocationRepository) Append(_ context.Context, entry domain.RevokedToken) error {
	if (entry.TokenHash == nil) == (entry.UserID == nil) {
		return fmt.Errorf("revocation entry must target exactly one of token or user")
	}
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// IsRevoked reports whether any entry rejects the token.
func (r *RevocationRepository) IsRevoked(_ context.Context, tokenHash, userID string, issuedAt time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if entry.Matches(tokenHash, userID, issuedAt) {
			return true, nil
		}
	}
	return false, nil
}

// ListActive returns entries that have not expired at now.
func (r *RevocationRepository) ListActive(_ context.Context, now time.Time) ([]domain.RevokedToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []domain.RevokedToken
	for _, entry := range r.entries {
		if entry.ExpiresAt.After(now) {
			active = append(active, entry)
		}
	}
	return active, nil
}

// PurgeExpired drops entries that expired at or before before.
func (r *RevocationRepository) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	var purged int64
	for _, entry := range r.entries {
		if entry.ExpiresAt.After(before) {
			kept = append(kept, entry)
			continue
		}
		purged++
	}
	r.entries = kept
	return purged, nil
}
