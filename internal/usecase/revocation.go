package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/infra/security"
)

// RevocationLedger records invalidated tokens and answers whether a token may
// still be trusted. The store is authoritative. The optional cache only
// short-circuits positive answers: a cache miss is always confirmed against
// the store, since the cache may have lost entries.
type RevocationLedger struct {
	store    port.RevocationStore
	cache    port.RevocationCache
	tokenTTL time.Duration
	runtime
}

// NewRevocationLedger builds a ledger over store. cache may be nil. tokenTTL
// bounds how long a blanket entry can match a live token.
func NewRevocationLedger(store port.RevocationStore, cache port.RevocationCache, tokenTTL time.Duration, opts ...Option) (*RevocationLedger, error) {
	if store == nil {
		return nil, errors.New("revocation store is required")
	}
	if tokenTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &RevocationLedger{
		store:    store,
		cache:    cache,
		tokenTTL: tokenTTL,
		runtime:  newRuntime(opts),
	}, nil
}

// RevokeToken rejects one token from now on.
func (l *RevocationLedger) RevokeToken(ctx context.Context, token string, claims domain.TokenClaims, reason domain.RevocationReason) error {
	now := l.clock()
	digest := security.HashToken(token)
	expiresAt := claims.ExpiresAt
	if expiresAt.IsZero() || !expiresAt.After(now) {
		expiresAt = now.Add(l.tokenTTL)
	}

	return l.append(ctx, domain.RevokedToken{
		ID:        ulid.Make().String(),
		TokenHash: &digest,
		Reason:    reason,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
}

// RevokeUser rejects every token of userID issued up to now, except keepToken when it is not empty.
func (l *RevocationLedger) RevokeUser(ctx context.Context, userID, keepToken string, reason domain.RevocationReason) error {
	if userID == "" {
		return errors.New("revoke user: empty user id")
	}
	now := l.clock()
	owner := userID
	entry := domain.RevokedToken{
		ID:        ulid.Make().String(),
		UserID:    &owner,
		Reason:    reason,
		CreatedAt: now,
		ExpiresAt: now.Add(l.tokenTTL),
	}
	if keepToken != "" {
		keep := security.HashToken(keepToken)
		entry.ExcludeTokenHash = &keep
	}
	return l.append(ctx, entry)
}

func (l *RevocationLedger) append(ctx context.Context, entry domain.RevokedToken) error {
	if err := l.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append revocation: %w", err)
	}
	if l.cache != nil {
		if err := l.cache.Store(ctx, entry); err != nil {
			l.log(ctx).Warn("failed to cache revocation entry",
				zap.String("revocation_id", entry.ID),
				zap.String("reason", string(entry.Reason)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// IsRevoked reports whether a token with the given claims has been invalidated.
func (l *RevocationLedger) IsRevoked(ctx context.Context, token string, claims domain.TokenClaims) (bool, error) {
	digest := security.HashToken(token)

	if l.cache != nil {
		revoked, err := l.cache.IsRevoked(ctx, digest, claims.UserID, claims.IssuedAt)
		switch {
		case err != nil:
			l.log(ctx).Warn("revocation cache lookup failed, using store", zap.Error(err))
		case revoked:
			return true, nil
		}
	}

	revoked, err := l.store.IsRevoked(ctx, digest, claims.UserID, claims.IssuedAt)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

// Warm copies every entry that can still match a live token into the cache.
func (l *RevocationLedger) Warm(ctx context.Context) (int, error) {
	if l.cache == nil {
		return 0, nil
	}
	entries, err := l.store.ListActive(ctx, l.clock())
	if err != nil {
		return 0, fmt.Errorf("list active revocations: %w", err)
	}
	for _, entry := range entries {
		if err := l.cache.Store(ctx, entry); err != nil {
			return 0, fmt.Errorf("cache revocation %s: %w", entry.ID, err)
		}
	}
	return len(entries), nil
}

// Prune deletes entries that can no longer match an unexpired token.
func (l *RevocationLedger) Prune(ctx context.Context) (int64, error) {
	purged, err := l.store.PurgeExpired(ctx, l.clock())
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	return purged, nil
}

// RunPruner prunes the ledger every interval until ctx is done.
func (l *RevocationLedger) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := l.Prune(ctx)
			if err != nil {
				l.logger.Error("revocation prune failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				l.logger.Info("pruned revocation entries", zap.Int64("count", purged))
			}
		}
	}
}
