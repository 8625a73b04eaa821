package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

const (
	defaultRevocationPrefix = "revoked"
	memberSeparator         = "|"
)

// RevocationRepository mirrors revocation ledger entries in Redis.
//
// Single-token entries are plain keys expiring with the token. Blanket entries
// live in a per-user sorted set scored by creation time in milliseconds, each
// member carrying the digest of the token it spares.
type RevocationRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewRevocationRepository wires a Redis client into a revocation repository.
func NewRevocationRepository(client *red.Client, keyPrefix string) *RevocationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}

	return &RevocationRepository{client: client, prefix: prefix, now: time.Now}
}

// Store caches entry until its ExpiresAt. Entries that already expired are skipped.
func (r *RevocationRepository) Store(ctx context.Context, entry domain.RevokedToken) error {
	ttl := entry.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	switch {
	case entry.TokenHash != nil:
		if strings.TrimSpace(*entry.TokenHash) == "" {
			return errors.New("token hash must not be empty")
		}
		if err := r.client.Set(ctx, r.tokenKey(*entry.TokenHash), string(entry.Reason), ttl).Err(); err != nil {
			return fmt.Errorf("redis set revoked token: %w", err)
		}
		return nil
	case entry.UserID != nil:
		if strings.TrimSpace(*entry.UserID) == "" {
			return errors.New("user id must not be empty")
		}
		key := r.userKey(*entry.UserID)
		exclude := ""
		if entry.ExcludeTokenHash != nil {
			exclude = *entry.ExcludeTokenHash
		}

		pipe := r.client.TxPipeline()
		pipe.ZAdd(ctx, key, red.Z{
			Score:  float64(entry.CreatedAt.UnixMilli()),
			Member: entry.ID + memberSeparator + exclude,
		})
		pipe.Expire(ctx, key, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis store user revocation: %w", err)
		}
		return nil
	default:
		return errors.New("revocation entry must target a token or a user")
	}
}

// IsRevoked reports whether a cached entry rejects the token.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenHash, userID string, issuedAt time.Time) (bool, error) {
	pipe := r.client.Pipeline()
	exists := pipe.Exists(ctx, r.tokenKey(tokenHash))
	blanket := pipe.ZRangeByScore(ctx, r.userKey(userID), &red.ZRangeBy{
		Min: strconv.FormatInt(issuedAt.UnixMilli(), 10),
		Max: "+inf",
	})
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, red.Nil) {
		return false, fmt.Errorf("redis check revocation: %w", err)
	}

	if exists.Val() > 0 {
		return true, nil
	}
	for _, member := range blanket.Val() {
		_, exclude, _ := strings.Cut(member, memberSeparator)
		if exclude == "" || exclude != tokenHash {
			return true, nil
		}
	}
	return false, nil
}

func (r *RevocationRepository) tokenKey(tokenHash string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, strings.TrimSpace(tokenHash))
}

func (r *RevocationRepository) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, strings.TrimSpace(userID))
}
