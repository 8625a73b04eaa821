package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

var (
	// ErrInvalidToken indicates a malformed token or a bad signature.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpiredToken indicates the token is past its expiry.
	ErrExpiredToken = errors.New("jwt: token expired")
)

const defaultAccessTokenTTL = 24 * time.Hour

// AccessTokenClaims binds a user id to the registered claims. IssuedAtMs keeps
// the issuance time at millisecond precision for revocation ordering.
type AccessTokenClaims struct {
	UserID     string `json:"uid"`
	IssuedAtMs int64  `json:"iat_ms"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and validates HS256 bearer tokens.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// JWTOption customises a JWTIssuer.
type JWTOption func(*JWTIssuer)

// WithJWTClock overrides the time source used for issuance and expiry checks.
func WithJWTClock(clock func() time.Time) JWTOption {
	return func(j *JWTIssuer) {
		if clock != nil {
			j.now = clock
		}
	}
}

// NewJWTIssuer constructs an issuer. ttl defaults to 24 hours.
func NewJWTIssuer(secret, issuer string, ttl time.Duration, opts ...JWTOption) (*JWTIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt: secret is required")
	}
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	j := &JWTIssuer{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// TTL returns the token lifetime.
func (j *JWTIssuer) TTL() time.Duration {
	return j.ttl
}

// Issue signs a new token for userID.
func (j *JWTIssuer) Issue(userID string) (domain.IssuedToken, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.IssuedToken{}, fmt.Errorf("jwt: user id is required")
	}

	now := j.now().UTC()
	expiresAt := now.Add(j.ttl)
	claims := AccessTokenClaims{
		UserID:     userID,
		IssuedAtMs: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    j.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return domain.IssuedToken{
		Value: signed,
		Claims: domain.TokenClaims{
			TokenID:   claims.ID,
			UserID:    userID,
			IssuedAt:  time.UnixMilli(claims.IssuedAtMs).UTC(),
			ExpiresAt: expiresAt,
		},
		ExpiresAt: expiresAt,
	}, nil
}

// Validate verifies signature and expiry and returns the embedded identity.
func (j *JWTIssuer) Validate(token string) (domain.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.TokenClaims{}, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}

	var claims AccessTokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.TokenClaims{}, ErrExpiredToken
		}
		return domain.TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if strings.TrimSpace(claims.UserID) == "" {
		return domain.TokenClaims{}, fmt.Errorf("%w: missing uid", ErrInvalidToken)
	}

	issuedAt := time.UnixMilli(claims.IssuedAtMs).UTC()
	if claims.IssuedAtMs == 0 && claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time.UTC()
	}

	result := domain.TokenClaims{
		TokenID:  claims.ID,
		UserID:   claims.UserID,
		IssuedAt: issuedAt,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return result, nil
}
