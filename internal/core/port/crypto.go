package port

import (
	"time"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string) error
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenIssuer signs and validates bearer tokens.
type TokenIssuer interface {
	Issue(userID string) (domain.IssuedToken, error)
	Validate(token string) (domain.TokenClaims, error)
}

// CodeGenerator produces verification codes and reset secrets.
type CodeGenerator interface {
	VerificationCode() (code string, expiresAt time.Time, err error)
	ResetToken() (plain string, digest string, expiresAt time.Time, err error)
	TTL() time.Duration
}
