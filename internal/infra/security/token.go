package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	// DefaultCodeTTL is the lifetime of verification codes and reset secrets.
	DefaultCodeTTL = 10 * time.Minute

	// ResetTokenBytes is the amount of randomness in a reset secret.
	ResetTokenBytes = 32

	verificationCodeMin = 100000
	verificationCodeMax = 999999
)

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// EqualSecrets compares two secrets without leaking timing information.
func EqualSecrets(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// CodeGenerator produces verification codes and reset secrets with a fixed lifetime.
type CodeGenerator struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// CodeGeneratorOption customises a CodeGenerator.
type CodeGeneratorOption func(*CodeGenerator)

// WithCodeClock overrides the time source.
func WithCodeClock(clock func() time.Time) CodeGeneratorOption {
	return func(g *CodeGenerator) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithRandomSource overrides the entropy source.
func WithRandomSource(r io.Reader) CodeGeneratorOption {
	return func(g *CodeGenerator) {
		if r != nil {
			g.random = r
		}
	}
}

// NewCodeGenerator constructs a generator whose artifacts expire after ttl.
func NewCodeGenerator(ttl time.Duration, opts ...CodeGeneratorOption) *CodeGenerator {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	g := &CodeGenerator{
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TTL returns the configured lifetime.
func (g *CodeGenerator) TTL() time.Duration {
	return g.ttl
}

// VerificationCode returns a uniformly random six digit code and its expiry.
func (g *CodeGenerator) VerificationCode() (string, time.Time, error) {
	n, err := rand.Int(g.random, big.NewInt(verificationCodeMax-verificationCodeMin+1))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate verification code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+verificationCodeMin)
	return code, g.now().UTC().Add(g.ttl), nil
}

// ResetToken returns a hex encoded reset secret, the digest to persist and its expiry.
func (g *CodeGenerator) ResetToken() (plain string, digest string, expiresAt time.Time, err error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err = io.ReadFull(g.random, buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	plain = hex.EncodeToString(buf)
	return plain, HashToken(plain), g.now().UTC().Add(g.ttl), nil
}
