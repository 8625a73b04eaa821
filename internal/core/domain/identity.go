package domain

import (
	"strings"
	"time"
)

// PasswordHistoryLimit caps how many previous password hashes a user keeps.
const PasswordHistoryLimit = 5

// FullName holds the display name of an account holder.
type FullName struct {
	FirstName string
	LastName  string
}

// String joins the non-empty name parts.
func (n FullName) String() string {
	return strings.TrimSpace(n.FirstName + " " + n.LastName)
}

// PasswordHistoryEntry is a previously used password hash.
type PasswordHistoryEntry struct {
	Hash      string    `json:"hash"`
	ChangedAt time.Time `json:"changed_at"`
}

// User mirrors the persisted representation in the users table.
//
// PasswordHash and PasswordHistory are only populated when the record was
// loaded with credentials.
type User struct {
	ID              string
	Email           string
	Name            FullName
	PasswordHash    string
	IsEmailVerified bool

	VerificationCode        *string
	VerificationCodeExpires *time.Time

	ResetTokenHash    *string
	ResetTokenExpires *time.Time
	ResetAttempts     int

	PasswordChangedAt *time.Time
	LastPasswordReset *time.Time
	PasswordHistory   []PasswordHistoryEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasCredentials reports whether the password hash was loaded.
func (u *User) HasCredentials() bool {
	return u.PasswordHash != ""
}

// SetVerificationCode stores a fresh code, replacing any previous one.
func (u *User) SetVerificationCode(code string, expiresAt time.Time) {
	u.VerificationCode = &code
	u.VerificationCodeExpires = &expiresAt
}

// ClearVerificationCode removes the code so it cannot be used again.
func (u *User) ClearVerificationCode() {
	u.VerificationCode = nil
	u.VerificationCodeExpires = nil
}

// VerificationCodeActive reports whether a code is stored and not yet expired.
func (u *User) VerificationCodeActive(at time.Time) bool {
	return u.VerificationCode != nil && u.VerificationCodeExpires != nil && u.VerificationCodeExpires.After(at)
}

// SetResetToken stores the digest of a new reset secret and resets the attempt counter.
func (u *User) SetResetToken(hash string, expiresAt time.Time) {
	u.ResetTokenHash = &hash
	u.ResetTokenExpires = &expiresAt
	u.ResetAttempts = 0
}

// ClearResetToken removes reset state after use.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = nil
	u.ResetTokenExpires = nil
}

// ResetTokenActive reports whether a reset digest is stored and not yet expired.
func (u *User) ResetTokenActive(at time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpires != nil && u.ResetTokenExpires.After(at)
}

// ArchivePassword pushes the current hash onto the history, evicting the oldest
// entries beyond PasswordHistoryLimit, and installs newHash as the current one.
func (u *User) ArchivePassword(newHash string, at time.Time) {
	if u.PasswordHash != "" {
		u.PasswordHistory = append(u.PasswordHistory, PasswordHistoryEntry{Hash: u.PasswordHash, ChangedAt: at})
	}
	if overflow := len(u.PasswordHistory) - PasswordHistoryLimit; overflow > 0 {
		u.PasswordHistory = append([]PasswordHistoryEntry(nil), u.PasswordHistory[overflow:]...)
	}
	u.PasswordHash = newHash
	changedAt := at
	u.PasswordChangedAt = &changedAt
}
