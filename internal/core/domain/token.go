package domain

import "time"

// TokenClaims is the identity carried by a validated bearer token.
type TokenClaims struct {
	TokenID   string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is a freshly signed bearer token.
type IssuedToken struct {
	Value     string
	Claims    TokenClaims
	ExpiresAt time.Time
}

// RevocationReason labels why a ledger entry was written.
type RevocationReason string

const (
	RevocationLogout         RevocationReason = "logout"
	RevocationLogoutAll      RevocationReason = "logout_all"
	RevocationRefresh        RevocationReason = "refresh"
	RevocationPasswordReset  RevocationReason = "password_reset"
	RevocationPasswordChange RevocationReason = "password_change"
	RevocationAccountDeleted RevocationReason = "account_deleted"
)

// RevokedToken is an entry in the revocation ledger.
//
// Exactly one of TokenHash or UserID is set. A UserID entry rejects every
// token of that user issued at or before CreatedAt, except the token whose
// digest equals ExcludeTokenHash.
type RevokedToken struct {
	ID               string
	TokenHash        *string
	UserID           *string
	ExcludeTokenHash *string
	Reason           RevocationReason
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// IsBlanket reports whether the entry revokes every token of a user.
func (r RevokedToken) IsBlanket() bool {
	return r.UserID != nil
}

// Matches reports whether the entry rejects a token with the given digest,
// owner and issuance time.
func (r RevokedToken) Matches(tokenHash, userID string, issuedAt time.Time) bool {
	if r.TokenHash != nil {
		return *r.TokenHash == tokenHash
	}
	if r.UserID == nil || *r.UserID != userID {
		return false
	}
	if issuedAt.After(r.CreatedAt) {
		return false
	}
	return r.ExcludeTokenHash == nil || *r.ExcludeTokenHash != tokenHash
}

// EmailMessage is a rendered outbound email.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
}
