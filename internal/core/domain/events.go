package domain

import "time"

// UserRegisteredEvent represents the payload for user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// EmailVerifiedEvent represents the payload for user.email_verified messages.
type EmailVerifiedEvent struct {
	EventID    string
	UserID     string
	VerifiedAt time.Time
}

// PasswordResetRequestedEvent represents the payload for user.password_reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
}

// PasswordChangedEvent represents the payload for user.password_changed messages.
type PasswordChangedEvent struct {
	EventID          string
	UserID           string
	ChangedAt        time.Time
	ChangedBy        string
	NotificationSent bool
}

// SessionsRevokedEvent represents the payload for user.sessions_revoked messages.
type SessionsRevokedEvent struct {
	EventID      string
	UserID       string
	RevokedAt    time.Time
	Reason       RevocationReason
	KeptOneAlive bool
}

// UserDeletedEvent represents the payload for user.deleted messages.
type UserDeletedEvent struct {
	EventID   string
	UserID    string
	DeletedAt time.Time
}
