package handlers

import (
	"time"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// FullNameRequest carries the name parts of a registration or profile update.
type FullNameRequest struct {
	FirstName string `json:"firstname" binding:"required,min=3"`
	LastName  string `json:"lastname" binding:"omitempty,min=3"`
}

// RegisterRequest describes the payload for account registration.
type RegisterRequest struct {
	Email    string          `json:"email" binding:"required,email"`
	FullName FullNameRequest `json:"fullname"`
	Password string          `json:"password" binding:"required,strongpassword"`
}

// LoginRequest describes the payload for password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyEmailRequest confirms ownership of an address with a six digit code.
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,numericcode"`
}

// EmailRequest is used by flows keyed only by an email address.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyResetRequest checks a reset link before the user picks a new password.
type VerifyResetRequest struct {
	Email string `json:"email" binding:"required,email"`
	Token string `json:"token" binding:"required"`
	Code  string `json:"code" binding:"required,numericcode"`
}

// ResetPasswordRequest completes the forgot-password flow.
type ResetPasswordRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Token           string `json:"token" binding:"required"`
	Code            string `json:"code" binding:"required,numericcode"`
	NewPassword     string `json:"newPassword" binding:"required,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=NewPassword"`
}

// ChangePasswordRequest replaces the password of the authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=NewPassword"`
}

// UpdateProfileRequest replaces the display name.
type UpdateProfileRequest struct {
	FullName FullNameRequest `json:"fullname"`
}

// DeleteAccountRequest confirms account deletion with the current password.
type DeleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

// FullNameResponse is the public shape of a user's name.
type FullNameResponse struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname,omitempty"`
}

// UserResponse is the public projection of an account.
type UserResponse struct {
	ID                string           `json:"id"`
	Email             string           `json:"email"`
	FullName          FullNameResponse `json:"fullname"`
	IsEmailVerified   bool             `json:"isEmailVerified"`
	PasswordChangedAt *time.Time       `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// AuthResponse is returned when a new session token is issued.
type AuthResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    *UserResponse `json:"user"`
}

// TokenResponse is returned by token refresh.
type TokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// ProfileResponse wraps the current user's profile.
type ProfileResponse struct {
	Message string        `json:"message,omitempty"`
	User    *UserResponse `json:"user"`
}

// AuthStatusResponse reports whether the caller holds a valid session.
type AuthStatusResponse struct {
	IsAuthenticated bool          `json:"isAuthenticated"`
	User            *UserResponse `json:"user,omitempty"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newUserResponse(user *domain.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		FullName: FullNameResponse{
			FirstName: user.Name.FirstName,
			LastName:  user.Name.LastName,
		},
		IsEmailVerified:   user.IsEmailVerified,
		PasswordChangedAt: user.PasswordChangedAt,
		CreatedAt:         user.CreatedAt,
		UpdatedAt:         user.UpdatedAt,
	}
}
