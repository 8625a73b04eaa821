package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/infra/logger"
	"github.com/arklim/account-auth-service/internal/infra/security"
	"github.com/arklim/account-auth-service/internal/repository"
)

const minNameLength = 3

// Session is an authenticated request: the bearer token, its claims and the owner.
type Session struct {
	Token  string
	Claims domain.TokenClaims
	User   *domain.User
}

// AuthResult is returned by flows that sign the caller in.
type AuthResult struct {
	Token domain.IssuedToken
	User  *domain.User
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// AuthService coordinates registration, verification, sign-in and session flows.
type AuthService struct {
	users    port.UserRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicyValidator
	tokens   port.TokenIssuer
	codes    port.CodeGenerator
	ledger   *RevocationLedger
	notifier *Notifier
	runtime
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(deps Dependencies, opts ...Option) (*AuthService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &AuthService{
		users:    deps.Users,
		hasher:   deps.Hasher,
		policy:   deps.Policy,
		tokens:   deps.Tokens,
		codes:    deps.Codes,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		runtime:  newRuntime(opts),
	}, nil
}

// Register creates an unverified account, signs it in and emails a verification code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *AuthResult, err error) {
	ctx, done := s.begin(ctx, "register")
	defer done(&err)

	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, validationError("email", "Email is required")
	}
	name, verr := normalizeName(in.FirstName, in.LastName)
	if verr != nil {
		return nil, verr
	}
	if err := s.policy.Validate(in.Password); err != nil {
		return nil, validationError("password", err.Error())
	}

	if _, err := s.users.FindByEmail(ctx, email, port.ProjectionProfile); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, internalError("Registration failed. Please try again.", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internalError("Registration failed. Please try again.", err)
	}
	code, expiresAt, err := s.codes.VerificationCode()
	if err != nil {
		return nil, internalError("Registration failed. Please try again.", err)
	}

	draft := domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.clock(),
	}
	draft.SetVerificationCode(code, expiresAt)

	user, err := s.users.Create(ctx, draft)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, internalError("Registration failed. Please try again.", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, internalError("Registration failed. Please try again.", err)
	}

	log := s.log(ctx).With(zap.String("user_id", user.ID), zap.String("email", logger.MaskEmail(email)))
	if err := s.notifier.Verification(ctx, user, code); err != nil {
		log.Error("failed to send verification email", zap.Error(err))
		return nil, internalError("Registration failed. Please try again.", err)
	}
	if err := s.notifier.Welcome(ctx, user); err != nil {
		log.Warn("failed to send welcome email", zap.Error(err))
	}
	if err := s.notifier.AdminRegistration(ctx, user); err != nil {
		log.Warn("failed to send admin registration email", zap.Error(err))
	}

	s.publish(ctx, "user.registered", func(ctx context.Context) error {
		return s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
			UserID:       user.ID,
			Email:        user.Email,
			RegisteredAt: user.CreatedAt,
		})
	})
	log.Info("user registered")

	return &AuthResult{Token: token, User: publicView(user)}, nil
}

// VerifyEmail marks the account verified when code is the live verification code.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (err error) {
	ctx, done := s.begin(ctx, "verify_email")
	defer done(&err)

	user, err := s.users.FindByEmail(ctx, email, port.ProjectionProfile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return internalError("Email verification failed. Please try again.", err)
	}

	now := s.clock()
	if !user.VerificationCodeActive(now) || !security.EqualSecrets(*user.VerificationCode, strings.TrimSpace(code)) {
		return ErrInvalidOrExpiredCode
	}

	user.IsEmailVerified = true
	user.ClearVerificationCode()
	if err := s.users.Save(ctx, user); err != nil {
		return internalError("Email verification failed. Please try again.", err)
	}

	s.publish(ctx, "user.email_verified", func(ctx context.Context) error {
		return s.events.PublishEmailVerified(ctx, domain.EmailVerifiedEvent{UserID: user.ID, VerifiedAt: now})
	})
	return nil
}

// ResendVerification replaces the verification code of an unverified account and emails it.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, done := s.begin(ctx, "resend_verification")
	defer done(&err)

	user, err := s.users.FindByEmail(ctx, email, port.ProjectionProfile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return internalError("Failed to resend verification code. Please try again.", err)
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}

	code, expiresAt, err := s.codes.VerificationCode()
	if err != nil {
		return internalError("Failed to resend verification code. Please try again.", err)
	}
	user.SetVerificationCode(code, expiresAt)
	if err := s.users.Save(ctx, user); err != nil {
		return internalError("Failed to resend verification code. Please try again.", err)
	}

	if err := s.notifier.Verification(ctx, user, code); err != nil {
		s.log(ctx).Error("failed to send verification email", zap.String("user_id", user.ID), zap.Error(err))
		return internalError("Failed to resend verification code. Please try again.", err)
	}
	return nil
}

// Login checks the password and issues a token for verified accounts.
// EmailNotVerified is only reported once the password matched.
func (s *AuthService) Login(ctx context.Context, email, password string) (_ *AuthResult, err error) {
	ctx, done := s.begin(ctx, "login")
	defer done(&err)

	user, err := s.users.FindByEmail(ctx, email, port.ProjectionCredentials)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, internalError("Login failed. Please try again.", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, internalError("Login failed. Please try again.", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, internalError("Login failed. Please try again.", err)
	}
	return &AuthResult{Token: token, User: publicView(user)}, nil
}

// Authenticate validates a bearer token, consults the revocation ledger and
// loads the owner. Every rejection is reported as Unauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "Not authorized, no token"}
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, &Error{Kind: KindUnauthorized, Message: "Token expired", Err: err}
		}
		return nil, &Error{Kind: KindUnauthorized, Message: "Not authorized, token failed", Err: err}
	}

	revoked, err := s.ledger.IsRevoked(ctx, token, claims)
	if err != nil {
		return nil, internalError("", err)
	}
	if revoked {
		return nil, &Error{Kind: KindUnauthorized, Message: "Token has been revoked"}
	}

	user, err := s.users.FindByID(ctx, claims.UserID, port.ProjectionProfile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &Error{Kind: KindUnauthorized, Message: "User not found", Err: err}
		}
		return nil, internalError("", err)
	}

	return &Session{Token: token, Claims: claims, User: user}, nil
}

// AuthStatus reports whether token identifies a live session. It never fails;
// lookup errors are logged and reported as signed out.
func (s *AuthService) AuthStatus(ctx context.Context, token string) (*domain.User, bool) {
	if strings.TrimSpace(token) == "" {
		return nil, false
	}
	session, err := s.Authenticate(ctx, token)
	if err != nil {
		if KindOf(err) == KindInternal {
			s.log(ctx).Error("failed to check authentication status", zap.Error(err))
		}
		return nil, false
	}
	return session.User, true
}

// Logout revokes the session token.
func (s *AuthService) Logout(ctx context.Context, session *Session) (err error) {
	ctx, done := s.begin(ctx, "logout")
	defer done(&err)

	if err := s.ledger.RevokeToken(ctx, session.Token, session.Claims, domain.RevocationLogout); err != nil {
		return internalError("Logout failed. Please try again.", err)
	}
	return nil
}

// LogoutAll revokes every token issued to the session owner so far.
func (s *AuthService) LogoutAll(ctx context.Context, session *Session) (err error) {
	ctx, done := s.begin(ctx, "logout_all")
	defer done(&err)

	if err := s.ledger.RevokeUser(ctx, session.Claims.UserID, "", domain.RevocationLogoutAll); err != nil {
		return internalError("Failed to logout from all devices. Please try again.", err)
	}
	s.publishSessionsRevoked(ctx, session.Claims.UserID, domain.RevocationLogoutAll, false)
	return nil
}

// RefreshToken issues a new token for the session owner and revokes previous
// when it is not empty.
func (s *AuthService) RefreshToken(ctx context.Context, session *Session, previous string) (_ *domain.IssuedToken, err error) {
	ctx, done := s.begin(ctx, "refresh_token")
	defer done(&err)

	token, err := s.tokens.Issue(session.Claims.UserID)
	if err != nil {
		return nil, internalError("Failed to refresh token.", err)
	}

	if previous = strings.TrimSpace(previous); previous != "" {
		claims := session.Claims
		if previous != session.Token {
			if parsed, perr := s.tokens.Validate(previous); perr == nil {
				claims = parsed
			} else {
				claims = domain.TokenClaims{UserID: session.Claims.UserID}
			}
		}
		if err := s.ledger.RevokeToken(ctx, previous, claims, domain.RevocationRefresh); err != nil {
			return nil, internalError("Failed to refresh token.", err)
		}
	}
	return &token, nil
}

func (s *AuthService) publishSessionsRevoked(ctx context.Context, userID string, reason domain.RevocationReason, keptOne bool) {
	publishSessionsRevoked(ctx, s.runtime, userID, reason, keptOne)
}

func publishSessionsRevoked(ctx context.Context, r runtime, userID string, reason domain.RevocationReason, keptOne bool) {
	r.publish(ctx, "user.sessions_revoked", func(ctx context.Context) error {
		return r.events.PublishSessionsRevoked(ctx, domain.SessionsRevokedEvent{
			UserID:       userID,
			RevokedAt:    r.clock(),
			Reason:       reason,
			KeptOneAlive: keptOne,
		})
	})
}

func normalizeName(first, last string) (domain.FullName, *Error) {
	name := domain.FullName{FirstName: strings.TrimSpace(first), LastName: strings.TrimSpace(last)}
	if name.FirstName == "" {
		return name, validationError("firstname", "First name is required")
	}
	if utf8.RuneCountInString(name.FirstName) < minNameLength {
		return name, validationError("firstname", "First name must be at least 3 characters long")
	}
	if name.LastName != "" && utf8.RuneCountInString(name.LastName) < minNameLength {
		return name, validationError("lastname", "Last name must be at least 3 characters long")
	}
	return name, nil
}

// publicView strips credential material before a user leaves the service.
func publicView(user *domain.User) *domain.User {
	view := *user
	view.PasswordHash = ""
	view.PasswordHistory = nil
	view.VerificationCode = nil
	view.ResetTokenHash = nil
	return &view
}
