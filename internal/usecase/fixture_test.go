package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/infra/mail"
	"github.com/arklim/account-auth-service/internal/infra/security"
	"github.com/arklim/account-auth-service/internal/repository/memory"
)

const (
	testPassword = "Str0ng!Pw"
	testCode     = "123456"
	tokenTTL     = 24 * time.Hour
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubCodes struct {
	clock     *testClock
	code      string
	resets    int
	lastReset string
}

var _ port.CodeGenerator = (*stubCodes)(nil)

func (s *stubCodes) VerificationCode() (string, time.Time, error) {
	return s.code, s.clock.Now().Add(security.DefaultCodeTTL), nil
}

func (s *stubCodes) ResetToken() (string, string, time.Time, error) {
	s.resets++
	s.lastReset = fmt.Sprintf("reset-secret-%d", s.resets)
	return s.lastReset, security.HashToken(s.lastReset), s.clock.Now().Add(security.DefaultCodeTTL), nil
}

func (s *stubCodes) TTL() time.Duration {
	return security.DefaultCodeTTL
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []domain.EmailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg domain.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Subject)
	}
	return out
}

func (m *recordingMailer) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type recordingEvents struct {
	discardEvents
	mu      sync.Mutex
	revoked []domain.SessionsRevokedEvent
	changed []domain.PasswordChangedEvent
	names   []string
}

func (e *recordingEvents) record(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, name)
}

func (e *recordingEvents) PublishUserRegistered(context.Context, domain.UserRegisteredEvent) error {
	e.record("user.registered")
	return nil
}

func (e *recordingEvents) PublishEmailVerified(context.Context, domain.EmailVerifiedEvent) error {
	e.record("user.email_verified")
	return nil
}

func (e *recordingEvents) PublishSessionsRevoked(_ context.Context, event domain.SessionsRevokedEvent) error {
	e.record("user.sessions_revoked")
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revoked = append(e.revoked, event)
	return nil
}

func (e *recordingEvents) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	e.record("user.password_changed")
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changed = append(e.changed, event)
	return nil
}

func (e *recordingEvents) PublishUserDeleted(context.Context, domain.UserDeletedEvent) error {
	e.record("user.deleted")
	return errors.New("broker unavailable")
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *recordingMetrics) Record(event, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[event+"/"+outcome]++
}

func (m *recordingMetrics) count(event, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[event+"/"+outcome]
}

type fixture struct {
	clock     *testClock
	users     *memory.UserRepository
	store     *memory.RevocationRepository
	mailer    *recordingMailer
	codes     *stubCodes
	events    *recordingEvents
	metrics   *recordingMetrics
	ledger    *RevocationLedger
	auth      *AuthService
	passwords *PasswordService
	profiles  *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newTestClock()
	f := &fixture{
		clock:   clock,
		users:   memory.NewUserRepository(),
		store:   memory.NewRevocationRepository(),
		mailer:  &recordingMailer{},
		codes:   &stubCodes{clock: clock, code: testCode},
		events:  &recordingEvents{},
		metrics: &recordingMetrics{},
	}

	opts := []Option{
		WithClock(clock.Now),
		WithLogger(zaptest.NewLogger(t)),
		WithEventPublisher(f.events),
		WithMetrics(f.metrics),
	}

	tokens, err := security.NewJWTIssuer("test-secret", "account-auth-service", tokenTTL, security.WithJWTClock(clock.Now))
	if err != nil {
		t.Fatalf("NewJWTIssuer: %v", err)
	}
	composer, err := mail.NewComposer("http://localhost:3000", "admin@example.com")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	notifier, err := NewNotifier(composer, f.mailer, security.DefaultCodeTTL)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	f.ledger, err = NewRevocationLedger(f.store, nil, tokenTTL, opts...)
	if err != nil {
		t.Fatalf("NewRevocationLedger: %v", err)
	}

	deps := Dependencies{
		Users:    f.users,
		Hasher:   security.NewBcryptHasher(bcrypt.MinCost),
		Policy:   security.DefaultPasswordValidator(),
		Tokens:   tokens,
		Codes:    f.codes,
		Ledger:   f.ledger,
		Notifier: notifier,
	}

	if f.auth, err = NewAuthService(deps, opts...); err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	if f.passwords, err = NewPasswordService(deps, opts...); err != nil {
		t.Fatalf("NewPasswordService: %v", err)
	}
	if f.profiles, err = NewProfileService(deps, opts...); err != nil {
		t.Fatalf("NewProfileService: %v", err)
	}
	return f
}

// verifiedUser registers email, verifies it and returns a signed-in session.
func (f *fixture) verifiedUser(t *testing.T, email string) *Session {
	t.Helper()
	ctx := context.Background()

	if _, err := f.auth.Register(ctx, RegisterInput{Email: email, FirstName: "Alice", LastName: "Smith", Password: testPassword}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := f.auth.VerifyEmail(ctx, email, testCode); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	f.clock.Advance(time.Second)
	return f.login(t, email, testPassword)
}

func (f *fixture) login(t *testing.T, email, password string) *Session {
	t.Helper()
	result, err := f.auth.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	session, err := f.auth.Authenticate(context.Background(), result.Token.Value)
	if err != nil {
		t.Fatalf("Authenticate fresh token: %v", err)
	}
	f.clock.Advance(time.Second)
	return session
}

func expectKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s, got %s (%v)", kind, got, err)
	}
}
