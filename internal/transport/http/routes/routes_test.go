package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/infra/config"
	"github.com/arklim/account-auth-service/internal/infra/kafka"
	"github.com/arklim/account-auth-service/internal/infra/mail"
	"github.com/arklim/account-auth-service/internal/infra/security"
	"github.com/arklim/account-auth-service/internal/infra/telemetry"
	"github.com/arklim/account-auth-service/internal/repository/memory"
	httproutes "github.com/arklim/account-auth-service/internal/transport/http/routes"
	"github.com/arklim/account-auth-service/internal/usecase"
)

const (
	testPassword = "Str0ng!Pw"
	newPassword  = "N3wer!Pass"
	testCode     = "123456"
	resetSecret  = "reset-secret"
)

// tickingClock advances one second on every read so each token and
// revocation gets a distinct timestamp.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixedCodes struct {
	clock *tickingClock
}

func (f fixedCodes) VerificationCode() (string, time.Time, error) {
	return testCode, f.clock.Now().Add(security.DefaultCodeTTL), nil
}

func (f fixedCodes) ResetToken() (string, string, time.Time, error) {
	return resetSecret, security.HashToken(resetSecret), f.clock.Now().Add(security.DefaultCodeTTL), nil
}

func (f fixedCodes) TTL() time.Duration {
	return security.DefaultCodeTTL
}

type outbox struct {
	mu   sync.Mutex
	sent []domain.EmailMessage
}

func (o *outbox) Send(_ context.Context, msg domain.EmailMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type failingCheck struct{}

func (failingCheck) Ping(context.Context) error { return errors.New("connection refused") }

type server struct {
	t      *testing.T
	router *gin.Engine
	mail   *outbox
}

type testOption func(*httproutes.Dependencies)

func newServer(t *testing.T, opts ...testOption) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &tickingClock{now: time.Now().UTC()}
	log := zaptest.NewLogger(t)
	registry := prometheus.NewRegistry()
	metrics, err := telemetry.NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("NewAuthMetrics: %v", err)
	}

	svcOpts := []usecase.Option{
		usecase.WithClock(clock.Now),
		usecase.WithLogger(log),
		usecase.WithEventPublisher(kafka.NewStubPublisher(log)),
		usecase.WithMetrics(metrics),
	}

	tokens, err := security.NewJWTIssuer("test-secret", "account-auth-service", 24*time.Hour, security.WithJWTClock(clock.Now))
	if err != nil {
		t.Fatalf("NewJWTIssuer: %v", err)
	}
	composer, err := mail.NewComposer("http://localhost:3000", "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	box := &outbox{}
	notifier, err := usecase.NewNotifier(composer, box, security.DefaultCodeTTL)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	ledger, err := usecase.NewRevocationLedger(memory.NewRevocationRepository(), nil, 24*time.Hour, svcOpts...)
	if err != nil {
		t.Fatalf("NewRevocationLedger: %v", err)
	}

	deps := usecase.Dependencies{
		Users:    memory.NewUserRepository(),
		Hasher:   security.NewBcryptHasher(bcrypt.MinCost),
		Policy:   security.DefaultPasswordValidator(),
		Tokens:   tokens,
		Codes:    fixedCodes{clock: clock},
		Ledger:   ledger,
		Notifier: notifier,
	}

	var services httproutes.ServiceSet
	if services.Auth, err = usecase.NewAuthService(deps, svcOpts...); err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	if services.Passwords, err = usecase.NewPasswordService(deps, svcOpts...); err != nil {
		t.Fatalf("NewPasswordService: %v", err)
	}
	if services.Profiles, err = usecase.NewProfileService(deps, svcOpts...); err != nil {
		t.Fatalf("NewProfileService: %v", err)
	}

	routeDeps := httproutes.Dependencies{
		Config: &config.AppConfig{
			App:    config.AppSettings{Env: "test"},
			JWT:    config.JWTSettings{TTL: 24 * time.Hour},
			Cookie: config.CookieSettings{Name: "token", SameSite: "lax"},
		},
		Logger:   log,
		Services: services,
		Gatherer: registry,
	}
	for _, opt := range opts {
		opt(&routeDeps)
	}

	return &server{t: t, router: httproutes.Register(routeDeps), mail: box}
}

type request struct {
	method string
	path   string
	body   any
	token  string
	cookie string
}

type response struct {
	code    int
	body    map[string]any
	raw     string
	cookies []*http.Cookie
}

func (s *server) do(r request) response {
	s.t.Helper()

	var payload bytes.Buffer
	if r.body != nil {
		if err := json.NewEncoder(&payload).Encode(r.body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(r.method, r.path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: r.cookie})
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := response{code: w.Code, raw: w.Body.String(), cookies: w.Result().Cookies()}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out.body); err != nil {
			s.t.Fatalf("decode %s %s response %q: %v", r.method, r.path, w.Body.String(), err)
		}
	}
	return out
}

func (s *server) expect(resp response, status int, kind string) {
	s.t.Helper()
	if resp.code != status {
		s.t.Fatalf("expected status %d, got %d: %s", status, resp.code, resp.raw)
	}
	if kind != "" && resp.body["kind"] != kind {
		s.t.Fatalf("expected kind %s, got %v", kind, resp.body["kind"])
	}
}

func (s *server) register(email string) string {
	s.t.Helper()
	resp := s.do(request{method: http.MethodPost, path: "/api/v1/users/register", body: map[string]any{
		"email":    email,
		"password": testPassword,
		"fullname": map[string]string{"firstname": "Alice", "lastname": "Smith"},
	}})
	s.expect(resp, http.StatusCreated, "")
	token, _ := resp.body["token"].(string)
	return token
}

func (s *server) verify(email string) {
	s.t.Helper()
	resp := s.do(request{method: http.MethodPost, path: "/api/v1/users/verify-email", body: map[string]string{"email": email, "code": testCode}})
	s.expect(resp, http.StatusOK, "")
}

func (s *server) login(email, password string) string {
	s.t.Helper()
	resp := s.do(request{method: http.MethodPost, path: "/api/v1/users/login", body: map[string]string{"email": email, "password": password}})
	s.expect(resp, http.StatusOK, "")
	token, _ := resp.body["token"].(string)
	if token == "" {
		s.t.Fatalf("login returned no token: %s", resp.raw)
	}
	return token
}

func (s *server) profile(token string) response {
	s.t.Helper()
	return s.do(request{method: http.MethodGet, path: "/api/v1/users/profile", token: token})
}

func sessionCookie(resp response) *http.Cookie {
	for _, c := range resp.cookies {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestHealthEndpoint(t *testing.T) {
	s := newServer(t)

	resp := s.do(request{method: http.MethodGet, path: "/healthz"})
	s.expect(resp, http.StatusOK, "")
	if resp.body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", resp.body["status"])
	}
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	s := newServer(t, func(d *httproutes.Dependencies) { d.Database = failingCheck{} })

	resp := s.do(request{method: http.MethodGet, path: "/readyz"})
	s.expect(resp, http.StatusServiceUnavailable, "")
	checks, _ := resp.body["checks"].(map[string]any)
	if checks["database"] != "connection refused" {
		t.Fatalf("expected database check failure, got %v", checks)
	}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	s := newServer(t)
	email := "alice@example.com"

	resp := s.do(request{method: http.MethodPost, path: "/api/v1/users/register", body: map[string]any{
		"email":    "Alice@Example.com",
		"password": testPassword,
		"fullname": map[string]string{"firstname": "Alice", "lastname": "Smith"},
	}})
	s.expect(resp, http.StatusCreated, "")
	if c := sessionCookie(resp); c == nil || !c.HttpOnly || c.Value == "" {
		t.Fatalf("expected HttpOnly session cookie, got %+v", c)
	}
	user, _ := resp.body["user"].(map[string]any)
	if user["email"] != email || user["isEmailVerified"] != false {
		t.Fatalf("unexpected user payload: %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatalf("password leaked in response: %v", user)
	}

	duplicate := s.do(request{method: http.MethodPost, path: "/api/v1/users/register", body: map[string]any{
		"email":    email,
		"password": testPassword,
		"fullname": map[string]string{"firstname": "Alice"},
	}})
	s.expect(duplicate, http.StatusBadRequest, "DuplicateEmail")

	wrong := s.do(request{method: http.MethodPost, path: "/api/v1/users/login", body: map[string]string{"email": email, "password": "Wr0ng!Pass"}})
	s.expect(wrong, http.StatusUnauthorized, "InvalidCredentials")

	unverified := s.do(request{method: http.MethodPost, path: "/api/v1/users/login", body: map[string]string{"email": email, "password": testPassword}})
	s.expect(unverified, http.StatusUnauthorized, "EmailNotVerified")

	badCode := s.do(request{method: http.MethodPost, path: "/api/v1/users/verify-email", body: map[string]string{"email": email, "code": "654321"}})
	s.expect(badCode, http.StatusBadRequest, "InvalidOrExpiredCode")

	s.verify(email)

	again := s.do(request{method: http.MethodPost, path: "/api/v1/users/resend-verification", body: map[string]string{"email": email}})
	s.expect(again, http.StatusBadRequest, "AlreadyVerified")

	token := s.login(email, testPassword)

	profile := s.profile(token)
	s.expect(profile, http.StatusOK, "")
	user, _ = profile.body["user"].(map[string]any)
	if user["isEmailVerified"] != true {
		t.Fatalf("expected verified profile, got %v", user)
	}

	status := s.do(request{method: http.MethodGet, path: "/api/v1/users/auth-status", cookie: token})
	s.expect(status, http.StatusOK, "")
	if status.body["isAuthenticated"] != true {
		t.Fatalf("expected authenticated status, got %v", status.body)
	}

	metrics := s.do(request{method: http.MethodGet, path: "/metrics"})
	if !strings.Contains(metrics.raw, `auth_events_total{event="login",outcome="success"} 1`) {
		t.Fatalf("expected login metric in exposition, got:\n%s", metrics.raw)
	}
}

func TestValidationErrorsNameFirstField(t *testing.T) {
	s := newServer(t)

	cases := []struct {
		name  string
		path  string
		body  any
		field string
	}{
		{
			name:  "invalid email",
			path:  "/api/v1/users/register",
			body:  map[string]any{"email": "nope", "password": testPassword, "fullname": map[string]string{"firstname": "Alice"}},
			field: "email",
		},
		{
			name:  "weak password",
			path:  "/api/v1/users/register",
			body:  map[string]any{"email": "bob@example.com", "password": "weakpass", "fullname": map[string]string{"firstname": "Bob"}},
			field: "password",
		},
		{
			name:  "short first name",
			path:  "/api/v1/users/register",
			body:  map[string]any{"email": "bob@example.com", "password": testPassword, "fullname": map[string]string{"firstname": "Bo"}},
			field: "firstname",
		},
		{
			name:  "non numeric code",
			path:  "/api/v1/users/verify-email",
			body:  map[string]string{"email": "bob@example.com", "code": "12ab56"},
			field: "code",
		},
		{
			name: "confirmation mismatch",
			path: "/api/v1/users/reset-password",
			body: map[string]string{
				"email": "bob@example.com", "token": resetSecret, "code": testCode,
				"newPassword": newPassword, "confirmPassword": "Other!Pass1",
			},
			field: "confirmPassword",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := s.do(request{method: http.MethodPost, path: tc.path, body: tc.body})
			s.expect(resp, http.StatusBadRequest, "ValidationError")
			if resp.body["field"] != tc.field {
				t.Fatalf("expected field %s, got %v (%s)", tc.field, resp.body["field"], resp.raw)
			}
			if msg, _ := resp.body["error"].(string); msg == "" {
				t.Fatalf("expected error message, got %s", resp.raw)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t)

	resp := s.profile("")
	s.expect(resp, http.StatusUnauthorized, "Unauthorized")
	if resp.body["error"] != "Not authorized, no token" {
		t.Fatalf("unexpected message: %v", resp.body["error"])
	}
	if resp.body["trace_id"] == "" || resp.body["trace_id"] == nil {
		t.Fatalf("expected trace id in error body: %s", resp.raw)
	}

	garbage := s.profile("not-a-jwt")
	s.expect(garbage, http.StatusUnauthorized, "Unauthorized")

	status := s.do(request{method: http.MethodGet, path: "/api/v1/users/auth-status", token: "not-a-jwt"})
	s.expect(status, http.StatusOK, "")
	if status.body["isAuthenticated"] != false {
		t.Fatalf("expected signed-out status, got %v", status.body)
	}
}

func TestRejectedCookieFallsBackToBearer(t *testing.T) {
	s := newServer(t)
	email := "frank@example.com"
	s.register(email)
	s.verify(email)
	stale := s.login(email, testPassword)
	fresh := s.login(email, testPassword)

	s.expect(s.do(request{method: http.MethodPost, path: "/api/v1/users/logout", token: stale}), http.StatusOK, "")

	for _, cookie := range []string{stale, "not-a-jwt"} {
		resp := s.do(request{method: http.MethodGet, path: "/api/v1/users/profile", cookie: cookie, token: fresh})
		s.expect(resp, http.StatusOK, "")

		status := s.do(request{method: http.MethodGet, path: "/api/v1/users/auth-status", cookie: cookie, token: fresh})
		s.expect(status, http.StatusOK, "")
		if status.body["isAuthenticated"] != true {
			t.Fatalf("expected signed-in status with cookie %q, got %v", cookie, status.body)
		}
	}

	rejected := s.do(request{method: http.MethodGet, path: "/api/v1/users/profile", cookie: stale, token: "not-a-jwt"})
	s.expect(rejected, http.StatusUnauthorized, "Unauthorized")
}

func TestForgotPasswordResponsesAreIndistinguishable(t *testing.T) {
	s := newServer(t)
	email := "carol@example.com"
	s.register(email)
	s.verify(email)
	oldToken := s.login(email, testPassword)
	sentBefore := s.mail.count()

	known := s.do(request{method: http.MethodPost, path: "/api/v1/users/forgot-password", body: map[string]string{"email": email}})
	unknown := s.do(request{method: http.MethodPost, path: "/api/v1/users/forgot-password", body: map[string]string{"email": "nobody@example.com"}})
	s.expect(known, http.StatusOK, "")
	s.expect(unknown, http.StatusOK, "")
	if known.raw != unknown.raw {
		t.Fatalf("responses differ:\nknown:   %s\nunknown: %s", known.raw, unknown.raw)
	}
	if got := s.mail.count() - sentBefore; got != 1 {
		t.Fatalf("expected exactly one reset email, got %d", got)
	}

	badToken := s.do(request{method: http.MethodPost, path: "/api/v1/users/verify-reset-token", body: map[string]string{"email": email, "token": "guess", "code": testCode}})
	s.expect(badToken, http.StatusBadRequest, "InvalidOrExpiredCode")

	verified := s.do(request{method: http.MethodPost, path: "/api/v1/users/verify-reset-token", body: map[string]string{"email": email, "token": resetSecret, "code": testCode}})
	s.expect(verified, http.StatusOK, "")

	reset := s.do(request{method: http.MethodPost, path: "/api/v1/users/reset-password", body: map[string]string{
		"email": email, "token": resetSecret, "code": testCode,
		"newPassword": newPassword, "confirmPassword": newPassword,
	}})
	s.expect(reset, http.StatusOK, "")

	s.expect(s.profile(oldToken), http.StatusUnauthorized, "Unauthorized")

	replay := s.do(request{method: http.MethodPost, path: "/api/v1/users/reset-password", body: map[string]string{
		"email": email, "token": resetSecret, "code": testCode,
		"newPassword": "An0ther!Pass", "confirmPassword": "An0ther!Pass",
	}})
	s.expect(replay, http.StatusBadRequest, "InvalidOrExpiredCode")

	s.login(email, newPassword)
}

func TestChangePasswordKeepsCallerSession(t *testing.T) {
	s := newServer(t)
	email := "dave@example.com"
	s.register(email)
	s.verify(email)
	laptop := s.login(email, testPassword)
	phone := s.login(email, testPassword)

	wrong := s.do(request{method: http.MethodPost, path: "/api/v1/users/change-password", token: laptop, body: map[string]string{
		"currentPassword": "Wr0ng!Pass", "newPassword": newPassword, "confirmPassword": newPassword,
	}})
	s.expect(wrong, http.StatusUnauthorized, "WrongPassword")

	same := s.do(request{method: http.MethodPost, path: "/api/v1/users/change-password", token: laptop, body: map[string]string{
		"currentPassword": testPassword, "newPassword": testPassword, "confirmPassword": testPassword,
	}})
	s.expect(same, http.StatusBadRequest, "SamePassword")

	changed := s.do(request{method: http.MethodPost, path: "/api/v1/users/change-password", token: laptop, body: map[string]string{
		"currentPassword": testPassword, "newPassword": newPassword, "confirmPassword": newPassword,
	}})
	s.expect(changed, http.StatusOK, "")

	s.expect(s.profile(laptop), http.StatusOK, "")
	s.expect(s.profile(phone), http.StatusUnauthorized, "Unauthorized")

	old := s.do(request{method: http.MethodPost, path: "/api/v1/users/login", body: map[string]string{"email": email, "password": testPassword}})
	s.expect(old, http.StatusUnauthorized, "InvalidCredentials")
}

func TestRefreshLogoutAndLogoutAll(t *testing.T) {
	s := newServer(t)
	email := "erin@example.com"
	s.register(email)
	s.verify(email)
	first := s.login(email, testPassword)
	other := s.login(email, testPassword)

	refreshed := s.do(request{method: http.MethodPost, path: "/api/v1/users/refresh-token", cookie: first})
	s.expect(refreshed, http.StatusOK, "")
	next, _ := refreshed.body["token"].(string)
	if next == "" || next == first {
		t.Fatalf("expected a new token, got %q", next)
	}
	if c := sessionCookie(refreshed); c == nil || c.Value != next {
		t.Fatalf("expected refreshed cookie, got %+v", c)
	}
	s.expect(s.profile(first), http.StatusUnauthorized, "Unauthorized")
	s.expect(s.profile(next), http.StatusOK, "")

	logout := s.do(request{method: http.MethodPost, path: "/api/v1/users/logout", token: next})
	s.expect(logout, http.StatusOK, "")
	if c := sessionCookie(logout); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", c)
	}
	s.expect(s.profile(next), http.StatusUnauthorized, "Unauthorized")
	s.expect(s.profile(other), http.StatusOK, "")

	third := s.login(email, testPassword)
	all := s.do(request{method: http.MethodPost, path: "/api/v1/users/logout-all", token: third})
	s.expect(all, http.StatusOK, "")
	s.expect(s.profile(third), http.StatusUnauthorized, "Unauthorized")
	s.expect(s.profile(other), http.StatusUnauthorized, "Unauthorized")

	s.expect(s.profile(s.login(email, testPassword)), http.StatusOK, "")
}

func TestUpdateProfileAndDeleteAccount(t *testing.T) {
	s := newServer(t)
	email := "frank@example.com"
	s.register(email)
	s.verify(email)
	token := s.login(email, testPassword)

	updated := s.do(request{method: http.MethodPut, path: "/api/v1/users/profile/update", token: token, body: map[string]any{
		"fullname": map[string]string{"firstname": "Franklin", "lastname": "Jones"},
	}})
	s.expect(updated, http.StatusOK, "")
	user, _ := updated.body["user"].(map[string]any)
	name, _ := user["fullname"].(map[string]any)
	if name["firstname"] != "Franklin" || name["lastname"] != "Jones" {
		t.Fatalf("unexpected name: %v", name)
	}

	wrong := s.do(request{method: http.MethodDelete, path: "/api/v1/users/account", token: token, body: map[string]string{"password": "Wr0ng!Pass"}})
	s.expect(wrong, http.StatusUnauthorized, "WrongPassword")

	deleted := s.do(request{method: http.MethodDelete, path: "/api/v1/users/account", token: token, body: map[string]string{"password": testPassword}})
	s.expect(deleted, http.StatusOK, "")

	s.expect(s.profile(token), http.StatusUnauthorized, "Unauthorized")
	gone := s.do(request{method: http.MethodPost, path: "/api/v1/users/login", body: map[string]string{"email": email, "password": testPassword}})
	s.expect(gone, http.StatusUnauthorized, "InvalidCredentials")
}
