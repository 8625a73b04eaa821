package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-auth-service/internal/infra/config"
)

const defaultCookieName = "token"

// SessionCookie writes and clears the HttpOnly cookie that carries the session token.
type SessionCookie struct {
	name     string
	domain   string
	secure   bool
	sameSite http.SameSite
	maxAge   time.Duration
}

// NewSessionCookie builds a cookie writer whose lifetime matches the token TTL.
func NewSessionCookie(cfg config.CookieSettings, maxAge time.Duration) SessionCookie {
	name := cfg.Name
	if name == "" {
		name = defaultCookieName
	}
	return SessionCookie{
		name:     name,
		domain:   cfg.Domain,
		secure:   cfg.Secure,
		sameSite: parseSameSite(cfg.SameSite),
		maxAge:   maxAge,
	}
}

// Name returns the cookie name.
func (s SessionCookie) Name() string {
	return s.name
}

// Set stores token in the session cookie.
func (s SessionCookie) Set(c *gin.Context, token string) {
	c.SetSameSite(s.sameSite)
	c.SetCookie(s.name, token, int(s.maxAge/time.Second), "/", s.domain, s.secure, true)
}

// Clear expires the session cookie.
func (s SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(s.sameSite)
	c.SetCookie(s.name, "", -1, "/", s.domain, s.secure, true)
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
