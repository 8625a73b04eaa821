package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-auth-service/internal/usecase"
)

// ErrorResponse is the subset of handlers.ErrorResponse written by middleware.
// Middleware failures never carry a field.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	TraceID string `json:"trace_id,omitempty"`
}

// TokensFromRequest returns the session tokens presented with the request,
// the cookie first and then the Authorization header. Duplicates are dropped.
func TokensFromRequest(c *gin.Context, cookieName string) []string {
	tokens := make([]string, 0, 2)
	if cookieName != "" {
		if value, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(value) != "" {
			tokens = append(tokens, strings.TrimSpace(value))
		}
	}

	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		if bearer := strings.TrimSpace(parts[1]); bearer != "" && (len(tokens) == 0 || tokens[0] != bearer) {
			tokens = append(tokens, bearer)
		}
	}
	return tokens
}

// TokenFromRequest returns the preferred session token, or "" when none was sent.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if tokens := TokensFromRequest(c, cookieName); len(tokens) > 0 {
		return tokens[0]
	}
	return ""
}

// Authenticate resolves the first presented token that identifies a live
// session. A rejected cookie falls through to the Authorization header; the
// first rejection is reported when none succeeds.
func Authenticate(c *gin.Context, authService *usecase.AuthService, cookieName string) (*usecase.Session, error) {
	tokens := TokensFromRequest(c, cookieName)
	if len(tokens) == 0 {
		return authService.Authenticate(c.Request.Context(), "")
	}

	var firstErr error
	for _, token := range tokens {
		session, err := authService.Authenticate(c.Request.Context(), token)
		if err == nil {
			return session, nil
		}
		if usecase.KindOf(err) == usecase.KindInternal {
			return nil, err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// RequireAuth rejects requests without a valid, unrevoked session token and
// stores the resolved session in the context.
func RequireAuth(authService *usecase.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := Authenticate(c, authService, cookieName)
		if err != nil {
			kind := usecase.KindOf(err)
			status := http.StatusUnauthorized
			message := usecase.ErrUnauthorized.Message
			if kind == usecase.KindInternal {
				status = http.StatusInternalServerError
				message = usecase.ErrInternal.Message
				_ = c.Error(err)
			}
			var uerr *usecase.Error
			if errors.As(err, &uerr) && kind != usecase.KindInternal {
				message = uerr.Message
			}
			c.AbortWithStatusJSON(status, ErrorResponse{
				Error:   message,
				Kind:    string(kind),
				TraceID: GetTraceID(c),
			})
			return
		}

		c.Set(SessionKey, session)
		c.Set(UserIDKey, session.Claims.UserID)

		c.Next()
	}
}
