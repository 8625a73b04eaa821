package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/transport/http/middleware"
	"github.com/arklim/account-auth-service/internal/usecase"
)

// AuthHandler serves registration, verification and session endpoints.
type AuthHandler struct {
	auth   *usecase.AuthService
	cookie SessionCookie
	logger *zap.Logger
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(auth *usecase.AuthService, cookie SessionCookie, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie, logger: logger}
}

// RegisterRoutes wires the auth endpoints. requireAuth guards the session endpoints.
func (h *AuthHandler) RegisterRoutes(group *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	group.POST("/register", h.Register)
	group.POST("/login", h.Login)
	group.POST("/verify-email", h.VerifyEmail)
	group.POST("/resend-verification", h.ResendVerification)
	group.GET("/auth-status", h.AuthStatus)

	group.POST("/logout", requireAuth, h.Logout)
	group.POST("/logout-all", requireAuth, h.LogoutAll)
	group.POST("/refresh-token", requireAuth, h.RefreshToken)
}

// Register creates an unverified account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:     req.Email,
		FirstName: req.FullName.FirstName,
		LastName:  req.FullName.LastName,
		Password:  req.Password,
	})
	if err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	h.cookie.Set(c, result.Token.Value)
	c.JSON(http.StatusCreated, AuthResponse{
		Message: "Registration successful. Please check your email for verification code.",
		Token:   result.Token.Value,
		User:    newUserResponse(result.User),
	})
}

// Login exchanges email and password for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	h.cookie.Set(c, result.Token.Value)
	c.JSON(http.StatusOK, AuthResponse{
		Message: "Login successful",
		Token:   result.Token.Value,
		User:    newUserResponse(result.User),
	})
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	if err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.Code); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Email verified successfully"})
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Verification code resent successfully. Please check your email."})
}

// AuthStatus never fails; a missing or rejected token reports signed out.
func (h *AuthHandler) AuthStatus(c *gin.Context) {
	for _, token := range middleware.TokensFromRequest(c, h.cookie.Name()) {
		if user, ok := h.auth.AuthStatus(c.Request.Context(), token); ok {
			c.JSON(http.StatusOK, AuthStatusResponse{IsAuthenticated: true, User: newUserResponse(user)})
			return
		}
	}
	c.JSON(http.StatusOK, AuthStatusResponse{IsAuthenticated: false})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := requireSession(c, h.logger)
	if !ok {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), session); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	h.cookie.Clear(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) LogoutAll(c *gin.Context) {
	session, ok := requireSession(c, h.logger)
	if !ok {
		return
	}

	if err := h.auth.LogoutAll(c.Request.Context(), session); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	h.cookie.Clear(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out from all devices successfully"})
}

// RefreshToken issues a fresh token and revokes the one held in the cookie.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	session, ok := requireSession(c, h.logger)
	if !ok {
		return
	}

	previous, _ := c.Cookie(h.cookie.Name())
	token, err := h.auth.RefreshToken(c.Request.Context(), session, previous)
	if err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	h.cookie.Set(c, token.Value)
	c.JSON(http.StatusOK, TokenResponse{Message: "Token refreshed successfully", Token: token.Value})
}

func requireSession(c *gin.Context, log *zap.Logger) (*usecase.Session, bool) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		RespondWithError(c, log, usecase.ErrUnauthorized)
		return nil, false
	}
	return session, true
}
