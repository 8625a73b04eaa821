package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/usecase"
)

// PasswordHandler serves the forgot-password and change-password flows.
type PasswordHandler struct {
	passwords *usecase.PasswordService
	logger    *zap.Logger
}

// NewPasswordHandler constructs a password handler.
func NewPasswordHandler(passwords *usecase.PasswordService, logger *zap.Logger) *PasswordHandler {
	return &PasswordHandler{passwords: passwords, logger: logger}
}

// RegisterRoutes wires the password endpoints.
func (h *PasswordHandler) RegisterRoutes(group *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	group.POST("/forgot-password", h.ForgotPassword)
	group.POST("/verify-reset-token", h.VerifyResetToken)
	group.POST("/reset-password", h.ResetPassword)
	group.POST("/change-password", requireAuth, h.ChangePassword)
}

// ForgotPassword answers identically whether or not the address is registered.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	h.passwords.RequestPasswordReset(c.Request.Context(), req.Email)

	c.JSON(http.StatusOK, MessageResponse{Message: "If your email is registered, you will receive reset instructions."})
}

func (h *PasswordHandler) VerifyResetToken(c *gin.Context) {
	var req VerifyResetRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	if err := h.passwords.VerifyResetCredentials(c.Request.Context(), req.Email, req.Token, req.Code); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Reset credentials verified successfully"})
}

func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	err := h.passwords.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Email:       req.Email,
		Token:       req.Token,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password reset successful. Please login with your new password."})
}

// ChangePassword keeps the caller's session and revokes every other one.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	session, ok := requireSession(c, h.logger)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	if err := h.passwords.ChangePassword(c.Request.Context(), session, req.CurrentPassword, req.NewPassword); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}
