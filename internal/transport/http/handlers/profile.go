package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/usecase"
)

// ProfileHandler serves the authenticated account endpoints.
type ProfileHandler struct {
	profiles *usecase.ProfileService
	cookie   SessionCookie
	logger   *zap.Logger
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(profiles *usecase.ProfileService, cookie SessionCookie, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, cookie: cookie, logger: logger}
}

// RegisterRoutes wires the profile endpoints behind requireAuth.
func (h *ProfileHandler) RegisterRoutes(group *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	group.GET("/profile", requireAuth, h.Profile)
	group.PUT("/profile/update", requireAuth, h.UpdateProfile)
	group.DELETE("/account", requireAuth, h.DeleteAccount)
}

func (h *ProfileHandler) Profile(c *gin.Context) {
	session, ok := requireSession(c, h.logger)
	if !ok {
		return
	}

	user, err := h.profiles.Profile(c.Request.Context(), session)
	if err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{User: newUserResponse(user)})
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	session, ok := requireSession(c, h.logger)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	user, err := h.profiles.UpdateProfile(c.Request.Context(), session, req.FullName.FirstName, req.FullName.LastName)
	if err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{Message: "Profile updated successfully", User: newUserResponse(user)})
}

// DeleteAccount removes the caller's account after re-checking the password.
func (h *ProfileHandler) DeleteAccount(c *gin.Context) {
	session, ok := requireSession(c, h.logger)
	if !ok {
		return
	}

	var req DeleteAccountRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	if err := h.profiles.DeleteAccount(c.Request.Context(), session, req.Password); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	h.cookie.Clear(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "Account deleted successfully"})
}
