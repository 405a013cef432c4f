package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khepriforge/auth-service/internal/transport/http/middleware"
	"github.com/khepriforge/auth-service/internal/usecase"
)

// UserHandler exposes the authenticated account-management endpoints.
type UserHandler struct {
	passwords *usecase.PasswordService
	twoFactor *usecase.TwoFactorService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(passwords *usecase.PasswordService, twoFactor *usecase.TwoFactorService) *UserHandler {
	return &UserHandler{passwords: passwords, twoFactor: twoFactor}
}

// RegisterRoutes binds user routes. The group must already require a session.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/change-password", h.changePassword)
	r.POST("/force-password-change", h.forcePasswordChange)
	r.GET("/2fa/generate-secret", h.generateTwoFactorSecret)
	r.POST("/2fa/enable", h.enableTwoFactor)
	r.POST("/2fa/disable", h.disableTwoFactor)
}

// ChangePassword godoc
// @Summary Change the account password
// @Description Rotates the password after verifying the current one. The session must be re-established afterwards.
// @Tags User
// @Accept json
// @Produce json
// @Param request body PasswordChangeRequest true "Password change payload"
// @Success 200 {object} PasswordChangeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/user/change-password [post]
func (h *UserHandler) changePassword(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "current_password and new_password are required"))
		return
	}

	if err := h.passwords.ChangePassword(c.Request.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrInvalidCurrentPassword, Status: http.StatusBadRequest, Message: "current password is incorrect"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:        "Password changed successfully",
		ReauthRequired: true,
	})
}

// ForcePasswordChange godoc
// @Summary Complete the forced first-login rotation
// @Description Sets a new password for an account flagged with force_password_change. No current password is required.
// @Tags User
// @Accept json
// @Produce json
// @Param request body ForcePasswordChangeRequest true "Forced rotation payload"
// @Success 200 {object} PasswordChangeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/user/force-password-change [post]
func (h *UserHandler) forcePasswordChange(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ForcePasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "new_password is required"))
		return
	}

	if err := h.passwords.ForcePasswordChange(c.Request.Context(), accountID, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:        "Password changed successfully",
		ReauthRequired: true,
	})
}

// GenerateTwoFactorSecret godoc
// @Summary Start two-factor enrollment
// @Description Generates a TOTP secret and provisioning URI. Nothing is persisted until a code is verified.
// @Tags User
// @Produce json
// @Success 200 {object} TwoFactorSecretResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/user/2fa/generate-secret [get]
func (h *UserHandler) generateTwoFactorSecret(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	enrollment, err := h.twoFactor.GenerateSecret(c.Request.Context(), accountID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor authentication is already enabled"},
		}, http.StatusInternalServerError, "failed to generate secret")
		return
	}

	c.JSON(http.StatusOK, TwoFactorSecretResponse{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
	})
}

// EnableTwoFactor godoc
// @Summary Enable two-factor authentication
// @Description Verifies the code against the pending secret and activates two-factor, returning single-use backup codes.
// @Tags User
// @Accept json
// @Produce json
// @Param request body TwoFactorEnableRequest true "Verification code payload"
// @Success 200 {object} TwoFactorEnableResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/user/2fa/enable [post]
func (h *UserHandler) enableTwoFactor(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "code is required"))
		return
	}

	backupCodes, err := h.twoFactor.Enable(c.Request.Context(), accountID, req.Code)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidTwoFactorCode) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification code"))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor authentication is already enabled"},
			{Err: usecase.ErrNoPendingEnrollment, Status: http.StatusBadRequest, Message: "generate a secret before enabling"},
		}, http.StatusInternalServerError, "failed to enable two-factor authentication")
		return
	}

	c.JSON(http.StatusOK, TwoFactorEnableResponse{
		Message:     "Two-factor authentication enabled",
		BackupCodes: backupCodes,
	})
}

// DisableTwoFactor godoc
// @Summary Disable two-factor authentication
// @Description Clears the secret, backup codes, and enabled flag. Idempotent.
// @Tags User
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/user/2fa/disable [post]
func (h *UserHandler) disableTwoFactor(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.twoFactor.Disable(c.Request.Context(), accountID); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to disable two-factor authentication"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Two-factor authentication disabled"})
}
