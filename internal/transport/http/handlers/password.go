package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/transport/http/middleware"
	"github.com/arklim/portal-identity/internal/usecase"
)

const forgotPasswordMessage = "if an account exists for this email, a reset link has been sent"

// ForgotPassword godoc
// @Summary Request a password reset link
// @Description Always answers with the same message so the response never reveals whether the address is registered.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Reset request"
// @Success 200 {object} SuccessResponse
// @Failure 503 {object} middleware.ErrorEnvelope
// @Router /api/v1/auth/password/forgot [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.passwords.RequestReset(c.Request.Context(), req.Email, middleware.ClientInfo(c))
	h.record("password_forgot", err)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, okMessage(forgotPasswordMessage))
}

// ResetPassword godoc
// @Summary Set a new password with a reset token
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset payload"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} middleware.ErrorEnvelope
// @Router /api/v1/auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.passwords.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Token:       req.Token,
		NewPassword: req.NewPassword,
	})
	h.record("password_reset", err)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	h.cookies.clearSessionCookies(c)
	c.JSON(http.StatusOK, okMessage("password has been reset, sign in with the new password"))
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Tags Password
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body ChangePasswordRequest true "Change payload"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} middleware.ErrorEnvelope
// @Failure 401 {object} middleware.ErrorEnvelope
// @Router /api/v1/auth/password/change [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	account, found := currentAccount(c)
	if !found {
		return
	}

	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.passwords.ChangePassword(c.Request.Context(), usecase.ChangePasswordInput{
		AccountID:       account.ID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	h.record("password_change", err)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, okMessage("password changed, other sessions have been signed out"))
}
