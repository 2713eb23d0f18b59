package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the caller's own profile.
type AccountHandler struct {
	accounts AccountManager
	cookies  CookieConfig
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(accounts AccountManager, cookies CookieConfig) *AccountHandler {
	return &AccountHandler{accounts: accounts, cookies: cookies}
}

// RegisterRoutes binds /me routes. The group must already require authentication.
func (h *AccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.GetProfile)
	r.PATCH("", h.UpdateProfile)
	r.DELETE("", h.DeleteSelf)
}

// GetProfile returns the caller's account.
func (h *AccountHandler) GetProfile(c *gin.Context) {
	caller, found := currentAccount(c)
	if !found {
		return
	}

	account, err := h.accounts.GetProfile(c.Request.Context(), caller.ID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newAccountPayload(*account)))
}

// UpdateProfile changes names, handle, avatar or bio.
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	caller, found := currentAccount(c)
	if !found {
		return
	}

	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.UpdateProfile(c.Request.Context(), caller.ID, req.toDomain())
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newAccountPayload(*account)))
}

// DeleteSelf soft-deletes the caller and clears the session cookies.
func (h *AccountHandler) DeleteSelf(c *gin.Context) {
	caller, found := currentAccount(c)
	if !found {
		return
	}

	if err := h.accounts.DeleteSelf(c.Request.Context(), caller.ID); err != nil {
		RespondWithError(c, err)
		return
	}

	h.cookies.clearSessionCookies(c)
	c.JSON(http.StatusOK, okMessage("account deleted"))
}
