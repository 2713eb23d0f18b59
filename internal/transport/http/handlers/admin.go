package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/usecase"
)

var errInvalidPurgeQuery = domain.NewError(domain.KindValidation, "InvalidQuery", "before must be an RFC3339 timestamp")

// AdminHandler exposes account, access, contact and analytics administration.
type AdminHandler struct {
	accounts  AccountManager
	access    AccessManager
	contacts  ContactInbox
	analytics AnalyticsReporter
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(accounts AccountManager, access AccessManager, contacts ContactInbox, analytics AnalyticsReporter) *AdminHandler {
	return &AdminHandler{
		accounts:  accounts,
		access:    access,
		contacts:  contacts,
		analytics: analytics,
	}
}

// RegisterRoutes binds admin routes. The group must already require an admin caller.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	accounts := r.Group("/accounts")
	accounts.GET("", h.ListAccounts)
	accounts.GET("/:id", h.GetAccount)
	accounts.PATCH("/:id/role", h.ChangeRole)
	accounts.PATCH("/:id/status", h.ChangeStatus)
	accounts.DELETE("/:id", h.DeleteAccount)

	access := r.Group("/access")
	access.GET("/requests", h.ListGrants)
	access.GET("/stats", h.GrantStats)
	access.POST("/requests/:id/approve", h.Approve)
	access.POST("/requests/:id/deny", h.Deny)
	access.POST("/requests/:id/revoke", h.Revoke)
	access.DELETE("/requests", h.PurgeGrants)

	r.GET("/contacts", h.ListContacts)
	r.PATCH("/contacts/:id", h.UpdateContact)

	r.GET("/analytics/summary", h.AnalyticsSummary)
}

// ListAccounts filters accounts by role, status and a free-text search.
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	limit, offset, valid := pagination(c)
	if !valid {
		return
	}

	filter := domain.AccountFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  limit,
		Offset: offset,
	}
	if raw := optionalQuery(c, "role"); raw != nil {
		role := domain.Role(*raw)
		if !role.Valid() {
			RespondWithError(c, usecase.ErrInvalidRole)
			return
		}
		filter.Role = &role
	}
	if raw := optionalQuery(c, "status"); raw != nil {
		status := domain.AccountStatus(*raw)
		if !status.Valid() {
			RespondWithError(c, usecase.ErrInvalidStatus)
			return
		}
		filter.Status = &status
	}

	page, err := h.accounts.ListAccounts(c.Request.Context(), actor, filter)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	out := make([]AccountPayload, 0, len(page.Accounts))
	for _, account := range page.Accounts {
		out = append(out, newAccountPayload(account))
	}
	c.JSON(http.StatusOK, success(AccountListResponse{
		Accounts:   out,
		Pagination: PagePayload{Total: page.Total, Limit: page.Limit, Offset: page.Offset},
	}))
}

// GetAccount returns one account.
func (h *AdminHandler) GetAccount(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newAccountPayload(*account)))
}

// ChangeRole promotes or demotes an account.
func (h *AdminHandler) ChangeRole(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	var req ChangeRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.ChangeRole(c.Request.Context(), actor, c.Param("id"), domain.Role(strings.TrimSpace(req.Role)))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newAccountPayload(*account)))
}

// ChangeStatus suspends, deactivates or reactivates an account.
func (h *AdminHandler) ChangeStatus(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	var req ChangeStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.ChangeStatus(c.Request.Context(), actor, c.Param("id"), domain.AccountStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newAccountPayload(*account)))
}

// DeleteAccount soft-deletes another account.
func (h *AdminHandler) DeleteAccount(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	if err := h.accounts.DeleteAccount(c.Request.Context(), actor, c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, okMessage("account deleted"))
}

// ListGrants filters grants by status, resource and account.
func (h *AdminHandler) ListGrants(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	limit, offset, valid := pagination(c)
	if !valid {
		return
	}

	filter := domain.GrantFilter{
		AccountID: optionalQuery(c, "accountId"),
		Limit:     limit,
		Offset:    offset,
	}
	if raw := optionalQuery(c, "status"); raw != nil {
		status := domain.GrantStatus(*raw)
		if !status.Valid() {
			RespondWithError(c, usecase.ErrInvalidStatus)
			return
		}
		filter.Status = &status
	}
	if raw := optionalQuery(c, "resource"); raw != nil {
		resource := domain.Resource(*raw)
		if !resource.Valid() {
			RespondWithError(c, usecase.ErrUnknownResource)
			return
		}
		filter.Resource = &resource
	}

	page, err := h.access.ListAll(c.Request.Context(), actor, filter)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newGrantList(page)))
}

// GrantStats counts grants per resource and status.
func (h *AdminHandler) GrantStats(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	stats, err := h.access.Stats(c.Request.Context(), actor)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(stats))
}

// Approve grants a pending request, optionally with an expiry.
func (h *AdminHandler) Approve(c *gin.Context) {
	h.review(c, h.access.Approve)
}

// Deny rejects a pending request.
func (h *AdminHandler) Deny(c *gin.Context) {
	h.review(c, h.access.Deny)
}

type reviewFunc func(ctx context.Context, actor domain.Account, grantID string, input usecase.ReviewInput) (*domain.AccessGrant, error)

func (h *AdminHandler) review(c *gin.Context, decide reviewFunc) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	var req ReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	grant, err := decide(c.Request.Context(), actor, c.Param("id"), usecase.ReviewInput{
		Message:   req.Message,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newGrantPayload(*grant)))
}

// Revoke withdraws an approved grant.
func (h *AdminHandler) Revoke(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	grant, err := h.access.Revoke(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newGrantPayload(*grant)))
}

// PurgeGrants removes reviewed grants last updated before the cutoff.
func (h *AdminHandler) PurgeGrants(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	before, err := time.Parse(time.RFC3339, strings.TrimSpace(c.Query("before")))
	if err != nil {
		RespondWithError(c, errInvalidPurgeQuery)
		return
	}

	purged, err := h.access.Purge(c.Request.Context(), actor, before)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(PurgeResponse{Purged: purged, Before: before.UTC()}))
}

// ListContacts returns contact messages, optionally filtered by status.
func (h *AdminHandler) ListContacts(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	limit, offset, valid := pagination(c)
	if !valid {
		return
	}

	filter := domain.ContactFilter{Limit: limit, Offset: offset}
	if raw := optionalQuery(c, "status"); raw != nil {
		status := domain.ContactStatus(*raw)
		if !status.Valid() {
			RespondWithError(c, usecase.ErrInvalidStatus)
			return
		}
		filter.Status = &status
	}

	page, err := h.contacts.List(c.Request.Context(), actor, filter)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	out := make([]ContactPayload, 0, len(page.Messages))
	for _, msg := range page.Messages {
		out = append(out, newContactPayload(msg))
	}
	c.JSON(http.StatusOK, success(ContactListResponse{
		Messages:   out,
		Pagination: PagePayload{Total: page.Total, Limit: page.Limit, Offset: page.Offset},
	}))
}

// UpdateContact moves a message to read, replied or archived.
func (h *AdminHandler) UpdateContact(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	var req ContactStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.contacts.UpdateStatus(c.Request.Context(), actor, c.Param("id"), domain.ContactStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newContactPayload(*msg)))
}

// AnalyticsSummary reports traffic over [from, to). Both bounds are optional RFC3339 timestamps.
func (h *AdminHandler) AnalyticsSummary(c *gin.Context) {
	actor, found := currentAccount(c)
	if !found {
		return
	}

	from, fromValid := parseOptionalTime(c.Query("from"))
	to, toValid := parseOptionalTime(c.Query("to"))
	if !fromValid || !toValid {
		RespondWithError(c, usecase.ErrInvalidRange)
		return
	}

	summary, err := h.analytics.Summary(c.Request.Context(), actor, from, to)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newAnalyticsSummary(summary)))
}

func parseOptionalTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
