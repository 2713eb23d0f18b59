package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/transport/http/middleware"
	"github.com/arklim/portal-identity/internal/usecase"
)

// AccessHandler serves resource discovery, access requests and access checks.
type AccessHandler struct {
	access AccessManager
}

// NewAccessHandler constructs AccessHandler.
func NewAccessHandler(access AccessManager) *AccessHandler {
	return &AccessHandler{access: access}
}

// RegisterRoutes binds /access routes. Everything except the resource list requires authentication.
func (h *AccessHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	r.GET("/resources", h.ListResources)
	r.POST("/requests", requireAuth, h.Submit)
	r.GET("/requests", requireAuth, h.ListMine)
	r.GET("/check/:resource", requireAuth, h.Check)
}

// ListResources returns the protected resources a caller may request.
func (h *AccessHandler) ListResources(c *gin.Context) {
	resources := h.access.ListResources()
	out := make([]ResourcePayload, 0, len(resources))
	for _, res := range resources {
		out = append(out, ResourcePayload{ID: res.ID, Description: res.Description})
	}
	c.JSON(http.StatusOK, success(out))
}

// Submit files a pending access request for the caller.
func (h *AccessHandler) Submit(c *gin.Context) {
	caller, found := currentAccount(c)
	if !found {
		return
	}

	var req AccessRequest
	if !bindJSON(c, &req) {
		return
	}

	grant, err := h.access.Submit(c.Request.Context(), usecase.SubmitAccessInput{
		AccountID: caller.ID,
		Resource:  req.Resource,
		Reason:    req.Reason,
		Client:    middleware.ClientInfo(c),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "access request submitted",
		Data:    newGrantPayload(*grant),
	})
}

// ListMine returns the caller's requests, newest first.
func (h *AccessHandler) ListMine(c *gin.Context) {
	caller, found := currentAccount(c)
	if !found {
		return
	}

	limit, offset, valid := pagination(c)
	if !valid {
		return
	}

	page, err := h.access.ListMine(c.Request.Context(), caller.ID, limit, offset)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(newGrantList(page)))
}

// Check answers whether the caller currently holds an active grant for the resource.
func (h *AccessHandler) Check(c *gin.Context) {
	caller, found := currentAccount(c)
	if !found {
		return
	}

	check, err := h.access.Check(c.Request.Context(), caller, c.Param("resource"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	response := AccessCheckResponse{
		Success:   true,
		Resource:  check.Resource,
		HasAccess: check.HasAccess,
		Reason:    check.Reason,
		CheckedAt: check.CheckedAt,
	}
	if check.Grant != nil {
		grant := newGrantPayload(*check.Grant)
		response.Grant = &grant
	}
	c.JSON(http.StatusOK, response)
}
