package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/transport/http/middleware"
	"github.com/arklim/portal-identity/internal/usecase"
)

// ContactHandler accepts public contact-form submissions.
type ContactHandler struct {
	contacts ContactInbox
}

// NewContactHandler constructs ContactHandler.
func NewContactHandler(contacts ContactInbox) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// Submit stores a message. Signed-in senders are linked to their account.
func (h *ContactHandler) Submit(c *gin.Context) {
	var req ContactRequest
	if !bindJSON(c, &req) {
		return
	}

	input := usecase.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
		Client:  middleware.ClientInfo(c),
	}
	if account, found := middleware.CurrentAccount(c); found {
		input.AccountID = &account.ID
	}

	msg, err := h.contacts.Submit(c.Request.Context(), input)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "thank you, your message has been received",
		Data:    gin.H{"id": msg.ID},
	})
}
