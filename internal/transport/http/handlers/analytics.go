package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/transport/http/middleware"
)

// AnalyticsHandler records client page views.
type AnalyticsHandler struct {
	analytics AnalyticsReporter
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics AnalyticsReporter) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Track records one page view. Storage failures never reach the client.
func (h *AnalyticsHandler) Track(c *gin.Context) {
	var req TrackRequest
	if !bindJSON(c, &req) {
		return
	}

	path := strings.TrimSpace(req.Path)
	if path == "" {
		RespondWithError(c, domain.NewError(domain.KindValidation, "MissingField", "path is required"))
		return
	}

	host := strings.TrimSpace(req.Host)
	if host == "" {
		host = c.Request.Host
	}

	h.analytics.Track(c.Request.Context(), domain.AnalyticsHit{
		Host:      host,
		Path:      path,
		Status:    http.StatusOK,
		VisitorID: middleware.VisitorID(c),
		Referrer:  req.Referrer,
	})

	c.JSON(http.StatusAccepted, okMessage("tracked"))
}
