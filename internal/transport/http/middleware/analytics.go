package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// VisitorCookie carries an opaque visitor id set by the portal frontend.
const VisitorCookie = "portal_visitor"

// HitTracker records request analytics.
type HitTracker interface {
	Track(ctx context.Context, hit domain.AnalyticsHit)
}

// TrackRequests records one analytics hit per handled request. Paths in skip are ignored.
func TrackRequests(tracker HitTracker, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}

	return func(c *gin.Context) {
		c.Next()

		if tracker == nil {
			return
		}
		if _, ok := skipped[c.Request.URL.Path]; ok {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}

		tracker.Track(context.WithoutCancel(c.Request.Context()), domain.AnalyticsHit{
			Host:      requestHost(c),
			Path:      path,
			Status:    c.Writer.Status(),
			VisitorID: VisitorID(c),
			Referrer:  c.Request.Referer(),
		})
	}
}

// VisitorID prefers the visitor cookie and otherwise derives a stable id from the
// client IP and user agent, so raw addresses never reach the counters.
func VisitorID(c *gin.Context) string {
	if cookie, err := c.Cookie(VisitorCookie); err == nil {
		if cookie = strings.TrimSpace(cookie); cookie != "" && len(cookie) <= 128 {
			return cookie
		}
	}

	sum := sha256.Sum256([]byte(c.ClientIP() + "|" + c.Request.UserAgent()))
	return hex.EncodeToString(sum[:16])
}

func requestHost(c *gin.Context) string {
	host := c.Request.Host
	if forwarded := c.GetHeader("X-Forwarded-Host"); forwarded != "" {
		host, _, _ = strings.Cut(forwarded, ",")
	}
	host = strings.TrimSpace(host)
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.ToLower(host)
}
