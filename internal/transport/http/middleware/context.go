package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/usecase"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// AccountKey is the context key for the authenticated account
	AccountKey = "account"
	// ValidationKey is the context key for the verified token details
	ValidationKey = "token_validation"

	requestContextKey = "request_context"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	AccountID string
	IP        string
	UserAgent string
}

// EnrichContext adds trace ID and request context to each request
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// ClientInfo returns the caller metadata recorded on sessions, grants and contact messages.
func ClientInfo(c *gin.Context) usecase.ClientInfo {
	reqCtx := GetRequestContext(c)
	return usecase.ClientInfo{IP: reqCtx.IP, UserAgent: reqCtx.UserAgent}
}

// CurrentAccount returns the account attached by RequireAuth or OptionalAuth.
func CurrentAccount(c *gin.Context) (domain.Account, bool) {
	value, exists := c.Get(AccountKey)
	if !exists {
		return domain.Account{}, false
	}
	account, ok := value.(domain.Account)
	return account, ok
}

// CurrentValidation returns the token details attached by RequireAuth.
func CurrentValidation(c *gin.Context) (*usecase.TokenValidation, bool) {
	value, exists := c.Get(ValidationKey)
	if !exists {
		return nil, false
	}
	validation, ok := value.(*usecase.TokenValidation)
	return validation, ok
}
