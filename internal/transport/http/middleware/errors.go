package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/infra/telemetry"
)

const (
	errorDetailKey = "expose_error_detail"

	// CodeInternal is returned for unclassified failures.
	CodeInternal = "InternalError"
	// CodeRateLimited is returned when a sliding-window rule rejects a request.
	CodeRateLimited = "RateLimited"
)

// APIError is the error member of the failure envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorEnvelope is the body of every failed API response.
type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
	TraceID string   `json:"traceId,omitempty"`
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindLocked:
		return http.StatusLocked
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorDetail controls whether raw internal error text is attached to responses.
// Enable outside production only.
func ErrorDetail(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(errorDetailKey, enabled)
		c.Next()
	}
}

// NewErrorEnvelope builds a failure body carrying the request trace id.
func NewErrorEnvelope(c *gin.Context, code, message string) ErrorEnvelope {
	return ErrorEnvelope{
		Error:   APIError{Code: code, Message: message},
		TraceID: GetTraceID(c),
	}
}

// AbortWithError writes the failure envelope for err and stops the chain. Classified
// errors expose their own message; anything else is logged, reported and answered
// with a generic message.
func AbortWithError(c *gin.Context, err error) {
	status, envelope := errorResponse(c, err)
	c.AbortWithStatusJSON(status, envelope)
}

// WriteError writes the failure envelope for err without aborting.
func WriteError(c *gin.Context, err error) {
	status, envelope := errorResponse(c, err)
	c.JSON(status, envelope)
}

func errorResponse(c *gin.Context, err error) (int, ErrorEnvelope) {
	kind := domain.KindOf(err)
	status := StatusForKind(kind)

	if message, ok := domain.MessageOf(err); ok && kind != domain.KindInternal {
		return status, NewErrorEnvelope(c, domain.CodeOf(err), message)
	}

	_ = c.Error(err)
	telemetry.CaptureError(err)

	envelope := NewErrorEnvelope(c, CodeInternal, "an unexpected error occurred")
	if c.GetBool(errorDetailKey) {
		envelope.Error.Detail = err.Error()
	}
	return status, envelope
}
