package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/infra/telemetry"
)

// Recovery turns panics into a 500 envelope, logging and reporting them first.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		err := fmt.Errorf("panic recovered: %v", recovered)
		log.Error("panic recovered",
			zap.String("trace_id", GetTraceID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		telemetry.CaptureError(err)

		c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorEnvelope(c, CodeInternal, "an unexpected error occurred"))
	})
}
