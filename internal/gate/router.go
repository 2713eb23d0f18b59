package gate

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/transport/http/middleware"
)

// Internal endpoints live under a prefix upstream sites are unlikely to use.
const (
	HealthPath  = "/_gate/healthz"
	MetricsPath = "/_gate/metrics"
)

// RouterDependencies wires the gate into a gin engine.
type RouterDependencies struct {
	Gate     *Gate
	Logger   *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
}

// NewRouter returns the gate engine. Every request outside the internal endpoints
// goes through the access decision.
func NewRouter(deps RouterDependencies) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.EnrichContext(),
		middleware.Recovery(deps.Logger),
		middleware.RequestID(),
		middleware.Logger(deps.Logger),
		deps.Metrics.Handler(),
	)

	engine.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		engine.GET(MetricsPath, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	engine.NoRoute(deps.Gate.Handle)
	return engine
}
