package port

import (
	"context"
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// AnalyticsStore records hits into hourly buckets and reads them back.
type AnalyticsStore interface {
	Record(ctx context.Context, hit domain.AnalyticsHit) error
	// Buckets returns one bucket per hour in [from, to), including empty hours.
	Buckets(ctx context.Context, from, to time.Time) ([]domain.AnalyticsBucket, error)
	// UniqueVisitors estimates distinct visitors across the whole range.
	UniqueVisitors(ctx context.Context, from, to time.Time) (int64, error)
}
