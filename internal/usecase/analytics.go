package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/repository"
)

const (
	defaultSummaryWindow = 24 * time.Hour
	maxTrackedPathLength = 512
)

// AnalyticsService records request hits and builds reporting summaries.
type AnalyticsService struct {
	store  port.AnalyticsStore
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(store port.AnalyticsStore, log *zap.Logger) *AnalyticsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalyticsService{store: store, logger: log, now: time.Now}
}

// WithClock allows tests to override the clock used by the service.
func (s *AnalyticsService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Track records a hit. Failures are logged and never surface to the caller.
func (s *AnalyticsService) Track(ctx context.Context, hit domain.AnalyticsHit) {
	if hit.At.IsZero() {
		hit.At = s.now()
	}
	hit.Path = normalizePath(hit.Path)

	if err := s.store.Record(ctx, hit); err != nil {
		s.logger.Warn("analytics hit not recorded", zap.String("path", hit.Path), zap.Error(err))
	}
}

// Summary aggregates hourly buckets over [from, to). Zero bounds default to the last 24 hours.
func (s *AnalyticsService) Summary(ctx context.Context, actor domain.Account, from, to time.Time) (*domain.AnalyticsSummary, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-defaultSummaryWindow)
	}
	from, to = from.UTC(), to.UTC()
	if !to.After(from) {
		return nil, ErrInvalidRange
	}

	buckets, err := s.store.Buckets(ctx, from, to)
	if err != nil {
		if errors.Is(err, repository.ErrRangeTooWide) {
			return nil, ErrInvalidRange
		}
		return nil, fmt.Errorf("read analytics buckets: %w", err)
	}
	visitors, err := s.store.UniqueVisitors(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("count unique visitors: %w", err)
	}

	summary := &domain.AnalyticsSummary{
		From:     from,
		To:       to,
		Visitors: visitors,
		ByHost:   map[string]int64{},
		ByPath:   map[string]int64{},
		ByStatus: map[string]int64{},
		Buckets:  buckets,
	}
	for _, bucket := range buckets {
		summary.Requests += bucket.Requests
		mergeCounts(summary.ByHost, bucket.ByHost)
		mergeCounts(summary.ByPath, bucket.ByPath)
		mergeCounts(summary.ByStatus, bucket.ByStatus)
	}
	return summary, nil
}

func mergeCounts(dst, src map[string]int64) {
	for key, value := range src {
		dst[key] += value
	}
}

// normalizePath drops the query string and bounds the length so a client cannot
// inflate the hash with unbounded field names.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = "/"
	}
	if len(path) > maxTrackedPathLength {
		path = path[:maxTrackedPathLength]
	}
	return path
}
