package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/repository"
)

const (
	bucketLayout   = "2006010215"
	fieldRequests  = "requests"
	hostFieldPfx   = "host:"
	pathFieldPfx   = "path:"
	statusFieldPfx = "status:"

	// unionTTL bounds the scratch key's lifetime if the DEL never runs.
	unionTTL = time.Minute

	// MaxBucketRange bounds a single read to roughly one month of hourly buckets.
	MaxBucketRange = 31 * 24 * time.Hour
)

// ErrRangeTooWide is returned when a read spans more than MaxBucketRange.
var ErrRangeTooWide = repository.ErrRangeTooWide

// AnalyticsConfig configures key naming and retention.
type AnalyticsConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// AnalyticsRepository keeps hourly request counters in hashes and unique
// visitors in HyperLogLogs.
type AnalyticsRepository struct {
	client *redis.Client
	cfg    AnalyticsConfig
}

// NewAnalyticsRepository constructs a repository using the provided Redis client and config.
func NewAnalyticsRepository(client *redis.Client, cfg AnalyticsConfig) *AnalyticsRepository {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "analytics"
	}
	return &AnalyticsRepository{client: client, cfg: cfg}
}

// Record increments the counters of the hit's hour bucket in one transaction.
func (r *AnalyticsRepository) Record(ctx context.Context, hit domain.AnalyticsHit) error {
	at := hit.At
	if at.IsZero() {
		at = time.Now()
	}
	hour := at.UTC().Truncate(time.Hour)
	countersKey := r.countersKey(hour)

	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, countersKey, fieldRequests, 1)
	if host := strings.ToLower(strings.TrimSpace(hit.Host)); host != "" {
		pipe.HIncrBy(ctx, countersKey, hostFieldPfx+host, 1)
	}
	if path := strings.TrimSpace(hit.Path); path != "" {
		pipe.HIncrBy(ctx, countersKey, pathFieldPfx+path, 1)
	}
	pipe.HIncrBy(ctx, countersKey, statusFieldPfx+hit.StatusClass(), 1)
	if r.cfg.TTL > 0 {
		pipe.Expire(ctx, countersKey, r.cfg.TTL)
	}

	if hit.VisitorID != "" {
		visitorsKey := r.visitorsKey(hour)
		pipe.PFAdd(ctx, visitorsKey, hit.VisitorID)
		if r.cfg.TTL > 0 {
			pipe.Expire(ctx, visitorsKey, r.cfg.TTL)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record analytics hit: %w", err)
	}
	return nil
}

// Buckets returns one bucket per hour in [from, to).
func (r *AnalyticsRepository) Buckets(ctx context.Context, from, to time.Time) ([]domain.AnalyticsBucket, error) {
	hours, err := hourRange(from, to)
	if err != nil {
		return nil, err
	}
	if len(hours) == 0 {
		return []domain.AnalyticsBucket{}, nil
	}

	pipe := r.client.Pipeline()
	counters := make([]*redis.MapStringStringCmd, len(hours))
	visitors := make([]*redis.IntCmd, len(hours))
	for i, hour := range hours {
		counters[i] = pipe.HGetAll(ctx, r.countersKey(hour))
		visitors[i] = pipe.PFCount(ctx, r.visitorsKey(hour))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis read analytics buckets: %w", err)
	}

	buckets := make([]domain.AnalyticsBucket, 0, len(hours))
	for i, hour := range hours {
		bucket := domain.AnalyticsBucket{
			Start:    hour,
			ByHost:   map[string]int64{},
			ByPath:   map[string]int64{},
			ByStatus: map[string]int64{},
		}

		fields, err := counters[i].Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis hgetall: %w", err)
		}
		for field, raw := range fields {
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse analytics counter %s: %w", field, err)
			}
			switch {
			case field == fieldRequests:
				bucket.Requests = value
			case strings.HasPrefix(field, hostFieldPfx):
				bucket.ByHost[strings.TrimPrefix(field, hostFieldPfx)] = value
			case strings.HasPrefix(field, pathFieldPfx):
				bucket.ByPath[strings.TrimPrefix(field, pathFieldPfx)] = value
			case strings.HasPrefix(field, statusFieldPfx):
				bucket.ByStatus[strings.TrimPrefix(field, statusFieldPfx)] = value
			}
		}

		count, err := visitors[i].Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis pfcount: %w", err)
		}
		bucket.Visitors = count

		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// UniqueVisitors counts distinct visitors across every hour in [from, to). The
// hourly HyperLogLogs are merged into a scratch key so a visitor seen in
// several hours is counted once.
func (r *AnalyticsRepository) UniqueVisitors(ctx context.Context, from, to time.Time) (int64, error) {
	hours, err := hourRange(from, to)
	if err != nil {
		return 0, err
	}
	if len(hours) == 0 {
		return 0, nil
	}

	keys := make([]string, len(hours))
	for i, hour := range hours {
		keys[i] = r.visitorsKey(hour)
	}
	union := fmt.Sprintf("%s:visitors:union:%s", r.cfg.KeyPrefix, uuid.NewString())

	pipe := r.client.TxPipeline()
	pipe.PFMerge(ctx, union, keys...)
	pipe.Expire(ctx, union, unionTTL)
	count := pipe.PFCount(ctx, union)
	pipe.Del(ctx, union)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redis merge visitors: %w", err)
	}
	return count.Val(), nil
}

func hourRange(from, to time.Time) ([]time.Time, error) {
	start := from.UTC().Truncate(time.Hour)
	end := to.UTC()
	if !end.After(start) {
		return nil, nil
	}
	if end.Sub(start) > MaxBucketRange {
		return nil, ErrRangeTooWide
	}

	hours := make([]time.Time, 0, int(end.Sub(start)/time.Hour)+1)
	for hour := start; hour.Before(end); hour = hour.Add(time.Hour) {
		hours = append(hours, hour)
	}
	return hours, nil
}

func (r *AnalyticsRepository) countersKey(hour time.Time) string {
	return fmt.Sprintf("%s:hits:%s", r.cfg.KeyPrefix, hour.Format(bucketLayout))
}

func (r *AnalyticsRepository) visitorsKey(hour time.Time) string {
	return fmt.Sprintf("%s:visitors:%s", r.cfg.KeyPrefix, hour.Format(bucketLayout))
}

var _ port.AnalyticsStore = (*AnalyticsRepository)(nil)
