package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/portal-identity/internal/core/domain"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestAnalyticsRepository_RecordAndBuckets(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewAnalyticsRepository(client, AnalyticsConfig{KeyPrefix: "analytics", TTL: 48 * time.Hour})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	hits := []domain.AnalyticsHit{
		{Host: "Labs.example.com", Path: "/api/v1/auth/login", Status: 200, VisitorID: "v1", At: base},
		{Host: "labs.example.com", Path: "/api/v1/auth/login", Status: 401, VisitorID: "v2", At: base.Add(10 * time.Minute)},
		{Host: "docs.example.com", Path: "/", Status: 200, VisitorID: "v1", At: base.Add(time.Hour)},
	}
	for _, hit := range hits {
		if err := repo.Record(ctx, hit); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	if ttl := server.TTL("analytics:hits:2026030110"); ttl <= 0 || ttl > 48*time.Hour {
		t.Fatalf("expected retention ttl, got %v", ttl)
	}

	from := base.Truncate(time.Hour)
	buckets, err := repo.Buckets(ctx, from, from.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Buckets returned error: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 hourly buckets, got %d", len(buckets))
	}

	first := buckets[0]
	if !first.Start.Equal(from) {
		t.Fatalf("unexpected bucket start %s", first.Start)
	}
	if first.Requests != 2 || first.Visitors != 2 {
		t.Fatalf("unexpected first bucket %+v", first)
	}
	if first.ByHost["labs.example.com"] != 2 {
		t.Fatalf("expected host to be lower-cased and counted twice, got %v", first.ByHost)
	}
	if first.ByStatus["2xx"] != 1 || first.ByStatus["4xx"] != 1 {
		t.Fatalf("unexpected status classes %v", first.ByStatus)
	}
	if buckets[1].Requests != 1 || buckets[1].ByPath["/"] != 1 {
		t.Fatalf("unexpected second bucket %+v", buckets[1])
	}
	if buckets[2].Requests != 0 || len(buckets[2].ByHost) != 0 {
		t.Fatalf("expected empty third bucket, got %+v", buckets[2])
	}

	visitors, err := repo.UniqueVisitors(ctx, from, from.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("UniqueVisitors returned error: %v", err)
	}
	if visitors != 2 {
		t.Fatalf("expected 2 distinct visitors across the range, got %d", visitors)
	}
	for _, key := range server.Keys() {
		if strings.Contains(key, ":union:") {
			t.Fatalf("expected scratch union key to be removed, found %s", key)
		}
	}
}

func TestAnalyticsRepository_UniqueVisitorsDeduplicatesAcrossHours(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewAnalyticsRepository(client, AnalyticsConfig{})
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for hour := 0; hour < 5; hour++ {
		hit := domain.AnalyticsHit{Path: "/", Status: 200, VisitorID: "returning", At: base.Add(time.Duration(hour) * time.Hour)}
		if err := repo.Record(ctx, hit); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	visitors, err := repo.UniqueVisitors(ctx, base, base.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("UniqueVisitors returned error: %v", err)
	}
	if visitors != 1 {
		t.Fatalf("expected a returning visitor to be counted once, got %d", visitors)
	}

	empty, err := repo.UniqueVisitors(ctx, base.Add(24*time.Hour), base.Add(26*time.Hour))
	if err != nil || empty != 0 {
		t.Fatalf("expected zero visitors for an empty range, got %d %v", empty, err)
	}
}

func TestAnalyticsRepository_RejectsWideRange(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewAnalyticsRepository(client, AnalyticsConfig{})

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := repo.Buckets(context.Background(), from, from.Add(MaxBucketRange+time.Hour)); !errors.Is(err, ErrRangeTooWide) {
		t.Fatalf("expected ErrRangeTooWide, got %v", err)
	}

	buckets, err := repo.Buckets(context.Background(), from, from)
	if err != nil || len(buckets) != 0 {
		t.Fatalf("expected empty result for empty range, got %v %v", buckets, err)
	}
}

func TestRateLimitRepository_SlidingWindow(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl", TTL: time.Minute})
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := repo.RecordAttempt(ctx, "login:203.0.113.1", now); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}
	if err := repo.RecordAttempt(ctx, "login:203.0.113.1", now.Add(-2*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	count, err := repo.CountAttempts(ctx, "login:203.0.113.1", time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected same-instant attempts to be counted separately, got %d", count)
	}

	if err := repo.TrimWindow(ctx, "login:203.0.113.1", time.Minute, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}
	members, err := server.ZMembers("rl:login:203.0.113.1")
	if err != nil {
		t.Fatalf("ZMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected stale attempt to be trimmed, got %d members", len(members))
	}

	oldest, ok, err := repo.OldestAttempt(ctx, "login:203.0.113.1", time.Minute, now)
	if err != nil || !ok {
		t.Fatalf("OldestAttempt returned ok=%v err=%v", ok, err)
	}
	if diff := oldest.Sub(now); diff > time.Microsecond || diff < -time.Microsecond {
		t.Fatalf("unexpected oldest attempt %s", oldest)
	}

	if _, err := repo.CountAttempts(ctx, "x", 0, now); err == nil {
		t.Fatal("expected error for non-positive window")
	}
}
