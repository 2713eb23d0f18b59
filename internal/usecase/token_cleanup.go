package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/port"
)

const defaultCleanupInterval = time.Hour

// TokenJanitor periodically deletes expired credential tokens.
type TokenJanitor struct {
	tokens   port.TokenRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenJanitor constructs a TokenJanitor.
func NewTokenJanitor(tokens port.TokenRepository, interval time.Duration, log *zap.Logger) *TokenJanitor {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenJanitor{tokens: tokens, interval: interval, logger: log, now: time.Now}
}

// WithClock allows tests to override the clock used by the janitor.
func (j *TokenJanitor) WithClock(clock func() time.Time) {
	if clock != nil {
		j.now = clock
	}
}

// PurgeExpired deletes every token whose expiry is in the past.
func (j *TokenJanitor) PurgeExpired(ctx context.Context) (int, error) {
	deleted, err := j.tokens.DeleteExpired(ctx, j.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("expired credential tokens purged", zap.Int("count", deleted))
	}
	return deleted, nil
}

// Run purges on every tick until ctx is cancelled.
func (j *TokenJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.PurgeExpired(ctx); err != nil {
				j.logger.Error("token cleanup failed", zap.Error(err))
			}
		}
	}
}
