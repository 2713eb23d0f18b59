package mail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryingMailer retries failed sends with linear backoff (backoff * attempt).
type RetryingMailer struct {
	next     Mailer
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetryingMailer wraps next. attempts below one is treated as one.
func NewRetryingMailer(next Mailer, attempts int, backoff time.Duration, log *zap.Logger) *RetryingMailer {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryingMailer{
		next:     next,
		attempts: attempts,
		backoff:  backoff,
		logger:   log,
		sleep:    sleepContext,
	}
}

// WithSleep overrides the wait between attempts. Intended for tests.
func (m *RetryingMailer) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *RetryingMailer {
	if sleep != nil {
		m.sleep = sleep
	}
	return m
}

func (m *RetryingMailer) Send(ctx context.Context, msg Message) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		id, err := m.next.Send(ctx, msg)
		if err == nil {
			return id, nil
		}
		lastErr = err

		m.logger.Warn("email send attempt failed",
			zap.String("message_id", msg.ID),
			zap.String("template", msg.Template),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == m.attempts {
			break
		}
		if err := m.sleep(ctx, m.backoff*time.Duration(attempt)); err != nil {
			return "", fmt.Errorf("send email: %w", err)
		}
	}
	return "", fmt.Errorf("send email after %d attempts: %w", m.attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
