package port

import (
	"context"
	"time"
)

// RateLimitStore keeps per-identifier attempt timestamps for the sign-in, sign-up,
// password-forgot and contact limits. Identifiers arrive namespaced by rule name
// and scoped to a client IP or account.
type RateLimitStore interface {
	// TrimWindow drops attempts older than reference-window.
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	// CountAttempts reports attempts in the window ending at reference.
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	// OldestAttempt returns the earliest attempt still in the window, used for Retry-After.
	// The bool is false when the window is empty.
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
