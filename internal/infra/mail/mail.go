// Package mail renders and delivers account emails over SMTP or a logging transport.
package mail

import (
	"context"
	"errors"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message is a rendered email ready for a transport.
type Message struct {
	ID       string
	Template string
	To       string
	Subject  string
	Text     string
	HTML     string
}

// Mailer delivers a message and returns the transport message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

var (
	// ErrQueueFull is returned when the dispatch queue cannot accept more jobs.
	ErrQueueFull = errors.New("mail: dispatch queue full")
	// ErrDispatcherStopped is returned when enqueueing after Stop.
	ErrDispatcherStopped = errors.New("mail: dispatcher stopped")
	// ErrNoRecipient rejects messages without a destination.
	ErrNoRecipient = errors.New("mail: recipient is required")
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewMessageID returns a sortable identifier for a mail job.
func NewMessageID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
