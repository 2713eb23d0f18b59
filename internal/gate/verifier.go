package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// ErrUnavailable marks a central service call that failed without a typed answer.
var ErrUnavailable = errors.New("gate: identity service unavailable")

// RejectionError is a typed token validation failure returned by the identity service.
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("token rejected: %s", e.Code)
}

// Identity is the verified caller.
type Identity struct {
	AccountID string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// Decision is the identity service's grant answer for one resource.
type Decision struct {
	Resource  domain.Resource
	HasAccess bool
	Reason    string
	CheckedAt time.Time
}

// Verifier asks the central identity service about a token.
type Verifier interface {
	Validate(ctx context.Context, token string) (*Identity, error)
	Check(ctx context.Context, token string, resource domain.Resource) (*Decision, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
