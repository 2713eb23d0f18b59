package port

import (
	"context"
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// ContactRepository persists contact-form submissions.
type ContactRepository interface {
	Create(ctx context.Context, message domain.ContactMessage) error
	GetByID(ctx context.Context, id string) (*domain.ContactMessage, error)
	List(ctx context.Context, filter domain.ContactFilter) ([]domain.ContactMessage, int, error)
	UpdateStatus(ctx context.Context, id string, status domain.ContactStatus, at time.Time) error
}
