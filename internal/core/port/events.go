package port

import (
	"context"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishAccountSignedIn(ctx context.Context, event domain.AccountSignedInEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishEmailVerified(ctx context.Context, event domain.EmailVerifiedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishAccountUpdated(ctx context.Context, event domain.AccountUpdatedEvent) error
	PublishGrantChanged(ctx context.Context, event domain.GrantEvent) error
	PublishContactReceived(ctx context.Context, event domain.ContactReceivedEvent) error
}
