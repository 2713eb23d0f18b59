package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
	}
	p.logger.Info("stub event published", append(base, fields...)...)
}

func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(EventAccountRegistered, event.AccountID, event.RegisteredAt, zap.String("email", logger.MaskEmail(event.Email)))
	return nil
}

func (p *StubPublisher) PublishAccountSignedIn(_ context.Context, event domain.AccountSignedInEvent) error {
	p.logEvent(EventAccountSignedIn, event.AccountID, event.SignedInAt, zap.Bool("remember_me", event.RememberMe))
	return nil
}

func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.logEvent(EventAccountLocked, event.AccountID, time.Time{}, zap.Int("attempts", event.Attempts), zap.Time("lock_until", event.LockUntil))
	return nil
}

func (p *StubPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	p.logEvent(EventEmailVerified, event.AccountID, event.VerifiedAt)
	return nil
}

func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(EventPasswordChanged, event.AccountID, event.ChangedAt, zap.String("method", event.Method), zap.Int("tokens_revoked", event.TokensRevoked))
	return nil
}

func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(EventPasswordResetRequested, event.AccountID, event.RequestedAt, zap.Time("expires_at", event.ExpiresAt))
	return nil
}

func (p *StubPublisher) PublishAccountUpdated(_ context.Context, event domain.AccountUpdatedEvent) error {
	p.logEvent(EventAccountUpdated, event.AccountID, event.UpdatedAt,
		zap.String("actor_id", event.ActorID),
		zap.String("field", event.Field),
		zap.String("new_value", event.NewValue),
	)
	return nil
}

func (p *StubPublisher) PublishGrantChanged(_ context.Context, event domain.GrantEvent) error {
	p.logEvent(EventGrantChanged, event.AccountID, event.OccurredAt,
		zap.String("grant_id", event.GrantID),
		zap.String("resource", string(event.Resource)),
		zap.String("status", string(event.Status)),
	)
	return nil
}

func (p *StubPublisher) PublishContactReceived(_ context.Context, event domain.ContactReceivedEvent) error {
	p.logEvent(EventContactReceived, "", event.ReceivedAt, zap.String("contact_id", event.ContactID))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
