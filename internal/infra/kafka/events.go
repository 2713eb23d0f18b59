package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types published to Kafka, prefixed with the configured topic prefix.
const (
	EventAccountRegistered      = "account.registered"
	EventAccountSignedIn        = "account.signed_in"
	EventAccountLocked          = "account.locked"
	EventEmailVerified          = "account.email_verified"
	EventPasswordChanged        = "account.password_changed"
	EventPasswordResetRequested = "account.password_reset_requested"
	EventAccountUpdated         = "account.updated"
	EventGrantChanged           = "access.grant_changed"
	EventContactReceived        = "contact.received"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	if accountID != "" {
		message.Key = sarama.StringEncoder(accountID)
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		Email        string    `json:"email"`
		Handle       *string   `json:"handle,omitempty"`
		ReferredBy   *string   `json:"referred_by,omitempty"`
		RegisteredAt time.Time `json:"registered_at"`
		IPAddress    *string   `json:"ip_address,omitempty"`
	}{
		AccountID:    event.AccountID,
		Email:        event.Email,
		Handle:       event.Handle,
		ReferredBy:   event.ReferredBy,
		RegisteredAt: event.RegisteredAt.UTC(),
		IPAddress:    event.IPAddress,
	}
	return p.publish(ctx, event.EventID, EventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishAccountSignedIn publishes account.signed_in events.
func (p *EventPublisher) PublishAccountSignedIn(ctx context.Context, event domain.AccountSignedInEvent) error {
	payload := struct {
		AccountID  string    `json:"account_id"`
		RememberMe bool      `json:"remember_me"`
		SignedInAt time.Time `json:"signed_in_at"`
		IPAddress  *string   `json:"ip_address,omitempty"`
	}{
		AccountID:  event.AccountID,
		RememberMe: event.RememberMe,
		SignedInAt: event.SignedInAt.UTC(),
		IPAddress:  event.IPAddress,
	}
	return p.publish(ctx, event.EventID, EventAccountSignedIn, event.AccountID, event.SignedInAt, payload)
}

// PublishAccountLocked publishes account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Attempts  int       `json:"attempts"`
		LockUntil time.Time `json:"lock_until"`
		IPAddress *string   `json:"ip_address,omitempty"`
	}{
		AccountID: event.AccountID,
		Attempts:  event.Attempts,
		LockUntil: event.LockUntil.UTC(),
		IPAddress: event.IPAddress,
	}
	return p.publish(ctx, event.EventID, EventAccountLocked, event.AccountID, time.Time{}, payload)
}

// PublishEmailVerified publishes account.email_verified events.
func (p *EventPublisher) PublishEmailVerified(ctx context.Context, event domain.EmailVerifiedEvent) error {
	payload := struct {
		AccountID  string    `json:"account_id"`
		VerifiedAt time.Time `json:"verified_at"`
	}{
		AccountID:  event.AccountID,
		VerifiedAt: event.VerifiedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventEmailVerified, event.AccountID, event.VerifiedAt, payload)
}

// PublishPasswordChanged publishes account.password_changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID     string    `json:"account_id"`
		ChangedAt     time.Time `json:"changed_at"`
		Method        string    `json:"method"`
		TokensRevoked int       `json:"tokens_revoked"`
	}{
		AccountID:     event.AccountID,
		ChangedAt:     event.ChangedAt.UTC(),
		Method:        event.Method,
		TokensRevoked: event.TokensRevoked,
	}
	return p.publish(ctx, event.EventID, EventPasswordChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishPasswordResetRequested publishes account.password_reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		AccountID   string    `json:"account_id"`
		RequestedAt time.Time `json:"requested_at"`
		ExpiresAt   time.Time `json:"expires_at"`
		IPAddress   *string   `json:"ip_address,omitempty"`
	}{
		AccountID:   event.AccountID,
		RequestedAt: event.RequestedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
		IPAddress:   event.IPAddress,
	}
	return p.publish(ctx, event.EventID, EventPasswordResetRequested, event.AccountID, event.RequestedAt, payload)
}

// PublishAccountUpdated publishes account.updated events.
func (p *EventPublisher) PublishAccountUpdated(ctx context.Context, event domain.AccountUpdatedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		ActorID   string    `json:"actor_id"`
		Field     string    `json:"field"`
		OldValue  string    `json:"old_value"`
		NewValue  string    `json:"new_value"`
		UpdatedAt time.Time `json:"updated_at"`
	}{
		AccountID: event.AccountID,
		ActorID:   event.ActorID,
		Field:     event.Field,
		OldValue:  event.OldValue,
		NewValue:  event.NewValue,
		UpdatedAt: event.UpdatedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAccountUpdated, event.AccountID, event.UpdatedAt, payload)
}

// PublishGrantChanged publishes access.grant_changed events.
func (p *EventPublisher) PublishGrantChanged(ctx context.Context, event domain.GrantEvent) error {
	payload := struct {
		GrantID    string    `json:"grant_id"`
		AccountID  string    `json:"account_id"`
		Resource   string    `json:"resource"`
		Status     string    `json:"status"`
		ActorID    *string   `json:"actor_id,omitempty"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		GrantID:    event.GrantID,
		AccountID:  event.AccountID,
		Resource:   string(event.Resource),
		Status:     string(event.Status),
		ActorID:    event.ActorID,
		OccurredAt: event.OccurredAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventGrantChanged, event.AccountID, event.OccurredAt, payload)
}

// PublishContactReceived publishes contact.received events.
func (p *EventPublisher) PublishContactReceived(ctx context.Context, event domain.ContactReceivedEvent) error {
	payload := struct {
		ContactID  string    `json:"contact_id"`
		Email      string    `json:"email"`
		Subject    string    `json:"subject"`
		ReceivedAt time.Time `json:"received_at"`
	}{
		ContactID:  event.ContactID,
		Email:      event.Email,
		Subject:    event.Subject,
		ReceivedAt: event.ReceivedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventContactReceived, "", event.ReceivedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
