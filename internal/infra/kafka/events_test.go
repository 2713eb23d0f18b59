package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()
	asyncProducer := newFakeAsyncProducer()
	producer := newProducer(asyncProducer, config.KafkaSettings{TopicPrefix: "portal"}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "portal-identity",
		Env:  "test",
	}, zaptest.NewLogger(t))
	return publisher, asyncProducer
}

func decodeEnvelope(t *testing.T, msg *sarama.ProducerMessage) map[string]any {
	t.Helper()
	bytes, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("Value.Encode returned error: %v", err)
	}
	var envelope map[string]any
	if err := json.Unmarshal(bytes, &envelope); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v", err)
	}
	return envelope
}

func TestPublishAccountRegistered(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	registeredAt := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	event := domain.AccountRegisteredEvent{
		EventID:      "event-123",
		AccountID:    "account-789",
		Email:        "a@b.com",
		RegisteredAt: registeredAt,
	}

	if err := publisher.PublishAccountRegistered(context.Background(), event); err != nil {
		t.Fatalf("PublishAccountRegistered returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "portal.account.registered" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != event.AccountID {
			t.Fatalf("expected account id key, got %q (%v)", key, err)
		}

		envelope := decodeEnvelope(t, msg)
		if got := envelope["event_type"]; got != EventAccountRegistered {
			t.Fatalf("unexpected event_type: %v", got)
		}
		if got := envelope["event_id"]; got != "event-123" {
			t.Fatalf("unexpected event_id: %v", got)
		}
		if got := envelope["timestamp"]; got != registeredAt.Format(time.RFC3339Nano) {
			t.Fatalf("unexpected timestamp: %v", got)
		}
		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload has unexpected type %T", envelope["payload"])
		}
		if payload["email"] != "a@b.com" {
			t.Fatalf("unexpected payload: %v", payload)
		}
		metadata, ok := envelope["metadata"].(map[string]any)
		if !ok || metadata["service"] != "portal-identity" {
			t.Fatalf("unexpected metadata: %v", envelope["metadata"])
		}
	case <-time.After(time.Second):
		t.Fatal("expected message on producer input")
	}
}

func TestPublishGrantChangedGeneratesEventID(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	actor := "admin-1"
	event := domain.GrantEvent{
		GrantID:    "grant-1",
		AccountID:  "account-1",
		Resource:   domain.ResourceAITRL,
		Status:     domain.GrantStatusApproved,
		ActorID:    &actor,
		OccurredAt: time.Now().UTC(),
	}

	if err := publisher.PublishGrantChanged(context.Background(), event); err != nil {
		t.Fatalf("PublishGrantChanged returned error: %v", err)
	}

	msg := <-asyncProducer.input
	if msg.Topic != "portal.access.grant_changed" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	envelope := decodeEnvelope(t, msg)
	if id, _ := envelope["event_id"].(string); id == "" {
		t.Fatal("expected generated event id")
	}
	payload := envelope["payload"].(map[string]any)
	if payload["resource"] != "ai-trl" || payload["status"] != "approved" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestPublishHonoursContextCancellation(t *testing.T) {
	asyncProducer := &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage),
		errors: make(chan *sarama.ProducerError, 1),
	}
	producer := newProducer(asyncProducer, config.KafkaSettings{}, zaptest.NewLogger(t))
	defer producer.Close()
	publisher := NewEventPublisher(producer, config.AppSettings{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishContactReceived(ctx, domain.ContactReceivedEvent{ContactID: "c-1"})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTopicName(t *testing.T) {
	producer := &Producer{cfg: config.KafkaSettings{TopicPrefix: "portal"}}
	if got := producer.TopicName("account.locked"); got != "portal.account.locked" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := producer.TopicName("portal.account.locked"); got != "portal.account.locked" {
		t.Fatalf("prefix applied twice: %q", got)
	}
	producer.cfg.TopicPrefix = ""
	if got := producer.TopicName("account.locked"); got != "account.locked" {
		t.Fatalf("unexpected topic without prefix %q", got)
	}
}
