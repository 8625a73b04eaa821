package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/infra/config"
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
	producer := newProducer(asyncProducer, "auth", zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "account-auth-service",
		Env:  "test",
	}, zaptest.NewLogger(t))
	return publisher, asyncProducer
}

func receiveEnvelope(t *testing.T, producer *fakeAsyncProducer) (*sarama.ProducerMessage, map[string]any) {
	t.Helper()
	select {
	case msg := <-producer.input:
		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}
		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return msg, envelope
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
	return nil, nil
}

func TestPublishSessionsRevoked(t *testing.T) {
	publisher, producer := newTestPublisher(t)

	revokedAt := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)
	event := domain.SessionsRevokedEvent{
		EventID:      "event-123",
		UserID:       "user-789",
		RevokedAt:    revokedAt,
		Reason:       domain.RevocationPasswordChange,
		KeptOneAlive: true,
	}

	if err := publisher.PublishSessionsRevoked(context.Background(), event); err != nil {
		t.Fatalf("PublishSessionsRevoked returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, producer)
	if msg.Topic != "auth.user.sessions_revoked" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != event.UserID {
		t.Fatalf("unexpected key: %s", key)
	}
	if got := envelope["event_id"]; got != "event-123" {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if got := envelope["event_type"]; got != EventSessionsRevoked {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["timestamp"]; got != revokedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", got)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if payload["reason"] != "password_change" {
		t.Fatalf("unexpected reason: %v", payload["reason"])
	}
	if payload["kept_one_alive"] != true {
		t.Fatalf("unexpected kept_one_alive: %v", payload["kept_one_alive"])
	}

	metadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
	}
	if metadata["service"] != "account-auth-service" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %v", metadata)
	}
}

func TestPublishUserRegisteredGeneratesEventID(t *testing.T) {
	publisher, producer := newTestPublisher(t)

	err := publisher.PublishUserRegistered(context.Background(), domain.UserRegisteredEvent{
		UserID: "user-1",
		Email:  "a@x.com",
	})
	if err != nil {
		t.Fatalf("PublishUserRegistered returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, producer)
	if msg.Topic != "auth.user.registered" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	if id, _ := envelope["event_id"].(string); id == "" {
		t.Fatal("expected generated event id")
	}
	payload := envelope["payload"].(map[string]any)
	if payload["email"] != "a@x.com" {
		t.Fatalf("unexpected email: %v", payload["email"])
	}
}

func TestPublishRespectsContextCancellation(t *testing.T) {
	publisher, producer := newTestPublisher(t)
	producer.input <- &sarama.ProducerMessage{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishUserDeleted(ctx, domain.UserDeletedEvent{UserID: "user-1"})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTopicName(t *testing.T) {
	cases := []struct {
		prefix string
		event  string
		want   string
	}{
		{prefix: "", event: EventUserDeleted, want: "user.deleted"},
		{prefix: "auth", event: EventUserDeleted, want: "auth.user.deleted"},
		{prefix: "auth.", event: EventUserDeleted, want: "auth.user.deleted"},
		{prefix: "auth", event: "auth.user.deleted", want: "auth.user.deleted"},
	}

	for _, tc := range cases {
		p := &Producer{prefix: trimPrefix(tc.prefix)}
		if got := p.TopicName(tc.event); got != tc.want {
			t.Fatalf("TopicName(%q, %q) = %q, want %q", tc.prefix, tc.event, got, tc.want)
		}
	}
}

func TestStubPublisherLogsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	publisher := NewStubPublisher(zap.New(core))

	err := publisher.PublishPasswordResetRequested(context.Background(), domain.PasswordResetRequestedEvent{
		UserID:            "user-1",
		MaskedDestination: "a***@x.com",
	})
	if err != nil {
		t.Fatalf("PublishPasswordResetRequested returned error: %v", err)
	}

	entries := logs.FilterMessage("Stub event published").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != EventPasswordResetRequested || fields["destination"] != "a***@x.com" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
