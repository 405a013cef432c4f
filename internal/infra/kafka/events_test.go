package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/infra/config"
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
	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "khepri",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "khepri-auth",
		Env:  "test",
	}, zaptest.NewLogger(t))

	return publisher, asyncProducer
}

func receiveEnvelope(t *testing.T, asyncProducer *fakeAsyncProducer, wantTopic string) map[string]any {
	t.Helper()

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != wantTopic {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return envelope
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
		return nil
	}
}

func TestPublishAccountLocked(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	lockedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lockedUntil := lockedAt.Add(time.Minute)
	event := domain.AccountLockedEvent{
		EventID:     "event-123",
		UserID:      "user-789",
		Email:       "curator@khepri.example",
		Attempts:    5,
		LockedUntil: &lockedUntil,
		Suspended:   false,
		LockedAt:    lockedAt,
		Metadata:    map[string]any{"source": "unit-test"},
	}

	if err := publisher.PublishAccountLocked(context.Background(), event); err != nil {
		t.Fatalf("PublishAccountLocked returned error: %v", err)
	}

	envelope := receiveEnvelope(t, asyncProducer, "khepri.auth.account.locked")

	if got := envelope["event_type"]; got != "auth.account.locked" {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["event_id"]; got != event.EventID {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if got := envelope["user_id"]; got != event.UserID {
		t.Fatalf("unexpected user_id: %v", got)
	}

	timestamp, ok := envelope["timestamp"].(string)
	if !ok {
		t.Fatalf("timestamp not a string: %T", envelope["timestamp"])
	}
	if timestamp != lockedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %s", timestamp)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if got := payload["email"]; got != event.Email {
		t.Fatalf("unexpected email: %v", got)
	}
	attempts, ok := payload["attempts"].(float64)
	if !ok || int(attempts) != event.Attempts {
		t.Fatalf("unexpected attempts: %v", payload["attempts"])
	}
	if suspended, _ := payload["suspended"].(bool); suspended {
		t.Fatal("unexpected suspended flag")
	}
	lockedUntilValue, ok := payload["locked_until"].(string)
	if !ok || lockedUntilValue != lockedUntil.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected locked_until: %v", payload["locked_until"])
	}

	envelopeMetadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
	}
	if envelopeMetadata["service"] != "khepri-auth" {
		t.Fatalf("unexpected metadata service: %v", envelopeMetadata["service"])
	}
	if envelopeMetadata["environment"] != "test" {
		t.Fatalf("unexpected metadata environment: %v", envelopeMetadata["environment"])
	}
}

func TestPublishLoginFailedWithoutUser(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	failedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := domain.LoginFailedEvent{
		Email:          "ghost@khepri.example",
		Reason:         "user_not_found",
		FailedAttempts: 0,
		FailedAt:       failedAt,
	}

	if err := publisher.PublishLoginFailed(context.Background(), event); err != nil {
		t.Fatalf("PublishLoginFailed returned error: %v", err)
	}

	envelope := receiveEnvelope(t, asyncProducer, "khepri.auth.login.failed")

	if got := envelope["event_type"]; got != "auth.login.failed" {
		t.Fatalf("unexpected event_type: %v", got)
	}
	// The envelope assigns an event id when the event carries none.
	eventID, ok := envelope["event_id"].(string)
	if !ok || eventID == "" {
		t.Fatalf("expected generated event_id, got %v", envelope["event_id"])
	}
	if _, present := envelope["user_id"]; present {
		t.Fatalf("expected user_id omitted, got %v", envelope["user_id"])
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if got := payload["reason"]; got != event.Reason {
		t.Fatalf("unexpected reason: %v", got)
	}
	if _, present := payload["user_id"]; present {
		t.Fatalf("expected payload user_id omitted, got %v", payload["user_id"])
	}
}

func TestPublishPasswordChanged(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	changedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := domain.PasswordChangedEvent{
		EventID:   "evt-001",
		UserID:    "user-789",
		Forced:    true,
		ChangedAt: changedAt,
	}

	if err := publisher.PublishPasswordChanged(context.Background(), event); err != nil {
		t.Fatalf("PublishPasswordChanged returned error: %v", err)
	}

	envelope := receiveEnvelope(t, asyncProducer, "khepri.auth.password.changed")

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if forced, _ := payload["forced"].(bool); !forced {
		t.Fatal("expected forced flag in payload")
	}
	if got := payload["changed_at"]; got != changedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected changed_at: %v", got)
	}
}
