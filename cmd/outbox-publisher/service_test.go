package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/pkg/config"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
)

func TestProcessBatchPublishesEvents(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			newOutboxEvent(t, enums.EventOrderCreated),
			newOutboxEvent(t, enums.EventOrderPaid),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{fakePublishResult{}, fakePublishResult{}},
	}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, dlq, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.published); got != 2 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if got := len(pub.messages); got != 2 {
		t.Fatalf("unexpected number of messages: %d", got)
	}
	if got := pub.messages[0].Attributes["event_type"]; got != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type attribute: %q", got)
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			newOutboxEvent(t, enums.EventOrderCreated),
			newOutboxEvent(t, enums.EventOrderCreated),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, dlq, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
	if len(dlq.entries) != 0 {
		t.Fatalf("transient failure should not reach the DLQ")
	}
}

func TestProcessBatchSendsMalformedPayloadToDLQ(t *testing.T) {
	event := newOutboxEvent(t, enums.EventOrderCreated)
	event.Payload = json.RawMessage(`{not json`)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, dlq, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(dlq.entries); got != 1 {
		t.Fatalf("unexpected number of dlq entries: %d", got)
	}
	if dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected dlq reason: %s", dlq.entries[0].ErrorReason)
	}
	if got := len(repo.terminal); got != 1 {
		t.Fatalf("unexpected number of terminal rows: %d", got)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("malformed event should never be published")
	}
}

func TestProcessBatchExhaustedAttemptsReachDLQ(t *testing.T) {
	event := newOutboxEvent(t, enums.EventDeliveryStateChanged)
	event.AttemptCount = 2
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{fakePublishResult{err: errors.New("broker down")}},
	}
	dlq := &fakeDLQRepo{}
	cfg := config.OutboxConfig{MaxAttempts: 3}
	service := newTestService(t, repo, pub, dlq, &cfg)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(dlq.entries); got != 1 {
		t.Fatalf("unexpected number of dlq entries: %d", got)
	}
	if dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected dlq reason: %s", dlq.entries[0].ErrorReason)
	}
	if dlq.entries[0].EventID != event.ID {
		t.Fatalf("dlq entry references wrong event")
	}
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakePublisher{}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("empty queue should not report processed")
	}
}

func TestResolveEnvelopeRejectsUnknownEventType(t *testing.T) {
	event := newOutboxEvent(t, enums.EventOrderCreated)
	event.EventType = enums.OutboxEventType("mystery_event")

	if _, err := resolveEnvelope(event); err == nil {
		t.Fatalf("expected unknown event type to be rejected")
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	base := 500 * time.Millisecond
	current := base
	for i := 0; i < 10; i++ {
		current = nextBackoff(current, base, maxBackoff)
	}
	if current != maxBackoff {
		t.Fatalf("backoff should cap at %s, got %s", maxBackoff, current)
	}
}

func newTestService(t *testing.T, repo *fakeRepo, pub publisher, dlq *fakeDLQRepo, outboxCfg *config.OutboxConfig) *Service {
	t.Helper()
	cfg := &config.Config{}
	if outboxCfg != nil {
		cfg.Outbox = *outboxCfg
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: repo,
		DLQ:        dlq,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func newOutboxEvent(tb testing.TB, eventType enums.OutboxEventType) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) DomainPublisher() *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
