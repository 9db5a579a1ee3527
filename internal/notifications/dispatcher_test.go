package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

type stubOutboxRepo struct {
	rows      map[uuid.UUID]*models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
}

func newStubOutboxRepo(rows ...*models.OutboxEvent) *stubOutboxRepo {
	repo := &stubOutboxRepo{rows: map[uuid.UUID]*models.OutboxEvent{}}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		repo.rows[row.ID] = row
	}
	return repo
}

func (s *stubOutboxRepo) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var rows []models.OutboxEvent
	for _, row := range s.rows {
		if row.PublishedAt == nil {
			rows = append(rows, *row)
		}
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}

func (s *stubOutboxRepo) MarkPublished(id uuid.UUID) error {
	row, ok := s.rows[id]
	if !ok {
		return errors.New("row not found")
	}
	now := time.Now()
	row.PublishedAt = &now
	s.published = append(s.published, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	row, ok := s.rows[id]
	if !ok {
		return errors.New("row not found")
	}
	msg := err.Error()
	row.LastError = &msg
	row.AttemptCount++
	return nil
}

type stubPublisher struct {
	calls      int
	attributes []map[string]string
	err        error
}

func (s *stubPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	s.calls++
	s.attributes = append(s.attributes, attributes)
	return s.err
}

func event(eventType enums.OutboxEventType) *models.OutboxEvent {
	return &models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		CreatedAt:     time.Now(),
	}
}

func newDispatcher(t *testing.T, repo *stubOutboxRepo, pub *stubPublisher) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(repo, pub, config.OutboxConfig{
		BatchSize:      10,
		PollIntervalMS: 1,
		MaxAttempts:    3,
	}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return d
}

func TestDrainOncePublishesAndMarks(t *testing.T) {
	first := event(enums.EventOrderCreated)
	second := event(enums.EventPaymentConfirmed)
	repo := newStubOutboxRepo(first, second)
	pub := &stubPublisher{}

	published, err := newDispatcher(t, repo, pub).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.Equal(t, 2, pub.calls)
	assert.Len(t, repo.published, 2)
	assert.NotNil(t, repo.rows[first.ID].PublishedAt)

	found := false
	for _, attrs := range pub.attributes {
		if attrs["event_type"] == string(enums.EventPaymentConfirmed) {
			found = true
			assert.Equal(t, second.AggregateID.String(), attrs["aggregate_id"])
		}
	}
	assert.True(t, found)
}

func TestDrainOnceRecordsFailures(t *testing.T) {
	row := event(enums.EventOrderCreated)
	repo := newStubOutboxRepo(row)
	pub := &stubPublisher{err: errors.New("topic unavailable")}

	published, err := newDispatcher(t, repo, pub).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Nil(t, repo.rows[row.ID].PublishedAt)
	assert.Equal(t, 1, repo.rows[row.ID].AttemptCount)
	require.NotNil(t, repo.rows[row.ID].LastError)
	assert.Contains(t, *repo.rows[row.ID].LastError, "topic unavailable")
}

func TestDrainOnceSkipsExhaustedRows(t *testing.T) {
	row := event(enums.EventOrderCreated)
	row.AttemptCount = 3
	repo := newStubOutboxRepo(row)
	pub := &stubPublisher{}

	published, err := newDispatcher(t, repo, pub).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Equal(t, 0, pub.calls)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := newStubOutboxRepo()
	pub := &stubPublisher{}
	d := newDispatcher(t, repo, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
