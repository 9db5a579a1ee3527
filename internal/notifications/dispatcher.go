package notifications

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type outboxRepository interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// Publisher sends one event payload to the notification topic.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// Dispatcher drains outbox rows to the notification topic. Delivery is
// best-effort: rows that keep failing are skipped once they exhaust their
// attempt budget, everything else is retried with backoff.
type Dispatcher struct {
	repo         outboxRepository
	pub          Publisher
	logg         *logger.Logger
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

// NewDispatcher builds the outbox drain loop.
func NewDispatcher(repo outboxRepository, pub Publisher, cfg config.OutboxConfig, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, errors.New("outbox repository required")
	}
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := cfg.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Dispatcher{
		repo:         repo,
		pub:          pub,
		logg:         logg,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Run drains batches until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	backoff := d.pollInterval
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		published, err := d.DrainOnce(ctx)
		if err != nil {
			d.logg.Error(ctx, "notification dispatch batch error", err)
			backoff = nextBackoff(backoff, d.pollInterval, maxBackoff)
			if err := d.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = d.pollInterval

		if published > 0 {
			continue
		}
		if err := d.sleep(ctx, withJitter(d.pollInterval)); err != nil {
			return err
		}
	}
}

// DrainOnce fetches one batch of unpublished rows and publishes each. It
// returns how many rows were published.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	events, err := d.repo.FetchUnpublished(d.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		fields := map[string]any{
			"outbox_id":      event.ID.String(),
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
			"attempt_count":  event.AttemptCount,
		}
		logCtx := d.logg.WithFields(ctx, fields)

		if event.AttemptCount >= d.maxAttempts {
			d.logg.Warn(logCtx, "outbox event exhausted delivery attempts, skipping")
			continue
		}

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := d.pub.Publish(publishCtx, event.Payload, map[string]string{
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		})
		cancel()
		if err != nil {
			d.logg.Error(logCtx, "notification publish failed", err)
			if markErr := d.repo.MarkFailed(event.ID, err); markErr != nil {
				return published, fmt.Errorf("mark failed %s: %w", event.ID, markErr)
			}
			continue
		}

		if markErr := d.repo.MarkPublished(event.ID); markErr != nil {
			return published, fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		published++
		d.logg.Info(logCtx, "notification event published")
	}
	return published, nil
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(duration time.Duration) time.Duration {
	if duration <= 0 {
		return 0
	}
	return duration + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

// TopicPublisher adapts a Pub/Sub publisher handle to the Publisher interface.
type TopicPublisher struct {
	publisher *gcppubsub.Publisher
}

// NewTopicPublisher wraps a Pub/Sub publisher handle.
func NewTopicPublisher(publisher *gcppubsub.Publisher) (*TopicPublisher, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &TopicPublisher{publisher: publisher}, nil
}

func (t *TopicPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	result := t.publisher.Publish(ctx, &gcppubsub.Message{
		Data:       data,
		Attributes: attributes,
	})
	_, err := result.Get(ctx)
	return err
}
