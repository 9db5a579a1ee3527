package orderlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
)

// Manager serializes mutations on a single order. Every state-changing
// operation in the pipeline runs under the order's lock so concurrent
// requests observe each other's writes.
type Manager interface {
	WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	OrderLockKey(orderID string) string
}

type manager struct {
	store redisStore
	cfg   config.OrderLockConfig
}

// NewManager builds a redis-backed lock manager.
func NewManager(store redisStore, cfg config.OrderLockConfig) (Manager, error) {
	if store == nil {
		return nil, errors.New("redis client required for order lock")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	return &manager{store: store, cfg: cfg}, nil
}

// WithOrderLock runs fn while holding the order's lock. Acquisition retries
// on a fixed interval until the configured timeout elapses.
func (m *manager) WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error {
	key := m.store.OrderLockKey(orderID.String())
	owner := uuid.NewString()

	deadline := time.Now().Add(m.cfg.AcquireTimeout)
	for {
		ok, err := m.store.SetNX(ctx, key, owner, m.cfg.TTL)
		if err != nil {
			return fmt.Errorf("acquire order lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is being modified by another request")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.RetryInterval):
		}
	}

	defer m.release(ctx, key, owner)
	return fn(ctx)
}

// release frees the lock only if the owner value still matches, so an
// expired lock taken over by another request is left alone.
func (m *manager) release(ctx context.Context, key, owner string) {
	value, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return
		}
		return
	}
	if value != owner {
		return
	}
	_ = m.store.Del(ctx, key)
}
