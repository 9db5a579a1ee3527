package orderlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (m *memStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memStore) OrderLockKey(orderID string) string {
	return "sk:order_lock:" + orderID
}

func TestWithOrderLockRunsAndReleases(t *testing.T) {
	store := newMemStore()
	mgr, err := NewManager(store, config.OrderLockConfig{})
	require.NoError(t, err)

	orderID := uuid.New()
	ran := false
	err = mgr.WithOrderLock(context.Background(), orderID, func(ctx context.Context) error {
		ran = true
		_, held := store.values[store.OrderLockKey(orderID.String())]
		assert.True(t, held)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	_, held := store.values[store.OrderLockKey(orderID.String())]
	assert.False(t, held)
}

func TestWithOrderLockSerializesCompetingCallers(t *testing.T) {
	store := newMemStore()
	mgr, err := NewManager(store, config.OrderLockConfig{
		AcquireTimeout: 2 * time.Second,
		RetryInterval:  5 * time.Millisecond,
	})
	require.NoError(t, err)

	orderID := uuid.New()
	var mu sync.Mutex
	running := 0
	maxRunning := 0

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.WithOrderLock(context.Background(), orderID, func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxRunning)
}

func TestWithOrderLockTimesOut(t *testing.T) {
	store := newMemStore()
	mgr, err := NewManager(store, config.OrderLockConfig{
		AcquireTimeout: 30 * time.Millisecond,
		RetryInterval:  5 * time.Millisecond,
	})
	require.NoError(t, err)

	orderID := uuid.New()
	key := store.OrderLockKey(orderID.String())
	store.values[key] = "someone-else"

	err = mgr.WithOrderLock(context.Background(), orderID, func(ctx context.Context) error {
		t.Fatal("should not run while lock is held")
		return nil
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	store := newMemStore()
	mgr, err := NewManager(store, config.OrderLockConfig{})
	require.NoError(t, err)

	orderID := uuid.New()
	key := store.OrderLockKey(orderID.String())

	err = mgr.WithOrderLock(context.Background(), orderID, func(ctx context.Context) error {
		// simulate TTL expiry plus takeover by another request
		store.mu.Lock()
		store.values[key] = "new-owner"
		store.mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	v, ok := store.values[key]
	require.True(t, ok)
	assert.Equal(t, "new-owner", v)
}
