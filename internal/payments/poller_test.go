package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	"github.com/arjunkapur/swiftkart-backend/pkg/gateway"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

func newPollerFixture(t *testing.T, f *fixture, cfg config.PollingConfig) *Poller {
	t.Helper()
	return NewPoller(
		f.repo,
		f.ordersRepo,
		f.svc,
		map[enums.PaymentGateway]gateway.Client{enums.PaymentGatewaySMEPay: f.gw},
		cfg,
		nil,
		logger.New(logger.Options{ServiceName: "test"}),
	)
}

func pollCfg() config.PollingConfig {
	return config.PollingConfig{
		FastInterval: time.Millisecond,
		FastAttempts: 10,
		SlowInterval: time.Millisecond,
		MaxAttempts:  20,
	}
}

func TestPollerConfirmsWhenGatewayReportsPaid(t *testing.T) {
	order := prepaidOrder(129900)
	f := newFixture(t, order)
	view := f.createIntent(t, order)

	f.gw.statusFn = func(gatewayOrderID string) (*gateway.StatusResult, error) {
		return &gateway.StatusResult{
			Status:      gateway.StatusPaid,
			AmountPaise: 129900,
			GatewayRef:  "utr-poll",
		}, nil
	}

	poller := newPollerFixture(t, f, pollCfg())
	poller.Tick(context.Background())

	assert.True(t, f.ordersRepo.orders[order.ID].IsPaid)
	attempt, err := f.repo.FindByID(context.Background(), view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentAttemptStatusCompleted, attempt.Status)
	assert.Equal(t, 1, attempt.PollAttempts)
	assert.Equal(t, 1, f.outbox.countType(enums.EventPaymentConfirmed))
}

func TestPollerFailsWhenGatewayReportsFailure(t *testing.T) {
	order := prepaidOrder(129900)
	f := newFixture(t, order)
	view := f.createIntent(t, order)

	f.gw.statusFn = func(gatewayOrderID string) (*gateway.StatusResult, error) {
		return &gateway.StatusResult{Status: gateway.StatusFailed}, nil
	}

	poller := newPollerFixture(t, f, pollCfg())
	poller.Tick(context.Background())

	attempt, err := f.repo.FindByID(context.Background(), view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentAttemptStatusFailed, attempt.Status)
	assert.False(t, f.ordersRepo.orders[order.ID].IsPaid)
	assert.Equal(t, 1, f.outbox.countType(enums.EventPaymentFailed))
}

func TestPollerExpiresAfterBudgetExhausted(t *testing.T) {
	order := prepaidOrder(129900)
	f := newFixture(t, order)
	view := f.createIntent(t, order)

	cfg := pollCfg()
	poller := newPollerFixture(t, f, cfg)
	for i := 0; i < cfg.MaxAttempts; i++ {
		time.Sleep(2 * time.Millisecond)
		poller.Tick(context.Background())
	}

	attempt, err := f.repo.FindByID(context.Background(), view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentAttemptStatusExpired, attempt.Status)
	assert.Equal(t, cfg.MaxAttempts, attempt.PollAttempts)
	assert.False(t, f.ordersRepo.orders[order.ID].IsPaid)
	assert.Equal(t, 1, f.outbox.countType(enums.EventPaymentAttemptExpired))

	// an expired attempt does not block a fresh intent
	fresh := f.createIntent(t, order)
	assert.NotEqual(t, view.AttemptID, fresh.AttemptID)
}

func TestPollerExpiresAttemptOnCancelledOrder(t *testing.T) {
	order := prepaidOrder(129900)
	f := newFixture(t, order)
	view := f.createIntent(t, order)

	f.ordersRepo.orders[order.ID].Status = enums.OrderStatusCancelled
	f.gw.statusFn = func(gatewayOrderID string) (*gateway.StatusResult, error) {
		t.Fatal("gateway polled for a cancelled order")
		return nil, nil
	}

	poller := newPollerFixture(t, f, pollCfg())
	poller.Tick(context.Background())

	attempt, err := f.repo.FindByID(context.Background(), view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentAttemptStatusExpired, attempt.Status)
	assert.Equal(t, 0, attempt.PollAttempts)
	assert.False(t, f.ordersRepo.orders[order.ID].IsPaid)
	assert.Equal(t, 1, f.outbox.countType(enums.EventPaymentAttemptExpired))
}

func TestPollerSkipsAttemptsNotYetDue(t *testing.T) {
	order := prepaidOrder(129900)
	f := newFixture(t, order)
	view := f.createIntent(t, order)

	cfg := pollCfg()
	cfg.FastInterval = time.Hour
	poller := newPollerFixture(t, f, cfg)

	poller.Tick(context.Background())
	poller.Tick(context.Background())

	attempt, err := f.repo.FindByID(context.Background(), view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.PollAttempts)
}
