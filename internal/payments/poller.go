package payments

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/arjunkapur/swiftkart-backend/internal/orders"
	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	"github.com/arjunkapur/swiftkart-backend/pkg/gateway"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
	"github.com/arjunkapur/swiftkart-backend/pkg/metrics"
)

const pollBatchSize = 100

// Poller drives the bounded status poll for open payment attempts. The first
// FastAttempts checks run every FastInterval, later ones every SlowInterval.
// An attempt that exhausts MaxAttempts without an answer is expired, as is
// any attempt whose order was cancelled mid-flight.
type Poller struct {
	repo       Repository
	ordersRepo orders.Repository
	svc        Service
	gateways   map[enums.PaymentGateway]gateway.Client
	cfg        config.PollingConfig
	metrics    *metrics.ReconcilerMetrics
	logg       *logger.Logger
}

// NewPoller builds the reconciliation poller.
func NewPoller(
	repo Repository,
	ordersRepo orders.Repository,
	svc Service,
	gateways map[enums.PaymentGateway]gateway.Client,
	cfg config.PollingConfig,
	m *metrics.ReconcilerMetrics,
	logg *logger.Logger,
) *Poller {
	if cfg.FastInterval <= 0 {
		cfg.FastInterval = 3 * time.Second
	}
	if cfg.SlowInterval <= 0 {
		cfg.SlowInterval = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	return &Poller{
		repo:       repo,
		ordersRepo: ordersRepo,
		svc:        svc,
		gateways:   gateways,
		cfg:        cfg,
		metrics:    m,
		logg:       logg,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.FastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick processes every open attempt that is due for a status check. One
// misbehaving attempt never blocks the rest of the batch; their errors are
// combined into the return value.
func (p *Poller) Tick(ctx context.Context) error {
	rows, err := p.repo.ListOpen(ctx, pollBatchSize)
	if err != nil {
		p.logg.Error(ctx, "list open payment attempts", err)
		return err
	}
	now := time.Now()
	var errs []error
	for i := range rows {
		attempt := rows[i]
		if !p.due(&attempt, now) {
			continue
		}
		if err := p.pollAttempt(ctx, &attempt); err != nil {
			logCtx := p.logg.WithFields(ctx, map[string]any{
				"attempt_id": attempt.ID.String(),
				"order_id":   attempt.OrderID.String(),
				"gateway":    attempt.Gateway.String(),
			})
			p.logg.Error(logCtx, "payment status poll failed", err)
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func (p *Poller) due(attempt *models.PaymentAttempt, now time.Time) bool {
	if attempt.LastPolledAt == nil {
		return true
	}
	interval := p.cfg.FastInterval
	if attempt.PollAttempts >= p.cfg.FastAttempts {
		interval = p.cfg.SlowInterval
	}
	return now.Sub(*attempt.LastPolledAt) >= interval
}

func (p *Poller) pollAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	order, err := p.ordersRepo.FindByID(ctx, attempt.OrderID)
	if err != nil {
		return err
	}
	if order.Status == enums.OrderStatusCancelled {
		// no point chasing the gateway for an order nobody wants anymore
		return p.svc.MarkExpired(ctx, attempt.ID)
	}

	client, ok := p.gateways[attempt.Gateway]
	if !ok || attempt.GatewayOrderID == nil {
		return p.svc.MarkFailed(ctx, attempt.ID, "attempt is not pollable")
	}

	polls, err := p.repo.IncrementPoll(ctx, attempt.ID, time.Now())
	if err != nil {
		return err
	}

	start := time.Now()
	result, statusErr := client.OrderStatus(ctx, *attempt.GatewayOrderID)
	p.metrics.ObservePollDuration(attempt.Gateway.String(), time.Since(start))

	if statusErr == nil {
		switch result.Status {
		case gateway.StatusPaid:
			return p.svc.ApplyConfirmation(ctx, ConfirmationInput{
				AttemptID:   attempt.ID,
				AmountPaise: result.AmountPaise,
				GatewayRef:  result.GatewayRef,
				Source:      SourcePoll,
			})
		case gateway.StatusFailed:
			return p.svc.MarkFailed(ctx, attempt.ID, "gateway reported failure")
		}
	}

	// pending, unknown, or a transport error: spend the budget and expire
	// the attempt once it runs out
	if polls >= p.cfg.MaxAttempts {
		if err := p.svc.MarkExpired(ctx, attempt.ID); err != nil {
			return err
		}
	}
	return statusErr
}
