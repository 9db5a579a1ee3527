package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/internal/orders"
	"github.com/arjunkapur/swiftkart-backend/pkg/db"
	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/gateway"
	"github.com/arjunkapur/swiftkart-backend/pkg/metrics"
	"github.com/arjunkapur/swiftkart-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type lockManager interface {
	WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error
}

type otpIssuer interface {
	Issue(ctx context.Context, orderID string) (string, error)
}

// Service reconciles gateway collection attempts against orders.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*AttemptView, error)
	ApplyConfirmation(ctx context.Context, input ConfirmationInput) error
	SettleCash(ctx context.Context, tx *gorm.DB, order *models.Order, agentID uuid.UUID) error
	MarkFailed(ctx context.Context, attemptID uuid.UUID, reason string) error
	MarkExpired(ctx context.Context, attemptID uuid.UUID) error
	HandleWebhook(ctx context.Context, input WebhookInput) error
	Status(ctx context.Context, input StatusInput) (*AttemptView, error)
}

type service struct {
	repo           Repository
	ordersRepo     orders.Repository
	tx             txRunner
	outbox         outboxPublisher
	locks          lockManager
	otp            otpIssuer
	gateways       map[enums.PaymentGateway]gateway.Client
	defaultGateway enums.PaymentGateway
	metrics        *metrics.ReconcilerMetrics
}

// NewService builds the payment reconciler.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	tx txRunner,
	ob outboxPublisher,
	locks lockManager,
	otp otpIssuer,
	gateways map[enums.PaymentGateway]gateway.Client,
	defaultGateway enums.PaymentGateway,
	m *metrics.ReconcilerMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock manager required")
	}
	if otp == nil {
		return nil, fmt.Errorf("otp issuer required")
	}
	if len(gateways) == 0 {
		return nil, fmt.Errorf("at least one gateway client required")
	}
	if _, ok := gateways[defaultGateway]; !ok {
		return nil, fmt.Errorf("default gateway %q has no client", defaultGateway)
	}
	return &service{
		repo:           repo,
		ordersRepo:     ordersRepo,
		tx:             tx,
		outbox:         ob,
		locks:          locks,
		otp:            otp,
		gateways:       gateways,
		defaultGateway: defaultGateway,
		metrics:        m,
	}, nil
}

// CreateIntent opens a gateway order for an unpaid order. Calling it again
// while an attempt is still open returns the open attempt unchanged.
func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*AttemptView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	gatewayName := input.Gateway
	if gatewayName == "" {
		gatewayName = s.defaultGateway
	}
	client, ok := s.gateways[gatewayName]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported gateway %q", gatewayName))
	}
	channel := input.Channel
	if channel == "" {
		channel = enums.PaymentChannelQR
	}

	var view *AttemptView
	err := s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		order, err := s.ordersRepo.FindByIDWithAssignment(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := requirePaymentActor(order, input.ActorUserID, input.ActorRole); err != nil {
			return err
		}
		if order.IsPaid {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot collect payment for a cancelled order")
		}
		held, err := s.repo.HasIntegrityHold(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check integrity hold")
		}
		if held {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "payment collection is halted pending manual review")
		}

		existing, err := s.repo.FindOpenByOrder(ctx, input.OrderID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open attempt")
		}
		if existing != nil {
			view = toAttemptView(existing)
			return nil
		}

		intent, err := client.CreateOrder(ctx, gateway.CreateOrderInput{
			ReferenceID: order.ID.String(),
			AmountPaise: order.AmountPaise,
			CustomerRef: order.BuyerID.String(),
		})
		if err != nil {
			return err
		}

		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			attempt := &models.PaymentAttempt{
				OrderID:        order.ID,
				Gateway:        gatewayName,
				Channel:        channel,
				Status:         enums.PaymentAttemptStatusPending,
				AmountPaise:    order.AmountPaise,
				GatewayOrderID: &intent.GatewayOrderID,
			}
			if intent.QRPayload != "" {
				qr := intent.QRPayload
				attempt.QRPayload = &qr
			}
			created, err := repo.Create(ctx, attempt)
			if err != nil {
				if db.IsUniqueViolation(err, "uq_payment_attempts_order_pending") {
					open, findErr := repo.FindOpenByOrder(ctx, order.ID)
					if findErr != nil {
						return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load open attempt")
					}
					view = toAttemptView(open)
					return nil
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment attempt")
			}
			view = toAttemptView(created)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ApplyConfirmation settles an open attempt. A confirmation for an attempt
// that is no longer open is a no-op; the order is marked paid at most once.
// A confirmation that arrives after the order was cancelled still records the
// payment so it can be refunded, but never moves the order status.
func (s *service) ApplyConfirmation(ctx context.Context, input ConfirmationInput) error {
	attempt, err := s.resolveAttempt(ctx, input)
	if err != nil {
		return err
	}
	source := input.Source
	if source == "" {
		source = SourceWebhook
	}

	var integrityErr error
	err = s.locks.WithOrderLock(ctx, attempt.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			ordersRepo := s.ordersRepo.WithTx(tx)

			current, err := repo.FindByID(ctx, attempt.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attempt")
			}
			if !current.IsOpen() {
				return nil
			}

			// poll results always carry the confirmed amount, so a missing one
			// is as suspect as a wrong one; webhooks may legitimately omit it
			if input.AmountPaise != current.AmountPaise && (input.AmountPaise > 0 || source == SourcePoll) {
				if err := s.recordIntegrityAlert(ctx, tx, repo, current, input); err != nil {
					return err
				}
				integrityErr = pkgerrors.New(pkgerrors.CodeIntegrity, "confirmed amount does not match the order")
				return nil
			}

			order, err := ordersRepo.FindByID(ctx, current.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}

			now := time.Now()
			updates := map[string]any{
				"status":       enums.PaymentAttemptStatusCompleted,
				"confirmed_at": now,
			}
			if input.GatewayRef != "" {
				updates["gateway_ref"] = input.GatewayRef
			}
			if err := repo.Update(ctx, current.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle attempt")
			}

			flipped, err := ordersRepo.MarkPaid(ctx, current.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}
			if !flipped {
				return nil
			}
			s.metrics.IncConfirmation(current.Gateway.String(), source)

			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentConfirmed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   current.OrderID,
				Data: ConfirmedEvent{
					OrderID:     current.OrderID,
					AttemptID:   current.ID,
					Gateway:     current.Gateway,
					AmountPaise: current.AmountPaise,
					GatewayRef:  input.GatewayRef,
					Source:      source,
				},
			}); err != nil {
				return err
			}

			return s.issueDeliveryCode(ctx, tx, order, current)
		})
	})
	if err != nil {
		return err
	}
	return integrityErr
}

// issueDeliveryCode hands the buyer the code that closes a door collection.
// It is only relevant for the scannable-code path and only while the order is
// still in flight; a late confirmation on a cancelled order is bookkeeping.
func (s *service) issueDeliveryCode(ctx context.Context, tx *gorm.DB, order *models.Order, attempt *models.PaymentAttempt) error {
	if order.PaymentMethod != enums.PaymentMethodCOD || attempt.Channel != enums.PaymentChannelQR {
		return nil
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil
	}
	code, err := s.otp.Issue(ctx, order.ID.String())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue delivery code")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOtpChallengeIssued,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: CodeIssuedEvent{
			OrderID: order.ID,
			BuyerID: order.BuyerID,
			Code:    code,
		},
	})
}

// SettleCash closes a collect-on-delivery order's payment with an agent's
// cash acknowledgment. It runs inside the caller's transaction and assumes
// the caller already holds the order lock.
func (s *service) SettleCash(ctx context.Context, tx *gorm.DB, order *models.Order, agentID uuid.UUID) error {
	if order == nil || order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.PaymentMethod != enums.PaymentMethodCOD {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cash settlement applies to collect-on-delivery orders only")
	}
	repo := s.repo.WithTx(tx)
	ordersRepo := s.ordersRepo.WithTx(tx)
	now := time.Now()

	attempt, err := repo.FindOpenByOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open attempt")
	}
	if attempt != nil {
		if err := repo.Update(ctx, attempt.ID, map[string]any{
			"status":       enums.PaymentAttemptStatusCompleted,
			"confirmed_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle attempt")
		}
	} else {
		attempt, err = repo.Create(ctx, &models.PaymentAttempt{
			OrderID:     order.ID,
			Gateway:     s.defaultGateway,
			Channel:     enums.PaymentChannelCash,
			Status:      enums.PaymentAttemptStatusCompleted,
			AmountPaise: order.AmountPaise,
			ConfirmedAt: &now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cash attempt")
		}
	}

	flipped, err := ordersRepo.MarkPaid(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !flipped {
		return nil
	}
	s.metrics.IncConfirmation(attempt.Gateway.String(), SourceCash)

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: agentID, Role: enums.ActorRoleAgent.String()},
		Data: ConfirmedEvent{
			OrderID:     order.ID,
			AttemptID:   attempt.ID,
			Gateway:     attempt.Gateway,
			AmountPaise: order.AmountPaise,
			Source:      SourceCash,
		},
	})
}

// MarkFailed closes an open attempt as declined by the gateway.
func (s *service) MarkFailed(ctx context.Context, attemptID uuid.UUID, reason string) error {
	return s.closeAttempt(ctx, attemptID, func(ctx context.Context, tx *gorm.DB, repo Repository, current *models.PaymentAttempt) error {
		now := time.Now()
		updates := map[string]any{
			"status":    enums.PaymentAttemptStatusFailed,
			"failed_at": now,
		}
		if reason != "" {
			updates["failure_reason"] = reason
		}
		if err := repo.Update(ctx, current.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail attempt")
		}
		s.metrics.IncFailure(current.Gateway.String())
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   current.ID,
			Data: FailedEvent{
				OrderID:   current.OrderID,
				AttemptID: current.ID,
				Gateway:   current.Gateway,
				Reason:    reason,
			},
		})
	})
}

// MarkExpired closes an open attempt whose polling budget ran out. The order
// stays unpaid and a fresh intent may be created afterwards.
func (s *service) MarkExpired(ctx context.Context, attemptID uuid.UUID) error {
	return s.closeAttempt(ctx, attemptID, func(ctx context.Context, tx *gorm.DB, repo Repository, current *models.PaymentAttempt) error {
		if err := repo.Update(ctx, current.ID, map[string]any{
			"status":     enums.PaymentAttemptStatusExpired,
			"expired_at": time.Now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire attempt")
		}
		s.metrics.IncExpiration(current.Gateway.String())
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentAttemptExpired,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   current.ID,
			Data: ExpiredEvent{
				OrderID:      current.OrderID,
				AttemptID:    current.ID,
				Gateway:      current.Gateway,
				PollAttempts: current.PollAttempts,
			},
		})
	})
}

// HandleWebhook routes a normalized gateway callback to the right settlement.
// Unknown gateway order ids are rejected so providers retry later.
func (s *service) HandleWebhook(ctx context.Context, input WebhookInput) error {
	if input.GatewayOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	switch {
	case input.Paid:
		return s.ApplyConfirmation(ctx, ConfirmationInput{
			Gateway:        input.Gateway,
			GatewayOrderID: input.GatewayOrderID,
			AmountPaise:    input.AmountPaise,
			GatewayRef:     input.GatewayRef,
			Source:         SourceWebhook,
		})
	case input.Failed:
		attempt, err := s.repo.FindByGatewayOrderID(ctx, input.Gateway, input.GatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attempt")
		}
		return s.MarkFailed(ctx, attempt.ID, input.FailureReason)
	default:
		return nil
	}
}

// Status returns the latest attempt for an order.
func (s *service) Status(ctx context.Context, input StatusInput) (*AttemptView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.ordersRepo.FindByIDWithAssignment(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := requirePaymentViewer(order, input.ActorUserID, input.ActorRole); err != nil {
		return nil, err
	}
	attempt, err := s.repo.LatestByOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment attempt for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attempt")
	}
	return toAttemptView(attempt), nil
}

func (s *service) resolveAttempt(ctx context.Context, input ConfirmationInput) (*models.PaymentAttempt, error) {
	var (
		attempt *models.PaymentAttempt
		err     error
	)
	switch {
	case input.AttemptID != uuid.Nil:
		attempt, err = s.repo.FindByID(ctx, input.AttemptID)
	case input.GatewayOrderID != "":
		attempt, err = s.repo.FindByGatewayOrderID(ctx, input.Gateway, input.GatewayOrderID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attempt id or gateway order id required")
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attempt")
	}
	return attempt, nil
}

// recordIntegrityAlert freezes the attempt and raises a one-shot alert
// instead of confirming a mismatched amount. The hold blocks any further
// intents for the order until an operator clears it.
func (s *service) recordIntegrityAlert(ctx context.Context, tx *gorm.DB, repo Repository, current *models.PaymentAttempt, input ConfirmationInput) error {
	reason := fmt.Sprintf("amount mismatch: expected %d paise, gateway reported %d", current.AmountPaise, input.AmountPaise)
	if err := repo.Update(ctx, current.ID, map[string]any{
		"status":         enums.PaymentAttemptStatusIntegrityHold,
		"failed_at":      time.Now(),
		"failure_reason": reason,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail attempt")
	}
	s.metrics.IncIntegrityAlert()
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentIntegrityAlert,
		AggregateType: enums.AggregatePaymentAttempt,
		AggregateID:   current.ID,
		Data: IntegrityAlertEvent{
			OrderID:       current.OrderID,
			AttemptID:     current.ID,
			Gateway:       current.Gateway,
			ExpectedPaise: current.AmountPaise,
			ReportedPaise: input.AmountPaise,
			GatewayRef:    input.GatewayRef,
		},
	})
}

// closeAttempt runs a terminal transition on an attempt under the order lock.
// Attempts that are already closed are left untouched.
func (s *service) closeAttempt(ctx context.Context, attemptID uuid.UUID, fn func(ctx context.Context, tx *gorm.DB, repo Repository, current *models.PaymentAttempt) error) error {
	if attemptID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "attempt id required")
	}
	attempt, err := s.repo.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attempt")
	}
	return s.locks.WithOrderLock(ctx, attempt.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindByID(ctx, attemptID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attempt")
			}
			if !current.IsOpen() {
				return nil
			}
			return fn(ctx, tx, repo, current)
		})
	})
}

func requirePaymentActor(order *models.Order, actorID uuid.UUID, role enums.ActorRole) error {
	switch role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID == actorID {
			return nil
		}
	case enums.ActorRoleAgent:
		// agents open door-collection intents for their own assignment
		if order.Assignment != nil && order.Assignment.AgentID == actorID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to collect payment for this order")
}

func requirePaymentViewer(order *models.Order, actorID uuid.UUID, role enums.ActorRole) error {
	switch role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID == actorID {
			return nil
		}
	case enums.ActorRoleSeller:
		if order.SellerID == actorID {
			return nil
		}
	case enums.ActorRoleAgent:
		if order.Assignment != nil && order.Assignment.AgentID == actorID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view payments for this order")
}

func toAttemptView(attempt *models.PaymentAttempt) *AttemptView {
	view := &AttemptView{
		AttemptID:    attempt.ID,
		OrderID:      attempt.OrderID,
		Gateway:      attempt.Gateway,
		Channel:      attempt.Channel,
		Status:       attempt.Status,
		AmountPaise:  attempt.AmountPaise,
		PollAttempts: attempt.PollAttempts,
		ConfirmedAt:  attempt.ConfirmedAt,
		CreatedAt:    attempt.CreatedAt,
	}
	if attempt.GatewayOrderID != nil {
		view.GatewayOrderID = *attempt.GatewayOrderID
	}
	if attempt.QRPayload != nil {
		view.QRPayload = *attempt.QRPayload
	}
	return view
}
