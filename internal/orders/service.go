package orders

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/pkg/db"
	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/outbox"
	"github.com/arjunkapur/swiftkart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type lockManager interface {
	WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error
}

// Service defines the buyer/seller-facing order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Accept(ctx context.Context, input AcceptInput) error
	MarkPickupReady(ctx context.Context, input PickupReadyInput) error
	Cancel(ctx context.Context, input CancelInput) error
	Get(ctx context.Context, orderID, actorID uuid.UUID, role enums.ActorRole) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	locks  lockManager
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, locks lockManager) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock manager required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, locks: locks}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	order := &models.Order{
		BuyerID:       input.BuyerID,
		SellerID:      input.SellerID,
		Status:        enums.OrderStatusPending,
		PaymentMethod: input.PaymentMethod,
		AmountPaise:   input.AmountPaise,
		DeliveryNotes: input.DeliveryNotes,
	}

	// the generated order number can collide; retry the whole tx with a fresh
	// one rather than fighting an aborted transaction
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		order.OrderNumber = newOrderNumber()
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			created, createErr := repo.Create(ctx, order)
			if createErr != nil {
				return createErr
			}
			order = created
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.ActorRoleBuyer.String()},
				Data: CreatedEvent{
					OrderID:       order.ID,
					OrderNumber:   order.OrderNumber,
					BuyerID:       order.BuyerID,
					SellerID:      order.SellerID,
					PaymentMethod: order.PaymentMethod,
					AmountPaise:   order.AmountPaise,
				},
			})
		})
		if err == nil || !db.IsUniqueViolation(err, "uq_orders_number") {
			break
		}
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

// newOrderNumber builds the human-readable identifier sellers read back to
// agents at pickup, e.g. SK-20260831-042117.
func newOrderNumber() string {
	return fmt.Sprintf("SK-%s-%06d", time.Now().UTC().Format("20060102"), rand.IntN(1000000))
}

// Accept moves a pending order into preparation. Prepaid orders must be paid
// first; the reconciler performs this move automatically on confirmation, so
// the manual path exists for COD and for sellers racing the reconciler.
func (s *service) Accept(ctx context.Context, input AcceptInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := findOrder(ctx, repo, input.OrderID)
			if err != nil {
				return err
			}
			if err := requireSellerOrAdmin(order, input.ActorUserID, input.ActorRole); err != nil {
				return err
			}
			if order.Status == enums.OrderStatusProcessing {
				return nil
			}
			if !CanTransition(order.Status, enums.OrderStatusProcessing) {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot accept order in state %s", order.Status))
			}
			if order.PaymentMethod == enums.PaymentMethodPrepaid && !order.IsPaid {
				return pkgerrors.New(pkgerrors.CodePrecondition, "prepaid order has not been paid")
			}

			return s.moveStatus(ctx, tx, repo, order, enums.OrderStatusProcessing,
				&outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()})
		})
	})
}

func (s *service) MarkPickupReady(ctx context.Context, input PickupReadyInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := findOrder(ctx, repo, input.OrderID)
			if err != nil {
				return err
			}
			if err := requireSellerOrAdmin(order, input.ActorUserID, input.ActorRole); err != nil {
				return err
			}
			if order.Status == enums.OrderStatusPickupReady {
				return nil
			}
			if !CanTransition(order.Status, enums.OrderStatusPickupReady) {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot mark pickup ready in state %s", order.Status))
			}

			return s.moveStatus(ctx, tx, repo, order, enums.OrderStatusPickupReady,
				&outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()})
		})
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancel reason required")
	}

	return s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := findOrder(ctx, repo, input.OrderID)
			if err != nil {
				return err
			}
			if err := requireCancelAuthority(order, input.ActorUserID, input.ActorRole); err != nil {
				return err
			}
			if order.Status == enums.OrderStatusCancelled {
				return nil
			}
			if !CanCancel(input.ActorRole, order.Status) {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("%s cannot cancel order in state %s", input.ActorRole, order.Status))
			}

			now := time.Now()
			role := input.ActorRole
			updates := map[string]any{
				"status":        enums.OrderStatusCancelled,
				"cancel_reason": input.Reason,
				"cancelled_by":  role,
				"cancelled_at":  now,
			}
			if err := repo.Update(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
			}
			if err := repo.DeactivateAssignments(ctx, order.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release agent assignment")
			}

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: role.String()},
				Data: CancelledEvent{
					OrderID:     order.ID,
					From:        order.Status,
					Reason:      input.Reason,
					CancelledBy: role,
				},
			})
		})
	})
}

func (s *service) Get(ctx context.Context, orderID, actorID uuid.UUID, role enums.ActorRole) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByIDWithAssignment(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !canView(order, actorID, role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	return s.repo.ListByBuyer(ctx, buyerID, params, filters)
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity missing")
	}
	return s.repo.ListBySeller(ctx, sellerID, params, filters)
}

// moveStatus performs a guarded transition and emits the status change event
// in the same transaction.
func (s *service) moveStatus(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, to enums.OrderStatus, actor *outbox.ActorRef) error {
	from := order.Status
	if err := repo.UpdateStatus(ctx, order.ID, to); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = to
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: StatusChangedEvent{
			OrderID: order.ID,
			From:    from,
			To:      to,
		},
	})
}

func findOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func requireSellerOrAdmin(order *models.Order, actorID uuid.UUID, role enums.ActorRole) error {
	switch role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleSeller:
		if order.SellerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "operation reserved for the seller")
	}
}

func requireCancelAuthority(order *models.Order, actorID uuid.UUID, role enums.ActorRole) error {
	switch role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		return nil
	case enums.ActorRoleSeller:
		if order.SellerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot cancel orders")
	}
}

func canView(order *models.Order, actorID uuid.UUID, role enums.ActorRole) bool {
	switch role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return true
	case enums.ActorRoleBuyer:
		return order.BuyerID == actorID
	case enums.ActorRoleSeller:
		return order.SellerID == actorID
	case enums.ActorRoleAgent:
		return order.Assignment != nil && order.Assignment.AgentID == actorID
	default:
		return false
	}
}
