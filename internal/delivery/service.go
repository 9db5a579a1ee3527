package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/internal/orders"
	"github.com/arjunkapur/swiftkart-backend/internal/payments"
	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/outbox"
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

type otpManager interface {
	Issue(ctx context.Context, orderID string) (string, error)
	Consume(ctx context.Context, orderID, submitted string) error
	Clear(ctx context.Context, orderID string) error
}

// paymentCollector is the slice of the reconciler the checkpoint flow needs:
// opening a door-collection intent and settling a cash handover.
type paymentCollector interface {
	CreateIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.AttemptView, error)
	SettleCash(ctx context.Context, tx *gorm.DB, order *models.Order, agentID uuid.UUID) error
}

// Service drives the agent checkpoint flow from assignment to handover.
type Service interface {
	Assign(ctx context.Context, input AssignInput) (*models.DeliveryAssignment, error)
	ReachSeller(ctx context.Context, input CheckpointInput) error
	VerifyPickup(ctx context.Context, input VerifyPickupInput) error
	ReachBuyer(ctx context.Context, input CheckpointInput) (*ReachBuyerResult, error)
	CompleteDelivery(ctx context.Context, input CompleteInput) error
	AgentAssignments(ctx context.Context, agentID uuid.UUID) (*AssignmentList, error)
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	tx         txRunner
	outbox     outboxPublisher
	locks      lockManager
	otp        otpManager
	payments   paymentCollector
}

// NewService builds the checkpoint flow service.
func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, outbox outboxPublisher, locks lockManager, otp otpManager, collector paymentCollector) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if ordersRepo == nil {
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
	if otp == nil {
		return nil, fmt.Errorf("otp manager required")
	}
	if collector == nil {
		return nil, fmt.Errorf("payment collector required")
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		tx:         tx,
		outbox:     outbox,
		locks:      locks,
		otp:        otp,
		payments:   collector,
	}, nil
}

// Assign attaches an agent to a pickup-ready order. An existing active
// assignment blocks the call unless Reassign is set, in which case the old
// assignment is released first.
func (s *service) Assign(ctx context.Context, input AssignInput) (*models.DeliveryAssignment, error) {
	if input.OrderID == uuid.Nil || input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and agent id required")
	}
	if input.ActorRole != enums.ActorRoleAdmin && input.ActorRole != enums.ActorRoleSeller && input.ActorRole != enums.ActorRoleSystem {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only sellers or admins assign agents")
	}

	var assignment *models.DeliveryAssignment
	err := s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ordersRepo := s.ordersRepo.WithTx(tx)
			repo := s.repo.WithTx(tx)

			order, err := loadOrder(ctx, ordersRepo, input.OrderID)
			if err != nil {
				return err
			}
			if input.ActorRole == enums.ActorRoleSeller && order.SellerID != input.ActorUserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
			}
			if order.Status != enums.OrderStatusPickupReady && order.Status != enums.OrderStatusProcessing {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot assign agent while order is %s", order.Status))
			}

			existing, err := repo.FindActiveByOrder(ctx, input.OrderID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
			}
			if existing != nil {
				if !input.Reassign {
					return pkgerrors.New(pkgerrors.CodeConflict, "order already has an active agent")
				}
				if err := repo.Deactivate(ctx, input.OrderID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release previous agent")
				}
			}

			actorID := input.ActorUserID
			created, err := repo.Create(ctx, &models.DeliveryAssignment{
				OrderID:          input.OrderID,
				AgentID:          input.AgentID,
				AssignedByUserID: &actorID,
				Active:           true,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
			}
			assignment = created

			// assigning an agent to a processing order is what makes it
			// pickup-ready
			if order.Status == enums.OrderStatusProcessing {
				if err := ordersRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusPickupReady); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
				}
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventOrderStatusChanged,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()},
					Data: orders.StatusChangedEvent{
						OrderID: order.ID,
						From:    enums.OrderStatusProcessing,
						To:      enums.OrderStatusPickupReady,
					},
				}); err != nil {
					return err
				}
			}

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCheckpointReached,
				AggregateType: enums.AggregateOrder,
				AggregateID:   input.OrderID,
				Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()},
				Data: CheckpointEvent{
					OrderID:      input.OrderID,
					AssignmentID: created.ID,
					AgentID:      input.AgentID,
					Checkpoint:   CheckpointAgentAssigned,
				},
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// ReachSeller stamps the agent's arrival at the pickup point. Calling it
// again after the stamp is a no-op.
func (s *service) ReachSeller(ctx context.Context, input CheckpointInput) error {
	return s.checkpoint(ctx, input, CheckpointReachSeller, func(order *models.Order, a *models.DeliveryAssignment) (map[string]any, error) {
		if order.Status != enums.OrderStatusPickupReady {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot reach seller while order is %s", order.Status))
		}
		if a.SellerReachedAt != nil {
			return nil, nil
		}
		return map[string]any{"seller_reached_at": time.Now()}, nil
	})
}

// VerifyPickup confirms the handover at the seller and moves the order out
// for delivery. The agent reads back the order number the seller discloses;
// it must match the order exactly. Requires ReachSeller first.
func (s *service) VerifyPickup(ctx context.Context, input VerifyPickupInput) error {
	if input.OrderID == uuid.Nil || input.AgentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and agent id required")
	}
	number := strings.TrimSpace(input.OrderNumber)
	if number == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	return s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ordersRepo := s.ordersRepo.WithTx(tx)
			repo := s.repo.WithTx(tx)

			order, assignment, err := loadOrderAssignment(ctx, ordersRepo, repo, input.OrderID, input.AgentID)
			if err != nil {
				return err
			}
			if number != order.OrderNumber {
				return pkgerrors.New(pkgerrors.CodeVerification, "order number does not match").
					WithDetails(map[string]any{"submitted": number})
			}
			if assignment.PickupVerifiedAt != nil {
				return nil
			}
			if assignment.SellerReachedAt == nil {
				return pkgerrors.New(pkgerrors.CodePrecondition, "agent has not reached the seller")
			}
			if !orders.CanTransition(order.Status, enums.OrderStatusOutForDelivery) {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot verify pickup while order is %s", order.Status))
			}

			if err := repo.Update(ctx, assignment.ID, map[string]any{"pickup_verified_at": time.Now()}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp pickup")
			}
			if err := ordersRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusOutForDelivery); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}

			if err := s.emitCheckpoint(ctx, tx, order.ID, assignment, CheckpointVerifyPickup); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: input.AgentID, Role: enums.ActorRoleAgent.String()},
				Data: orders.StatusChangedEvent{
					OrderID: order.ID,
					From:    order.Status,
					To:      enums.OrderStatusOutForDelivery,
				},
			})
		})
	})
}

// ReachBuyer stamps arrival at the drop point. Prepaid orders get their
// delivery code immediately; collect-on-delivery orders instead get a QR
// payment intent, and the code follows once the payment confirms.
func (s *service) ReachBuyer(ctx context.Context, input CheckpointInput) (*ReachBuyerResult, error) {
	if input.OrderID == uuid.Nil || input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and agent id required")
	}

	result := &ReachBuyerResult{}
	var order *models.Order
	err := s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ordersRepo := s.ordersRepo.WithTx(tx)
			repo := s.repo.WithTx(tx)

			loaded, assignment, err := loadOrderAssignment(ctx, ordersRepo, repo, input.OrderID, input.AgentID)
			if err != nil {
				return err
			}
			order = loaded
			if assignment.BuyerReachedAt != nil {
				return nil
			}
			if assignment.PickupVerifiedAt == nil {
				return pkgerrors.New(pkgerrors.CodePrecondition, "pickup has not been verified")
			}
			if order.Status != enums.OrderStatusOutForDelivery {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot reach buyer while order is %s", order.Status))
			}

			if err := repo.Update(ctx, assignment.ID, map[string]any{"buyer_reached_at": time.Now()}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp buyer arrival")
			}

			if order.PaymentMethod != enums.PaymentMethodCOD {
				code, err := s.otp.Issue(ctx, order.ID.String())
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue delivery code")
				}
				result.OTPIssued = true
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventOtpChallengeIssued,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Data: OTPIssuedEvent{
						OrderID: order.ID,
						BuyerID: order.BuyerID,
						Code:    code,
					},
				}); err != nil {
					return err
				}
			}

			return s.emitCheckpoint(ctx, tx, order.ID, assignment, CheckpointReachBuyer)
		})
	})
	if err != nil {
		return nil, err
	}

	// open the door-collection intent outside the order lock; CreateIntent
	// takes the same lock and reuses an open attempt on retries
	if order.PaymentMethod == enums.PaymentMethodCOD && !order.IsPaid {
		attempt, err := s.payments.CreateIntent(ctx, payments.CreateIntentInput{
			OrderID:     input.OrderID,
			ActorUserID: input.AgentID,
			ActorRole:   enums.ActorRoleAgent,
			Channel:     enums.PaymentChannelQR,
		})
		if err != nil {
			return nil, err
		}
		result.Payment = attempt
	}
	return result, nil
}

// CompleteDelivery closes the trip. A matching delivery code proves the
// handover; COD codes only exist once the door payment has confirmed, so a
// code alone never completes an unpaid order. COD orders may instead record
// a cash handover, which settles the open attempt through the reconciler.
func (s *service) CompleteDelivery(ctx context.Context, input CompleteInput) error {
	if input.OrderID == uuid.Nil || input.AgentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and agent id required")
	}
	return s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ordersRepo := s.ordersRepo.WithTx(tx)
			repo := s.repo.WithTx(tx)

			order, assignment, err := loadOrderAssignment(ctx, ordersRepo, repo, input.OrderID, input.AgentID)
			if err != nil {
				return err
			}
			if assignment.DeliveredAt != nil {
				if input.OTP != "" && assignment.OTPVerifiedAt != nil {
					return pkgerrors.New(pkgerrors.CodeAlreadyConsumed, "delivery code already used")
				}
				return nil
			}
			if assignment.BuyerReachedAt == nil {
				return pkgerrors.New(pkgerrors.CodePrecondition, "agent has not reached the buyer")
			}
			if order.Status != enums.OrderStatusOutForDelivery {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot complete delivery while order is %s", order.Status))
			}

			now := time.Now()
			updates := map[string]any{"delivered_at": now}

			switch {
			case input.OTP != "":
				if assignment.OTPVerifiedAt != nil {
					return pkgerrors.New(pkgerrors.CodeAlreadyConsumed, "delivery code already used")
				}
				if order.PaymentMethod == enums.PaymentMethodCOD && !order.IsPaid {
					return pkgerrors.New(pkgerrors.CodePrecondition, "payment has not been confirmed")
				}
				if err := s.otp.Consume(ctx, order.ID.String(), input.OTP); err != nil {
					return err
				}
				updates["otp_verified_at"] = now
			case order.PaymentMethod == enums.PaymentMethodCOD && input.CashCollected:
				// lower-assurance path: cash handover without a code
				updates["cash_collected_at"] = now
				if err := s.payments.SettleCash(ctx, tx, order, input.AgentID); err != nil {
					return err
				}
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventCashCollected,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Data: CashCollectedEvent{
						OrderID:     order.ID,
						AgentID:     input.AgentID,
						AmountPaise: order.AmountPaise,
					},
				}); err != nil {
					return err
				}
			default:
				return pkgerrors.New(pkgerrors.CodeVerification, "delivery code required")
			}

			if err := repo.Update(ctx, assignment.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp delivery")
			}
			if err := ordersRepo.Update(ctx, order.ID, map[string]any{
				"status":       enums.OrderStatusDelivered,
				"delivered_at": now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}

			if err := s.emitCheckpoint(ctx, tx, order.ID, assignment, CheckpointCompleteDelivery); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: input.AgentID, Role: enums.ActorRoleAgent.String()},
				Data: orders.StatusChangedEvent{
					OrderID: order.ID,
					From:    order.Status,
					To:      enums.OrderStatusDelivered,
				},
			})
		})
	})
}

func (s *service) AgentAssignments(ctx context.Context, agentID uuid.UUID) (*AssignmentList, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "agent identity missing")
	}
	rows, err := s.repo.ListActiveByAgent(ctx, agentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}

	list := &AssignmentList{Assignments: make([]AssignmentView, 0, len(rows))}
	for i := range rows {
		assignment := rows[i]
		order, err := s.ordersRepo.FindByID(ctx, assignment.OrderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment order")
		}
		list.Assignments = append(list.Assignments, AssignmentView{
			AssignmentID:  assignment.ID,
			OrderID:       assignment.OrderID,
			AgentID:       assignment.AgentID,
			OrderStatus:   order.Status,
			AgentStatus:   assignment.AgentStatus(),
			PaymentMethod: order.PaymentMethod,
			AmountPaise:   order.AmountPaise,
			IsPaid:        order.IsPaid,
			AssignedAt:    assignment.AssignedAt,
		})
	}
	return list, nil
}

// checkpoint runs a simple stamp-only checkpoint under the order lock.
func (s *service) checkpoint(ctx context.Context, input CheckpointInput, name Checkpoint, guard func(*models.Order, *models.DeliveryAssignment) (map[string]any, error)) error {
	if input.OrderID == uuid.Nil || input.AgentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and agent id required")
	}
	return s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ordersRepo := s.ordersRepo.WithTx(tx)
			repo := s.repo.WithTx(tx)

			order, assignment, err := loadOrderAssignment(ctx, ordersRepo, repo, input.OrderID, input.AgentID)
			if err != nil {
				return err
			}
			updates, err := guard(order, assignment)
			if err != nil {
				return err
			}
			if updates == nil {
				return nil
			}
			if err := repo.Update(ctx, assignment.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp checkpoint")
			}
			return s.emitCheckpoint(ctx, tx, order.ID, assignment, name)
		})
	})
}

func (s *service) emitCheckpoint(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, assignment *models.DeliveryAssignment, name Checkpoint) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCheckpointReached,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &outbox.ActorRef{UserID: assignment.AgentID, Role: enums.ActorRoleAgent.String()},
		Data: CheckpointEvent{
			OrderID:      orderID,
			AssignmentID: assignment.ID,
			AgentID:      assignment.AgentID,
			Checkpoint:   name,
		},
	})
}

func loadOrder(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func loadOrderAssignment(ctx context.Context, ordersRepo orders.Repository, repo Repository, orderID, agentID uuid.UUID) (*models.Order, *models.DeliveryAssignment, error) {
	order, err := loadOrder(ctx, ordersRepo, orderID)
	if err != nil {
		return nil, nil, err
	}
	assignment, err := repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active assignment for order")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment.AgentID != agentID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to a different agent")
	}
	return order, assignment, nil
}
