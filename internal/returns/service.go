package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/internal/orders"
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
	Issue(ctx context.Context, key string) (string, error)
	Consume(ctx context.Context, key, submitted string) error
	Clear(ctx context.Context, key string) error
}

// Service drives the reverse trip from request to completion.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*View, error)
	Approve(ctx context.Context, input ReviewInput) error
	Reject(ctx context.Context, input ReviewInput) error
	Assign(ctx context.Context, input AssignInput) error
	Reassign(ctx context.Context, input AssignInput) error
	Accept(ctx context.Context, input AgentInput) error
	ReachBuyer(ctx context.Context, input AgentInput) error
	VerifyPickup(ctx context.Context, input VerifyInput) error
	ReachSeller(ctx context.Context, input AgentInput) error
	HandToSeller(ctx context.Context, input VerifyInput) error
	Complete(ctx context.Context, input CompleteInput) error
	FailPickup(ctx context.Context, input FailInput) error
	Get(ctx context.Context, returnID uuid.UUID) (*View, error)
	AgentQueue(ctx context.Context, agentID uuid.UUID) ([]View, error)
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	tx         txRunner
	outbox     outboxPublisher
	locks      lockManager
	otp        otpManager
}

// NewService builds the return workflow service.
func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, ob outboxPublisher, locks lockManager, otp otpManager) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
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
		return nil, fmt.Errorf("otp manager required")
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		tx:         tx,
		outbox:     ob,
		locks:      locks,
		otp:        otp,
	}, nil
}

// chainRank orders the forward chain so repeated calls to an
// already-satisfied step can be recognized as no-ops.
var chainRank = map[enums.ReturnStatus]int{
	enums.ReturnStatusRequested:          0,
	enums.ReturnStatusApproved:           1,
	enums.ReturnStatusAssigned:           2,
	enums.ReturnStatusAccepted:           3,
	enums.ReturnStatusAgentReachedBuyer:  4,
	enums.ReturnStatusPickedUp:           5,
	enums.ReturnStatusAgentReachedSeller: 6,
	enums.ReturnStatusReturnedToSeller:   7,
	enums.ReturnStatusCompleted:          8,
}

// Request opens a return for a delivered order. One open return per order.
func (s *service) Request(ctx context.Context, input RequestInput) (*View, error) {
	if input.OrderID == uuid.Nil || input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and buyer id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}

	var view *View
	err := s.locks.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ordersRepo := s.ordersRepo.WithTx(tx)
			repo := s.repo.WithTx(tx)

			order, err := ordersRepo.FindByID(ctx, input.OrderID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			if order.BuyerID != input.BuyerID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
			}
			if order.Status != enums.OrderStatusDelivered {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned")
			}

			open, err := repo.FindOpenByOrder(ctx, input.OrderID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open return")
			}
			if open != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has an open return")
			}

			created, err := repo.Create(ctx, &models.ReturnAssignment{
				OrderID:  order.ID,
				BuyerID:  order.BuyerID,
				SellerID: order.SellerID,
				Status:   enums.ReturnStatusRequested,
				Reason:   strings.TrimSpace(input.Reason),
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return")
			}
			view = toView(created)

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReturnStatusChanged,
				AggregateType: enums.AggregateReturnAssignment,
				AggregateID:   created.ID,
				Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.ActorRoleBuyer.String()},
				Data: StatusChangedEvent{
					ReturnID: created.ID,
					OrderID:  created.OrderID,
					From:     created.Status,
					To:       created.Status,
				},
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Approve moves a requested return into the assignable pool.
func (s *service) Approve(ctx context.Context, input ReviewInput) error {
	if err := requireAdmin(input.ActorRole); err != nil {
		return err
	}
	return s.move(ctx, input.ReturnID, moveParams{
		to:    enums.ReturnStatusApproved,
		actor: &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()},
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"approved_at": now}
		},
	})
}

// Reject closes a requested return with a reason.
func (s *service) Reject(ctx context.Context, input ReviewInput) error {
	if err := requireAdmin(input.ActorRole); err != nil {
		return err
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reject reason required")
	}
	return s.move(ctx, input.ReturnID, moveParams{
		to:    enums.ReturnStatusRejected,
		actor: &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()},
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"reject_reason": strings.TrimSpace(input.Reason)}
		},
	})
}

// Assign attaches an agent to an approved return.
func (s *service) Assign(ctx context.Context, input AssignInput) error {
	if err := requireAdmin(input.ActorRole); err != nil {
		return err
	}
	if input.AgentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	return s.move(ctx, input.ReturnID, moveParams{
		to:    enums.ReturnStatusAssigned,
		actor: &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()},
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{
				"agent_id":    input.AgentID,
				"assigned_at": now,
			}
		},
	})
}

// Reassign hands the trip to a different agent and rewinds it to assigned.
// Allowed while an agent holds the trip and after a failed pickup; the full
// move history stays in the outbox log.
func (s *service) Reassign(ctx context.Context, input AssignInput) error {
	if err := requireAdmin(input.ActorRole); err != nil {
		return err
	}
	if input.ReturnID == uuid.Nil || input.AgentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id and agent id required")
	}
	assignment, err := s.load(ctx, input.ReturnID)
	if err != nil {
		return err
	}
	return s.locks.WithOrderLock(ctx, assignment.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindByID(ctx, input.ReturnID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return")
			}
			if !IsAgentActive(current.Status) && current.Status != enums.ReturnStatusPickupFailed {
				return pkgerrors.New(pkgerrors.CodePrecondition,
					fmt.Sprintf("cannot reassign a return that is %s", current.Status))
			}

			now := time.Now()
			if err := repo.Update(ctx, current.ID, map[string]any{
				"status":           enums.ReturnStatusAssigned,
				"agent_id":         input.AgentID,
				"assigned_at":      now,
				"accepted_at":      nil,
				"buyer_reached_at": nil,
				"failure_reason":   nil,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassign return")
			}
			_ = s.otp.Clear(ctx, pickupOTPKey(current.ID))

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReturnStatusChanged,
				AggregateType: enums.AggregateReturnAssignment,
				AggregateID:   current.ID,
				Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()},
				Data: StatusChangedEvent{
					ReturnID: current.ID,
					OrderID:  current.OrderID,
					From:     current.Status,
					To:       enums.ReturnStatusAssigned,
				},
			})
		})
	})
}

// Accept is the agent taking the assigned trip.
func (s *service) Accept(ctx context.Context, input AgentInput) error {
	return s.move(ctx, input.ReturnID, moveParams{
		to:      enums.ReturnStatusAccepted,
		agentID: input.AgentID,
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"accepted_at": now}
		},
	})
}

// ReachBuyer stamps arrival at the buyer and issues the pickup code.
func (s *service) ReachBuyer(ctx context.Context, input AgentInput) error {
	return s.move(ctx, input.ReturnID, moveParams{
		to:      enums.ReturnStatusAgentReachedBuyer,
		agentID: input.AgentID,
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"buyer_reached_at": now}
		},
		after: func(ctx context.Context, tx *gorm.DB, a *models.ReturnAssignment) error {
			code, err := s.otp.Issue(ctx, pickupOTPKey(a.ID))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue pickup code")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOtpChallengeIssued,
				AggregateType: enums.AggregateReturnAssignment,
				AggregateID:   a.ID,
				Data: OTPIssuedEvent{
					ReturnID:    a.ID,
					OrderID:     a.OrderID,
					RecipientID: a.BuyerID,
					Code:        code,
				},
			})
		},
	})
}

// VerifyPickup consumes the buyer's code and marks the parcel picked up.
func (s *service) VerifyPickup(ctx context.Context, input VerifyInput) error {
	if input.OTP == "" {
		return pkgerrors.New(pkgerrors.CodeVerification, "pickup code required")
	}
	return s.move(ctx, input.ReturnID, moveParams{
		to:      enums.ReturnStatusPickedUp,
		agentID: input.AgentID,
		before: func(ctx context.Context, a *models.ReturnAssignment) error {
			return s.otp.Consume(ctx, pickupOTPKey(a.ID), input.OTP)
		},
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"picked_up_at": now}
		},
	})
}

// ReachSeller stamps arrival back at the seller and issues the drop code.
func (s *service) ReachSeller(ctx context.Context, input AgentInput) error {
	return s.move(ctx, input.ReturnID, moveParams{
		to:      enums.ReturnStatusAgentReachedSeller,
		agentID: input.AgentID,
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"seller_reached_at": now}
		},
		after: func(ctx context.Context, tx *gorm.DB, a *models.ReturnAssignment) error {
			code, err := s.otp.Issue(ctx, handoverOTPKey(a.ID))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue handover code")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOtpChallengeIssued,
				AggregateType: enums.AggregateReturnAssignment,
				AggregateID:   a.ID,
				Data: OTPIssuedEvent{
					ReturnID:    a.ID,
					OrderID:     a.OrderID,
					RecipientID: a.SellerID,
					Code:        code,
				},
			})
		},
	})
}

// HandToSeller consumes the seller's code and closes the transport leg.
func (s *service) HandToSeller(ctx context.Context, input VerifyInput) error {
	if input.OTP == "" {
		return pkgerrors.New(pkgerrors.CodeVerification, "handover code required")
	}
	return s.move(ctx, input.ReturnID, moveParams{
		to:      enums.ReturnStatusReturnedToSeller,
		agentID: input.AgentID,
		before: func(ctx context.Context, a *models.ReturnAssignment) error {
			return s.otp.Consume(ctx, handoverOTPKey(a.ID), input.OTP)
		},
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"returned_at": now}
		},
	})
}

// Complete closes out the return. Paid orders get the refund amount recorded.
func (s *service) Complete(ctx context.Context, input CompleteInput) error {
	if input.ActorRole != enums.ActorRoleAdmin && input.ActorRole != enums.ActorRoleAgent && input.ActorRole != enums.ActorRoleSystem {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins or agents complete returns")
	}
	return s.move(ctx, input.ReturnID, moveParams{
		to:    enums.ReturnStatusCompleted,
		actor: &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()},
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"completed_at": now}
		},
		after: func(ctx context.Context, tx *gorm.DB, a *models.ReturnAssignment) error {
			order, err := s.ordersRepo.WithTx(tx).FindByID(ctx, a.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			if !order.IsPaid {
				return nil
			}
			return s.repo.WithTx(tx).Update(ctx, a.ID, map[string]any{
				"refund_amount_paise": order.AmountPaise,
			})
		},
	})
}

// FailPickup closes the current attempt with a mandatory reason. Admin review
// picks it up from there, usually ending in a reassign.
func (s *service) FailPickup(ctx context.Context, input FailInput) error {
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
	}
	return s.move(ctx, input.ReturnID, moveParams{
		to:      enums.ReturnStatusPickupFailed,
		agentID: input.AgentID,
		stamps: func(now time.Time, a *models.ReturnAssignment) map[string]any {
			return map[string]any{"failure_reason": strings.TrimSpace(input.Reason)}
		},
		after: func(ctx context.Context, tx *gorm.DB, a *models.ReturnAssignment) error {
			_ = s.otp.Clear(ctx, pickupOTPKey(a.ID))
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReturnPickupFailed,
				AggregateType: enums.AggregateReturnAssignment,
				AggregateID:   a.ID,
				Data: PickupFailedEvent{
					ReturnID: a.ID,
					OrderID:  a.OrderID,
					AgentID:  input.AgentID,
					Reason:   strings.TrimSpace(input.Reason),
				},
			})
		},
	})
}

func (s *service) Get(ctx context.Context, returnID uuid.UUID) (*View, error) {
	assignment, err := s.load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	return toView(assignment), nil
}

func (s *service) AgentQueue(ctx context.Context, agentID uuid.UUID) ([]View, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "agent identity missing")
	}
	rows, err := s.repo.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
	}
	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, *toView(&rows[i]))
	}
	return views, nil
}

type moveParams struct {
	to      enums.ReturnStatus
	agentID uuid.UUID
	actor   *outbox.ActorRef
	before  func(ctx context.Context, a *models.ReturnAssignment) error
	stamps  func(now time.Time, a *models.ReturnAssignment) map[string]any
	after   func(ctx context.Context, tx *gorm.DB, a *models.ReturnAssignment) error
}

// move runs one edge of the workflow under the order lock. A step the trip
// has already passed is a no-op; anything off the table is a precondition
// failure.
func (s *service) move(ctx context.Context, returnID uuid.UUID, params moveParams) error {
	if returnID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	assignment, err := s.load(ctx, returnID)
	if err != nil {
		return err
	}
	return s.locks.WithOrderLock(ctx, assignment.OrderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindByID(ctx, returnID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return")
			}
			if params.agentID != uuid.Nil {
				if current.AgentID == nil || *current.AgentID != params.agentID {
					return pkgerrors.New(pkgerrors.CodeForbidden, "return is assigned to a different agent")
				}
			}

			if current.Status == params.to {
				return nil
			}
			fromRank, fromOnChain := chainRank[current.Status]
			toRank, toOnChain := chainRank[params.to]
			if fromOnChain && toOnChain && fromRank >= toRank {
				return nil
			}
			if !CanTransition(current.Status, params.to) {
				return pkgerrors.New(pkgerrors.CodePrecondition,
					fmt.Sprintf("cannot move return from %s to %s", current.Status, params.to))
			}
			if params.before != nil {
				if err := params.before(ctx, current); err != nil {
					return err
				}
			}

			now := time.Now()
			updates := map[string]any{"status": params.to}
			if params.stamps != nil {
				for k, v := range params.stamps(now, current) {
					updates[k] = v
				}
			}
			if err := repo.Update(ctx, current.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return")
			}

			actor := params.actor
			if actor == nil && params.agentID != uuid.Nil {
				actor = &outbox.ActorRef{UserID: params.agentID, Role: enums.ActorRoleAgent.String()}
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReturnStatusChanged,
				AggregateType: enums.AggregateReturnAssignment,
				AggregateID:   current.ID,
				Actor:         actor,
				Data: StatusChangedEvent{
					ReturnID: current.ID,
					OrderID:  current.OrderID,
					From:     current.Status,
					To:       params.to,
				},
			}); err != nil {
				return err
			}
			if params.after != nil {
				return params.after(ctx, tx, current)
			}
			return nil
		})
	})
}

func (s *service) load(ctx context.Context, returnID uuid.UUID) (*models.ReturnAssignment, error) {
	assignment, err := s.repo.FindByID(ctx, returnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return")
	}
	return assignment, nil
}

func requireAdmin(role enums.ActorRole) error {
	if role != enums.ActorRoleAdmin && role != enums.ActorRoleSystem {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	return nil
}

func pickupOTPKey(returnID uuid.UUID) string {
	return "return-pickup:" + returnID.String()
}

func handoverOTPKey(returnID uuid.UUID) string {
	return "return-handover:" + returnID.String()
}

func toView(a *models.ReturnAssignment) *View {
	return &View{
		ReturnID:          a.ID,
		OrderID:           a.OrderID,
		BuyerID:           a.BuyerID,
		SellerID:          a.SellerID,
		AgentID:           a.AgentID,
		Status:            a.Status,
		Reason:            a.Reason,
		RejectReason:      a.RejectReason,
		FailureReason:     a.FailureReason,
		RefundAmountPaise: a.RefundAmountPaise,
		RequestedAt:       a.RequestedAt,
		CompletedAt:       a.CompletedAt,
	}
}
