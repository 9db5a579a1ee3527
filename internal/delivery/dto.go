package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/internal/payments"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// Checkpoint names the stops an agent stamps along the forward trip.
type Checkpoint string

const (
	CheckpointAgentAssigned    Checkpoint = "agent_assigned"
	CheckpointReachSeller      Checkpoint = "reach_seller"
	CheckpointVerifyPickup     Checkpoint = "verify_pickup"
	CheckpointReachBuyer       Checkpoint = "reach_buyer"
	CheckpointCompleteDelivery Checkpoint = "complete_delivery"
)

// AssignInput attaches an agent to a pickup-ready order.
type AssignInput struct {
	OrderID     uuid.UUID
	AgentID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	Reassign    bool
}

// CheckpointInput is the common shape for agent checkpoint calls.
type CheckpointInput struct {
	OrderID uuid.UUID
	AgentID uuid.UUID
}

// VerifyPickupInput proves the handover at the seller. OrderNumber is the
// seller-disclosed number the agent reads back; it must match exactly.
type VerifyPickupInput struct {
	OrderID     uuid.UUID
	AgentID     uuid.UUID
	OrderNumber string
}

// ReachBuyerResult tells the agent how payment resolves at the door. Payment
// is set for collect-on-delivery orders that still need the buyer to scan.
type ReachBuyerResult struct {
	OTPIssued bool                  `json:"otp_issued"`
	Payment   *payments.AttemptView `json:"payment,omitempty"`
}

// CompleteInput finishes the trip. OTP carries the buyer's delivery code;
// CashCollected records the COD handover when no code is available.
type CompleteInput struct {
	OrderID       uuid.UUID
	AgentID       uuid.UUID
	OTP           string
	CashCollected bool
}

// AssignmentView is the agent-facing projection of an assignment.
type AssignmentView struct {
	AssignmentID  uuid.UUID           `json:"assignment_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	AgentID       uuid.UUID           `json:"agent_id"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
	AgentStatus   enums.AgentStatus   `json:"agent_status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountPaise   int64               `json:"amount_paise"`
	IsPaid        bool                `json:"is_paid"`
	AssignedAt    time.Time           `json:"assigned_at"`
}

// AssignmentList wraps an agent's active assignments.
type AssignmentList struct {
	Assignments []AssignmentView `json:"assignments"`
}

// CheckpointEvent is emitted every time an agent stamps a checkpoint.
type CheckpointEvent struct {
	OrderID      uuid.UUID  `json:"order_id"`
	AssignmentID uuid.UUID  `json:"assignment_id"`
	AgentID      uuid.UUID  `json:"agent_id"`
	Checkpoint   Checkpoint `json:"checkpoint"`
}

// OTPIssuedEvent tells the notifier to deliver the code to the buyer.
type OTPIssuedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
	Code    string    `json:"code"`
}

// CashCollectedEvent records a COD handover completed without a code.
type CashCollectedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	AgentID     uuid.UUID `json:"agent_id"`
	AmountPaise int64     `json:"amount_paise"`
}
