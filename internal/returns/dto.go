package returns

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// RequestInput opens a return for a delivered order.
type RequestInput struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
	Reason  string
}

// ReviewInput approves or rejects a requested return.
type ReviewInput struct {
	ReturnID    uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	Reason      string
}

// AssignInput attaches an agent to an approved return.
type AssignInput struct {
	ReturnID    uuid.UUID
	AgentID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// AgentInput is the common shape for agent-side moves.
type AgentInput struct {
	ReturnID uuid.UUID
	AgentID  uuid.UUID
}

// VerifyInput carries the handover code for the pickup or drop gate.
type VerifyInput struct {
	ReturnID uuid.UUID
	AgentID  uuid.UUID
	OTP      string
}

// FailInput records a failed pickup. Reason is mandatory.
type FailInput struct {
	ReturnID uuid.UUID
	AgentID  uuid.UUID
	Reason   string
}

// CompleteInput closes out a returned-to-seller trip.
type CompleteInput struct {
	ReturnID    uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// View is the client-facing projection of a return assignment.
type View struct {
	ReturnID          uuid.UUID          `json:"return_id"`
	OrderID           uuid.UUID          `json:"order_id"`
	BuyerID           uuid.UUID          `json:"buyer_id"`
	SellerID          uuid.UUID          `json:"seller_id"`
	AgentID           *uuid.UUID         `json:"agent_id,omitempty"`
	Status            enums.ReturnStatus `json:"status"`
	Reason            string             `json:"reason"`
	RejectReason      *string            `json:"reject_reason,omitempty"`
	FailureReason     *string            `json:"failure_reason,omitempty"`
	RefundAmountPaise *int64             `json:"refund_amount_paise,omitempty"`
	RequestedAt       time.Time          `json:"requested_at"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
}

// StatusChangedEvent is emitted on every accepted move.
type StatusChangedEvent struct {
	ReturnID uuid.UUID          `json:"return_id"`
	OrderID  uuid.UUID          `json:"order_id"`
	From     enums.ReturnStatus `json:"from"`
	To       enums.ReturnStatus `json:"to"`
}

// PickupFailedEvent routes a failed pickup to admin review.
type PickupFailedEvent struct {
	ReturnID uuid.UUID `json:"return_id"`
	OrderID  uuid.UUID `json:"order_id"`
	AgentID  uuid.UUID `json:"agent_id"`
	Reason   string    `json:"reason"`
}

// OTPIssuedEvent tells the notifier to deliver a handover code.
type OTPIssuedEvent struct {
	ReturnID    uuid.UUID `json:"return_id"`
	OrderID     uuid.UUID `json:"order_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Code        string    `json:"code"`
}
