package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// ReturnAssignment is the reverse-trip record for a delivered order the buyer
// wants to send back. It mirrors the forward delivery leg with the buyer and
// seller roles swapped.
type ReturnAssignment struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	BuyerID           uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID          uuid.UUID          `gorm:"column:seller_id;type:uuid;not null"`
	AgentID           *uuid.UUID         `gorm:"column:agent_id;type:uuid"`
	Status            enums.ReturnStatus `gorm:"column:status;type:text;not null;default:'requested'"`
	Reason            string             `gorm:"column:reason;not null"`
	RejectReason      *string            `gorm:"column:reject_reason"`
	FailureReason     *string            `gorm:"column:failure_reason"`
	RequestedAt       time.Time          `gorm:"column:requested_at;autoCreateTime"`
	ApprovedAt        *time.Time         `gorm:"column:approved_at"`
	AssignedAt        *time.Time         `gorm:"column:assigned_at"`
	AcceptedAt        *time.Time         `gorm:"column:accepted_at"`
	BuyerReachedAt    *time.Time         `gorm:"column:buyer_reached_at"`
	PickedUpAt        *time.Time         `gorm:"column:picked_up_at"`
	SellerReachedAt   *time.Time         `gorm:"column:seller_reached_at"`
	ReturnedAt        *time.Time         `gorm:"column:returned_at"`
	CompletedAt       *time.Time         `gorm:"column:completed_at"`
	RefundAmountPaise *int64             `gorm:"column:refund_amount_paise"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
