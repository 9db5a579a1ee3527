package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// DeliveryAssignment records the agent leg of an order: who carries it and
// which checkpoints they have stamped so far.
type DeliveryAssignment struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_delivery_assignments_order_active,where:active"`
	AgentID          uuid.UUID  `gorm:"column:agent_id;type:uuid;not null"`
	AssignedByUserID *uuid.UUID `gorm:"column:assigned_by_user_id;type:uuid"`
	Active           bool       `gorm:"column:active;not null;default:true"`
	AssignedAt       time.Time  `gorm:"column:assigned_at;autoCreateTime"`
	UnassignedAt     *time.Time `gorm:"column:unassigned_at"`
	SellerReachedAt  *time.Time `gorm:"column:seller_reached_at"`
	PickupVerifiedAt *time.Time `gorm:"column:pickup_verified_at"`
	BuyerReachedAt   *time.Time `gorm:"column:buyer_reached_at"`
	OTPVerifiedAt    *time.Time `gorm:"column:otp_verified_at"`
	CashCollectedAt  *time.Time `gorm:"column:cash_collected_at"`
	DeliveredAt      *time.Time `gorm:"column:delivered_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// AgentStatus derives the agent-facing progress label from the checkpoint
// stamps. It is a projection only and is never stored.
func (a *DeliveryAssignment) AgentStatus() enums.AgentStatus {
	switch {
	case a.DeliveredAt != nil:
		return enums.AgentStatusDeliveryCompleted
	case a.BuyerReachedAt != nil:
		return enums.AgentStatusLocationReached
	case a.PickupVerifiedAt != nil:
		return enums.AgentStatusPickupCompleted
	default:
		return enums.AgentStatusAssigned
	}
}

// PickupVerified reports whether the pickup handoff checkpoint has been
// stamped on this assignment.
func (a *DeliveryAssignment) PickupVerified() bool {
	return a.PickupVerifiedAt != nil
}

// DeliveryProofRecorded reports whether either delivery proof (OTP or cash
// collection) has been stamped.
func (a *DeliveryAssignment) DeliveryProofRecorded() bool {
	return a.OTPVerifiedAt != nil || a.CashCollectedAt != nil
}
