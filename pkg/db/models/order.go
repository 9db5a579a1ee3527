package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// Order is the buyer-facing fulfillment record driven through the order
// lifecycle. Monetary amounts are stored in paise.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber    string              `gorm:"column:order_number;type:text;not null;uniqueIndex:uq_orders_number"`
	BuyerID        uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID       uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Status         enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	AmountPaise    int64               `gorm:"column:amount_paise;not null"`
	IsPaid         bool                `gorm:"column:is_paid;not null;default:false"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	DeliveryNotes  *string             `gorm:"column:delivery_notes"`
	CancelReason   *string             `gorm:"column:cancel_reason"`
	CancelledBy    *enums.ActorRole    `gorm:"column:cancelled_by;type:text"`
	CancelledAt    *time.Time          `gorm:"column:cancelled_at"`
	DeliveredAt    *time.Time          `gorm:"column:delivered_at"`
	Assignment     *DeliveryAssignment `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaymentAttempt []PaymentAttempt    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
