package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// CreateInput carries everything needed to open a new order.
type CreateInput struct {
	BuyerID       uuid.UUID
	SellerID      uuid.UUID
	AmountPaise   int64
	PaymentMethod enums.PaymentMethod
	DeliveryNotes *string
}

// CancelInput captures a cancellation request and who made it.
type CancelInput struct {
	OrderID     uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// AcceptInput captures the seller accepting an order for preparation.
type AcceptInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// PickupReadyInput marks an order packed and awaiting agent pickup.
type PickupReadyInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// Filters describe the inputs supported by the order listings.
type Filters struct {
	Status        *enums.OrderStatus
	PaymentMethod *enums.PaymentMethod
	DateFrom      *time.Time
	DateTo        *time.Time
}

// Summary exposes the aggregated fields returned in list endpoints.
type Summary struct {
	ID            uuid.UUID           `json:"id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountPaise   int64               `json:"amount_paise"`
	IsPaid        bool                `json:"is_paid"`
	CreatedAt     time.Time           `json:"created_at"`
	DeliveredAt   *time.Time          `json:"delivered_at,omitempty"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []Summary `json:"orders"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// CreatedEvent is emitted when an order is opened.
type CreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountPaise   int64               `json:"amount_paise"`
}

// StatusChangedEvent is emitted on every lifecycle move.
type StatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// CancelledEvent is emitted when an order is cancelled.
type CancelledEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	From        enums.OrderStatus `json:"from"`
	Reason      string            `json:"reason"`
	CancelledBy enums.ActorRole   `json:"cancelled_by"`
}
