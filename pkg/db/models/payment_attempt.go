package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// PaymentAttempt tracks a single gateway collection attempt for an order.
// At most one pending attempt may exist per order at a time.
type PaymentAttempt struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_payment_attempts_order_pending,where:status = 'pending'"`
	Gateway        enums.PaymentGateway       `gorm:"column:gateway;type:text;not null"`
	Channel        enums.PaymentChannel       `gorm:"column:channel;type:text;not null"`
	Status         enums.PaymentAttemptStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AmountPaise    int64                      `gorm:"column:amount_paise;not null"`
	GatewayOrderID *string                    `gorm:"column:gateway_order_id"`
	GatewayRef     *string                    `gorm:"column:gateway_ref"`
	QRPayload      *string                    `gorm:"column:qr_payload"`
	PollAttempts   int                        `gorm:"column:poll_attempts;not null;default:0"`
	LastPolledAt   *time.Time                 `gorm:"column:last_polled_at"`
	ConfirmedAt    *time.Time                 `gorm:"column:confirmed_at"`
	FailedAt       *time.Time                 `gorm:"column:failed_at"`
	ExpiredAt      *time.Time                 `gorm:"column:expired_at"`
	FailureReason  *string                    `gorm:"column:failure_reason"`
	CreatedAt      time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsOpen reports whether the attempt can still receive a confirmation.
func (p *PaymentAttempt) IsOpen() bool {
	return p.Status == enums.PaymentAttemptStatusPending
}
