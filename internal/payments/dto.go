package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// ConfirmationSource labels where a confirmation came from.
const (
	SourcePoll    = "poll"
	SourceWebhook = "webhook"
	SourceCash    = "cash"
)

// CreateIntentInput opens a gateway collection order for an unpaid order.
// Gateway is optional; the configured default is used when empty.
type CreateIntentInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	Gateway     enums.PaymentGateway
	Channel     enums.PaymentChannel
}

// ConfirmationInput applies a paid signal to an open attempt. Either
// AttemptID or Gateway plus GatewayOrderID identifies the attempt.
type ConfirmationInput struct {
	AttemptID      uuid.UUID
	Gateway        enums.PaymentGateway
	GatewayOrderID string
	AmountPaise    int64
	GatewayRef     string
	Source         string
}

// WebhookInput is the normalized shape gateway webhook handlers feed in.
type WebhookInput struct {
	Gateway        enums.PaymentGateway
	GatewayOrderID string
	Paid           bool
	Failed         bool
	AmountPaise    int64
	GatewayRef     string
	FailureReason  string
}

// StatusInput fetches the latest attempt for an order on behalf of an actor.
type StatusInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// AttemptView is the client-facing projection of a payment attempt.
type AttemptView struct {
	AttemptID      uuid.UUID                  `json:"attempt_id"`
	OrderID        uuid.UUID                  `json:"order_id"`
	Gateway        enums.PaymentGateway       `json:"gateway"`
	Channel        enums.PaymentChannel       `json:"channel"`
	Status         enums.PaymentAttemptStatus `json:"status"`
	AmountPaise    int64                      `json:"amount_paise"`
	GatewayOrderID string                     `json:"gateway_order_id,omitempty"`
	QRPayload      string                     `json:"qr_payload,omitempty"`
	PollAttempts   int                        `json:"poll_attempts"`
	ConfirmedAt    *time.Time                 `json:"confirmed_at,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
}

// ConfirmedEvent is emitted exactly once per order when payment lands.
type ConfirmedEvent struct {
	OrderID     uuid.UUID            `json:"order_id"`
	AttemptID   uuid.UUID            `json:"attempt_id"`
	Gateway     enums.PaymentGateway `json:"gateway"`
	AmountPaise int64                `json:"amount_paise"`
	GatewayRef  string               `json:"gateway_ref,omitempty"`
	Source      string               `json:"source"`
}

// ExpiredEvent records an attempt that exhausted its polling budget.
type ExpiredEvent struct {
	OrderID      uuid.UUID            `json:"order_id"`
	AttemptID    uuid.UUID            `json:"attempt_id"`
	Gateway      enums.PaymentGateway `json:"gateway"`
	PollAttempts int                  `json:"poll_attempts"`
}

// FailedEvent records a gateway-reported decline.
type FailedEvent struct {
	OrderID   uuid.UUID            `json:"order_id"`
	AttemptID uuid.UUID            `json:"attempt_id"`
	Gateway   enums.PaymentGateway `json:"gateway"`
	Reason    string               `json:"reason,omitempty"`
}

// CodeIssuedEvent tells the notifier to deliver the post-confirmation
// delivery code to the buyer.
type CodeIssuedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
	Code    string    `json:"code"`
}

// IntegrityAlertEvent records a confirmation whose amount disagreed with the
// attempt. The attempt is placed on an integrity hold rather than confirmed.
type IntegrityAlertEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	AttemptID     uuid.UUID            `json:"attempt_id"`
	Gateway       enums.PaymentGateway `json:"gateway"`
	ExpectedPaise int64                `json:"expected_paise"`
	ReportedPaise int64                `json:"reported_paise"`
	GatewayRef    string               `json:"gateway_ref,omitempty"`
}
