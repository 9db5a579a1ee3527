package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
)

// Status is the normalized collection status reported by a gateway.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// CreateOrderInput carries everything a gateway needs to open a collection order.
type CreateOrderInput struct {
	ReferenceID string
	AmountPaise int64
	CustomerRef string
}

// Intent is the gateway-side order opened for collection.
type Intent struct {
	GatewayOrderID string
	QRPayload      string
}

// StatusResult is the normalized answer to a status query.
type StatusResult struct {
	Status      Status
	AmountPaise int64
	GatewayRef  string
}

// Client abstracts a UPI collection gateway. Implementations must treat
// CreateOrder as idempotent per ReferenceID where the provider supports it.
type Client interface {
	Name() enums.PaymentGateway
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Intent, error)
	OrderStatus(ctx context.Context, gatewayOrderID string) (*StatusResult, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// wrapTransportErr maps timeouts to the gateway timeout code so callers can
// tell a dead provider from a rejected request.
func wrapTransportErr(err error, gateway enums.PaymentGateway) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, string(gateway)+" request timed out")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, string(gateway)+" request timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, string(gateway)+" request failed")
}
