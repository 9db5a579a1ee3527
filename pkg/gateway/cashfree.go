package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

const cashfreeAPIVersion = "2023-08-01"

// Cashfree drives the Cashfree PG orders API using static app credentials.
type Cashfree struct {
	cfg  config.CashfreeConfig
	http *http.Client
	logg *logger.Logger
}

func NewCashfree(cfg config.CashfreeConfig, logg *logger.Logger) *Cashfree {
	return &Cashfree{
		cfg:  cfg,
		http: newHTTPClient(cfg.Timeout),
		logg: logg,
	}
}

func (c *Cashfree) Name() enums.PaymentGateway {
	return enums.PaymentGatewayCashfree
}

type cashfreeCreateOrderRequest struct {
	OrderID         string                  `json:"order_id"`
	OrderAmount     string                  `json:"order_amount"`
	OrderCurrency   string                  `json:"order_currency"`
	CustomerDetails cashfreeCustomerDetails `json:"customer_details"`
}

type cashfreeCustomerDetails struct {
	CustomerID string `json:"customer_id"`
}

type cashfreeCreateOrderResponse struct {
	CFOrderID      string `json:"cf_order_id"`
	OrderStatus    string `json:"order_status"`
	PaymentSession string `json:"payment_session_id"`
}

type cashfreeOrderResponse struct {
	CFOrderID   string `json:"cf_order_id"`
	OrderStatus string `json:"order_status"`
	OrderAmount string `json:"order_amount"`
}

// CreateOrder opens a Cashfree PG order. The payment session id doubles as
// the QR payload for the hosted collection flow.
func (c *Cashfree) CreateOrder(ctx context.Context, input CreateOrderInput) (*Intent, error) {
	var resp cashfreeCreateOrderResponse
	err := c.do(ctx, http.MethodPost, "/orders", cashfreeCreateOrderRequest{
		OrderID:       input.ReferenceID,
		OrderAmount:   PaiseToRupees(input.AmountPaise),
		OrderCurrency: "INR",
		CustomerDetails: cashfreeCustomerDetails{
			CustomerID: input.CustomerRef,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.CFOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree returned no order id")
	}
	return &Intent{
		GatewayOrderID: input.ReferenceID,
		QRPayload:      resp.PaymentSession,
	}, nil
}

// OrderStatus fetches the current order state from Cashfree.
func (c *Cashfree) OrderStatus(ctx context.Context, gatewayOrderID string) (*StatusResult, error) {
	var resp cashfreeOrderResponse
	err := c.do(ctx, http.MethodGet, "/orders/"+gatewayOrderID, nil, &resp)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		Status:     normalizeCashfreeState(resp.OrderStatus),
		GatewayRef: resp.CFOrderID,
	}
	if resp.OrderAmount != "" {
		paise, convErr := RupeesToPaise(resp.OrderAmount)
		if convErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, convErr, "cashfree reported unparsable amount")
		}
		result.AmountPaise = paise
	}
	return result, nil
}

func normalizeCashfreeState(state string) Status {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "PAID":
		return StatusPaid
	case "ACTIVE":
		return StatusPending
	case "EXPIRED", "TERMINATED", "FAILED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func (c *Cashfree) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-version", cashfreeAPIVersion)
	req.Header.Set("x-client-id", c.cfg.AppID)
	req.Header.Set("x-client-secret", c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransportErr(err, enums.PaymentGatewayCashfree)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return wrapTransportErr(err, enums.PaymentGatewayCashfree)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("cashfree %s returned %d", path, resp.StatusCode))
	}
	return json.Unmarshal(payload, out)
}
