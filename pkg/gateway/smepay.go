package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

// SMEPay drives the SMEPay UPI collection API. The API authenticates with a
// short-lived token minted from client credentials; the token is cached and
// refreshed on expiry.
type SMEPay struct {
	cfg  config.SMEPayConfig
	http *http.Client
	logg *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewSMEPay(cfg config.SMEPayConfig, logg *logger.Logger) *SMEPay {
	return &SMEPay{
		cfg:  cfg,
		http: newHTTPClient(cfg.Timeout),
		logg: logg,
	}
}

func (s *SMEPay) Name() enums.PaymentGateway {
	return enums.PaymentGatewaySMEPay
}

type smepayAuthRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type smepayAuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type smepayCreateOrderRequest struct {
	ClientID    string `json:"client_id"`
	Amount      string `json:"amount"`
	OrderID     string `json:"order_id"`
	CallbackURL string `json:"callback_url,omitempty"`
	CustomerRef string `json:"customer_ref,omitempty"`
}

type smepayCreateOrderResponse struct {
	Status    bool   `json:"status"`
	OrderSlug string `json:"order_slug"`
	Message   string `json:"message"`
}

type smepayQRResponse struct {
	Status bool   `json:"status"`
	QRCode string `json:"qrcode"`
}

type smepayStatusResponse struct {
	Status       bool   `json:"status"`
	PaymentState string `json:"payment_status"`
	Amount       string `json:"amount"`
	UTR          string `json:"utr"`
}

func (s *SMEPay) token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	var resp smepayAuthResponse
	err := s.post(ctx, "/external/auth", "", smepayAuthRequest{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "smepay auth returned empty token")
	}

	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	s.accessToken = resp.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)
	return s.accessToken, nil
}

// CreateOrder opens an SMEPay order and fetches its UPI QR payload.
func (s *SMEPay) CreateOrder(ctx context.Context, input CreateOrderInput) (*Intent, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}

	var created smepayCreateOrderResponse
	err = s.post(ctx, "/external/create-order", token, smepayCreateOrderRequest{
		ClientID:    s.cfg.ClientID,
		Amount:      PaiseToRupees(input.AmountPaise),
		OrderID:     input.ReferenceID,
		CustomerRef: input.CustomerRef,
	}, &created)
	if err != nil {
		return nil, err
	}
	if !created.Status || created.OrderSlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "smepay rejected order: "+created.Message)
	}

	var qr smepayQRResponse
	err = s.post(ctx, "/external/generate-qr", token, map[string]string{
		"client_id": s.cfg.ClientID,
		"slug":      created.OrderSlug,
	}, &qr)
	if err != nil {
		return nil, err
	}
	if !qr.Status || qr.QRCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "smepay returned no qr payload")
	}

	return &Intent{
		GatewayOrderID: created.OrderSlug,
		QRPayload:      qr.QRCode,
	}, nil
}

// OrderStatus queries the current collection state for an order slug.
func (s *SMEPay) OrderStatus(ctx context.Context, gatewayOrderID string) (*StatusResult, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}

	var resp smepayStatusResponse
	err = s.post(ctx, "/external/check-qr-status", token, map[string]string{
		"client_id": s.cfg.ClientID,
		"slug":      gatewayOrderID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		Status:     normalizeSMEPayState(resp.PaymentState),
		GatewayRef: resp.UTR,
	}
	if resp.Amount != "" {
		paise, convErr := RupeesToPaise(resp.Amount)
		if convErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, convErr, "smepay reported unparsable amount")
		}
		result.AmountPaise = paise
	}
	return result, nil
}

func normalizeSMEPayState(state string) Status {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "paid", "success", "successful":
		return StatusPaid
	case "pending", "created", "initiated":
		return StatusPending
	case "failed", "expired", "cancelled":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func (s *SMEPay) post(ctx context.Context, path, token string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return wrapTransportErr(err, enums.PaymentGatewaySMEPay)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return wrapTransportErr(err, enums.PaymentGatewaySMEPay)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("smepay %s returned %d", path, resp.StatusCode))
	}
	return json.Unmarshal(payload, out)
}
