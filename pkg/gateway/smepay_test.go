package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
)

func newSMEPayServer(t *testing.T, statusState string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/external/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(smepayAuthResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/external/create-order", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req smepayCreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "500.00", req.Amount)
		json.NewEncoder(w).Encode(smepayCreateOrderResponse{Status: true, OrderSlug: "slug-1"})
	})
	mux.HandleFunc("/external/generate-qr", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(smepayQRResponse{Status: true, QRCode: "upi://pay?x=1"})
	})
	mux.HandleFunc("/external/check-qr-status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(smepayStatusResponse{
			Status:       true,
			PaymentState: statusState,
			Amount:       "500.00",
			UTR:          "UTR123",
		})
	})
	return httptest.NewServer(mux)
}

func TestSMEPayCreateOrder(t *testing.T) {
	srv := newSMEPayServer(t, "pending")
	defer srv.Close()

	client := NewSMEPay(config.SMEPayConfig{
		BaseURL:  srv.URL,
		ClientID: "cid",
		Timeout:  2 * time.Second,
	}, nil)

	intent, err := client.CreateOrder(context.Background(), CreateOrderInput{
		ReferenceID: "order-1",
		AmountPaise: 50000,
	})
	require.NoError(t, err)
	assert.Equal(t, "slug-1", intent.GatewayOrderID)
	assert.Equal(t, "upi://pay?x=1", intent.QRPayload)
}

func TestSMEPayOrderStatusPaid(t *testing.T) {
	srv := newSMEPayServer(t, "success")
	defer srv.Close()

	client := NewSMEPay(config.SMEPayConfig{BaseURL: srv.URL, ClientID: "cid", Timeout: 2 * time.Second}, nil)

	result, err := client.OrderStatus(context.Background(), "slug-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, result.Status)
	assert.Equal(t, int64(50000), result.AmountPaise)
	assert.Equal(t, "UTR123", result.GatewayRef)
}

func TestSMEPayTimeoutMapsToGatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewSMEPay(config.SMEPayConfig{BaseURL: srv.URL, ClientID: "cid", Timeout: 50 * time.Millisecond}, nil)

	_, err := client.OrderStatus(context.Background(), "slug-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGatewayTimeout))
}
