package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/api/controllers"
	"github.com/arjunkapur/swiftkart-backend/internal/delivery"
	"github.com/arjunkapur/swiftkart-backend/internal/orders"
	"github.com/arjunkapur/swiftkart-backend/internal/payments"
	"github.com/arjunkapur/swiftkart-backend/internal/returns"
	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
	"github.com/arjunkapur/swiftkart-backend/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubOrdersService struct {
	order    *models.Order
	created  []orders.CreateInput
	accepted []orders.AcceptInput
}

func (s *stubOrdersService) Create(_ context.Context, input orders.CreateInput) (*models.Order, error) {
	s.created = append(s.created, input)
	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       input.BuyerID,
		SellerID:      input.SellerID,
		Status:        enums.OrderStatusPending,
		PaymentMethod: input.PaymentMethod,
		AmountPaise:   input.AmountPaise,
	}
	return order, nil
}

func (s *stubOrdersService) Accept(_ context.Context, input orders.AcceptInput) error {
	s.accepted = append(s.accepted, input)
	return nil
}

func (s *stubOrdersService) MarkPickupReady(context.Context, orders.PickupReadyInput) error {
	return nil
}

func (s *stubOrdersService) Cancel(context.Context, orders.CancelInput) error {
	return nil
}

func (s *stubOrdersService) Get(_ context.Context, orderID, actorID uuid.UUID, role enums.ActorRole) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if role == enums.ActorRoleBuyer && s.order.BuyerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not your order")
	}
	return s.order, nil
}

func (s *stubOrdersService) ListForBuyer(context.Context, uuid.UUID, pagination.Params, orders.Filters) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.Summary{}}, nil
}

func (s *stubOrdersService) ListForSeller(context.Context, uuid.UUID, pagination.Params, orders.Filters) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.Summary{}}, nil
}

type stubDeliveryService struct {
	assigned []delivery.AssignInput
}

func (s *stubDeliveryService) Assign(_ context.Context, input delivery.AssignInput) (*models.DeliveryAssignment, error) {
	s.assigned = append(s.assigned, input)
	return &models.DeliveryAssignment{ID: uuid.New(), OrderID: input.OrderID, AgentID: input.AgentID, Active: true}, nil
}

func (s *stubDeliveryService) ReachSeller(context.Context, delivery.CheckpointInput) error { return nil }
func (s *stubDeliveryService) VerifyPickup(context.Context, delivery.VerifyPickupInput) error {
	return nil
}
func (s *stubDeliveryService) ReachBuyer(context.Context, delivery.CheckpointInput) (*delivery.ReachBuyerResult, error) {
	return &delivery.ReachBuyerResult{OTPIssued: true}, nil
}
func (s *stubDeliveryService) CompleteDelivery(context.Context, delivery.CompleteInput) error {
	return nil
}

func (s *stubDeliveryService) AgentAssignments(context.Context, uuid.UUID) (*delivery.AssignmentList, error) {
	return &delivery.AssignmentList{Assignments: []delivery.AssignmentView{}}, nil
}

type stubPaymentsService struct {
	webhooks []payments.WebhookInput
}

func (s *stubPaymentsService) CreateIntent(_ context.Context, input payments.CreateIntentInput) (*payments.AttemptView, error) {
	return &payments.AttemptView{AttemptID: uuid.New(), OrderID: input.OrderID, Status: enums.PaymentAttemptStatusPending}, nil
}

func (s *stubPaymentsService) ApplyConfirmation(context.Context, payments.ConfirmationInput) error {
	return nil
}

func (s *stubPaymentsService) SettleCash(context.Context, *gorm.DB, *models.Order, uuid.UUID) error {
	return nil
}

func (s *stubPaymentsService) MarkFailed(context.Context, uuid.UUID, string) error { return nil }
func (s *stubPaymentsService) MarkExpired(context.Context, uuid.UUID) error        { return nil }

func (s *stubPaymentsService) HandleWebhook(_ context.Context, input payments.WebhookInput) error {
	s.webhooks = append(s.webhooks, input)
	return nil
}

func (s *stubPaymentsService) Status(_ context.Context, input payments.StatusInput) (*payments.AttemptView, error) {
	return &payments.AttemptView{AttemptID: uuid.New(), OrderID: input.OrderID, Status: enums.PaymentAttemptStatusPending}, nil
}

type stubReturnsService struct {
	requested []returns.RequestInput
}

func (s *stubReturnsService) Request(_ context.Context, input returns.RequestInput) (*returns.View, error) {
	s.requested = append(s.requested, input)
	return &returns.View{ReturnID: uuid.New(), OrderID: input.OrderID, BuyerID: input.BuyerID, Status: enums.ReturnStatusRequested}, nil
}

func (s *stubReturnsService) Approve(context.Context, returns.ReviewInput) error  { return nil }
func (s *stubReturnsService) Reject(context.Context, returns.ReviewInput) error   { return nil }
func (s *stubReturnsService) Assign(context.Context, returns.AssignInput) error   { return nil }
func (s *stubReturnsService) Reassign(context.Context, returns.AssignInput) error { return nil }
func (s *stubReturnsService) Accept(context.Context, returns.AgentInput) error    { return nil }
func (s *stubReturnsService) ReachBuyer(context.Context, returns.AgentInput) error {
	return nil
}
func (s *stubReturnsService) VerifyPickup(context.Context, returns.VerifyInput) error { return nil }
func (s *stubReturnsService) ReachSeller(context.Context, returns.AgentInput) error   { return nil }
func (s *stubReturnsService) HandToSeller(context.Context, returns.VerifyInput) error { return nil }
func (s *stubReturnsService) Complete(context.Context, returns.CompleteInput) error   { return nil }
func (s *stubReturnsService) FailPickup(context.Context, returns.FailInput) error     { return nil }

func (s *stubReturnsService) Get(context.Context, uuid.UUID) (*returns.View, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
}

func (s *stubReturnsService) AgentQueue(context.Context, uuid.UUID) ([]returns.View, error) {
	return []returns.View{}, nil
}

type testEnv struct {
	handler  http.Handler
	orders   *stubOrdersService
	delivery *stubDeliveryService
	payments *stubPaymentsService
	returns  *stubReturnsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		orders:   &stubOrdersService{},
		delivery: &stubDeliveryService{},
		payments: &stubPaymentsService{},
		returns:  &stubReturnsService{},
	}
	cfg := &config.Config{}
	cfg.App.Env = "test"
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	env.handler = NewRouter(Deps{
		Config:   cfg,
		Logger:   logg,
		Pingers:  map[string]controllers.Pinger{"db": stubPinger{}},
		Orders:   env.orders,
		Delivery: env.delivery,
		Payments: env.payments,
		Returns:  env.returns,
	})
	return env
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func actorHeaders(userID uuid.UUID, role string) map[string]string {
	return map[string]string{
		"X-User-Id":    userID.String(),
		"X-Actor-Role": role,
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodGet, "/health/live", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("live status = %d", rec.Code)
	}
	if env := rec.Header().Get("X-SwiftKart-Env"); env != "test" {
		t.Fatalf("env header = %q", env)
	}

	rec = doRequest(t, env.handler, http.MethodGet, "/health/ready", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rec.Code)
	}
}

func TestProtectedRoutesRequireActor(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodGet, "/api/v1/orders", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without identity = %d", rec.Code)
	}

	rec = doRequest(t, env.handler, http.MethodGet, "/api/v1/orders", nil, map[string]string{
		"X-User-Id":    "not-a-uuid",
		"X-Actor-Role": "buyer",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with bad user id = %d", rec.Code)
	}

	rec = doRequest(t, env.handler, http.MethodGet, "/api/v1/orders", nil, actorHeaders(uuid.New(), "astronaut"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with bad role = %d", rec.Code)
	}
}

func TestCreateOrderRoute(t *testing.T) {
	env := newTestEnv(t)
	buyerID := uuid.New()

	rec := doRequest(t, env.handler, http.MethodPost, "/api/v1/orders", map[string]any{
		"seller_id":      uuid.New().String(),
		"amount_paise":   49900,
		"payment_method": "prepaid",
	}, actorHeaders(buyerID, "buyer"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(env.orders.created) != 1 {
		t.Fatalf("created calls = %d", len(env.orders.created))
	}
	if env.orders.created[0].BuyerID != buyerID {
		t.Fatalf("buyer id not taken from identity headers")
	}
}

func TestCreateOrderRejectsNonBuyer(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodPost, "/api/v1/orders", map[string]any{
		"seller_id":      uuid.New().String(),
		"amount_paise":   49900,
		"payment_method": "cod",
	}, actorHeaders(uuid.New(), "seller"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateOrderValidatesBody(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodPost, "/api/v1/orders", map[string]any{
		"seller_id":      "nope",
		"amount_paise":   -5,
		"payment_method": "barter",
	}, actorHeaders(uuid.New(), "buyer"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(env.orders.created) != 0 {
		t.Fatalf("service reached with invalid body")
	}
}

func TestAgentRoutesRejectOtherRoles(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodGet, "/api/v1/agent/orders", nil, actorHeaders(uuid.New(), "buyer"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doRequest(t, env.handler, http.MethodGet, "/api/v1/agent/orders", nil, actorHeaders(uuid.New(), "agent"))
	if rec.Code != http.StatusOK {
		t.Fatalf("agent status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestGatewayWebhookRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodPost, "/api/v1/webhooks/gateway/smepay", map[string]any{
		"gateway_order_id": "smepay-ord-1",
		"status":           "paid",
		"amount_paise":     49900,
		"gateway_ref":      "utr-123",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(env.payments.webhooks) != 1 {
		t.Fatalf("webhook calls = %d", len(env.payments.webhooks))
	}
	hook := env.payments.webhooks[0]
	if hook.Gateway != enums.PaymentGatewaySMEPay || !hook.Paid || hook.Failed {
		t.Fatalf("webhook input = %+v", hook)
	}
}

func TestGatewayWebhookRejectsUnknownGateway(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodPost, "/api/v1/webhooks/gateway/paypal", map[string]any{
		"gateway_order_id": "x",
		"status":           "paid",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.payments.webhooks) != 0 {
		t.Fatalf("unknown gateway reached the service")
	}
}

func TestReturnRequestRoute(t *testing.T) {
	env := newTestEnv(t)
	buyerID := uuid.New()
	orderID := uuid.New()

	rec := doRequest(t, env.handler, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/returns", map[string]any{
		"reason": "item arrived damaged",
	}, actorHeaders(buyerID, "buyer"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(env.returns.requested) != 1 {
		t.Fatalf("request calls = %d", len(env.returns.requested))
	}
	if env.returns.requested[0].OrderID != orderID || env.returns.requested[0].BuyerID != buyerID {
		t.Fatalf("request input = %+v", env.returns.requested[0])
	}
}

func TestPaymentRetryRoute(t *testing.T) {
	env := newTestEnv(t)
	orderID := uuid.New()

	rec := doRequest(t, env.handler, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/payment/retry", map[string]any{
		"gateway": "cashfree",
		"channel": "qr",
	}, actorHeaders(uuid.New(), "buyer"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestAssignAgentRoute(t *testing.T) {
	env := newTestEnv(t)
	orderID := uuid.New()
	agentID := uuid.New()

	rec := doRequest(t, env.handler, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/assign-agent", map[string]any{
		"agent_id": agentID.String(),
	}, actorHeaders(uuid.New(), "admin"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(env.delivery.assigned) != 1 {
		t.Fatalf("assign calls = %d", len(env.delivery.assigned))
	}
	if env.delivery.assigned[0].AgentID != agentID {
		t.Fatalf("assign input = %+v", env.delivery.assigned[0])
	}
}
