package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/outbox"
	"github.com/arjunkapur/swiftkart-backend/pkg/pagination"
)

type stubRepo struct {
	orders             map[uuid.UUID]*models.Order
	deactivatedOrderID uuid.UUID
}

func newStubRepo(orders ...*models.Order) *stubRepo {
	repo := &stubRepo{orders: map[uuid.UUID]*models.Order{}}
	for _, order := range orders {
		if order.ID == uuid.Nil {
			order.ID = uuid.New()
		}
		repo.orders[order.ID] = order
	}
	return repo
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now()
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubRepo) FindByIDWithAssignment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, orderID)
}

func (s *stubRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = status
	return nil
}

func (s *stubRepo) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	if reason, ok := updates["cancel_reason"].(string); ok {
		order.CancelReason = &reason
	}
	if by, ok := updates["cancelled_by"].(enums.ActorRole); ok {
		order.CancelledBy = &by
	}
	return nil
}

func (s *stubRepo) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if order.IsPaid {
		return false, nil
	}
	now := time.Now()
	order.IsPaid = true
	order.PaidAt = &now
	return true, nil
}

func (s *stubRepo) DeactivateAssignments(ctx context.Context, orderID uuid.UUID) error {
	s.deactivatedOrderID = orderID
	return nil
}

func (s *stubRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error) {
	return &OrderList{}, nil
}

func (s *stubRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error) {
	return &OrderList{}, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubLocks struct {
	acquired int
}

func (s *stubLocks) WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error {
	s.acquired++
	return fn(ctx)
}

func newTestService(t *testing.T, repo Repository) (Service, *stubOutbox, *stubLocks) {
	t.Helper()
	ob := &stubOutbox{}
	locks := &stubLocks{}
	svc, err := NewService(repo, stubTx{}, ob, locks)
	require.NoError(t, err)
	return svc, ob, locks
}

func TestCreateOpensPendingOrder(t *testing.T) {
	repo := newStubRepo()
	svc, ob, _ := newTestService(t, repo)

	buyerID := uuid.New()
	order, err := svc.Create(context.Background(), CreateInput{
		BuyerID:       buyerID,
		SellerID:      uuid.New(),
		AmountPaise:   50000,
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.False(t, order.IsPaid)
	assert.Regexp(t, `^SK-\d{8}-\d{6}$`, order.OrderNumber)

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventOrderCreated, ob.events[0].EventType)
	created, ok := ob.events[0].Data.(CreatedEvent)
	require.True(t, ok)
	assert.Equal(t, order.OrderNumber, created.OrderNumber)
}

type collidingRepo struct {
	*stubRepo
	failures int
}

func (s *collidingRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *collidingRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New(`duplicate key value violates unique constraint "uq_orders_number"`)
	}
	return s.stubRepo.Create(ctx, order)
}

func TestCreateRetriesOnOrderNumberCollision(t *testing.T) {
	repo := &collidingRepo{stubRepo: newStubRepo(), failures: 1}
	svc, ob, _ := newTestService(t, repo)

	order, err := svc.Create(context.Background(), CreateInput{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		AmountPaise:   50000,
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)
	require.Len(t, ob.events, 1)
}

func TestCreateGivesUpOnPersistentCollision(t *testing.T) {
	repo := &collidingRepo{stubRepo: newStubRepo(), failures: 10}
	svc, _, _ := newTestService(t, repo)

	_, err := svc.Create(context.Background(), CreateInput{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		AmountPaise:   50000,
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newTestService(t, newStubRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		AmountPaise:   0,
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestAcceptMovesCODOrderToProcessing(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{
		SellerID:      sellerID,
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, ob, locks := newTestService(t, repo)

	err := svc.Accept(context.Background(), AcceptInput{
		OrderID:     order.ID,
		ActorUserID: sellerID,
		ActorRole:   enums.ActorRoleSeller,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, repo.orders[order.ID].Status)
	assert.Equal(t, 1, locks.acquired)

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventOrderStatusChanged, ob.events[0].EventType)
}

func TestAcceptUnpaidPrepaidOrderFailsPrecondition(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{
		SellerID:      sellerID,
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodPrepaid,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, _, _ := newTestService(t, repo)

	err := svc.Accept(context.Background(), AcceptInput{
		OrderID:     order.ID,
		ActorUserID: sellerID,
		ActorRole:   enums.ActorRoleSeller,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePrecondition))
	assert.Equal(t, enums.OrderStatusPending, repo.orders[order.ID].Status)
}

func TestAcceptPaidPrepaidOrderSucceeds(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{
		SellerID:      sellerID,
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodPrepaid,
		AmountPaise:   50000,
		IsPaid:        true,
	}
	repo := newStubRepo(order)
	svc, _, _ := newTestService(t, repo)

	err := svc.Accept(context.Background(), AcceptInput{
		OrderID:     order.ID,
		ActorUserID: sellerID,
		ActorRole:   enums.ActorRoleSeller,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, repo.orders[order.ID].Status)
}

func TestAcceptIsIdempotent(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{
		SellerID:      sellerID,
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, ob, _ := newTestService(t, repo)

	err := svc.Accept(context.Background(), AcceptInput{
		OrderID:     order.ID,
		ActorUserID: sellerID,
		ActorRole:   enums.ActorRoleSeller,
	})
	require.NoError(t, err)
	assert.Empty(t, ob.events)
}

func TestAcceptByWrongSellerForbidden(t *testing.T) {
	order := &models.Order{
		SellerID:      uuid.New(),
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, _, _ := newTestService(t, repo)

	err := svc.Accept(context.Background(), AcceptInput{
		OrderID:     order.ID,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleSeller,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestMarkPickupReadyFromWrongStateConflicts(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{
		SellerID:      sellerID,
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, _, _ := newTestService(t, repo)

	err := svc.MarkPickupReady(context.Background(), PickupReadyInput{
		OrderID:     order.ID,
		ActorUserID: sellerID,
		ActorRole:   enums.ActorRoleSeller,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelRecordsReasonAndReleasesAgent(t *testing.T) {
	buyerID := uuid.New()
	order := &models.Order{
		SellerID:      uuid.New(),
		BuyerID:       buyerID,
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, ob, _ := newTestService(t, repo)

	err := svc.Cancel(context.Background(), CancelInput{
		OrderID:     order.ID,
		Reason:      "changed my mind",
		ActorUserID: buyerID,
		ActorRole:   enums.ActorRoleBuyer,
	})
	require.NoError(t, err)

	updated := repo.orders[order.ID]
	assert.Equal(t, enums.OrderStatusCancelled, updated.Status)
	require.NotNil(t, updated.CancelReason)
	assert.Equal(t, "changed my mind", *updated.CancelReason)
	assert.Equal(t, order.ID, repo.deactivatedOrderID)

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventOrderCancelled, ob.events[0].EventType)
}

func TestCancelOutForDeliveryByBuyerConflicts(t *testing.T) {
	buyerID := uuid.New()
	order := &models.Order{
		SellerID:      uuid.New(),
		BuyerID:       buyerID,
		Status:        enums.OrderStatusOutForDelivery,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, _, _ := newTestService(t, repo)

	err := svc.Cancel(context.Background(), CancelInput{
		OrderID:     order.ID,
		Reason:      "too slow",
		ActorUserID: buyerID,
		ActorRole:   enums.ActorRoleBuyer,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelDeliveredOrderConflicts(t *testing.T) {
	order := &models.Order{
		SellerID:      uuid.New(),
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusDelivered,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, _, _ := newTestService(t, repo)

	err := svc.Cancel(context.Background(), CancelInput{
		OrderID:     order.ID,
		Reason:      "nope",
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleAdmin,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelIsIdempotent(t *testing.T) {
	buyerID := uuid.New()
	order := &models.Order{
		SellerID:      uuid.New(),
		BuyerID:       buyerID,
		Status:        enums.OrderStatusCancelled,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, ob, _ := newTestService(t, repo)

	err := svc.Cancel(context.Background(), CancelInput{
		OrderID:     order.ID,
		Reason:      "again",
		ActorUserID: buyerID,
		ActorRole:   enums.ActorRoleBuyer,
	})
	require.NoError(t, err)
	assert.Empty(t, ob.events)
}

func TestGetEnforcesOwnership(t *testing.T) {
	buyerID := uuid.New()
	order := &models.Order{
		SellerID:      uuid.New(),
		BuyerID:       buyerID,
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	}
	repo := newStubRepo(order)
	svc, _, _ := newTestService(t, repo)

	loaded, err := svc.Get(context.Background(), order.ID, buyerID, enums.ActorRoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, order.ID, loaded.ID)

	_, err = svc.Get(context.Background(), order.ID, uuid.New(), enums.ActorRoleBuyer)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestGetUnknownOrderNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, newStubRepo())

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New(), enums.ActorRoleAdmin)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
