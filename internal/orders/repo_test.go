package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	"github.com/arjunkapur/swiftkart-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ordersDDL := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  amount_paise INTEGER NOT NULL,
  is_paid INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  delivery_notes TEXT,
  cancel_reason TEXT,
  cancelled_by TEXT,
  cancelled_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	assignmentsDDL := `
CREATE TABLE IF NOT EXISTS delivery_assignments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  agent_id TEXT NOT NULL,
  assigned_by_user_id TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  assigned_at DATETIME,
  unassigned_at DATETIME,
  seller_reached_at DATETIME,
  pickup_verified_at DATETIME,
  buyer_reached_at DATETIME,
  otp_verified_at DATETIME,
  cash_collected_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ordersDDL).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX uq_orders_number ON orders (order_number);`).Error)
	require.NoError(t, db.Exec(assignmentsDDL).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, order *models.Order) *models.Order {
	t.Helper()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.OrderNumber == "" {
		order.OrderNumber = "SK-20260801-" + order.ID.String()[:6]
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestMarkPaidFlipsExactlyOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, &models.Order{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodPrepaid,
		AmountPaise:   50000,
	})

	flipped, err := repo.MarkPaid(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = repo.MarkPaid(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, flipped)

	loaded, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsPaid)
	assert.NotNil(t, loaded.PaidAt)
}

func TestDeactivateAssignments(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, &models.Order{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	})
	assignment := &models.DeliveryAssignment{
		ID:      uuid.New(),
		OrderID: order.ID,
		AgentID: uuid.New(),
		Active:  true,
	}
	require.NoError(t, db.Create(assignment).Error)

	require.NoError(t, repo.DeactivateAssignments(context.Background(), order.ID))

	var loaded models.DeliveryAssignment
	require.NoError(t, db.Where("id = ?", assignment.ID).First(&loaded).Error)
	assert.False(t, loaded.Active)
	assert.NotNil(t, loaded.UnassignedAt)
}

func TestListByBuyerFiltersAndPaginates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	buyerID := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		seedOrder(t, db, &models.Order{
			BuyerID:       buyerID,
			SellerID:      uuid.New(),
			Status:        enums.OrderStatusPending,
			PaymentMethod: enums.PaymentMethodCOD,
			AmountPaise:   10000 + int64(i),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
	}
	delivered := enums.OrderStatusDelivered
	seedOrder(t, db, &models.Order{
		BuyerID:       buyerID,
		SellerID:      uuid.New(),
		Status:        delivered,
		PaymentMethod: enums.PaymentMethodPrepaid,
		AmountPaise:   99999,
		CreatedAt:     base.Add(10 * time.Minute),
	})
	// another buyer's order must not appear
	seedOrder(t, db, &models.Order{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   5,
		CreatedAt:     base,
	})

	list, err := repo.ListByBuyer(context.Background(), buyerID, pagination.Params{Limit: 10}, Filters{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 4)
	assert.Empty(t, list.NextCursor)

	pending := enums.OrderStatusPending
	list, err = repo.ListByBuyer(context.Background(), buyerID, pagination.Params{Limit: 10}, Filters{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 3)

	// page through two at a time
	list, err = repo.ListByBuyer(context.Background(), buyerID, pagination.Params{Limit: 2}, Filters{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 2)
	require.NotEmpty(t, list.NextCursor)

	second, err := repo.ListByBuyer(context.Background(), buyerID, pagination.Params{Limit: 2, Cursor: list.NextCursor}, Filters{})
	require.NoError(t, err)
	assert.Len(t, second.Orders, 2)
	assert.NotEqual(t, list.Orders[0].ID, second.Orders[0].ID)
}

func TestUpdateStatusPersists(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, &models.Order{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCOD,
		AmountPaise:   50000,
	})

	require.NoError(t, repo.UpdateStatus(context.Background(), order.ID, enums.OrderStatusProcessing))

	loaded, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, loaded.Status)
}
