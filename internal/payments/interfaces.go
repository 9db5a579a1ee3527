package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// Repository defines persistence operations for payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	FindByID(ctx context.Context, attemptID uuid.UUID) (*models.PaymentAttempt, error)
	FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error)
	FindByGatewayOrderID(ctx context.Context, gateway enums.PaymentGateway, gatewayOrderID string) (*models.PaymentAttempt, error)
	LatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error)
	Update(ctx context.Context, attemptID uuid.UUID, updates map[string]any) error
	IncrementPoll(ctx context.Context, attemptID uuid.UUID, at time.Time) (int, error)
	ListOpen(ctx context.Context, limit int) ([]models.PaymentAttempt, error)
	HasIntegrityHold(ctx context.Context, orderID uuid.UUID) (bool, error)
}
