package delivery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
)

// Repository defines persistence operations for delivery assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, assignment *models.DeliveryAssignment) (*models.DeliveryAssignment, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	Update(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error
	Deactivate(ctx context.Context, orderID uuid.UUID) error
	ListActiveByAgent(ctx context.Context, agentID uuid.UUID) ([]models.DeliveryAssignment, error)
}
