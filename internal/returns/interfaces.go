package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

// Repository defines persistence operations for return assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, assignment *models.ReturnAssignment) (*models.ReturnAssignment, error)
	FindByID(ctx context.Context, returnID uuid.UUID) (*models.ReturnAssignment, error)
	FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnAssignment, error)
	Update(ctx context.Context, returnID uuid.UUID, updates map[string]any) error
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.ReturnAssignment, error)
	ListByStatus(ctx context.Context, status enums.ReturnStatus, limit int) ([]models.ReturnAssignment, error)
}
