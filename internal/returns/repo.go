package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a return assignment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, assignment *models.ReturnAssignment) (*models.ReturnAssignment, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *repository) FindByID(ctx context.Context, returnID uuid.UUID) (*models.ReturnAssignment, error) {
	var assignment models.ReturnAssignment
	err := r.db.WithContext(ctx).Where("id = ?", returnID).First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnAssignment, error) {
	var assignment models.ReturnAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status NOT IN ?", orderID, []enums.ReturnStatus{
			enums.ReturnStatusCompleted,
			enums.ReturnStatusPickupFailed,
			enums.ReturnStatusRejected,
		}).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) Update(ctx context.Context, returnID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnAssignment{}).
		Where("id = ?", returnID).
		Updates(updates).Error
}

func (r *repository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.ReturnAssignment, error) {
	var rows []models.ReturnAssignment
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND status IN ?", agentID, agentActiveStatuses).
		Order("assigned_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByStatus(ctx context.Context, status enums.ReturnStatus, limit int) ([]models.ReturnAssignment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.ReturnAssignment
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("requested_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
