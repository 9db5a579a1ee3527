package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, assignment *models.DeliveryAssignment) (*models.DeliveryAssignment, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND active = ?", orderID, true).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) Update(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ?", assignmentID).
		Updates(updates).Error
}

func (r *repository) Deactivate(ctx context.Context, orderID uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("order_id = ? AND active = ?", orderID, true).
		Updates(map[string]any{
			"active":        false,
			"unassigned_at": now,
		}).Error
}

func (r *repository) ListActiveByAgent(ctx context.Context, agentID uuid.UUID) ([]models.DeliveryAssignment, error) {
	var rows []models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND active = ?", agentID, true).
		Order("assigned_at ASC").
		Find(&rows).Error
	return rows, err
}
