package postgres

import (
	"context"

	"github.com/openhelm/supportdesk/internal/models"
	"gorm.io/gorm"
)

type ActivityRepo interface {
	Append(ctx context.Context, a *models.Activity) error
	ListByTicket(ctx context.Context, ticketID uint) ([]models.Activity, error)
	WithTx(tx *gorm.DB) ActivityRepo
}

type activityRepo struct {
	db *gorm.DB
}

func NewActivityRepo(db *gorm.DB) ActivityRepo {
	return &activityRepo{db: db}
}

func (r *activityRepo) WithTx(tx *gorm.DB) ActivityRepo {
	return &activityRepo{db: tx}
}

func (r *activityRepo) Append(ctx context.Context, a *models.Activity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *activityRepo) ListByTicket(ctx context.Context, ticketID uint) ([]models.Activity, error) {
	var rows []models.Activity
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
