package postgres

import (
	"context"

	"github.com/openhelm/supportdesk/internal/models"
	"gorm.io/gorm"
)

type CommentRepo interface {
	Append(ctx context.Context, c *models.Comment) error
	ListByTicket(ctx context.Context, ticketID uint, includeInternal bool) ([]models.Comment, error)
	WithTx(tx *gorm.DB) CommentRepo
}

type commentRepo struct {
	db *gorm.DB
}

func NewCommentRepo(db *gorm.DB) CommentRepo {
	return &commentRepo{db: db}
}

func (r *commentRepo) WithTx(tx *gorm.DB) CommentRepo {
	return &commentRepo{db: tx}
}

func (r *commentRepo) Append(ctx context.Context, c *models.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commentRepo) ListByTicket(ctx context.Context, ticketID uint, includeInternal bool) ([]models.Comment, error) {
	q := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID)
	if !includeInternal {
		q = q.Where("is_internal = ?", false)
	}
	var rows []models.Comment
	err := q.Order("created_at ASC").Find(&rows).Error
	return rows, err
}
