package postgres

import (
	"context"

	"github.com/openhelm/supportdesk/internal/models"
	"gorm.io/gorm"
)

type AttachmentRepo interface {
	Insert(ctx context.Context, a *models.TicketAttachment) error
	ListByTicket(ctx context.Context, ticketID uint) ([]models.TicketAttachment, error)
	WithTx(tx *gorm.DB) AttachmentRepo
}

type attachmentRepo struct {
	db *gorm.DB
}

func NewAttachmentRepo(db *gorm.DB) AttachmentRepo {
	return &attachmentRepo{db: db}
}

func (r *attachmentRepo) WithTx(tx *gorm.DB) AttachmentRepo {
	return &attachmentRepo{db: tx}
}

func (r *attachmentRepo) Insert(ctx context.Context, a *models.TicketAttachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *attachmentRepo) ListByTicket(ctx context.Context, ticketID uint) ([]models.TicketAttachment, error) {
	var rows []models.TicketAttachment
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
