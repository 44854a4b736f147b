package postgres

import (
	"context"
	"errors"

	"github.com/openhelm/supportdesk/internal/models"
	"github.com/openhelm/supportdesk/internal/utils"
	"gorm.io/gorm"
)

type TicketFilter struct {
	Status   string
	Priority string
	Category string
	Limit    int
	Offset   int
}

type TicketRepo interface {
	Create(ctx context.Context, t *models.Ticket) error
	GetByID(ctx context.Context, id uint) (*models.Ticket, error)
	Update(ctx context.Context, t *models.Ticket) error
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, int64, error)
	WithTx(tx *gorm.DB) TicketRepo
}

type ticketRepo struct {
	db *gorm.DB
}

func NewTicketRepo(db *gorm.DB) TicketRepo {
	return &ticketRepo{db: db}
}

func (r *ticketRepo) WithTx(tx *gorm.DB) TicketRepo {
	return &ticketRepo{db: tx}
}

func (r *ticketRepo) Create(ctx context.Context, t *models.Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *ticketRepo) GetByID(ctx context.Context, id uint) (*models.Ticket, error) {
	var row models.Ticket
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *ticketRepo) Update(ctx context.Context, t *models.Ticket) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *ticketRepo) List(ctx context.Context, f TicketFilter) ([]models.Ticket, int64, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&models.Ticket{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Ticket
	err := q.Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&rows).Error
	return rows, total, err
}
