package postgres

import (
	"context"
	"errors"

	"github.com/openhelm/supportdesk/internal/models"
	"github.com/openhelm/supportdesk/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	Insert(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id uint) (*models.Conversation, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error)
	ListByTicket(ctx context.Context, ticketID uint) ([]models.Conversation, error)
	SetLinkedTicket(ctx context.Context, id uint, ticketID *uint) error
	SetMetadata(ctx context.Context, id uint, metadata datatypes.JSON) error
	WithTx(tx *gorm.DB) ConversationRepo
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) WithTx(tx *gorm.DB) ConversationRepo {
	return &conversationRepo{db: tx}
}

func (r *conversationRepo) Insert(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *conversationRepo) GetByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var row models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *conversationRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Conversation
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *conversationRepo) ListByTicket(ctx context.Context, ticketID uint) ([]models.Conversation, error) {
	var rows []models.Conversation
	err := r.db.WithContext(ctx).
		Where("linked_ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *conversationRepo) SetLinkedTicket(ctx context.Context, id uint, ticketID *uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("linked_ticket_id", ticketID).Error
}

func (r *conversationRepo) SetMetadata(ctx context.Context, id uint, metadata datatypes.JSON) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("metadata", metadata).Error
}
