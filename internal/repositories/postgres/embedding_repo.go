package postgres

import (
	"context"

	"github.com/openhelm/supportdesk/internal/models"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmbeddingRepo interface {
	Upsert(ctx context.Context, conversationID uint, embedding []float32) error
	Nearest(ctx context.Context, conversationID uint, k int) ([]uint, error)
}

type embeddingRepo struct {
	db *gorm.DB
}

func NewEmbeddingRepo(db *gorm.DB) EmbeddingRepo {
	return &embeddingRepo{db: db}
}

func (r *embeddingRepo) Upsert(ctx context.Context, conversationID uint, embedding []float32) error {
	row := models.ConversationEmbedding{
		ConversationID: conversationID,
		Embedding:      pgvector.NewVector(embedding),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding"}),
		}).
		Create(&row).Error
}

// Nearest returns the ids of the k conversations closest to the given one
// by L2 distance, excluding itself. Requires the pgvector extension.
func (r *embeddingRepo) Nearest(ctx context.Context, conversationID uint, k int) ([]uint, error) {
	if k <= 0 {
		k = 5
	}
	var ids []uint
	err := r.db.WithContext(ctx).Raw(`
		SELECT e.conversation_id
		FROM conversation_embeddings e
		WHERE e.conversation_id <> ?
		ORDER BY e.embedding <-> (
			SELECT embedding FROM conversation_embeddings WHERE conversation_id = ?
		)
		LIMIT ?`, conversationID, conversationID, k).
		Scan(&ids).Error
	return ids, err
}
