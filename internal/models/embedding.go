package models

import "github.com/pgvector/pgvector-go"

// ConversationEmbedding lives in its own table so the pgvector column stays
// out of the core conversation schema (and out of non-postgres test setups).
type ConversationEmbedding struct {
	ConversationID uint            `gorm:"column:conversation_id;primaryKey" json:"conversation_id"`
	Embedding      pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding"`
}

func (ConversationEmbedding) TableName() string { return "conversation_embeddings" }
