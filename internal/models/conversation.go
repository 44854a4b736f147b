package models

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation is one user/assistant chat turn. Rows are immutable after
// insert except for LinkedTicketID (set once by the sync service) and
// Metadata (denormalized read-convenience copies, never authoritative).
type Conversation struct {
	ID             uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID      string         `gorm:"column:session_id;type:text;index" json:"session_id"`
	UserID         *uint          `gorm:"column:user_id;index" json:"user_id"`
	UserMessage    string         `gorm:"column:user_message;type:text" json:"user_message"`
	BotResponse    string         `gorm:"column:bot_response;type:text" json:"bot_response"`
	ToolsUsed      datatypes.JSON `gorm:"column:tools_used;type:jsonb" json:"tools_used"`
	LinkedTicketID *uint          `gorm:"column:linked_ticket_id;index" json:"linked_ticket_id"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt      time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

func (Conversation) TableName() string { return "conversations" }
