package models

import "time"

// Activity is the append-only audit trail on a ticket: one row per
// mutating operation.
type Activity struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TicketID     uint      `gorm:"column:ticket_id;index;not null" json:"ticket_id"`
	ActivityType string    `gorm:"column:activity_type;type:text;index" json:"activity_type"`
	Description  string    `gorm:"column:description;type:text" json:"description"`
	PerformedBy  *uint     `gorm:"column:performed_by" json:"performed_by"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Activity) TableName() string { return "activities" }

const (
	ActivityTicketCreated      = "ticket_created"
	ActivityConversationLinked = "conversation_linked"
	ActivityStatusChange       = "status_change"
	ActivityAttachmentAdded    = "attachment_added"
	ActivityCommentAdded       = "comment_added"
)
