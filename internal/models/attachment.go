package models

import "time"

type TicketAttachment struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TicketID    uint      `gorm:"column:ticket_id;index;not null" json:"ticket_id"`
	FileName    string    `gorm:"column:file_name;type:text" json:"file_name"`
	ContentType string    `gorm:"column:content_type;type:text" json:"content_type"`
	SizeBytes   int64     `gorm:"column:size_bytes" json:"size_bytes"`
	ObjectPath  string    `gorm:"column:object_path;type:text" json:"object_path"`
	UploadedBy  *uint     `gorm:"column:uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (TicketAttachment) TableName() string { return "ticket_attachments" }
