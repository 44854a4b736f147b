package models

import "time"

type Comment struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TicketID   uint      `gorm:"column:ticket_id;index;not null" json:"ticket_id"`
	AuthorID   *uint     `gorm:"column:author_id" json:"author_id"`
	Text       string    `gorm:"column:text;type:text" json:"text"`
	IsInternal bool      `gorm:"column:is_internal" json:"is_internal"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Comment) TableName() string { return "comments" }
