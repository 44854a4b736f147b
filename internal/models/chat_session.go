package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatSession is the live assistant-session document (mongo). TicketStatus
// is a denormalized copy pushed by the status-change path; the ticket row
// stays authoritative.
type ChatSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    *uint              `bson:"user_id,omitempty" json:"user_id,omitempty"`

	Channel string `bson:"channel" json:"channel"` // web|widget|api
	Status  string `bson:"status" json:"status"`   // active|ended

	TicketID     *uint  `bson:"ticket_id,omitempty" json:"ticket_id,omitempty"`
	TicketStatus string `bson:"ticket_status,omitempty" json:"ticket_status,omitempty"`

	TurnCount int64 `bson:"turn_count" json:"turn_count"`

	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	LastActivityAt time.Time  `bson:"last_activity_at" json:"last_activity_at"`
	EndedAt        *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
}
