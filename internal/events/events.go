package events

import "time"

const (
	TypeConversationCreated = "conversation.created"
	TypeTicketStatusChanged = "ticket.status_changed"
)

// Event is an in-process entity-mutation notification. It never crosses a
// process boundary; there is no wire format.
type Event struct {
	Type    string
	Payload any
	At      time.Time
}

type ConversationCreated struct {
	ConversationID uint
}

type TicketStatusChanged struct {
	TicketID   uint
	OldStatus  string
	NewStatus  string
	SessionIDs []string
}
