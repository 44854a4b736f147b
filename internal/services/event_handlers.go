package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/openhelm/supportdesk/internal/events"
	mongorepo "github.com/openhelm/supportdesk/internal/repositories/mongo"
	pgrepo "github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/utils"
)

// ConversationCreatedHandler runs classification-driven ticket creation off
// the chat write path. Registered once at startup.
type ConversationCreatedHandler struct {
	sync     SyncService
	convos   pgrepo.ConversationRepo
	sessions mongorepo.ChatSessionRepo // optional
	log      *logrus.Logger
}

func NewConversationCreatedHandler(
	sync SyncService,
	convos pgrepo.ConversationRepo,
	sessions mongorepo.ChatSessionRepo,
	log *logrus.Logger,
) *ConversationCreatedHandler {
	return &ConversationCreatedHandler{sync: sync, convos: convos, sessions: sessions, log: log}
}

func (h *ConversationCreatedHandler) Name() string { return "conversation-created-sync" }

func (h *ConversationCreatedHandler) Handle(ctx context.Context, ev events.Event) error {
	payload, ok := ev.Payload.(events.ConversationCreated)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Type)
	}

	res := h.sync.AutoTicketFromConversation(ctx, payload.ConversationID)
	if !res.Success {
		return fmt.Errorf("auto ticket for conversation %d: %s", payload.ConversationID, res.Message)
	}

	if res.TicketID != 0 && h.sessions != nil {
		conv, err := h.convos.GetByID(ctx, payload.ConversationID)
		if err != nil && !errors.Is(err, utils.ErrNotFound) {
			return err
		}
		if conv != nil && conv.SessionID != "" {
			if err := h.sessions.SetTicket(ctx, conv.SessionID, res.TicketID, "open"); err != nil {
				h.log.WithError(err).WithField("session_id", conv.SessionID).Warn("session ticket link failed")
			}
		}
	}

	h.log.WithFields(logrus.Fields{
		"conversation_id": payload.ConversationID,
		"ticket_id":       res.TicketID,
		"actions":         res.ActionsTaken,
	}).Info("conversation sync handled")
	return nil
}

// TicketStatusChangedHandler pushes committed status changes to the
// read-side surfaces via the notify service.
type TicketStatusChangedHandler struct {
	notify NotifyService
}

func NewTicketStatusChangedHandler(notify NotifyService) *TicketStatusChangedHandler {
	return &TicketStatusChangedHandler{notify: notify}
}

func (h *TicketStatusChangedHandler) Name() string { return "ticket-status-notify" }

func (h *TicketStatusChangedHandler) Handle(ctx context.Context, ev events.Event) error {
	payload, ok := ev.Payload.(events.TicketStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Type)
	}
	return h.notify.TicketStatusChanged(ctx, payload)
}
