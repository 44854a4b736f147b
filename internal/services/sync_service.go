package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openhelm/supportdesk/internal/classifier"
	"github.com/openhelm/supportdesk/internal/events"
	"github.com/openhelm/supportdesk/internal/models"
	pgrepo "github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/utils"
)

// SyncResult is the outcome of one orchestration call. Routine misses
// (missing conversation, unknown status) come back as Success=false with a
// message rather than as errors, so the route layer never has to branch on
// error types for expected conditions.
type SyncResult struct {
	Success      bool     `json:"success"`
	TicketID     uint     `json:"ticket_id,omitempty"`
	ActionsTaken []string `json:"actions_taken"`
	Message      string   `json:"message"`
}

// SyncService keeps conversations and tickets consistent with each other:
// it turns classified conversations into tickets, links conversations to
// existing tickets, and propagates ticket status changes back to linked
// conversations. Every mutating call is a single transaction.
type SyncService interface {
	CreateTicketFromConversation(ctx context.Context, conversationID uint, meta *classifier.TicketMetadata) SyncResult
	AutoTicketFromConversation(ctx context.Context, conversationID uint) SyncResult
	LinkConversationToTicket(ctx context.Context, conversationID, ticketID uint) SyncResult
	HandleTicketStatusChange(ctx context.Context, ticketID uint, newStatus string, actorID *uint) SyncResult
}

type syncService struct {
	db         *gorm.DB
	cls        *classifier.Classifier
	tickets    pgrepo.TicketRepo
	convos     pgrepo.ConversationRepo
	activities pgrepo.ActivityRepo
	comments   pgrepo.CommentRepo
	dispatcher *events.Dispatcher // optional
	log        *logrus.Logger
}

func NewSyncService(db *gorm.DB, cls *classifier.Classifier, dispatcher *events.Dispatcher, log *logrus.Logger) SyncService {
	return &syncService{
		db:         db,
		cls:        cls,
		tickets:    pgrepo.NewTicketRepo(db),
		convos:     pgrepo.NewConversationRepo(db),
		activities: pgrepo.NewActivityRepo(db),
		comments:   pgrepo.NewCommentRepo(db),
		dispatcher: dispatcher,
		log:        log,
	}
}

func fail(msg string) SyncResult {
	return SyncResult{Success: false, Message: msg}
}

// CreateTicketFromConversation is idempotent: a conversation that already
// carries a ticket link returns the existing ticket instead of creating a
// duplicate. When meta is nil the classifier supplies it.
func (s *syncService) CreateTicketFromConversation(ctx context.Context, conversationID uint, meta *classifier.TicketMetadata) SyncResult {
	const op = "SyncService.CreateTicketFromConversation"

	conv, err := s.convos.GetByID(ctx, conversationID)
	if errors.Is(err, utils.ErrNotFound) {
		return fail(fmt.Sprintf("conversation %d not found", conversationID))
	}
	if err != nil {
		s.log.WithError(err).WithField("op", op).Error("load conversation failed")
		return fail("failed to load conversation: " + err.Error())
	}

	if conv.LinkedTicketID != nil {
		return SyncResult{
			Success:      true,
			TicketID:     *conv.LinkedTicketID,
			ActionsTaken: []string{"already_linked"},
			Message:      fmt.Sprintf("conversation %d already linked to ticket %d", conv.ID, *conv.LinkedTicketID),
		}
	}

	if meta == nil {
		res := s.cls.Classify(conv)
		meta = res.Metadata
	}
	if meta == nil {
		meta = defaultMetadata(conv)
	}

	now := time.Now().UTC()
	ticket := &models.Ticket{
		Title:       meta.Title,
		Description: meta.Description,
		Status:      models.StatusOpen,
		Priority:    meta.Priority,
		Category:    meta.Category,
		Tags:        marshalJSON(meta.Tags),
		CustomerID:  conv.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tickets.WithTx(tx).Create(ctx, ticket); err != nil {
			return err
		}
		if err := s.convos.WithTx(tx).SetLinkedTicket(ctx, conv.ID, &ticket.ID); err != nil {
			return err
		}
		return s.activities.WithTx(tx).Append(ctx, &models.Activity{
			TicketID:     ticket.ID,
			ActivityType: models.ActivityTicketCreated,
			Description:  fmt.Sprintf("ticket created from conversation %d (session %s)", conv.ID, conv.SessionID),
			CreatedAt:    now,
		})
	})
	if err != nil {
		s.log.WithError(err).WithField("op", op).Error("transaction failed")
		return fail("failed to create ticket: " + err.Error())
	}

	return SyncResult{
		Success:      true,
		TicketID:     ticket.ID,
		ActionsTaken: []string{"ticket_created", "conversation_linked", "activity_recorded"},
		Message:      fmt.Sprintf("ticket %d created from conversation %d", ticket.ID, conv.ID),
	}
}

// AutoTicketFromConversation classifies first and only creates a ticket for
// needs_ticket and escalation_required outcomes. The classification verdict
// is recorded on the conversation metadata either way.
func (s *syncService) AutoTicketFromConversation(ctx context.Context, conversationID uint) SyncResult {
	const op = "SyncService.AutoTicketFromConversation"

	conv, err := s.convos.GetByID(ctx, conversationID)
	if errors.Is(err, utils.ErrNotFound) {
		return fail(fmt.Sprintf("conversation %d not found", conversationID))
	}
	if err != nil {
		s.log.WithError(err).WithField("op", op).Error("load conversation failed")
		return fail("failed to load conversation: " + err.Error())
	}

	res := s.cls.Classify(conv)

	md := mergeMetadata(conv.Metadata, map[string]any{
		"classification":            string(res.Outcome),
		"classification_confidence": res.Confidence,
	})
	if err := s.convos.SetMetadata(ctx, conv.ID, md); err != nil {
		s.log.WithError(err).WithField("op", op).Warn("record classification failed")
	}

	s.log.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"outcome":         res.Outcome,
		"confidence":      res.Confidence,
	}).Info("conversation classified")

	switch res.Outcome {
	case classifier.OutcomeNeedsTicket, classifier.OutcomeEscalationRequired:
		return s.CreateTicketFromConversation(ctx, conversationID, res.Metadata)
	default:
		return SyncResult{
			Success:      true,
			ActionsTaken: []string{"no_ticket_needed"},
			Message:      fmt.Sprintf("conversation %d classified as %s; no ticket created", conv.ID, res.Outcome),
		}
	}
}

func (s *syncService) LinkConversationToTicket(ctx context.Context, conversationID, ticketID uint) SyncResult {
	const op = "SyncService.LinkConversationToTicket"

	conv, err := s.convos.GetByID(ctx, conversationID)
	if errors.Is(err, utils.ErrNotFound) {
		return fail(fmt.Sprintf("conversation %d not found", conversationID))
	}
	if err != nil {
		return fail("failed to load conversation: " + err.Error())
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, utils.ErrNotFound) {
		return fail(fmt.Sprintf("ticket %d not found", ticketID))
	}
	if err != nil {
		return fail("failed to load ticket: " + err.Error())
	}

	if conv.LinkedTicketID != nil && *conv.LinkedTicketID == ticket.ID {
		return SyncResult{
			Success:      true,
			TicketID:     ticket.ID,
			ActionsTaken: []string{"already_linked"},
			Message:      fmt.Sprintf("conversation %d already linked to ticket %d", conv.ID, ticket.ID),
		}
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.convos.WithTx(tx).SetLinkedTicket(ctx, conv.ID, &ticket.ID); err != nil {
			return err
		}
		if err := s.comments.WithTx(tx).Append(ctx, &models.Comment{
			TicketID:   ticket.ID,
			Text:       formatTranscript(conv),
			IsInternal: true,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		return s.activities.WithTx(tx).Append(ctx, &models.Activity{
			TicketID:     ticket.ID,
			ActivityType: models.ActivityConversationLinked,
			Description:  fmt.Sprintf("conversation %d (session %s) linked", conv.ID, conv.SessionID),
			CreatedAt:    now,
		})
	})
	if err != nil {
		s.log.WithError(err).WithField("op", op).Error("transaction failed")
		return fail("failed to link conversation: " + err.Error())
	}

	return SyncResult{
		Success:      true,
		TicketID:     ticket.ID,
		ActionsTaken: []string{"conversation_linked", "comment_added", "activity_recorded"},
		Message:      fmt.Sprintf("conversation %d linked to ticket %d", conv.ID, ticket.ID),
	}
}

// HandleTicketStatusChange validates and applies a status transition.
// ResolvedAt is monotonic: it is set the first time the ticket reaches
// resolved/closed and never unset or moved by this path. The new status is
// denormalized into every linked conversation's metadata for read
// convenience; the ticket row stays authoritative.
func (s *syncService) HandleTicketStatusChange(ctx context.Context, ticketID uint, newStatus string, actorID *uint) SyncResult {
	const op = "SyncService.HandleTicketStatusChange"

	status, ok := models.ParseTicketStatus(newStatus)
	if !ok {
		return fail(fmt.Sprintf("invalid status %q", newStatus))
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, utils.ErrNotFound) {
		return fail(fmt.Sprintf("ticket %d not found", ticketID))
	}
	if err != nil {
		return fail("failed to load ticket: " + err.Error())
	}

	oldStatus := ticket.Status
	now := time.Now().UTC()
	actions := []string{"status_updated"}

	var sessionIDs []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket.Status = status
		ticket.UpdatedAt = now
		if status.IsTerminal() && ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
			actions = append(actions, "resolved_at_set")
		}
		if err := s.tickets.WithTx(tx).Update(ctx, ticket); err != nil {
			return err
		}

		if err := s.activities.WithTx(tx).Append(ctx, &models.Activity{
			TicketID:     ticket.ID,
			ActivityType: models.ActivityStatusChange,
			Description:  fmt.Sprintf("status changed from %s to %s", oldStatus, status),
			PerformedBy:  actorID,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		actions = append(actions, "activity_recorded")

		linked, err := s.convos.WithTx(tx).ListByTicket(ctx, ticket.ID)
		if err != nil {
			return err
		}
		seen := map[string]struct{}{}
		for i := range linked {
			md := mergeMetadata(linked[i].Metadata, map[string]any{"ticket_status": string(status)})
			if err := s.convos.WithTx(tx).SetMetadata(ctx, linked[i].ID, md); err != nil {
				return err
			}
			if _, ok := seen[linked[i].SessionID]; !ok && linked[i].SessionID != "" {
				seen[linked[i].SessionID] = struct{}{}
				sessionIDs = append(sessionIDs, linked[i].SessionID)
			}
		}
		if len(linked) > 0 {
			actions = append(actions, "conversations_updated")
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("op", op).Error("transaction failed")
		return fail("failed to change status: " + err.Error())
	}

	if s.dispatcher != nil {
		s.dispatcher.Enqueue(events.Event{
			Type: events.TypeTicketStatusChanged,
			Payload: events.TicketStatusChanged{
				TicketID:   ticket.ID,
				OldStatus:  string(oldStatus),
				NewStatus:  string(status),
				SessionIDs: sessionIDs,
			},
		})
	}

	return SyncResult{
		Success:      true,
		TicketID:     ticket.ID,
		ActionsTaken: actions,
		Message:      fmt.Sprintf("ticket %d status changed from %s to %s", ticket.ID, oldStatus, status),
	}
}

func defaultMetadata(conv *models.Conversation) *classifier.TicketMetadata {
	title := conv.UserMessage
	if len([]rune(title)) > 100 {
		title = string([]rune(title)[:100]) + "..."
	}
	if title == "" {
		title = fmt.Sprintf("Support request from session %s", conv.SessionID)
	}
	return &classifier.TicketMetadata{
		Title:       title,
		Description: formatTranscript(conv),
		Category:    models.CategoryGeneral,
		Priority:    models.PriorityMedium,
		Tags:        []string{"ai-generated"},
	}
}

func formatTranscript(conv *models.Conversation) string {
	out := fmt.Sprintf("Transcript of conversation %d (session %s, %s)\n\nCustomer: %s",
		conv.ID, conv.SessionID, conv.CreatedAt.Format(time.RFC3339), conv.UserMessage)
	if conv.BotResponse != "" {
		out += "\n\nAssistant: " + conv.BotResponse
	}
	return out
}

func mergeMetadata(existing datatypes.JSON, updates map[string]any) datatypes.JSON {
	merged := map[string]any{}
	if len(existing) > 0 {
		// corrupt metadata is replaced rather than propagated
		_ = json.Unmarshal(existing, &merged)
	}
	for k, v := range updates {
		merged[k] = v
	}
	return marshalJSON(merged)
}

func marshalJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
