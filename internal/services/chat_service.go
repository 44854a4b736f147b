package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openhelm/supportdesk/internal/events"
	"github.com/openhelm/supportdesk/internal/models"
	mongorepo "github.com/openhelm/supportdesk/internal/repositories/mongo"
	pgrepo "github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/utils"
)

// ChatService records assistant chat turns. Each turn lands in postgres,
// bumps the mongo session document, and enqueues a conversation-created
// event so the sync path can classify it off the write path.
type ChatService interface {
	Append(ctx context.Context, in AppendTurnInput) (*models.Conversation, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error)
	GetByID(ctx context.Context, id uint) (*models.Conversation, error)
	RelatedConversations(ctx context.Context, conversationID uint, k int) ([]models.Conversation, error)
	EndSession(ctx context.Context, sessionID string) error
}

type AppendTurnInput struct {
	SessionID   string
	UserID      *uint
	UserMessage string
	BotResponse string
	ToolsUsed   []string
	Embedding   []float32
	Channel     string
}

type chatService struct {
	convos     pgrepo.ConversationRepo
	embeddings pgrepo.EmbeddingRepo
	sessions   mongorepo.ChatSessionRepo
	dispatcher *events.Dispatcher
	log        *logrus.Logger
}

func NewChatService(
	convos pgrepo.ConversationRepo,
	embeddings pgrepo.EmbeddingRepo,
	sessions mongorepo.ChatSessionRepo,
	dispatcher *events.Dispatcher,
	log *logrus.Logger,
) ChatService {
	return &chatService{
		convos:     convos,
		embeddings: embeddings,
		sessions:   sessions,
		dispatcher: dispatcher,
		log:        log,
	}
}

func (s *chatService) Append(ctx context.Context, in AppendTurnInput) (*models.Conversation, error) {
	const op = "ChatService.Append"

	if in.SessionID == "" || in.UserMessage == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and user_message are required", nil)
	}

	row := &models.Conversation{
		SessionID:   in.SessionID,
		UserID:      in.UserID,
		UserMessage: in.UserMessage,
		BotResponse: in.BotResponse,
		ToolsUsed:   marshalJSON(in.ToolsUsed),
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.convos.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert conversation", err)
	}

	if len(in.Embedding) > 0 {
		if err := s.embeddings.Upsert(ctx, row.ID, in.Embedding); err != nil {
			s.log.WithError(err).WithField("conversation_id", row.ID).Warn("embedding upsert failed")
		}
	}

	// session doc is a read-convenience mirror; a failed touch never fails
	// the turn
	if err := s.sessions.Touch(ctx, in.SessionID, in.UserID, in.Channel, row.CreatedAt); err != nil {
		s.log.WithError(err).WithField("session_id", in.SessionID).Warn("session touch failed")
	}

	if s.dispatcher != nil {
		s.dispatcher.Enqueue(events.Event{
			Type:    events.TypeConversationCreated,
			Payload: events.ConversationCreated{ConversationID: row.ID},
		})
	}
	return row, nil
}

func (s *chatService) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	const op = "ChatService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	rows, err := s.convos.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}
	return rows, nil
}

func (s *chatService) GetByID(ctx context.Context, id uint) (*models.Conversation, error) {
	const op = "ChatService.GetByID"

	row, err := s.convos.GetByID(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to get conversation", err)
	}
	return row, nil
}

// RelatedConversations returns past conversations nearest in embedding
// space, for agent context on a ticket.
func (s *chatService) RelatedConversations(ctx context.Context, conversationID uint, k int) ([]models.Conversation, error) {
	const op = "ChatService.RelatedConversations"

	ids, err := s.embeddings.Nearest(ctx, conversationID, k)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "nearest-neighbour query failed", err)
	}

	out := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		row, err := s.convos.GetByID(ctx, id)
		if errors.Is(err, utils.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to load related conversation", err)
		}
		out = append(out, *row)
	}
	return out, nil
}

func (s *chatService) EndSession(ctx context.Context, sessionID string) error {
	const op = "ChatService.EndSession"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := s.sessions.End(ctx, sessionID, time.Now().UTC()); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to end session", err)
	}
	return nil
}
