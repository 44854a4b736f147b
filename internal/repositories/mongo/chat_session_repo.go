package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/openhelm/supportdesk/internal/models"
	"github.com/openhelm/supportdesk/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChatSessionRepo interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.ChatSession, error)
	Touch(ctx context.Context, sessionID string, userID *uint, channel string, at time.Time) error
	SetTicket(ctx context.Context, sessionID string, ticketID uint, status string) error
	SetTicketStatus(ctx context.Context, sessionID, status string) error
	End(ctx context.Context, sessionID string, endedAt time.Time) error
}

type chatSessionRepo struct {
	col *mongo.Collection
}

func NewChatSessionRepo(db *mongo.Database) ChatSessionRepo {
	return &chatSessionRepo{col: db.Collection("chat_sessions")}
}

func (r *chatSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var s models.ChatSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

// Touch upserts the session document and bumps the turn counter; a chat
// turn against an unknown session id creates it.
func (r *chatSessionRepo) Touch(ctx context.Context, sessionID string, userID *uint, channel string, at time.Time) error {
	if channel == "" {
		channel = "web"
	}
	set := bson.M{
		"last_activity_at": at.UTC(),
		"status":           "active",
	}
	if userID != nil {
		set["user_id"] = *userID
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{
			"$set": set,
			"$setOnInsert": bson.M{
				"session_id": sessionID,
				"channel":    channel,
				"created_at": at.UTC(),
			},
			"$inc": bson.M{"turn_count": 1},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *chatSessionRepo) SetTicket(ctx context.Context, sessionID string, ticketID uint, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"ticket_id":     ticketID,
			"ticket_status": status,
		}},
	)
	return err
}

func (r *chatSessionRepo) SetTicketStatus(ctx context.Context, sessionID, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"ticket_status": status}},
	)
	return err
}

func (r *chatSessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"status":   "ended",
			"ended_at": endedAt.UTC(),
		}},
	)
	return err
}
