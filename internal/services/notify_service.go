package services

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/openhelm/supportdesk/internal/cache"
	"github.com/openhelm/supportdesk/internal/events"
	mongorepo "github.com/openhelm/supportdesk/internal/repositories/mongo"
)

// NotifyService fans a committed ticket status change out to the read-side
// surfaces: the ticket cache, the per-ticket redis channel agents watch,
// and the mongo session documents of live chats.
type NotifyService interface {
	TicketStatusChanged(ctx context.Context, ev events.TicketStatusChanged) error
}

type notifyService struct {
	cache    cache.Cache
	rdb      *redis.Client
	sessions mongorepo.ChatSessionRepo
	log      *logrus.Logger
}

func NewNotifyService(c cache.Cache, rdb *redis.Client, sessions mongorepo.ChatSessionRepo, log *logrus.Logger) NotifyService {
	return &notifyService{cache: c, rdb: rdb, sessions: sessions, log: log}
}

func (s *notifyService) TicketStatusChanged(ctx context.Context, ev events.TicketStatusChanged) error {
	if s.cache != nil {
		if err := s.cache.Del(ctx, cache.TicketKey(ev.TicketID)); err != nil {
			s.log.WithError(err).WithField("ticket_id", ev.TicketID).Warn("ticket cache invalidation failed")
		}
	}

	frame, _ := json.Marshal(map[string]any{
		"type":       "ticket_status",
		"ticket_id":  ev.TicketID,
		"old_status": ev.OldStatus,
		"new_status": ev.NewStatus,
	})

	if s.rdb != nil {
		ch := "ticket:" + strconv.FormatUint(uint64(ev.TicketID), 10) + ":events"
		if err := s.rdb.Publish(ctx, ch, frame).Err(); err != nil {
			s.log.WithError(err).WithField("channel", ch).Warn("ticket event publish failed")
		}
	}

	for _, sessionID := range ev.SessionIDs {
		if s.sessions != nil {
			if err := s.sessions.SetTicketStatus(ctx, sessionID, ev.NewStatus); err != nil {
				s.log.WithError(err).WithField("session_id", sessionID).Warn("session status denormalization failed")
			}
		}
		if s.rdb != nil {
			if err := s.rdb.Publish(ctx, "chat:"+sessionID+":status", frame).Err(); err != nil {
				s.log.WithError(err).WithField("session_id", sessionID).Warn("chat status publish failed")
			}
		}
	}
	return nil
}
