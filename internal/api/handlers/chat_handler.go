package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	mongorepo "github.com/openhelm/supportdesk/internal/repositories/mongo"
	"github.com/openhelm/supportdesk/internal/services"
	"github.com/openhelm/supportdesk/internal/utils"
)

type ChatHandler struct {
	Redis    *redis.Client
	Chat     services.ChatService
	Sessions mongorepo.ChatSessionRepo
	Stream   string
}

type chatMessageRequest struct {
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
	AudioBase64 string `json:"audio_base64"`
	Language    string `json:"language"`
	Channel     string `json:"channel"`
}

// PostMessage enqueues a chat turn on the ingest stream. The reply is
// delivered asynchronously over the session's pub/sub channels (see the
// websocket handler).
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.PostMessage", "invalid request body", err))
		return
	}
	if req.Message == "" && req.AudioBase64 == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.PostMessage", "message or audio_base64 is required", nil))
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	values := map[string]any{
		"session_id": req.SessionID,
	}
	if req.Message != "" {
		values["message"] = req.Message
	}
	if req.AudioBase64 != "" {
		values["audio_base64"] = req.AudioBase64
	}
	if req.Language != "" {
		values["language"] = req.Language
	}
	if req.Channel != "" {
		values["channel"] = req.Channel
	}
	if id := actorID(c); id != nil {
		values["user_id"] = strconv.FormatUint(uint64(*id), 10)
	}

	stream := h.Stream
	if stream == "" {
		stream = "chat:stream"
	}
	msgID, err := h.Redis.XAdd(c.Request.Context(), &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "ChatHandler.PostMessage", "failed to enqueue message", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id":       req.SessionID,
		"queued":           true,
		"message_id":       msgID,
		"response_channel": "chat:" + req.SessionID + ":response",
		"status_channel":   "chat:" + req.SessionID + ":status",
	})
}

func (h *ChatHandler) Transcript(c *gin.Context) {
	sessionID := c.Param("session_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := h.Chat.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":    sessionID,
		"conversations": rows,
	})
}

func (h *ChatHandler) Session(c *gin.Context) {
	sessionID := c.Param("session_id")

	doc, err := h.Sessions.GetBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, utils.E(utils.CodeNotFound, "ChatHandler.Session", "session not found", err))
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *ChatHandler) EndSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.Chat.EndSession(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "ended": true})
}

func (h *ChatHandler) Conversation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	row, err := h.Chat.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *ChatHandler) RelatedConversations(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	k, _ := strconv.Atoi(c.DefaultQuery("k", "5"))

	rows, err := h.Chat.RelatedConversations(c.Request.Context(), id, k)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": rows})
}
