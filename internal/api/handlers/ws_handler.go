package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/openhelm/supportdesk/internal/services"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// the chat widget is embedded on customer sites
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes; gorilla permits only one concurrent writer and
// the forwarder goroutine and the read loop both produce frames.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeText(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

type WSHandler struct {
	Redis  *redis.Client
	Chat   services.ChatService
	Logger *logrus.Logger
	Stream string
}

type wsClientFrame struct {
	Type        string `json:"type"` // "message" or "end_session"
	Message     string `json:"message"`
	AudioBase64 string `json:"audio_base64"`
	Language    string `json:"language"`
	Channel     string `json:"channel"`
}

// Serve bridges a websocket to the session's redis channels: frames
// published by the worker pool (reply chunks, transcripts, status updates)
// stream down, and client messages go onto the ingest stream.
func (h *WSHandler) Serve(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "session_id is required"})
		return
	}

	raw, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	respCh := "chat:" + sessionID + ":response"
	statusCh := "chat:" + sessionID + ":status"

	sub := h.Redis.Subscribe(ctx, respCh, statusCh)
	defer sub.Close()

	log := h.Logger.WithField("session_id", sessionID)

	// redis -> websocket
	go func() {
		defer cancel()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.writeText([]byte(msg.Payload)); err != nil {
					log.WithError(err).Debug("ws write failed")
					return
				}
			}
		}
	}()

	stream := h.Stream
	if stream == "" {
		stream = "chat:stream"
	}

	// websocket -> ingest stream
	for {
		_, payload, err := raw.ReadMessage()
		if err != nil {
			return
		}

		var frame wsClientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			conn.writeText([]byte(`{"type":"status","status":"failed","message":"invalid frame"}`))
			continue
		}

		switch frame.Type {
		case "end_session":
			if err := h.Chat.EndSession(ctx, sessionID); err != nil {
				log.WithError(err).Warn("end session failed")
			}
			conn.writeText([]byte(`{"type":"status","status":"done","message":"session ended"}`))
			return

		case "message", "":
			if frame.Message == "" && frame.AudioBase64 == "" {
				conn.writeText([]byte(`{"type":"status","status":"failed","message":"empty message"}`))
				continue
			}
			values := map[string]any{"session_id": sessionID}
			if frame.Message != "" {
				values["message"] = frame.Message
			}
			if frame.AudioBase64 != "" {
				values["audio_base64"] = frame.AudioBase64
			}
			if frame.Language != "" {
				values["language"] = frame.Language
			}
			if frame.Channel != "" {
				values["channel"] = frame.Channel
			}
			if v, ok := c.Get("user_id"); ok {
				if id, ok := v.(uint); ok && id != 0 {
					values["user_id"] = strconv.FormatUint(uint64(id), 10)
				}
			}
			if err := h.Redis.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
				log.WithError(err).Error("ingest enqueue failed")
				conn.writeText([]byte(`{"type":"status","status":"failed","message":"enqueue failed"}`))
			}

		default:
			conn.writeText([]byte(`{"type":"status","status":"failed","message":"unknown frame type"}`))
		}
	}
}
