package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/openhelm/supportdesk/internal/providers/llm"
	"github.com/openhelm/supportdesk/internal/providers/stt"
	"github.com/openhelm/supportdesk/internal/services"
)

const assistantPrompt = "You are a customer-support assistant. Answer concisely. " +
	"If the customer reports a problem you cannot solve, say so plainly instead of guessing.\n\nCustomer wrote:\n"

// ChatWorkerPool consumes chat turns from the redis ingest stream: voice
// notes are transcribed, the assistant reply is streamed back on the
// session channel, and the finished turn is recorded as a conversation.
type ChatWorkerPool struct {
	Redis      *redis.Client
	Chat       services.ChatService
	NumWorkers int

	STT stt.Provider // optional; voice notes fail without it
	LLM llm.Provider

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *ChatWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Chat == nil || p.LLM == nil {
		return errors.New("ChatWorkerPool missing dependency: Redis/Chat/LLM must be set")
	}
	if p.Stream == "" {
		p.Stream = "chat:stream"
	}
	if p.Group == "" {
		p.Group = "chat-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *ChatWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *ChatWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	if sessionID == "" {
		return
	}

	var userID *uint
	if s := getStr("user_id"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			id := uint(n)
			userID = &id
		}
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
	})

	respCh := "chat:" + sessionID + ":response"
	statusCh := "chat:" + sessionID + ":status"

	message := getStr("message")
	var tools []string

	// Voice note path: transcribe before anything else.
	if message == "" {
		b64 := getStr("audio_base64")
		if b64 == "" {
			return
		}
		if p.STT == nil {
			_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"failed","message":"voice notes not supported"}`).Err()
			return
		}
		raw := b64
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:] // strip data:...;base64,
		}
		audio, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			log.WithError(err).Warn("base64 decode failed")
			_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"failed","message":"invalid audio_base64"}`).Err()
			return
		}

		_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"processing","message":"transcribing voice note"}`).Err()
		text, conf, err := p.STT.Transcribe(ctx, audio, getStr("language"))
		if err != nil || text == "" {
			log.WithError(err).Error("stt failed")
			_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"failed","message":"transcription failed"}`).Err()
			return
		}
		message = text
		tools = append(tools, "speech-to-text")

		sttPayload, _ := json.Marshal(map[string]any{
			"type":       "transcript",
			"text":       text,
			"confidence": conf,
		})
		_ = p.Redis.Publish(ctx, respCh, string(sttPayload)).Err()
	}

	// Assistant reply
	start := time.Now()
	_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"processing","message":"generating reply"}`).Err()

	chunks, errs := p.LLM.StreamAnswer(ctx, assistantPrompt+message)

	full := strings.Builder{}
	seq := int64(0)

	for chunk := range chunks {
		seq++
		full.WriteString(chunk)

		chPayload, _ := json.Marshal(map[string]any{
			"type":  "reply_chunk",
			"seq":   seq,
			"chunk": chunk,
		})
		_ = p.Redis.Publish(ctx, respCh, string(chPayload)).Err()
	}

	var streamErr error
	select {
	case streamErr = <-errs:
	default:
	}
	if streamErr != nil {
		log.WithError(streamErr).Error("llm stream failed")
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"failed","message":"reply generation failed"}`).Err()
		return
	}

	answer := full.String()
	conv, err := p.Chat.Append(ctx, services.AppendTurnInput{
		SessionID:   sessionID,
		UserID:      userID,
		UserMessage: message,
		BotResponse: answer,
		ToolsUsed:   tools,
		Channel:     getStr("channel"),
	})
	if err != nil {
		log.WithError(err).Error("record turn failed")
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"failed","message":"failed to record turn"}`).Err()
		return
	}

	donePayload, _ := json.Marshal(map[string]any{
		"type":               "reply_complete",
		"conversation_id":    conv.ID,
		"full_response":      answer,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
	_ = p.Redis.Publish(ctx, respCh, string(donePayload)).Err()
	_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"done","message":"turn processed"}`).Err()
}
