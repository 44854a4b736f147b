package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/openhelm/supportdesk/config"
	"github.com/openhelm/supportdesk/internal/api/handlers"
	"github.com/openhelm/supportdesk/internal/api/routes"
	"github.com/openhelm/supportdesk/internal/cache"
	"github.com/openhelm/supportdesk/internal/classifier"
	"github.com/openhelm/supportdesk/internal/events"
	"github.com/openhelm/supportdesk/internal/logger"
	"github.com/openhelm/supportdesk/internal/providers/llm"
	"github.com/openhelm/supportdesk/internal/providers/stt"
	mongorepo "github.com/openhelm/supportdesk/internal/repositories/mongo"
	pgrepo "github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/services"
	"github.com/openhelm/supportdesk/internal/storage"
	"github.com/openhelm/supportdesk/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.NewPostgres()
	if err != nil {
		log.WithError(err).Fatal("postgres connect failed")
	}

	rdb, err := config.NewRedis(ctx)
	if err != nil {
		log.WithError(err).Fatal("redis connect failed")
	}

	mongoClient, err := config.NewMongo(ctx)
	if err != nil {
		log.WithError(err).Fatal("mongo connect failed")
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(shutCtx)
	}()
	mongoDB := config.MongoDatabase(mongoClient)

	// repositories
	convos := pgrepo.NewConversationRepo(db)
	tickets := pgrepo.NewTicketRepo(db)
	activities := pgrepo.NewActivityRepo(db)
	attachments := pgrepo.NewAttachmentRepo(db)
	embeddings := pgrepo.NewEmbeddingRepo(db)
	users := pgrepo.NewUserRepo(db)
	sessions := mongorepo.NewChatSessionRepo(mongoDB)

	ticketCache := cache.NewRedisCache(rdb)
	cls := classifier.New()

	// consistency sweeps run on the dispatcher's ticker
	consistency := services.NewConsistencyService(db, log)
	dispatcher := events.NewDispatcher(log, events.Options{
		DrainInterval: envDuration("EVENT_DRAIN_INTERVAL", 5*time.Second),
		SweepInterval: envDuration("CONSISTENCY_SWEEP_INTERVAL", time.Hour),
		Sweep: func(ctx context.Context) {
			report := consistency.RunSweep(ctx)
			log.WithFields(map[string]any{
				"checked":  report.TotalChecked,
				"issues":   len(report.Issues),
				"resolved": report.ResolvedCount,
				"errors":   len(report.Errors),
			}).Info("scheduled consistency sweep finished")
		},
	})

	// services
	syncSvc := services.NewSyncService(db, cls, dispatcher, log)
	chatSvc := services.NewChatService(convos, embeddings, sessions, dispatcher, log)
	ticketSvc := services.NewTicketService(db, ticketCache, log)
	userSvc := services.NewUserService(users)
	notifySvc := services.NewNotifyService(ticketCache, rdb, sessions, log)

	var uploader storage.Uploader
	var signer storage.Signer
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		store, err := storage.NewGCSStore(ctx, bucket)
		if err != nil {
			log.WithError(err).Fatal("gcs init failed")
		}
		defer store.Close()
		uploader = store
		signer = store
	} else {
		log.Warn("GCS_BUCKET not set; attachment uploads disabled")
	}
	attachSvc := services.NewAttachmentService(tickets, attachments, activities, uploader, log)

	// event wiring
	dispatcher.Register(events.TypeConversationCreated,
		services.NewConversationCreatedHandler(syncSvc, convos, sessions, log))
	dispatcher.Register(events.TypeTicketStatusChanged,
		services.NewTicketStatusChangedHandler(notifySvc))
	dispatcher.Start(ctx)

	// chat worker pool; optional providers degrade the voice/LLM paths
	llmProvider, err := llm.NewVertexGemini(ctx,
		os.Getenv("GOOGLE_PROJECT_ID"),
		os.Getenv("GOOGLE_LOCATION"),
		os.Getenv("GEMINI_MODEL"),
	)
	if err != nil {
		log.WithError(err).Fatal("vertex init failed")
	}
	defer llmProvider.Close()

	var sttProvider stt.Provider
	if gs, err := stt.NewGoogleSpeech(ctx); err != nil {
		log.WithError(err).Warn("speech-to-text unavailable; voice notes disabled")
	} else {
		sttProvider = gs
		defer gs.Close()
	}

	pool := &workers.ChatWorkerPool{
		Redis:      rdb,
		Chat:       chatSvc,
		NumWorkers: envInt("CHAT_WORKERS", 5),
		STT:        sttProvider,
		LLM:        llmProvider,
		Logger:     log,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("chat worker pool start failed")
	}

	// http surface
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	routes.Register(r, routes.Deps{
		Logger: log,
		Auth:   &handlers.AuthHandler{Users: userSvc},
		Ticket: &handlers.TicketHandler{Tickets: ticketSvc, Sync: syncSvc},
		Chat: &handlers.ChatHandler{
			Redis:    rdb,
			Chat:     chatSvc,
			Sessions: sessions,
		},
		Attachment: &handlers.AttachmentHandler{Attachments: attachSvc, Signer: signer},
		Admin:      &handlers.AdminHandler{Consistency: consistency, Dispatcher: dispatcher},
		WS: &handlers.WSHandler{
			Redis:  rdb,
			Chat:   chatSvc,
			Logger: log,
		},
	})

	addr := ":" + envStr("PORT", "8080")
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.WithField("addr", addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}

	// flush queued events before the loops exit
	dispatcher.Drain(shutCtx)
	dispatcher.Stop()

	log.Info("bye")
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
