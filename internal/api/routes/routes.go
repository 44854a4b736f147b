package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/openhelm/supportdesk/internal/api/handlers"
	"github.com/openhelm/supportdesk/internal/api/middleware"
)

type Deps struct {
	Logger *logrus.Logger

	Auth       *handlers.AuthHandler
	Ticket     *handlers.TicketHandler
	Chat       *handlers.ChatHandler
	Attachment *handlers.AttachmentHandler
	Admin      *handlers.AdminHandler
	WS         *handlers.WSHandler
}

func Register(r *gin.Engine, d Deps) {
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	// public: widget-facing chat surface
	api.POST("/auth/login", d.Auth.Login)
	api.POST("/chat/message", d.Chat.PostMessage)
	api.GET("/chat/:session_id", d.Chat.Transcript)
	api.GET("/chat/:session_id/session", d.Chat.Session)
	api.POST("/chat/:session_id/end", d.Chat.EndSession)
	api.GET("/ws/chat/:session_id", d.WS.Serve)

	// agent surface
	auth := api.Group("")
	auth.Use(middleware.JWTAuth())
	{
		auth.GET("/tickets", d.Ticket.List)
		auth.POST("/tickets", d.Ticket.Create)
		auth.GET("/tickets/:id", d.Ticket.Get)
		auth.PUT("/tickets/:id/status", d.Ticket.ChangeStatus)
		auth.GET("/tickets/:id/comments", d.Ticket.Comments)
		auth.POST("/tickets/:id/comments", d.Ticket.AddComment)
		auth.GET("/tickets/:id/timeline", d.Ticket.Timeline)
		auth.POST("/tickets/:id/conversations/:conversation_id/link", d.Ticket.LinkConversation)
		auth.POST("/tickets/:id/attachments", d.Attachment.Upload)
		auth.GET("/tickets/:id/attachments", d.Attachment.List)

		auth.GET("/conversations/:id", d.Chat.Conversation)
		auth.GET("/conversations/:id/related", d.Chat.RelatedConversations)
		auth.POST("/conversations/:id/ticket", d.Ticket.CreateFromConversation)
	}

	// admin surface
	admin := api.Group("/admin")
	admin.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		admin.POST("/consistency/sweep", d.Admin.RunSweep)
		admin.POST("/events/drain", d.Admin.DrainQueue)
		admin.POST("/agents", d.Auth.RegisterAgent)
	}
}
