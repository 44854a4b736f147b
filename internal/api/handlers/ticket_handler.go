package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/services"
	"github.com/openhelm/supportdesk/internal/utils"
)

type TicketHandler struct {
	Tickets services.TicketService
	Sync    services.SyncService
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ticket, err := h.Tickets.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	f := postgres.TicketFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	}

	rows, total, err := h.Tickets.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": rows,
		"total":   total,
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

type createTicketRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	CustomerID  *uint  `json:"customer_id"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "TicketHandler.Create", "title is required", err))
		return
	}

	ticket, err := h.Tickets.Create(c.Request.Context(), services.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		CustomerID:  req.CustomerID,
		CreatedBy:   &userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ChangeStatus routes through the sync layer so linked conversations and
// subscribers see the transition.
func (h *TicketHandler) ChangeStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "TicketHandler.ChangeStatus", "status is required", err))
		return
	}

	res := h.Sync.HandleTicketStatusChange(c.Request.Context(), id, req.Status, actorID(c))
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// LinkConversation attaches an existing conversation to this ticket.
func (h *TicketHandler) LinkConversation(c *gin.Context) {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	res := h.Sync.LinkConversationToTicket(c.Request.Context(), convID, ticketID)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateFromConversation turns a conversation into a ticket on demand,
// bypassing the classifier outcome gate.
func (h *TicketHandler) CreateFromConversation(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	res := h.Sync.CreateTicketFromConversation(c.Request.Context(), convID, nil)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type addCommentRequest struct {
	Text     string `json:"text" binding:"required"`
	Internal bool   `json:"internal"`
}

func (h *TicketHandler) AddComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "TicketHandler.AddComment", "text is required", err))
		return
	}

	comment, err := h.Tickets.AddComment(c.Request.Context(), id, &userID, req.Text, req.Internal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *TicketHandler) Comments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	includeInternal := c.Query("include_internal") == "true"

	rows, err := h.Tickets.Comments(c.Request.Context(), id, includeInternal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": rows})
}

func (h *TicketHandler) Timeline(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rows, err := h.Tickets.Timeline(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": rows})
}
