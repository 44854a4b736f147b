package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/openhelm/supportdesk/internal/cache"
	"github.com/openhelm/supportdesk/internal/models"
	pgrepo "github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/utils"
)

type TicketService interface {
	Get(ctx context.Context, id uint) (*models.Ticket, error)
	List(ctx context.Context, f pgrepo.TicketFilter) ([]models.Ticket, int64, error)
	Create(ctx context.Context, in CreateTicketInput) (*models.Ticket, error)
	AddComment(ctx context.Context, ticketID uint, authorID *uint, text string, internal bool) (*models.Comment, error)
	Comments(ctx context.Context, ticketID uint, includeInternal bool) ([]models.Comment, error)
	Timeline(ctx context.Context, ticketID uint) ([]models.Activity, error)
}

type CreateTicketInput struct {
	Title       string
	Description string
	Priority    string
	Category    string
	CustomerID  *uint
	CreatedBy   *uint
}

type ticketService struct {
	db         *gorm.DB
	tickets    pgrepo.TicketRepo
	comments   pgrepo.CommentRepo
	activities pgrepo.ActivityRepo
	cache      cache.Cache // optional
	log        *logrus.Logger
}

func NewTicketService(db *gorm.DB, c cache.Cache, log *logrus.Logger) TicketService {
	return &ticketService{
		db:         db,
		tickets:    pgrepo.NewTicketRepo(db),
		comments:   pgrepo.NewCommentRepo(db),
		activities: pgrepo.NewActivityRepo(db),
		cache:      c,
		log:        log,
	}
}

func (s *ticketService) Get(ctx context.Context, id uint) (*models.Ticket, error) {
	const op = "TicketService.Get"

	if s.cache != nil {
		var cached models.Ticket
		if hit, err := s.cache.GetJSON(ctx, cache.TicketKey(id), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	row, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "ticket not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to get ticket", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cache.TicketKey(id), row, cache.TicketTTL); err != nil {
			s.log.WithError(err).WithField("ticket_id", id).Warn("ticket cache set failed")
		}
	}
	return row, nil
}

func (s *ticketService) List(ctx context.Context, f pgrepo.TicketFilter) ([]models.Ticket, int64, error) {
	const op = "TicketService.List"

	if f.Status != "" {
		if _, ok := models.ParseTicketStatus(f.Status); !ok {
			return nil, 0, utils.E(utils.CodeValidation, op, fmt.Sprintf("invalid status %q", f.Status), nil)
		}
	}
	if f.Priority != "" {
		if _, ok := models.ParseTicketPriority(f.Priority); !ok {
			return nil, 0, utils.E(utils.CodeValidation, op, fmt.Sprintf("invalid priority %q", f.Priority), nil)
		}
	}
	if f.Category != "" {
		if _, ok := models.ParseTicketCategory(f.Category); !ok {
			return nil, 0, utils.E(utils.CodeValidation, op, fmt.Sprintf("invalid category %q", f.Category), nil)
		}
	}

	rows, total, err := s.tickets.List(ctx, f)
	if err != nil {
		return nil, 0, utils.E(utils.CodeInternal, op, "failed to list tickets", err)
	}
	return rows, total, nil
}

// Create is the manual (agent-initiated) path; conversation-driven tickets
// go through the sync service instead.
func (s *ticketService) Create(ctx context.Context, in CreateTicketInput) (*models.Ticket, error) {
	const op = "TicketService.Create"

	if in.Title == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title is required", nil)
	}

	priority := models.PriorityMedium
	if in.Priority != "" {
		p, ok := models.ParseTicketPriority(in.Priority)
		if !ok {
			return nil, utils.E(utils.CodeValidation, op, fmt.Sprintf("invalid priority %q", in.Priority), nil)
		}
		priority = p
	}

	category := models.CategoryGeneral
	if in.Category != "" {
		c, ok := models.ParseTicketCategory(in.Category)
		if !ok {
			return nil, utils.E(utils.CodeValidation, op, fmt.Sprintf("invalid category %q", in.Category), nil)
		}
		category = c
	}

	now := time.Now().UTC()
	ticket := &models.Ticket{
		Title:       in.Title,
		Description: in.Description,
		Status:      models.StatusOpen,
		Priority:    priority,
		Category:    category,
		CustomerID:  in.CustomerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tickets.WithTx(tx).Create(ctx, ticket); err != nil {
			return err
		}
		return s.activities.WithTx(tx).Append(ctx, &models.Activity{
			TicketID:     ticket.ID,
			ActivityType: models.ActivityTicketCreated,
			Description:  "ticket created",
			PerformedBy:  in.CreatedBy,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create ticket", err)
	}
	return ticket, nil
}

func (s *ticketService) AddComment(ctx context.Context, ticketID uint, authorID *uint, text string, internal bool) (*models.Comment, error) {
	const op = "TicketService.AddComment"

	if text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "text is required", nil)
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "ticket not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get ticket", err)
	}

	now := time.Now().UTC()
	comment := &models.Comment{
		TicketID:   ticketID,
		AuthorID:   authorID,
		Text:       text,
		IsInternal: internal,
		CreatedAt:  now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.comments.WithTx(tx).Append(ctx, comment); err != nil {
			return err
		}
		return s.activities.WithTx(tx).Append(ctx, &models.Activity{
			TicketID:     ticketID,
			ActivityType: models.ActivityCommentAdded,
			Description:  "comment added",
			PerformedBy:  authorID,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to add comment", err)
	}
	return comment, nil
}

func (s *ticketService) Comments(ctx context.Context, ticketID uint, includeInternal bool) ([]models.Comment, error) {
	const op = "TicketService.Comments"

	rows, err := s.comments.ListByTicket(ctx, ticketID, includeInternal)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list comments", err)
	}
	return rows, nil
}

func (s *ticketService) Timeline(ctx context.Context, ticketID uint) ([]models.Activity, error) {
	const op = "TicketService.Timeline"

	rows, err := s.activities.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list activities", err)
	}
	return rows, nil
}
