package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openhelm/supportdesk/internal/models"
	pgrepo "github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/storage"
	"github.com/openhelm/supportdesk/internal/utils"
)

type AttachmentService interface {
	Upload(ctx context.Context, in UploadAttachmentInput) (*models.TicketAttachment, error)
	ListByTicket(ctx context.Context, ticketID uint) ([]models.TicketAttachment, error)
}

type UploadAttachmentInput struct {
	TicketID    uint
	FileName    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
	UploadedBy  *uint
}

type attachmentService struct {
	tickets     pgrepo.TicketRepo
	attachments pgrepo.AttachmentRepo
	activities  pgrepo.ActivityRepo
	uploader    storage.Uploader
	log         *logrus.Logger
}

func NewAttachmentService(
	tickets pgrepo.TicketRepo,
	attachments pgrepo.AttachmentRepo,
	activities pgrepo.ActivityRepo,
	uploader storage.Uploader,
	log *logrus.Logger,
) AttachmentService {
	return &attachmentService{
		tickets:     tickets,
		attachments: attachments,
		activities:  activities,
		uploader:    uploader,
		log:         log,
	}
}

func (s *attachmentService) Upload(ctx context.Context, in UploadAttachmentInput) (*models.TicketAttachment, error) {
	const op = "AttachmentService.Upload"

	if in.FileName == "" || in.Body == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file_name and body are required", nil)
	}
	if s.uploader == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "attachment storage is not configured", nil)
	}
	if _, err := s.tickets.GetByID(ctx, in.TicketID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "ticket not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get ticket", err)
	}

	objectName := fmt.Sprintf("tickets/%d/%s%s", in.TicketID, uuid.NewString(), path.Ext(in.FileName))
	storedPath, err := s.uploader.Upload(ctx, objectName, in.ContentType, in.Body)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "upload failed", err)
	}

	now := time.Now().UTC()
	row := &models.TicketAttachment{
		TicketID:    in.TicketID,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		SizeBytes:   in.SizeBytes,
		ObjectPath:  storedPath,
		UploadedBy:  in.UploadedBy,
		CreatedAt:   now,
	}
	if err := s.attachments.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to record attachment", err)
	}

	if err := s.activities.Append(ctx, &models.Activity{
		TicketID:     in.TicketID,
		ActivityType: models.ActivityAttachmentAdded,
		Description:  "attachment added: " + in.FileName,
		PerformedBy:  in.UploadedBy,
		CreatedAt:    now,
	}); err != nil {
		s.log.WithError(err).WithField("ticket_id", in.TicketID).Warn("attachment activity failed")
	}
	return row, nil
}

func (s *attachmentService) ListByTicket(ctx context.Context, ticketID uint) ([]models.TicketAttachment, error) {
	const op = "AttachmentService.ListByTicket"

	rows, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list attachments", err)
	}
	return rows, nil
}
