package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openhelm/supportdesk/internal/services"
	"github.com/openhelm/supportdesk/internal/storage"
	"github.com/openhelm/supportdesk/internal/utils"
)

type AttachmentHandler struct {
	Attachments services.AttachmentService
	Signer      storage.Signer // optional; listings omit URLs without it
}

const maxAttachmentBytes = 25 << 20

func (h *AttachmentHandler) Upload(c *gin.Context) {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AttachmentHandler.Upload", "file is required", err))
		return
	}
	if fh.Size > maxAttachmentBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AttachmentHandler.Upload", "file too large", nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "AttachmentHandler.Upload", "failed to open upload", err))
		return
	}
	defer f.Close()

	row, err := h.Attachments.Upload(c.Request.Context(), services.UploadAttachmentInput{
		TicketID:    ticketID,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		SizeBytes:   fh.Size,
		Body:        f,
		UploadedBy:  &userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *AttachmentHandler) List(c *gin.Context) {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}

	rows, err := h.Attachments.ListByTicket(c.Request.Context(), ticketID)
	if err != nil {
		writeError(c, err)
		return
	}

	type attachmentView struct {
		ID          uint   `json:"id"`
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		SizeBytes   int64  `json:"size_bytes"`
		URL         string `json:"url,omitempty"`
		CreatedAt   string `json:"created_at"`
	}

	out := make([]attachmentView, 0, len(rows))
	for _, a := range rows {
		v := attachmentView{
			ID:          a.ID,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
			CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		}
		if h.Signer != nil {
			if url, err := h.Signer.SignedGetURL(c.Request.Context(), a.ObjectPath, 15*time.Minute); err == nil {
				v.URL = url
			}
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"attachments": out})
}
