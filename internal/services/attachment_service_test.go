package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgrepo "github.com/openhelm/supportdesk/internal/repositories/postgres"
	"github.com/openhelm/supportdesk/internal/utils"
)

func TestUploadWithoutStorageConfigured(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttachmentService(
		pgrepo.NewTicketRepo(db),
		pgrepo.NewAttachmentRepo(db),
		pgrepo.NewActivityRepo(db),
		nil,
		quietLogger(),
	)

	ticket := seedTicket(t, db, nil)

	_, err := svc.Upload(context.Background(), UploadAttachmentInput{
		TicketID: ticket.ID,
		FileName: "log.txt",
		Body:     strings.NewReader("hello"),
	})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}
