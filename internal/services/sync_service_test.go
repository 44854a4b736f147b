package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openhelm/supportdesk/internal/classifier"
	"github.com/openhelm/supportdesk/internal/models"
)

func newSyncService(db *gorm.DB) SyncService {
	return NewSyncService(db, classifier.New(), nil, quietLogger())
}

func seedConversation(t *testing.T, db *gorm.DB, userID *uint, msg, resp string) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{
		SessionID:   "sess-abc",
		UserID:      userID,
		UserMessage: msg,
		BotResponse: resp,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(conv).Error)
	return conv
}

func TestCreateTicketFromConversationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)
	ctx := context.Background()

	user := seedUser(t, db)
	conv := seedConversation(t, db, &user.ID,
		"My internet connection is down and I keep getting error_502, this is urgent", "")

	res := svc.CreateTicketFromConversation(ctx, conv.ID, nil)
	require.True(t, res.Success, res.Message)
	require.NotZero(t, res.TicketID)
	assert.ElementsMatch(t,
		[]string{"ticket_created", "conversation_linked", "activity_recorded"},
		res.ActionsTaken)

	var ticket models.Ticket
	require.NoError(t, db.First(&ticket, res.TicketID).Error)
	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Equal(t, &user.ID, ticket.CustomerID)
	assert.NotEmpty(t, ticket.Title)

	var got models.Conversation
	require.NoError(t, db.First(&got, conv.ID).Error)
	require.NotNil(t, got.LinkedTicketID)
	assert.Equal(t, ticket.ID, *got.LinkedTicketID)

	var activities []models.Activity
	require.NoError(t, db.Where("ticket_id = ?", ticket.ID).Find(&activities).Error)
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActivityTicketCreated, activities[0].ActivityType)
}

func TestCreateTicketFromConversationIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)
	ctx := context.Background()

	conv := seedConversation(t, db, nil, "The billing portal charged me twice, please help", "")

	first := svc.CreateTicketFromConversation(ctx, conv.ID, nil)
	require.True(t, first.Success)

	second := svc.CreateTicketFromConversation(ctx, conv.ID, nil)
	require.True(t, second.Success)
	assert.Equal(t, first.TicketID, second.TicketID)
	assert.Equal(t, []string{"already_linked"}, second.ActionsTaken)

	var count int64
	require.NoError(t, db.Model(&models.Ticket{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateTicketFromConversationMissingConversation(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)

	res := svc.CreateTicketFromConversation(context.Background(), 9999, nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not found")
}

func TestAutoTicketSkipsInformationalConversations(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)
	ctx := context.Background()

	conv := seedConversation(t, db, nil,
		"What is the difference between the starter and pro plans?",
		"The pro plan adds SSO and priority routing.")

	res := svc.AutoTicketFromConversation(ctx, conv.ID)
	require.True(t, res.Success)
	assert.Zero(t, res.TicketID)
	assert.Equal(t, []string{"no_ticket_needed"}, res.ActionsTaken)

	var count int64
	require.NoError(t, db.Model(&models.Ticket{}).Count(&count).Error)
	assert.Zero(t, count)

	// verdict is still recorded on the conversation
	var got models.Conversation
	require.NoError(t, db.First(&got, conv.ID).Error)
	md := map[string]any{}
	require.NoError(t, json.Unmarshal(got.Metadata, &md))
	assert.Equal(t, "informational", md["classification"])
}

func TestAutoTicketCreatesForEscalation(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)
	ctx := context.Background()

	conv := seedConversation(t, db, nil,
		"This is still broken after three tries, I want to speak to a person", "")

	res := svc.AutoTicketFromConversation(ctx, conv.ID)
	require.True(t, res.Success, res.Message)
	assert.NotZero(t, res.TicketID)
}

func TestLinkConversationToTicketAddsTranscriptComment(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)
	ctx := context.Background()

	ticket := &models.Ticket{
		Title:     "Existing case",
		Status:    models.StatusOpen,
		Priority:  models.PriorityMedium,
		Category:  models.CategoryGeneral,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(ticket).Error)

	conv := seedConversation(t, db, nil, "Follow-up on my earlier report", "Noted, linking this to your case.")

	res := svc.LinkConversationToTicket(ctx, conv.ID, ticket.ID)
	require.True(t, res.Success, res.Message)
	assert.ElementsMatch(t,
		[]string{"conversation_linked", "comment_added", "activity_recorded"},
		res.ActionsTaken)

	var comments []models.Comment
	require.NoError(t, db.Where("ticket_id = ?", ticket.ID).Find(&comments).Error)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].IsInternal)
	assert.Contains(t, comments[0].Text, "Follow-up on my earlier report")

	// linking the same pair again is a no-op
	again := svc.LinkConversationToTicket(ctx, conv.ID, ticket.ID)
	require.True(t, again.Success)
	assert.Equal(t, []string{"already_linked"}, again.ActionsTaken)
}

func TestHandleTicketStatusChangePropagates(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)
	ctx := context.Background()

	conv := seedConversation(t, db, nil, "The export feature keeps failing", "")
	created := svc.CreateTicketFromConversation(ctx, conv.ID, nil)
	require.True(t, created.Success)

	res := svc.HandleTicketStatusChange(ctx, created.TicketID, "resolved", nil)
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.ActionsTaken, "status_updated")
	assert.Contains(t, res.ActionsTaken, "resolved_at_set")
	assert.Contains(t, res.ActionsTaken, "conversations_updated")

	var ticket models.Ticket
	require.NoError(t, db.First(&ticket, created.TicketID).Error)
	assert.Equal(t, models.StatusResolved, ticket.Status)
	require.NotNil(t, ticket.ResolvedAt)

	var got models.Conversation
	require.NoError(t, db.First(&got, conv.ID).Error)
	md := map[string]any{}
	require.NoError(t, json.Unmarshal(got.Metadata, &md))
	assert.Equal(t, "resolved", md["ticket_status"])
}

func TestHandleTicketStatusChangeResolvedAtIsMonotonic(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)
	ctx := context.Background()

	conv := seedConversation(t, db, nil, "Dashboard is broken again", "")
	created := svc.CreateTicketFromConversation(ctx, conv.ID, nil)
	require.True(t, created.Success)

	first := svc.HandleTicketStatusChange(ctx, created.TicketID, "resolved", nil)
	require.True(t, first.Success)

	var before models.Ticket
	require.NoError(t, db.First(&before, created.TicketID).Error)
	require.NotNil(t, before.ResolvedAt)

	second := svc.HandleTicketStatusChange(ctx, created.TicketID, "closed", nil)
	require.True(t, second.Success)
	assert.NotContains(t, second.ActionsTaken, "resolved_at_set")

	var after models.Ticket
	require.NoError(t, db.First(&after, created.TicketID).Error)
	require.NotNil(t, after.ResolvedAt)
	assert.True(t, after.ResolvedAt.Equal(*before.ResolvedAt))
}

func TestHandleTicketStatusChangeRejectsUnknownStatus(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)

	res := svc.HandleTicketStatusChange(context.Background(), 1, "sideways", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "invalid status")
}

func TestHandleTicketStatusChangeRecordsActivity(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService(db)
	ctx := context.Background()

	conv := seedConversation(t, db, nil, "Payment page shows an error", "")
	created := svc.CreateTicketFromConversation(ctx, conv.ID, nil)
	require.True(t, created.Success)

	actor := uint(42)
	res := svc.HandleTicketStatusChange(ctx, created.TicketID, "in_progress", &actor)
	require.True(t, res.Success)

	var activities []models.Activity
	require.NoError(t, db.
		Where("ticket_id = ? AND activity_type = ?", created.TicketID, models.ActivityStatusChange).
		Find(&activities).Error)
	require.Len(t, activities, 1)
	assert.Equal(t, "status changed from open to in_progress", activities[0].Description)
	require.NotNil(t, activities[0].PerformedBy)
	assert.Equal(t, actor, *activities[0].PerformedBy)
}
