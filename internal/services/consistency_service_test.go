package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openhelm/supportdesk/internal/models"
)

func issuesOfType(r Report, typ string) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Type == typ {
			out = append(out, is)
		}
	}
	return out
}

func seedTicket(t *testing.T, db *gorm.DB, mutate func(*models.Ticket)) *models.Ticket {
	t.Helper()
	now := time.Now().UTC()
	ticket := &models.Ticket{
		Title:     "seed",
		Status:    models.StatusOpen,
		Priority:  models.PriorityMedium,
		Category:  models.CategoryGeneral,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mutate != nil {
		mutate(ticket)
	}
	require.NoError(t, db.Create(ticket).Error)
	return ticket
}

func TestSweepCleanDatabase(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	user := seedUser(t, db)
	seedTicket(t, db, func(tk *models.Ticket) { tk.CustomerID = &user.ID })

	report := svc.RunSweep(context.Background())
	assert.Empty(t, report.Issues)
	assert.Empty(t, report.Errors)
	assert.Zero(t, report.ResolvedCount)
	assert.False(t, report.StartedAt.IsZero())
}

func TestSweepRepairsOrphanedConversation(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	missing := uint(9999)
	conv := &models.Conversation{
		SessionID:   "sess-orphan",
		UserID:      &missing,
		UserMessage: "hello",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(conv).Error)

	report := svc.RunSweep(context.Background())

	found := issuesOfType(report, "orphaned_conversation")
	require.Len(t, found, 1)
	assert.Equal(t, conv.ID, found[0].EntityID)
	assert.Equal(t, SeverityMedium, found[0].Severity)
	assert.Equal(t, 1, report.ResolvedCount)

	var got models.Conversation
	require.NoError(t, db.First(&got, conv.ID).Error)
	assert.Nil(t, got.UserID)
}

func TestSweepReportsOrphanedTicketCustomerWithoutRepair(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	missing := uint(9999)
	ticket := seedTicket(t, db, func(tk *models.Ticket) { tk.CustomerID = &missing })

	report := svc.RunSweep(context.Background())

	found := issuesOfType(report, "orphaned_ticket_customer")
	require.Len(t, found, 1)
	assert.Equal(t, ticket.ID, found[0].EntityID)
	assert.Equal(t, SeverityHigh, found[0].Severity)
	assert.Zero(t, report.ResolvedCount)

	// ownership problems stay until a human resolves them
	again := svc.RunSweep(context.Background())
	assert.Len(t, issuesOfType(again, "orphaned_ticket_customer"), 1)
}

func TestSweepRepairsDanglingTicketLink(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	missing := uint(8888)
	conv := &models.Conversation{
		SessionID:      "sess-dangling",
		UserMessage:    "hello",
		LinkedTicketID: &missing,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(conv).Error)

	report := svc.RunSweep(context.Background())

	require.Len(t, issuesOfType(report, "dangling_ticket_link"), 1)
	assert.Equal(t, 1, report.ResolvedCount)

	var got models.Conversation
	require.NoError(t, db.First(&got, conv.ID).Error)
	assert.Nil(t, got.LinkedTicketID)
}

func TestSweepReportsDuplicateConversations(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Conversation{
			SessionID:   "sess-dupe",
			UserMessage: "same message",
			CreatedAt:   at,
		}).Error)
	}

	report := svc.RunSweep(context.Background())

	found := issuesOfType(report, "duplicate_conversation")
	require.Len(t, found, 1)
	assert.Equal(t, SeverityLow, found[0].Severity)
	assert.Contains(t, found[0].Description, "2 duplicates")
}

func TestSweepRepairsImpossibleResolutionTime(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	created := time.Now().UTC()
	resolved := created.Add(-48 * time.Hour)
	ticket := seedTicket(t, db, func(tk *models.Ticket) {
		tk.Status = models.StatusResolved
		tk.ResolvedAt = &resolved
	})

	report := svc.RunSweep(context.Background())

	found := issuesOfType(report, "impossible_resolution_time")
	require.Len(t, found, 1)
	assert.Equal(t, ticket.ID, found[0].EntityID)
	assert.Equal(t, 1, report.ResolvedCount)

	var got models.Ticket
	require.NoError(t, db.First(&got, ticket.ID).Error)
	assert.Nil(t, got.ResolvedAt)
}

func TestSweepReportsIncompleteUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	require.NoError(t, db.Create(&models.User{
		ExternalID: "ext-no-email",
		Username:   "ghost",
		Email:      "",
	}).Error)

	report := svc.RunSweep(context.Background())

	found := issuesOfType(report, "incomplete_user")
	require.Len(t, found, 1)
	assert.Equal(t, SeverityHigh, found[0].Severity)
	assert.Zero(t, report.ResolvedCount)
}

func TestSweepConvergesAfterRepairs(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	missingUser := uint(9999)
	missingTicket := uint(8888)
	require.NoError(t, db.Create(&models.Conversation{
		SessionID:      "sess-both",
		UserID:         &missingUser,
		LinkedTicketID: &missingTicket,
		UserMessage:    "hello",
		CreatedAt:      time.Now().UTC(),
	}).Error)

	first := svc.RunSweep(context.Background())
	assert.Equal(t, 2, first.ResolvedCount)

	second := svc.RunSweep(context.Background())
	assert.Empty(t, second.Issues)
	assert.Zero(t, second.ResolvedCount)
}

func TestSweepAbortsOnFailingCheck(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	// a dangling link a later check would report
	missing := uint(8888)
	require.NoError(t, db.Create(&models.Conversation{
		SessionID:      "sess-abort",
		UserMessage:    "hello",
		LinkedTicketID: &missing,
		CreatedAt:      time.Now().UTC(),
	}).Error)

	require.NoError(t, db.Migrator().DropTable(&models.User{}))

	report := svc.RunSweep(context.Background())

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "orphaned_conversations")
	assert.Empty(t, issuesOfType(report, "dangling_ticket_link"),
		"checks after the failing one must not run")
	assert.Zero(t, report.ResolvedCount)
}

func TestSweepReportsRepairCommitFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	resolved := time.Now().UTC().Add(-time.Hour)
	ticket := seedTicket(t, db, func(tk *models.Ticket) {
		tk.Status = models.StatusResolved
		tk.ResolvedAt = &resolved
	})

	// force the repair write to fail at commit time
	require.NoError(t, db.Exec(`CREATE TRIGGER tickets_resolved_at_locked
		BEFORE UPDATE OF resolved_at ON tickets
		BEGIN SELECT RAISE(ABORT, 'resolved_at is locked'); END`).Error)

	report := svc.RunSweep(context.Background())

	require.Len(t, issuesOfType(report, "impossible_resolution_time"), 1)
	assert.Zero(t, report.ResolvedCount)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[len(report.Errors)-1], "repair commit failed")

	var got models.Ticket
	require.NoError(t, db.First(&got, ticket.ID).Error)
	assert.NotNil(t, got.ResolvedAt, "a failed repair must not partially apply")
}

func TestSweepCountsEntities(t *testing.T) {
	db := newTestDB(t)
	svc := NewConsistencyService(db, quietLogger())

	user := seedUser(t, db)
	seedTicket(t, db, func(tk *models.Ticket) { tk.CustomerID = &user.ID })
	require.NoError(t, db.Create(&models.Conversation{
		SessionID:   "sess-count",
		UserMessage: "hello",
		CreatedAt:   time.Now().UTC(),
	}).Error)

	report := svc.RunSweep(context.Background())
	// one conversation + one ticket + one user
	assert.Equal(t, 3, report.TotalChecked)
}
