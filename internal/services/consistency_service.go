package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/openhelm/supportdesk/internal/models"
)

type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

type Issue struct {
	Type        string        `json:"type"`
	EntityID    uint          `json:"entity_id"`
	Description string        `json:"description"`
	Severity    IssueSeverity `json:"severity"`
}

// Report is the outcome of one sweep. ResolvedCount is zero whenever the
// repair transaction did not commit, so a caller can always re-run safely.
type Report struct {
	TotalChecked  int       `json:"total_checked"`
	Issues        []Issue   `json:"issues"`
	ResolvedCount int       `json:"resolved_count"`
	Errors        []string  `json:"errors"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
}

// ConsistencyService sweeps the entity store for dangling references and
// impossible timestamps. Repairs that need no human judgment (nulling a
// dangling weak reference, clearing a resolved_at earlier than created_at)
// are applied in a single transaction; ownership-affecting problems are
// reported only.
type ConsistencyService interface {
	RunSweep(ctx context.Context) Report
}

type consistencyService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewConsistencyService(db *gorm.DB, log *logrus.Logger) ConsistencyService {
	return &consistencyService{db: db, log: log}
}

type repairSet struct {
	nullConversationUser []uint
	nullConversationLink []uint
	nullTicketResolvedAt []uint
}

func (r *repairSet) count() int {
	return len(r.nullConversationUser) + len(r.nullConversationLink) + len(r.nullTicketResolvedAt)
}

// RunSweep executes the fixed check sequence. The order does not affect
// correctness but is fixed for deterministic reporting. A failing check
// aborts the remaining ones; issues gathered so far are still returned.
func (s *consistencyService) RunSweep(ctx context.Context) Report {
	start := time.Now().UTC()
	report := Report{StartedAt: start}
	repairs := &repairSet{}

	checks := []struct {
		name string
		run  func(ctx context.Context, report *Report, repairs *repairSet) error
	}{
		{"orphaned_conversations", s.checkOrphanedConversations},
		{"orphaned_ticket_customers", s.checkOrphanedTicketCustomers},
		{"dangling_ticket_links", s.checkDanglingTicketLinks},
		{"duplicate_conversations", s.checkDuplicateConversations},
		{"impossible_resolution_times", s.checkImpossibleResolutionTimes},
		{"incomplete_users", s.checkIncompleteUsers},
	}

	for _, check := range checks {
		if err := check.run(ctx, &report, repairs); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", check.name, err))
			s.log.WithError(err).WithField("check", check.name).Error("consistency check failed, aborting sweep")
			break
		}
	}

	if repairs.count() > 0 {
		if err := s.applyRepairs(ctx, repairs); err != nil {
			report.Errors = append(report.Errors, "repair commit failed: "+err.Error())
		} else {
			report.ResolvedCount = repairs.count()
		}
	}

	report.DurationMS = time.Since(start).Milliseconds()
	s.log.WithFields(logrus.Fields{
		"total_checked": report.TotalChecked,
		"issues":        len(report.Issues),
		"resolved":      report.ResolvedCount,
		"errors":        len(report.Errors),
	}).Info("consistency sweep finished")
	return report
}

func (s *consistencyService) checkOrphanedConversations(ctx context.Context, report *Report, repairs *repairSet) error {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Conversation{}).Count(&total).Error; err != nil {
		return err
	}
	report.TotalChecked += int(total)

	var rows []models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id IS NOT NULL AND user_id NOT IN (?)",
			s.db.Model(&models.User{}).Select("id")).
		Find(&rows).Error
	if err != nil {
		return err
	}

	for i := range rows {
		report.Issues = append(report.Issues, Issue{
			Type:        "orphaned_conversation",
			EntityID:    rows[i].ID,
			Description: fmt.Sprintf("conversation %d references missing user %d", rows[i].ID, *rows[i].UserID),
			Severity:    SeverityMedium,
		})
		repairs.nullConversationUser = append(repairs.nullConversationUser, rows[i].ID)
	}
	return nil
}

// Dangling ticket customers affect billing/ownership, so they are reported
// for human review rather than auto-repaired.
func (s *consistencyService) checkOrphanedTicketCustomers(ctx context.Context, report *Report, repairs *repairSet) error {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Ticket{}).Count(&total).Error; err != nil {
		return err
	}
	report.TotalChecked += int(total)

	var rows []models.Ticket
	err := s.db.WithContext(ctx).
		Where("customer_id IS NOT NULL AND customer_id NOT IN (?)",
			s.db.Model(&models.User{}).Select("id")).
		Find(&rows).Error
	if err != nil {
		return err
	}

	for i := range rows {
		report.Issues = append(report.Issues, Issue{
			Type:        "orphaned_ticket_customer",
			EntityID:    rows[i].ID,
			Description: fmt.Sprintf("ticket %d references missing customer %d", rows[i].ID, *rows[i].CustomerID),
			Severity:    SeverityHigh,
		})
	}
	return nil
}

func (s *consistencyService) checkDanglingTicketLinks(ctx context.Context, report *Report, repairs *repairSet) error {
	var rows []models.Conversation
	err := s.db.WithContext(ctx).
		Where("linked_ticket_id IS NOT NULL AND linked_ticket_id NOT IN (?)",
			s.db.Model(&models.Ticket{}).Select("id")).
		Find(&rows).Error
	if err != nil {
		return err
	}

	for i := range rows {
		report.Issues = append(report.Issues, Issue{
			Type:        "dangling_ticket_link",
			EntityID:    rows[i].ID,
			Description: fmt.Sprintf("conversation %d links to missing ticket %d", rows[i].ID, *rows[i].LinkedTicketID),
			Severity:    SeverityMedium,
		})
		repairs.nullConversationLink = append(repairs.nullConversationLink, rows[i].ID)
	}
	return nil
}

func (s *consistencyService) checkDuplicateConversations(ctx context.Context, report *Report, repairs *repairSet) error {
	type dupe struct {
		ID    uint
		Count int64
	}
	var dupes []dupe
	err := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Select("MIN(id) AS id, COUNT(*) AS count").
		Group("session_id, user_message, created_at").
		Having("COUNT(*) > 1").
		Scan(&dupes).Error
	if err != nil {
		return err
	}

	for _, d := range dupes {
		report.Issues = append(report.Issues, Issue{
			Type:        "duplicate_conversation",
			EntityID:    d.ID,
			Description: fmt.Sprintf("conversation %d has %d duplicates (same session, message, timestamp)", d.ID, d.Count-1),
			Severity:    SeverityLow,
		})
	}
	return nil
}

func (s *consistencyService) checkImpossibleResolutionTimes(ctx context.Context, report *Report, repairs *repairSet) error {
	var rows []models.Ticket
	err := s.db.WithContext(ctx).
		Where("resolved_at IS NOT NULL AND resolved_at < created_at").
		Find(&rows).Error
	if err != nil {
		return err
	}

	for i := range rows {
		report.Issues = append(report.Issues, Issue{
			Type:        "impossible_resolution_time",
			EntityID:    rows[i].ID,
			Description: fmt.Sprintf("ticket %d resolved before it was created", rows[i].ID),
			Severity:    SeverityMedium,
		})
		repairs.nullTicketResolvedAt = append(repairs.nullTicketResolvedAt, rows[i].ID)
	}
	return nil
}

func (s *consistencyService) checkIncompleteUsers(ctx context.Context, report *Report, repairs *repairSet) error {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return err
	}
	report.TotalChecked += int(total)

	var rows []models.User
	err := s.db.WithContext(ctx).
		Where("username IS NULL OR username = '' OR email IS NULL OR email = '' OR user_id IS NULL OR user_id = ''").
		Find(&rows).Error
	if err != nil {
		return err
	}

	for i := range rows {
		report.Issues = append(report.Issues, Issue{
			Type:        "incomplete_user",
			EntityID:    rows[i].ID,
			Description: fmt.Sprintf("user %d is missing username, email, or external id", rows[i].ID),
			Severity:    SeverityHigh,
		})
	}
	return nil
}

// applyRepairs commits every auto-repair from the sweep as one transaction.
func (s *consistencyService) applyRepairs(ctx context.Context, repairs *repairSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(repairs.nullConversationUser) > 0 {
			if err := tx.Model(&models.Conversation{}).
				Where("id IN ?", repairs.nullConversationUser).
				Update("user_id", nil).Error; err != nil {
				return err
			}
		}
		if len(repairs.nullConversationLink) > 0 {
			if err := tx.Model(&models.Conversation{}).
				Where("id IN ?", repairs.nullConversationLink).
				Update("linked_ticket_id", nil).Error; err != nil {
				return err
			}
		}
		if len(repairs.nullTicketResolvedAt) > 0 {
			if err := tx.Model(&models.Ticket{}).
				Where("id IN ?", repairs.nullTicketResolvedAt).
				Update("resolved_at", nil).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
