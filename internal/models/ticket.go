package models

import (
	"time"

	"gorm.io/datatypes"
)

type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusPending    TicketStatus = "pending"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// IsTerminal reports whether the status ends the ticket lifecycle.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

type TicketCategory string

const (
	CategoryTechnical      TicketCategory = "technical"
	CategoryBilling        TicketCategory = "billing"
	CategoryAccount        TicketCategory = "account"
	CategoryGeneral        TicketCategory = "general"
	CategoryFeatureRequest TicketCategory = "feature_request"
	CategoryBugReport      TicketCategory = "bug_report"
)

func ParseTicketStatus(s string) (TicketStatus, bool) {
	switch TicketStatus(s) {
	case StatusOpen, StatusInProgress, StatusPending, StatusResolved, StatusClosed:
		return TicketStatus(s), true
	}
	return "", false
}

func ParseTicketPriority(s string) (TicketPriority, bool) {
	switch TicketPriority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return TicketPriority(s), true
	}
	return "", false
}

func ParseTicketCategory(s string) (TicketCategory, bool) {
	switch TicketCategory(s) {
	case CategoryTechnical, CategoryBilling, CategoryAccount,
		CategoryGeneral, CategoryFeatureRequest, CategoryBugReport:
		return TicketCategory(s), true
	}
	return "", false
}

// Ticket is the authoritative support case record. ResolvedAt is set the
// first time the ticket reaches a terminal status and never moved after.
type Ticket struct {
	ID              uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title           string         `gorm:"column:title;type:text;not null" json:"title"`
	Description     string         `gorm:"column:description;type:text" json:"description"`
	Status          TicketStatus   `gorm:"column:status;type:text;index;default:open" json:"status"`
	Priority        TicketPriority `gorm:"column:priority;type:text;index;default:medium" json:"priority"`
	Category        TicketCategory `gorm:"column:category;type:text;index;default:general" json:"category"`
	Tags            datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags"`
	CustomerID      *uint          `gorm:"column:customer_id;index" json:"customer_id"`
	AssignedAgentID *uint          `gorm:"column:assigned_agent_id;index" json:"assigned_agent_id"`
	CreatedAt       time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at" json:"updated_at"`
	ResolvedAt      *time.Time     `gorm:"column:resolved_at" json:"resolved_at"`
}

func (Ticket) TableName() string { return "tickets" }
