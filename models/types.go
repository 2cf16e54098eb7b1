// ABOUTME: Data models for leads, scheduled events, and calendar linkage
// ABOUTME: Defines Lead, EventRecord, Activity, CalendarAccount, and Viewer structs
package models

import (
	"time"

	"github.com/google/uuid"
)

type Lead struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Status          string     `json:"status"`
	Source          string     `json:"source,omitempty"`
	Interest        string     `json:"interest,omitempty"`
	Budget          int64      `json:"budget,omitempty"` // in cents
	Area            string     `json:"area,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	CreatedBy       string     `json:"created_by,omitempty"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusShowing   = "showing"
	LeadStatusOffer     = "offer"
	LeadStatusClosed    = "closed"
	LeadStatusLost      = "lost"
)

// LeadStatuses lists statuses in pipeline order.
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusQualified,
	LeadStatusShowing,
	LeadStatusOffer,
	LeadStatusClosed,
	LeadStatusLost,
}

// IsLeadStatus reports whether s is a known lead status.
func IsLeadStatus(s string) bool {
	for _, status := range LeadStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// DaysSinceContact returns whole days since the lead was last contacted, falling back to
// creation time for leads nobody has reached yet.
func (l *Lead) DaysSinceContact(now time.Time) int {
	since := l.CreatedAt
	if l.LastContactedAt != nil {
		since = *l.LastContactedAt
	}
	return int(now.Sub(since).Hours() / 24)
}

// IsOpen reports whether the lead is still in the active pipeline.
func (l *Lead) IsOpen() bool {
	return l.Status != LeadStatusClosed && l.Status != LeadStatusLost
}

// Interest constants.
const (
	InterestBuy  = "buy"
	InterestSell = "sell"
	InterestRent = "rent"
)

// EventRecord is the application's own copy of a scheduled event. ProviderEventID links it to the
// event held by the external calendar, which stays the source of truth for scheduling.
type EventRecord struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Location        string     `json:"location,omitempty"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Attendees       []string   `json:"attendees,omitempty"`
	Reminders       []int      `json:"reminders,omitempty"`
	LeadID          *uuid.UUID `json:"lead_id,omitempty"`
	ProviderEventID string     `json:"provider_event_id,omitempty"`
	CreatedBy       string     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ReminderOffsets are the minutes-before-start choices offered when scheduling.
var ReminderOffsets = []int{5, 10, 15, 30, 60}

// IsReminderOffset reports whether minutes is one of ReminderOffsets.
func IsReminderOffset(minutes int) bool {
	for _, m := range ReminderOffsets {
		if m == minutes {
			return true
		}
	}
	return false
}

// Roles for lead visibility.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleAgent   = "agent"
)

// Viewer identifies who is looking at a lead list.
type Viewer struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// ActivityVerb represents the action performed on a lead.
type ActivityVerb string

const (
	VerbCreated     ActivityVerb = "created"
	VerbUpdated     ActivityVerb = "updated"
	VerbScheduled   ActivityVerb = "scheduled"
	VerbRescheduled ActivityVerb = "rescheduled"
)

// Activity object kinds.
const (
	KindLead  = "lead"
	KindEvent = "event"
)

type Activity struct {
	ID         uuid.UUID              `json:"id"`
	LeadID     uuid.UUID              `json:"lead_id"`
	Actor      string                 `json:"actor"`
	Verb       ActivityVerb           `json:"verb"`
	ObjectKind string                 `json:"object_kind"`
	ObjectID   string                 `json:"object_id"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Calendar account status constants.
const (
	AccountStatusLinked   = "linked"
	AccountStatusUnlinked = "unlinked"
	AccountStatusError    = "error"
)

// CalendarAccount records which provider account the application is linked to.
type CalendarAccount struct {
	Provider     string     `json:"provider"`
	AccountEmail string     `json:"account_email,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	LinkedAt     *time.Time `json:"linked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
