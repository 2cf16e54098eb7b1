// ABOUTME: Calendar scheduling MCP tool handlers
// ABOUTME: Implements schedule_lead_event and list_calendar_events over the calendar connector
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
	"github.com/harperreed/leadbook/scheduling"
)

// ErrCalendarNotConnected is returned when no signed-in calendar account is available.
var ErrCalendarNotConnected = errors.New("calendar is not connected; run `leadbook calendar connect` first")

type EventHandlers struct {
	leads     *LeadHandlers
	connector *calendar.Connector
	loc       *time.Location
	logger    *slog.Logger
}

func NewEventHandlers(database *sql.DB, viewer models.Viewer, connector *calendar.Connector, loc *time.Location, logger *slog.Logger) *EventHandlers {
	if loc == nil {
		loc = time.UTC
	}
	return &EventHandlers{
		leads:     NewLeadHandlers(database, viewer),
		connector: connector,
		loc:       loc,
		logger:    logger,
	}
}

// headlessScheduler never starts the browser consent flow; an MCP server has nobody to click through it.
type headlessScheduler struct {
	*calendar.Connector
}

func (headlessScheduler) SignIn(context.Context) bool {
	return false
}

type ScheduleLeadEventInput struct {
	LeadID      string   `json:"lead_id,omitempty" jsonschema:"Lead to schedule with (required unless event_id is given)"`
	EventID     string   `json:"event_id,omitempty" jsonschema:"Existing local event record ID to reschedule"`
	Title       string   `json:"title,omitempty" jsonschema:"Event title (defaults to Follow-up: <lead name>)"`
	Description string   `json:"description,omitempty" jsonschema:"Event description"`
	Location    string   `json:"location,omitempty" jsonschema:"Event location, e.g. the property address"`
	Date        string   `json:"date,omitempty" jsonschema:"Date as YYYY-MM-DD (defaults to today)"`
	StartTime   string   `json:"start_time,omitempty" jsonschema:"Start time as HH:MM, 24h (defaults to the next full hour)"`
	EndTime     string   `json:"end_time,omitempty" jsonschema:"End time as HH:MM, 24h (defaults to one hour after start)"`
	Attendees   []string `json:"attendees,omitempty" jsonschema:"Additional attendee email addresses"`
	Reminders   []int    `json:"reminders,omitempty" jsonschema:"Popup reminders in minutes before start (5, 10, 15, 30, 60)"`
}

type ScheduleLeadEventOutput struct {
	Outcome string            `json:"outcome"`
	Event   EventRecordOutput `json:"event"`
}

func (h *EventHandlers) ScheduleLeadEvent(ctx context.Context, request *mcp.CallToolRequest, input ScheduleLeadEventInput) (*mcp.CallToolResult, ScheduleLeadEventOutput, error) {
	var existing *models.EventRecord
	var lead *models.Lead
	var err error

	if input.EventID != "" {
		existing, err = db.GetEventRecord(h.leads.db, input.EventID)
		if err != nil {
			return nil, ScheduleLeadEventOutput{}, fmt.Errorf("failed to get event record: %w", err)
		}
		if existing == nil {
			return nil, ScheduleLeadEventOutput{}, fmt.Errorf("event record not found: %s", input.EventID)
		}
		if existing.LeadID != nil {
			lead, err = h.leads.visibleLead(existing.LeadID.String())
			if err != nil {
				return nil, ScheduleLeadEventOutput{}, err
			}
		}
	} else {
		lead, err = h.leads.visibleLead(input.LeadID)
		if err != nil {
			return nil, ScheduleLeadEventOutput{}, err
		}
	}

	if err := h.connector.Initialize(ctx); err != nil {
		return nil, ScheduleLeadEventOutput{}, fmt.Errorf("failed to initialize calendar: %w", err)
	}

	actor := h.leads.viewer.ID
	var saveErr error
	form := scheduling.NewForm(headlessScheduler{h.connector}, scheduling.Options{
		Location: h.loc,
		Now:      h.leads.now,
		Creator:  actor,
		Logger:   h.logger,
		OnCreated: func(record models.EventRecord) {
			saveErr = db.RecordScheduledEvent(h.leads.db, &record, actor, models.VerbScheduled)
		},
		OnUpdated: func(record models.EventRecord) {
			saveErr = db.RecordScheduledEvent(h.leads.db, &record, actor, models.VerbRescheduled)
		},
	})
	form.Open(existing, lead)

	if err := applyScheduleInput(form, input); err != nil {
		return nil, ScheduleLeadEventOutput{}, err
	}

	result := form.Submit(ctx)
	switch result.Outcome {
	case scheduling.OutcomeSignInRequired:
		return nil, ScheduleLeadEventOutput{}, ErrCalendarNotConnected
	case scheduling.OutcomeFailed:
		return nil, ScheduleLeadEventOutput{}, fmt.Errorf("failed to schedule event: %w", result.Err)
	}
	if saveErr != nil {
		return nil, ScheduleLeadEventOutput{}, fmt.Errorf("event was scheduled but not saved locally: %w", saveErr)
	}

	return nil, ScheduleLeadEventOutput{
		Outcome: result.Outcome.String(),
		Event:   recordToOutput(result.Record),
	}, nil
}

// applyScheduleInput overlays the non-empty inputs onto the defaults Open filled in.
func applyScheduleInput(form *scheduling.Form, input ScheduleLeadEventInput) error {
	if input.Title != "" {
		form.SetTitle(input.Title)
	}
	if input.Description != "" {
		form.SetDescription(input.Description)
	}
	if input.Location != "" {
		form.SetLocation(input.Location)
	}
	if input.Date != "" {
		form.SetDate(input.Date)
	}
	if input.StartTime != "" {
		form.SetStartTime(input.StartTime)
		if input.EndTime == "" {
			end, err := oneHourAfter(input.StartTime)
			if err != nil {
				return err
			}
			form.SetEndTime(end)
		}
	}
	if input.EndTime != "" {
		form.SetEndTime(input.EndTime)
	}

	for _, email := range input.Attendees {
		if err := form.AddAttendee(email); err != nil && !errors.Is(err, scheduling.ErrDuplicateAttendee) {
			return fmt.Errorf("invalid attendee %q: %w", email, err)
		}
	}
	for _, minutes := range input.Reminders {
		if form.HasReminder(minutes) {
			continue
		}
		if err := form.ToggleReminder(minutes); err != nil {
			return fmt.Errorf("invalid reminder %d: %w", minutes, err)
		}
	}

	return nil
}

// recordVisible reports whether a linked record may be shown. Records tied to a
// lead the viewer cannot see are left unlinked.
func (h *EventHandlers) recordVisible(record *models.EventRecord) (bool, error) {
	if record == nil {
		return false, nil
	}
	if record.LeadID == nil {
		return true, nil
	}
	lead, err := db.GetLead(h.leads.db, *record.LeadID)
	if err != nil {
		return false, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead != nil && leads.CanView(h.leads.viewer, lead), nil
}

func oneHourAfter(hm string) (string, error) {
	t, err := time.Parse(scheduling.TimeLayout, hm)
	if err != nil {
		return "", fmt.Errorf("invalid start_time %q: %w", hm, err)
	}
	return t.Add(time.Hour).Format(scheduling.TimeLayout), nil
}

type ListCalendarEventsInput struct {
	Days int `json:"days,omitempty" jsonschema:"How many days ahead to list (default 7)"`
}

type CalendarEventOutput struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Location  string   `json:"location,omitempty"`
	Attendees []string `json:"attendees,omitempty"`
	HTMLLink  string   `json:"html_link,omitempty"`
	RecordID  string   `json:"record_id,omitempty"`
	LeadID    string   `json:"lead_id,omitempty"`
}

type ListCalendarEventsOutput struct {
	Events []CalendarEventOutput `json:"events"`
}

func (h *EventHandlers) ListCalendarEvents(ctx context.Context, request *mcp.CallToolRequest, input ListCalendarEventsInput) (*mcp.CallToolResult, ListCalendarEventsOutput, error) {
	days := input.Days
	if days <= 0 {
		days = 7
	}

	now := h.leads.now()
	events, err := h.connector.GetEvents(ctx, calendar.ListOptions{
		TimeMin: now,
		TimeMax: now.AddDate(0, 0, days),
	})
	if err != nil {
		return nil, ListCalendarEventsOutput{}, fmt.Errorf("failed to list calendar events: %w", err)
	}

	result := make([]CalendarEventOutput, 0, len(events))
	for _, ev := range events {
		out := CalendarEventOutput{
			ID:        ev.ID,
			Title:     ev.Title,
			Start:     ev.Start.DateTime.In(h.loc).Format(time.RFC3339),
			End:       ev.End.DateTime.In(h.loc).Format(time.RFC3339),
			Location:  ev.Location,
			Attendees: ev.Attendees,
			HTMLLink:  ev.HTMLLink,
		}

		record, err := db.GetEventRecordByProviderID(h.leads.db, ev.ID)
		if err != nil {
			return nil, ListCalendarEventsOutput{}, fmt.Errorf("failed to look up event record: %w", err)
		}
		visible, err := h.recordVisible(record)
		if err != nil {
			return nil, ListCalendarEventsOutput{}, err
		}
		if visible {
			out.RecordID = record.ID
			if record.LeadID != nil {
				out.LeadID = record.LeadID.String()
			}
		}

		result = append(result, out)
	}

	return nil, ListCalendarEventsOutput{Events: result}, nil
}
