// ABOUTME: ExternalEvent and its conversion to and from provider payloads
// ABOUTME: Reminders always go out as explicit popup overrides with useDefault=false
package calendar

import (
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

const (
	ReminderMethodPopup = "popup"
	StatusCancelled     = "cancelled"
)

// EventTime is an instant plus the IANA zone the provider should display it in.
type EventTime struct {
	DateTime time.Time `json:"date_time"`
	TimeZone string    `json:"time_zone"`
}

type Reminder struct {
	Method  string `json:"method"`
	Minutes int64  `json:"minutes"`
}

// ExternalEvent is an event as sent to or returned from the provider. ID is empty until
// the provider assigns one.
type ExternalEvent struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       EventTime  `json:"start"`
	End         EventTime  `json:"end"`
	Attendees   []string   `json:"attendees,omitempty"`
	Reminders   []Reminder `json:"reminders,omitempty"`
	Status      string     `json:"status,omitempty"`
	HTMLLink    string     `json:"html_link,omitempty"`
}

// PopupReminders builds popup overrides for the given minute offsets.
func PopupReminders(minutes []int) []Reminder {
	reminders := make([]Reminder, 0, len(minutes))
	for _, m := range minutes {
		reminders = append(reminders, Reminder{Method: ReminderMethodPopup, Minutes: int64(m)})
	}
	return reminders
}

// Validate checks the fields the provider requires before a call is made.
func (e ExternalEvent) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if err := e.Start.validate("start"); err != nil {
		return err
	}
	if err := e.End.validate("end"); err != nil {
		return err
	}
	if !e.End.DateTime.After(e.Start.DateTime) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidEvent)
	}
	for _, r := range e.Reminders {
		if r.Minutes < 0 {
			return fmt.Errorf("%w: reminder minutes must not be negative", ErrInvalidEvent)
		}
	}
	return nil
}

func (t EventTime) validate(field string) error {
	if t.DateTime.IsZero() {
		return fmt.Errorf("%w: %s time is required", ErrInvalidEvent, field)
	}
	if t.TimeZone == "" {
		return fmt.Errorf("%w: %s time zone is required", ErrInvalidEvent, field)
	}
	if _, err := time.LoadLocation(t.TimeZone); err != nil {
		return fmt.Errorf("%w: %s time zone %q: %v", ErrInvalidEvent, field, t.TimeZone, err)
	}
	return nil
}

func (t EventTime) toProvider() *gcal.EventDateTime {
	dt := t.DateTime
	if loc, err := time.LoadLocation(t.TimeZone); err == nil {
		dt = dt.In(loc)
	}
	return &gcal.EventDateTime{
		DateTime: dt.Format(time.RFC3339),
		TimeZone: t.TimeZone,
	}
}

// ToProvider builds the provider payload for insert/update.
func (e ExternalEvent) ToProvider() *gcal.Event {
	ev := &gcal.Event{
		Id:          e.ID,
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.Location,
		Start:       e.Start.toProvider(),
		End:         e.End.toProvider(),
	}

	for _, email := range e.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
	}

	overrides := make([]*gcal.EventReminder, 0, len(e.Reminders))
	for _, r := range e.Reminders {
		method := r.Method
		if method == "" {
			method = ReminderMethodPopup
		}
		overrides = append(overrides, &gcal.EventReminder{
			Method:          method,
			Minutes:         r.Minutes,
			ForceSendFields: []string{"Minutes"},
		})
	}
	ev.Reminders = &gcal.EventReminders{
		UseDefault:      false,
		Overrides:       overrides,
		ForceSendFields: []string{"UseDefault", "Overrides"},
	}

	return ev
}

// FromProvider converts a provider event. All-day events start at midnight in their zone.
func FromProvider(ev *gcal.Event) (ExternalEvent, error) {
	if ev == nil {
		return ExternalEvent{}, fmt.Errorf("nil provider event")
	}

	start, err := parseEventTime(ev.Start)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("failed to parse start of %s: %w", ev.Id, err)
	}
	end, err := parseEventTime(ev.End)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("failed to parse end of %s: %w", ev.Id, err)
	}

	out := ExternalEvent{
		ID:          ev.Id,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       start,
		End:         end,
		Status:      ev.Status,
		HTMLLink:    ev.HtmlLink,
	}

	for _, a := range ev.Attendees {
		if a != nil && a.Email != "" {
			out.Attendees = append(out.Attendees, a.Email)
		}
	}
	if ev.Reminders != nil {
		for _, r := range ev.Reminders.Overrides {
			if r != nil {
				out.Reminders = append(out.Reminders, Reminder{Method: r.Method, Minutes: r.Minutes})
			}
		}
	}

	return out, nil
}

func parseEventTime(dt *gcal.EventDateTime) (EventTime, error) {
	if dt == nil {
		return EventTime{}, fmt.Errorf("missing time")
	}

	loc := time.UTC
	if dt.TimeZone != "" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}

	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return EventTime{}, err
		}
		return EventTime{DateTime: t.In(loc), TimeZone: loc.String()}, nil
	}

	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		if err != nil {
			return EventTime{}, err
		}
		return EventTime{DateTime: t, TimeZone: loc.String()}, nil
	}

	return EventTime{}, fmt.Errorf("missing time")
}
