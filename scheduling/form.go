// ABOUTME: Event scheduling form controller
// ABOUTME: Holds field state, gates submit on sign-in, and returns a typed result
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/models"
)

var (
	ErrFormClosed        = errors.New("scheduling form is not open")
	ErrSubmitInProgress  = errors.New("a submit is already in progress")
	ErrInvalidAttendee   = errors.New("attendee must be an email address")
	ErrDuplicateAttendee = errors.New("attendee already added")
	ErrInvalidReminder   = errors.New("reminder offset not offered")
)

// Scheduler is the part of the calendar connector the form needs.
type Scheduler interface {
	IsSignedIn() bool
	SignIn(ctx context.Context) bool
	CreateEvent(ctx context.Context, event calendar.ExternalEvent) (*calendar.ExternalEvent, error)
	UpdateEvent(ctx context.Context, eventID string, event calendar.ExternalEvent) (*calendar.ExternalEvent, error)
}

type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeSignInRequired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSignInRequired:
		return "sign_in_required"
	default:
		return "failed"
	}
}

// Result is what Submit reports back to the UI.
type Result struct {
	Outcome Outcome
	Record  *models.EventRecord
	// SignedIn is set on OutcomeSignInRequired when the consent flow succeeded;
	// the user still has to submit again.
	SignedIn bool
	// Stale is set when the form was closed or reopened while the request was in flight.
	Stale bool
	Err   error
}

// Fields is a snapshot of what the user has entered.
type Fields struct {
	Title       string
	Description string
	Location    string
	Date        string
	StartTime   string
	EndTime     string
	Attendees   []string
	Reminders   []int
}

type Options struct {
	Location  *time.Location
	Now       func() time.Time
	Creator   string
	NewID     func(time.Time) string
	Logger    *slog.Logger
	OnCreated func(models.EventRecord)
	OnUpdated func(models.EventRecord)
}

type Form struct {
	scheduler Scheduler
	loc       *time.Location
	now       func() time.Time
	creator   string
	newID     func(time.Time) string
	logger    *slog.Logger
	onCreated func(models.EventRecord)
	onUpdated func(models.EventRecord)

	mu         sync.Mutex
	open       bool
	submitting bool
	generation uint64
	fields     Fields
	existing   *models.EventRecord
	leadID     *uuid.UUID
}

func NewForm(scheduler Scheduler, opts Options) *Form {
	f := &Form{
		scheduler: scheduler,
		loc:       opts.Location,
		now:       opts.Now,
		creator:   opts.Creator,
		newID:     opts.NewID,
		logger:    opts.Logger,
		onCreated: opts.OnCreated,
		onUpdated: opts.OnUpdated,
	}
	if f.loc == nil {
		f.loc = time.UTC
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.newID == nil {
		f.newID = NewRecordID
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f
}

// NewRecordID returns a time-ordered id for a new local event record.
func NewRecordID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

func (f *Form) Location() *time.Location {
	return f.loc
}

// Open starts editing. With an existing record its times are decomposed in the form's zone;
// with only a lead the title and first attendee are suggested from it.
func (f *Form) Open(existing *models.EventRecord, lead *models.Lead) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reset()
	f.open = true
	f.generation++

	switch {
	case existing != nil:
		record := *existing
		f.existing = &record
		f.leadID = existing.LeadID
		date, start, end := DecomposeTimes(existing.Start, existing.End, f.loc)
		f.fields = Fields{
			Title:       existing.Title,
			Description: existing.Description,
			Location:    existing.Location,
			Date:        date,
			StartTime:   start,
			EndTime:     end,
			Attendees:   append([]string(nil), existing.Attendees...),
			Reminders:   append([]int(nil), existing.Reminders...),
		}
		sort.Ints(f.fields.Reminders)
	default:
		now := f.now().In(f.loc)
		start := time.Date(now.Year(), now.Month(), now.Day(), now.Hour()+1, 0, 0, 0, f.loc)
		date, startHM, endHM := DecomposeTimes(start, start.Add(time.Hour), f.loc)
		f.fields.Date = date
		f.fields.StartTime = startHM
		f.fields.EndTime = endHM
		if lead != nil {
			id := lead.ID
			f.leadID = &id
			f.fields.Title = "Follow-up: " + lead.Name
			if lead.Email != "" {
				f.fields.Attendees = []string{lead.Email}
			}
		}
	}
}

// Close discards the form state. An in-flight submit finishes but cannot reset a later form.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
	f.generation++
}

func (f *Form) reset() {
	f.open = false
	f.fields = Fields{}
	f.existing = nil
	f.leadID = nil
}

func (f *Form) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *Form) IsEditing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing != nil
}

func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Generation changes every time the form is opened or closed.
func (f *Form) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.fields
	out.Attendees = append([]string(nil), f.fields.Attendees...)
	out.Reminders = append([]int(nil), f.fields.Reminders...)
	return out
}

func (f *Form) SetTitle(v string)       { f.set(func(x *Fields) { x.Title = v }) }
func (f *Form) SetDescription(v string) { f.set(func(x *Fields) { x.Description = v }) }
func (f *Form) SetLocation(v string)    { f.set(func(x *Fields) { x.Location = v }) }
func (f *Form) SetDate(v string)        { f.set(func(x *Fields) { x.Date = strings.TrimSpace(v) }) }
func (f *Form) SetStartTime(v string)   { f.set(func(x *Fields) { x.StartTime = strings.TrimSpace(v) }) }
func (f *Form) SetEndTime(v string)     { f.set(func(x *Fields) { x.EndTime = strings.TrimSpace(v) }) }

func (f *Form) set(apply func(*Fields)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply(&f.fields)
}

// AddAttendee appends a trimmed address. The only check is that it contains "@".
func (f *Form) AddAttendee(email string) error {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return ErrInvalidAttendee
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.fields.Attendees {
		if existing == email {
			return ErrDuplicateAttendee
		}
	}
	f.fields.Attendees = append(f.fields.Attendees, email)
	return nil
}

// RemoveAttendee drops every exact match and reports whether anything was removed.
func (f *Form) RemoveAttendee(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.fields.Attendees[:0]
	removed := false
	for _, a := range f.fields.Attendees {
		if a == email {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	f.fields.Attendees = kept
	return removed
}

// ToggleReminder flips membership of an offered offset.
func (f *Form) ToggleReminder(minutes int) error {
	if !models.IsReminderOffset(minutes) {
		return fmt.Errorf("%w: %d", ErrInvalidReminder, minutes)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.fields.Reminders {
		if m == minutes {
			f.fields.Reminders = append(f.fields.Reminders[:i], f.fields.Reminders[i+1:]...)
			return nil
		}
	}
	f.fields.Reminders = append(f.fields.Reminders, minutes)
	sort.Ints(f.fields.Reminders)
	return nil
}

func (f *Form) HasReminder(minutes int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.fields.Reminders {
		if m == minutes {
			return true
		}
	}
	return false
}

type submission struct {
	generation uint64
	fields     Fields
	existing   *models.EventRecord
	leadID     *uuid.UUID
}

// Submit creates or updates the provider event. When not signed in it only starts sign-in.
// On success the matching callback fires and the form closes; on failure it stays open.
func (f *Form) Submit(ctx context.Context) Result {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return Result{Outcome: OutcomeFailed, Err: ErrFormClosed}
	}
	if f.submitting {
		f.mu.Unlock()
		return Result{Outcome: OutcomeFailed, Err: ErrSubmitInProgress}
	}
	f.submitting = true
	sub := submission{
		generation: f.generation,
		fields:     f.fields,
		existing:   f.existing,
		leadID:     f.leadID,
	}
	sub.fields.Attendees = append([]string(nil), f.fields.Attendees...)
	sub.fields.Reminders = append([]int(nil), f.fields.Reminders...)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	if !f.scheduler.IsSignedIn() {
		signedIn := f.scheduler.SignIn(ctx)
		return Result{Outcome: OutcomeSignInRequired, SignedIn: signedIn}
	}

	event, start, end, err := f.buildEvent(sub.fields)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	var provider *calendar.ExternalEvent
	if sub.existing != nil && sub.existing.ProviderEventID != "" {
		provider, err = f.scheduler.UpdateEvent(ctx, sub.existing.ProviderEventID, event)
	} else {
		provider, err = f.scheduler.CreateEvent(ctx, event)
	}
	if err != nil {
		f.logger.Error("event submit failed", "title", event.Title, "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	record, outcome := f.buildRecord(sub, provider, start, end)

	switch outcome {
	case OutcomeCreated:
		if f.onCreated != nil {
			f.onCreated(record)
		}
	case OutcomeUpdated:
		if f.onUpdated != nil {
			f.onUpdated(record)
		}
	}

	f.mu.Lock()
	stale := f.generation != sub.generation
	if !stale {
		f.reset()
		f.generation++
	}
	f.mu.Unlock()

	return Result{Outcome: outcome, Record: &record, Stale: stale}
}

func (f *Form) buildEvent(fields Fields) (calendar.ExternalEvent, time.Time, time.Time, error) {
	start, end, err := ComposeWindow(fields.Date, fields.StartTime, fields.EndTime, f.loc)
	if err != nil {
		return calendar.ExternalEvent{}, time.Time{}, time.Time{}, fmt.Errorf("%w: %v", calendar.ErrInvalidEvent, err)
	}

	zone := f.loc.String()
	event := calendar.ExternalEvent{
		Title:       strings.TrimSpace(fields.Title),
		Description: fields.Description,
		Location:    fields.Location,
		Start:       calendar.EventTime{DateTime: start, TimeZone: zone},
		End:         calendar.EventTime{DateTime: end, TimeZone: zone},
		Attendees:   fields.Attendees,
		Reminders:   calendar.PopupReminders(fields.Reminders),
	}
	if err := event.Validate(); err != nil {
		return calendar.ExternalEvent{}, time.Time{}, time.Time{}, err
	}
	return event, start, end, nil
}

func (f *Form) buildRecord(sub submission, provider *calendar.ExternalEvent, start, end time.Time) (models.EventRecord, Outcome) {
	now := f.now()

	var record models.EventRecord
	outcome := OutcomeCreated
	if sub.existing != nil {
		record = *sub.existing
		outcome = OutcomeUpdated
	} else {
		record = models.EventRecord{
			ID:        f.newID(now),
			CreatedBy: f.creator,
			CreatedAt: now,
		}
	}
	if record.ID == "" {
		record.ID = f.newID(now)
	}

	record.Title = strings.TrimSpace(sub.fields.Title)
	record.Description = sub.fields.Description
	record.Location = sub.fields.Location
	record.Start = start
	record.End = end
	record.Attendees = sub.fields.Attendees
	record.Reminders = sub.fields.Reminders
	record.LeadID = sub.leadID
	record.UpdatedAt = now
	if provider != nil && provider.ID != "" {
		record.ProviderEventID = provider.ID
	}

	return record, outcome
}
