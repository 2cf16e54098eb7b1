// ABOUTME: Tests for the TUI model
// ABOUTME: Drives key messages through Update against a temp database and fake calendar
package tui

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/calendar/calendartest"
	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/models"
)

var (
	owner    = models.Viewer{ID: "owner", Role: models.RoleAdmin}
	fixedNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "tui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func addLead(t *testing.T, database *sql.DB, name, email, status string, created time.Time) *models.Lead {
	t.Helper()

	lead := &models.Lead{Name: name, Email: email, Status: status, AssignedTo: owner.ID, CreatedBy: owner.ID}
	require.NoError(t, db.CreateLead(database, lead))
	_, err := database.Exec(`UPDATE leads SET created_at = ? WHERE id = ?`, created, lead.ID.String())
	require.NoError(t, err)
	return lead
}

func newConnector(t *testing.T, fake *calendartest.FakeClient) *calendar.Connector {
	t.Helper()

	conn := calendar.NewConnector(fake, calendar.Options{ClientID: "client-id", APIKey: "api-key"})
	require.NoError(t, conn.Initialize(context.Background()))
	return conn
}

func newTestModel(t *testing.T, database *sql.DB, scheduler *calendar.Connector) Model {
	t.Helper()

	return NewModel(database, Options{
		Viewer:    owner,
		Scheduler: scheduler,
		Location:  time.UTC,
		Now:       func() time.Time { return fixedNow },
	})
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()

	var cmd tea.Cmd
	for _, key := range keys {
		var next tea.Model
		next, cmd = m.Update(key)
		m = next.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func seed(t *testing.T, database *sql.DB) {
	t.Helper()

	addLead(t, database, "Maria Chen", "maria@example.com", models.LeadStatusNew, fixedNow.Add(-2*time.Hour))
	addLead(t, database, "Dev Patel", "dev@example.com", models.LeadStatusShowing, fixedNow.Add(-30*24*time.Hour))
	addLead(t, database, "Ana Ruiz", "", models.LeadStatusClosed, fixedNow.Add(-3*24*time.Hour))
}

func TestListFilterAndSortCycling(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	m := newTestModel(t, database, nil)
	require.Len(t, m.leads, 3)
	assert.Equal(t, "Maria Chen", m.leads[0].Name, "newest first by default")

	m, _ = press(t, m, runes("f"))
	require.Len(t, m.leads, 1)
	assert.Equal(t, models.LeadStatusNew, m.leads[0].Status)

	m, _ = press(t, m, runes("o"))
	assert.Equal(t, 1, m.sortIndex)

	// Back to "all" after cycling through every status.
	for i := 0; i < len(models.LeadStatuses); i++ {
		m, _ = press(t, m, runes("f"))
	}
	require.Len(t, m.leads, 3)
	assert.Equal(t, "Ana Ruiz", m.leads[0].Name, "sorted by name")
	assert.Contains(t, m.View(), "sort: name")
}

func TestSearchNarrowsList(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	m := newTestModel(t, database, nil)
	m, _ = press(t, m, runes("/"), runes("dev"))
	require.True(t, m.searching)
	require.Len(t, m.leads, 1)
	assert.Equal(t, "Dev Patel", m.leads[0].Name)

	// "q" is text while searching.
	m, _ = press(t, m, runes("q"))
	assert.True(t, m.searching)
	assert.Empty(t, m.leads)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.searching)
	assert.Len(t, m.leads, 3)
}

func TestScheduleFromListCreatesEvent(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	fake := calendartest.NewFakeClient()
	fake.SignedIn = true
	m := newTestModel(t, database, newConnector(t, fake))

	m, _ = press(t, m, runes("s"))
	require.Equal(t, ViewSchedule, m.viewMode)
	assert.Equal(t, "Follow-up: Maria Chen", m.schedule.inputs[fieldTitle].Value())
	assert.Equal(t, "2024-06-03", m.schedule.inputs[fieldDate].Value())
	assert.Equal(t, "10:00", m.schedule.inputs[fieldStart].Value())

	// Move to the reminder row and enable 15 minutes.
	for i := 0; i < fieldReminders; i++ {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
	m, _ = press(t, m, runes("l"), runes("l"), tea.KeyMsg{Type: tea.KeySpace})
	assert.True(t, m.form.HasReminder(15))

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	assert.True(t, m.schedule.submitting)
	assert.Contains(t, m.View(), "Saving to Google Calendar")

	m = deliver(t, m, cmd())
	assert.Equal(t, ViewDetail, m.viewMode)
	assert.NoError(t, m.err)
	assert.Equal(t, "✓ Event created: Follow-up: Maria Chen", m.message)
	require.Len(t, m.events, 1)

	record := m.events[0]
	assert.NotEmpty(t, record.ProviderEventID)
	assert.Equal(t, []string{"maria@example.com"}, record.Attendees)
	assert.Equal(t, []int{15}, record.Reminders)
	assert.Equal(t, time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC), record.Start.UTC())
	assert.Equal(t, "owner", record.CreatedBy)
	assert.Equal(t, 1, fake.EventCount())

	activity, err := db.ListLeadActivity(database, m.selectedID, 10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, models.VerbScheduled, activity[0].Verb)
}

func deliver(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()

	next, _ := m.Update(msg)
	return next.(Model)
}

func TestRescheduleFromDetail(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	fake := calendartest.NewFakeClient()
	fake.SignedIn = true
	m := newTestModel(t, database, newConnector(t, fake))

	m, cmd := press(t, m, runes("s"), tea.KeyMsg{Type: tea.KeyCtrlS})
	m = deliver(t, m, cmd())
	require.Len(t, m.events, 1)
	providerID := m.events[0].ProviderEventID

	m, _ = press(t, m, runes("e"))
	require.Equal(t, ViewSchedule, m.viewMode)
	assert.True(t, m.form.IsEditing())
	assert.Contains(t, m.View(), "RESCHEDULE EVENT")

	// Replace the start and end times.
	m.schedule.inputs[fieldStart].SetValue("14:00")
	m.schedule.inputs[fieldEnd].SetValue("15:30")

	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m = deliver(t, m, cmd())
	require.NoError(t, m.err)
	assert.Equal(t, "✓ Event updated: Follow-up: Maria Chen", m.message)

	require.Len(t, m.events, 1)
	assert.Equal(t, providerID, m.events[0].ProviderEventID)
	assert.Equal(t, time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC), m.events[0].Start.UTC())
	assert.Equal(t, 1, fake.EventCount())

	activity, err := db.ListLeadActivity(database, m.selectedID, 10)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, models.VerbRescheduled, activity[0].Verb)
}

func TestSubmitAfterCancelIsDiscarded(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	fake := calendartest.NewFakeClient()
	fake.SignedIn = true
	m := newTestModel(t, database, newConnector(t, fake))

	m, cmd := press(t, m, runes("s"), tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)

	// The user leaves the form before the request finishes.
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ViewDetail, m.viewMode)

	m = deliver(t, m, cmd())
	assert.Equal(t, ViewDetail, m.viewMode)
	assert.NoError(t, m.err)
	assert.Empty(t, m.message)
}

func TestScheduleSignInRequired(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	fake := calendartest.NewFakeClient()
	fake.DenySignIn = true
	m := newTestModel(t, database, newConnector(t, fake))

	m, cmd := press(t, m, runes("s"), tea.KeyMsg{Type: tea.KeyCtrlS})
	m = deliver(t, m, cmd())

	assert.Equal(t, ViewSchedule, m.viewMode, "form stays open")
	assert.Error(t, m.err)
	assert.False(t, m.schedule.submitting)
	assert.Equal(t, 0, fake.EventCount())
	assert.True(t, m.form.IsOpen())
}

func TestScheduleInvalidTimesKeepFormOpen(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	fake := calendartest.NewFakeClient()
	fake.SignedIn = true
	m := newTestModel(t, database, newConnector(t, fake))

	m, _ = press(t, m, runes("s"))
	m.schedule.inputs[fieldEnd].SetValue(m.schedule.inputs[fieldStart].Value())

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m = deliver(t, m, cmd())

	assert.Equal(t, ViewSchedule, m.viewMode)
	assert.ErrorIs(t, m.err, calendar.ErrInvalidEvent)
	assert.Equal(t, 0, fake.EventCount())
}

func TestAttendeeKeys(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	m := newTestModel(t, database, nil)
	m, _ = press(t, m, runes("s"))

	for i := 0; i < fieldAttendee; i++ {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}

	m, _ = press(t, m, runes("not-an-email"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Error(t, m.err)

	m.schedule.inputs[fieldAttendee].SetValue("")
	m, _ = press(t, m, runes("agent@example.com"), tea.KeyMsg{Type: tea.KeyEnter})
	require.NoError(t, m.err)
	assert.Equal(t, []string{"maria@example.com", "agent@example.com"}, m.form.Fields().Attendees)
	assert.Empty(t, m.schedule.inputs[fieldAttendee].Value())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Equal(t, []string{"maria@example.com"}, m.form.Fields().Attendees)
}

func TestFollowupView(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	m := newTestModel(t, database, nil)
	m, _ = press(t, m, runes("u"))
	require.Equal(t, ViewFollowups, m.viewMode)

	stale := m.staleLeads()
	require.Len(t, stale, 1)
	assert.Equal(t, "Dev Patel", stale[0].Name)
	assert.Contains(t, m.View(), "🔴")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ViewDetail, m.viewMode)
	assert.Equal(t, stale[0].ID, m.selectedID)
}

func TestDeleteRequiresPermission(t *testing.T) {
	database := setupTestDB(t)
	lead := addLead(t, database, "Maria Chen", "maria@example.com", models.LeadStatusNew, fixedNow)

	agent := NewModel(database, Options{
		Viewer: models.Viewer{ID: "owner", Role: models.RoleAgent},
		Now:    func() time.Time { return fixedNow },
	})
	agent, _ = press(t, agent, tea.KeyMsg{Type: tea.KeyEnter}, runes("d"), runes("y"))
	assert.Error(t, agent.err)

	stored, err := db.GetLead(database, lead.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)

	m := newTestModel(t, database, nil)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter}, runes("d"))
	assert.Contains(t, m.View(), "Maria Chen")
	m, _ = press(t, m, runes("y"))
	assert.Equal(t, ViewList, m.viewMode)
	assert.Empty(t, m.leads)
}

func TestGraphView(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	m := newTestModel(t, database, nil)
	m, _ = press(t, m, runes("g"))
	require.NoError(t, m.err)
	assert.Equal(t, ViewGraph, m.viewMode)
	assert.Contains(t, m.graphDOT, "digraph")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewList, m.viewMode)
	assert.Empty(t, m.graphDOT)
}

func TestWithScheduleOpensFormForLead(t *testing.T) {
	database := setupTestDB(t)
	lead := addLead(t, database, "Maria Chen", "maria@example.com", models.LeadStatusNew, fixedNow)

	m := newTestModel(t, database, nil).WithSchedule(nil, lead)
	assert.Equal(t, ViewSchedule, m.viewMode)
	assert.Equal(t, lead.ID, m.selectedID)
	assert.Equal(t, "Follow-up: Maria Chen", m.schedule.inputs[fieldTitle].Value())
	assert.NotNil(t, m.Init())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewDetail, m.viewMode)
	assert.False(t, m.form.IsOpen())
	assert.Contains(t, m.View(), "Maria Chen")
}
