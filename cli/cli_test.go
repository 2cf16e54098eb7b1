// ABOUTME: Tests for CLI commands
// ABOUTME: Runs commands against a temp database and a fake calendar client, capturing output
package cli

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/calendar/calendartest"
	"github.com/harperreed/leadbook/config"
	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/models"
	"github.com/harperreed/leadbook/web"
)

var owner = models.Viewer{ID: "owner", Role: models.RoleAdmin}

func setupTestCLI(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	return database
}

// captureOutput points command output at a buffer for the rest of the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prev := output
	output = &buf
	t.Cleanup(func() { output = prev })
	return &buf
}

func addTestLead(t *testing.T, database *sql.DB, name string, created time.Time) *models.Lead {
	t.Helper()

	lead := &models.Lead{Name: name, Email: strings.ToLower(strings.Fields(name)[0]) + "@example.com", AssignedTo: owner.ID}
	require.NoError(t, db.CreateLead(database, lead))
	_, err := database.Exec(`UPDATE leads SET created_at = ? WHERE id = ?`, created, lead.ID.String())
	require.NoError(t, err)
	lead.CreatedAt = created
	return lead
}

func newFakeConnector() (*calendartest.FakeClient, *calendar.Connector) {
	fake := calendartest.NewFakeClient()
	return fake, calendar.NewConnector(fake, calendar.Options{ClientID: "client-id", APIKey: "api-key"})
}

func TestLeadCommands(t *testing.T) {
	database := setupTestCLI(t)
	out := captureOutput(t)

	err := AddLeadCommand(database, owner, []string{"--name", "Maria Chen", "--email", "maria@example.com", "--interest", "Buy", "--budget", "650000"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ Lead created: Maria Chen")
	assert.Contains(t, out.String(), "$650000")

	all, err := db.ListLeads(database, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	lead := all[0]
	assert.Equal(t, models.InterestBuy, lead.Interest)
	short := lead.ID.String()[:8]

	out.Reset()
	require.NoError(t, ListLeadsCommand(database, owner, []string{"--query", "maria"}))
	assert.Contains(t, out.String(), short)
	assert.Contains(t, out.String(), "Showing 1 of 1 lead(s)")

	out.Reset()
	require.NoError(t, UpdateLeadCommand(database, owner, []string{"--status", "contacted", short}))
	assert.Contains(t, out.String(), "✓ Lead updated: Maria Chen (status)")

	updated, err := db.GetLead(database, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusContacted, updated.Status)
	assert.NotNil(t, updated.LastContactedAt)

	out.Reset()
	require.NoError(t, UpdateLeadCommand(database, owner, []string{"--status", "contacted", short}))
	assert.Contains(t, out.String(), "Nothing to update")

	out.Reset()
	require.NoError(t, ShowLeadCommand(database, owner, time.UTC, []string{short}))
	assert.Contains(t, out.String(), "Maria Chen  [contacted]")
	assert.Contains(t, out.String(), "ACTIVITY")

	agent := models.Viewer{ID: "agent-2", Role: models.RoleAgent}
	assert.Error(t, ShowLeadCommand(database, agent, time.UTC, []string{short}))
	assert.Error(t, DeleteLeadCommand(database, agent, []string{short}))

	out.Reset()
	require.NoError(t, DeleteLeadCommand(database, owner, []string{short}))
	assert.Contains(t, out.String(), "✓ Lead deleted: Maria Chen")
}

func TestAddLeadValidation(t *testing.T) {
	database := setupTestCLI(t)
	captureOutput(t)

	assert.Error(t, AddLeadCommand(database, owner, []string{"--email", "x@example.com"}))
	assert.Error(t, AddLeadCommand(database, owner, []string{"--name", "X", "--interest", "lease"}))
	assert.Error(t, ListLeadsCommand(database, owner, []string{"--sort", "colour"}))
}

func TestResolveLead(t *testing.T) {
	database := setupTestCLI(t)
	lead := addTestLead(t, database, "Maria Chen", time.Now())

	got, err := resolveLead(database, lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)

	got, err = resolveLead(database, strings.ToUpper(lead.ID.String()[:6]))
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)

	_, err = resolveLead(database, "")
	assert.Error(t, err)

	_, err = resolveLead(database, "zzzz")
	assert.Error(t, err)
}

func TestFollowupCommands(t *testing.T) {
	database := setupTestCLI(t)
	out := captureOutput(t)

	now := time.Now()
	quiet := addTestLead(t, database, "Dev Patel", now.AddDate(0, 0, -40))
	addTestLead(t, database, "Ana Lima", now.AddDate(0, 0, -20))
	addTestLead(t, database, "Maria Chen", now.Add(-time.Hour))

	require.NoError(t, FollowupListCommand(database, owner, nil))
	text := out.String()
	assert.Contains(t, text, "🔴 Dev Patel")
	assert.Contains(t, text, "🟡 Ana Lima")
	assert.NotContains(t, text, "Maria Chen")
	assert.Less(t, strings.Index(text, "Dev Patel"), strings.Index(text, "Ana Lima"))

	out.Reset()
	require.NoError(t, ContactedCommand(database, owner, []string{quiet.ID.String()}))
	assert.Contains(t, out.String(), "✓ Logged contact with Dev Patel")

	contacted, err := db.GetLead(database, quiet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusContacted, contacted.Status)

	out.Reset()
	require.NoError(t, FollowupListCommand(database, owner, nil))
	assert.NotContains(t, out.String(), "Dev Patel")
}

func TestFollowupListEmpty(t *testing.T) {
	database := setupTestCLI(t)
	out := captureOutput(t)

	require.NoError(t, FollowupListCommand(database, owner, []string{}))
	assert.Contains(t, out.String(), "No leads need follow-up")
}

func TestCalendarConnectAndDisconnect(t *testing.T) {
	database := setupTestCLI(t)
	out := captureOutput(t)
	ctx := context.Background()

	fake, conn := newFakeConnector()
	fake.Account = "agent@example.com"

	require.NoError(t, CalendarConnectCommand(ctx, database, conn, nil))
	assert.Contains(t, out.String(), "✓ Connected Google Calendar agent@example.com")

	account, err := db.GetCalendarAccount(database, calendar.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusLinked, account.Status)
	assert.Equal(t, "agent@example.com", account.AccountEmail)

	out.Reset()
	require.NoError(t, CalendarConnectCommand(ctx, database, conn, nil))
	assert.Contains(t, out.String(), "already connected")
	assert.Equal(t, 1, fake.Calls("SignIn"))

	out.Reset()
	require.NoError(t, CalendarStatusCommand(ctx, database, conn, nil))
	assert.Contains(t, out.String(), "Connector: ready")
	assert.Contains(t, out.String(), "Session:   signed_in")

	out.Reset()
	require.NoError(t, CalendarDisconnectCommand(ctx, database, conn, nil))
	assert.True(t, fake.Revoked)
	assert.False(t, conn.IsSignedIn())

	account, err = db.GetCalendarAccount(database, calendar.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusUnlinked, account.Status)
}

func TestCalendarConnectDenied(t *testing.T) {
	database := setupTestCLI(t)
	captureOutput(t)

	fake, conn := newFakeConnector()
	fake.DenySignIn = true

	err := CalendarConnectCommand(context.Background(), database, conn, nil)
	require.Error(t, err)

	account, err := db.GetCalendarAccount(database, calendar.ProviderGoogle)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, models.AccountStatusError, account.Status)
}

func TestCalendarEventsAndDelete(t *testing.T) {
	database := setupTestCLI(t)
	out := captureOutput(t)
	ctx := context.Background()

	fake, conn := newFakeConnector()
	fake.SignedIn = true

	lead := addTestLead(t, database, "Maria Chen", time.Now())
	start := time.Now().Add(26 * time.Hour).Truncate(time.Minute)
	fake.Seed(calendartest.Event("evt-9", "Showing at 12 Oak St", start, start.Add(time.Hour), "UTC"))

	record := &models.EventRecord{
		ID:              "rec-1",
		Title:           "Showing at 12 Oak St",
		Start:           start,
		End:             start.Add(time.Hour),
		LeadID:          &lead.ID,
		ProviderEventID: "evt-9",
		CreatedBy:       owner.ID,
	}
	require.NoError(t, db.CreateEventRecord(database, record))

	require.NoError(t, CalendarEventsCommand(ctx, database, conn, time.UTC, []string{"--days", "3"}))
	assert.Contains(t, out.String(), "Showing at 12 Oak St")
	assert.Contains(t, out.String(), "Maria Chen")
	assert.Contains(t, out.String(), "evt-9")

	// A local record id resolves to its provider event.
	out.Reset()
	require.NoError(t, CalendarDeleteEventCommand(ctx, database, conn, []string{"rec-1"}))
	assert.Contains(t, out.String(), "✓ Deleted calendar event evt-9")
	assert.Equal(t, 0, fake.EventCount())

	kept, err := db.GetEventRecord(database, "rec-1")
	require.NoError(t, err)
	assert.NotNil(t, kept, "local record is not removed with the provider event")

	err = CalendarDeleteEventCommand(ctx, database, conn, []string{"evt-9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer exists")

	out.Reset()
	require.NoError(t, CalendarEventsCommand(ctx, database, conn, time.UTC, nil))
	assert.Contains(t, out.String(), "No events in the next 7 day(s)")
}

func TestCalendarExportCommand(t *testing.T) {
	database := setupTestCLI(t)
	out := captureOutput(t)

	lead := addTestLead(t, database, "Maria Chen", time.Now())
	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateEventRecord(database, &models.EventRecord{
		ID:     "rec-1",
		Title:  "Follow-up: Maria Chen",
		Start:  start,
		End:    start.Add(time.Hour),
		LeadID: &lead.ID,
	}))

	require.NoError(t, CalendarExportCommand(database, []string{"--lead", lead.ID.String()[:8]}))
	assert.Contains(t, out.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, out.String(), "Follow-up: Maria Chen")

	path := filepath.Join(t.TempDir(), "events.ics")
	out.Reset()
	require.NoError(t, CalendarExportCommand(database, []string{"--output", path}))
	assert.Contains(t, out.String(), "✓ Exported 1 event(s)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VEVENT")
}

func TestDashboardAndGraphCommands(t *testing.T) {
	database := setupTestCLI(t)
	out := captureOutput(t)
	addTestLead(t, database, "Maria Chen", time.Now())

	require.NoError(t, DashboardCommand(database, time.UTC, nil))
	assert.Contains(t, out.String(), "LEADBOOK DASHBOARD")

	out.Reset()
	require.NoError(t, GraphCommand(context.Background(), database, nil))
	assert.Contains(t, out.String(), "digraph")

	path := filepath.Join(t.TempDir(), "pipeline.dot")
	out.Reset()
	require.NoError(t, GraphCommand(context.Background(), database, []string{"--output", path}))
	assert.Contains(t, out.String(), "✓ Pipeline graph written to")
	assert.FileExists(t, path)
}

func TestWebTokenCommand(t *testing.T) {
	out := captureOutput(t)
	cfg := &config.Config{JWTSecret: "secret", User: "owner"}

	require.NoError(t, WebTokenCommand(cfg, []string{"--role", "agent", "--ttl", "1h"}))

	viewer, err := web.ParseToken("secret", strings.TrimSpace(out.String()), time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.Viewer{ID: "owner", Role: models.RoleAgent}, viewer)

	assert.Error(t, WebTokenCommand(cfg, []string{"--role", "owner"}))
	assert.Error(t, WebTokenCommand(&config.Config{User: "owner"}, nil))
}
