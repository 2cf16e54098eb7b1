// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Full-screen lead list, lead detail, and the event scheduling form
package tui

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
	"github.com/harperreed/leadbook/scheduling"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewSchedule
	ViewFollowups
	ViewGraph
	ViewConfirmDelete
)

// Options configures a Model. Scheduler is usually the calendar connector.
type Options struct {
	Viewer    models.Viewer
	Scheduler scheduling.Scheduler
	Location  *time.Location
	Now       func() time.Time
	Logger    *slog.Logger
}

// Model is the main bubbletea model
type Model struct {
	db     *sql.DB
	viewer models.Viewer
	now    func() time.Time
	logger *slog.Logger
	form   *scheduling.Form

	viewMode ViewMode

	// List view state
	leads       []models.Lead
	selectedRow int
	search      textinput.Model
	searching   bool
	statusIndex int
	sortIndex   int

	// Detail view state
	selectedID    uuid.UUID
	events        []models.EventRecord
	selectedEvent int

	// Schedule view state
	schedule scheduleState

	// Graph view state
	graphDOT string

	message string
	err     error

	// UI state
	width  int
	height int
}

// statusFilters is cycled with "f"; the empty entry shows every status.
var statusFilters = append([]string{""}, models.LeadStatuses...)

var sortOrders = []leads.Sort{
	leads.DefaultSort,
	{Field: leads.SortName},
	{Field: leads.SortBudget, Desc: true},
	{Field: leads.SortStatus},
	{Field: leads.SortUpdatedAt, Desc: true},
}

func NewModel(database *sql.DB, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	search := textinput.New()
	search.Placeholder = "search leads"
	search.CharLimit = 100

	m := Model{
		db:       database,
		viewer:   opts.Viewer,
		now:      opts.Now,
		logger:   opts.Logger,
		viewMode: ViewList,
		search:   search,
	}

	m.form = scheduling.NewForm(opts.Scheduler, scheduling.Options{
		Location:  opts.Location,
		Now:       opts.Now,
		Creator:   opts.Viewer.ID,
		Logger:    opts.Logger,
		OnCreated: m.persist(models.VerbScheduled),
		OnUpdated: m.persist(models.VerbRescheduled),
	})

	m.loadLeads()
	return m
}

// persist stores a submitted event. Form callbacks cannot fail, so errors are logged.
func (m Model) persist(verb models.ActivityVerb) func(models.EventRecord) {
	database, actor, logger := m.db, m.viewer.ID, m.logger
	return func(record models.EventRecord) {
		if err := db.RecordScheduledEvent(database, &record, actor, verb); err != nil {
			logger.Error("failed to save event record", "id", record.ID, "error", err)
		}
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	if m.viewMode == ViewSchedule {
		return textinput.Blink
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case submitResultMsg:
		return m.handleSubmitResult(msg)
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewSchedule:
		return m.renderScheduleView()
	case ViewFollowups:
		return m.renderFollowupView()
	case ViewGraph:
		return m.renderGraphView()
	case ViewConfirmDelete:
		return m.renderConfirmDeleteView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Text entry views get every other key, including "q".
	if m.viewMode == ViewSchedule {
		return m.handleScheduleKeys(msg)
	}
	if m.viewMode == ViewList && m.searching {
		return m.handleSearchKeys(msg)
	}

	if msg.String() == "q" {
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewFollowups:
		return m.handleFollowupKeys(msg)
	case ViewGraph:
		return m.handleGraphKeys(msg)
	case ViewConfirmDelete:
		return m.handleConfirmDeleteKeys(msg)
	}

	return m, nil
}

func (m *Model) loadLeads() {
	all, err := db.ListLeads(m.db, 0)
	if err != nil {
		m.err = err
		m.leads = nil
		return
	}

	filter := leads.Filter{
		Query:  m.search.Value(),
		Status: statusFilters[m.statusIndex],
	}
	m.leads = leads.Apply(m.viewer, all, filter, sortOrders[m.sortIndex])
	if m.selectedRow >= len(m.leads) {
		m.selectedRow = len(m.leads) - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

// selectedLead loads the lead the detail view is showing.
func (m Model) selectedLead() (*models.Lead, error) {
	lead, err := db.GetLead(m.db, m.selectedID)
	if err != nil {
		return nil, err
	}
	if lead == nil || !leads.CanView(m.viewer, lead) {
		return nil, nil
	}
	return lead, nil
}

func (m *Model) loadEvents() {
	events, err := db.ListEventRecords(m.db, &m.selectedID, 0)
	if err != nil {
		m.err = err
	}
	m.events = events
	if m.selectedEvent >= len(m.events) {
		m.selectedEvent = 0
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

func (m Model) renderStatusLine() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if m.message != "" {
		return messageStyle.Render(m.message) + "\n"
	}
	return ""
}
