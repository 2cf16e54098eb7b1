// ABOUTME: TUI view for follow-up tracking
// ABOUTME: Lists open leads nobody has contacted recently, oldest first
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
	"github.com/harperreed/leadbook/viz"
)

// staleLeads returns visible open leads past the follow-up threshold, longest silence first.
func (m Model) staleLeads() []models.Lead {
	now := m.now()
	var out []models.Lead
	for _, lead := range m.leads {
		if leads.IsStale(&lead, viz.StaleAfterDays, now) {
			out = append(out, lead)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysSinceContact(now) > out[j].DaysSinceContact(now)
	})
	return out
}

func (m Model) renderFollowupView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("FOLLOW-UPS"))
	s.WriteString("\n\n")
	s.WriteString(m.renderFollowupsTable())
	s.WriteString("\n")
	s.WriteString(m.renderStatusLine())

	help := []string{
		"↑/↓: Navigate",
		"Enter: Details",
		"s: Schedule",
		"Esc: Back",
	}
	s.WriteString(helpStyle.Render(strings.Join(help, " • ")))

	return s.String()
}

func (m Model) renderFollowupsTable() string {
	followups := m.staleLeads()
	if len(followups) == 0 {
		return fmt.Sprintf("Every open lead was contacted in the last %d days.\n", viz.StaleAfterDays)
	}

	columns := []table.Column{
		{Title: "", Width: 3},
		{Title: "Name", Width: 25},
		{Title: "Days", Width: 6},
		{Title: "Status", Width: 10},
		{Title: "Email", Width: 30},
	}

	now := m.now()
	var rows []table.Row
	for _, lead := range followups {
		days := lead.DaysSinceContact(now)
		indicator := "🟡"
		if days > viz.StaleAfterDays*2 {
			indicator = "🔴"
		}

		rows = append(rows, table.Row{
			indicator,
			lead.Name,
			fmt.Sprintf("%d", days),
			lead.Status,
			lead.Email,
		})
	}

	height := m.height - 10
	if height < 5 {
		height = 10
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	if m.selectedRow < len(rows) {
		t.SetCursor(m.selectedRow)
	}

	return t.View()
}

func (m Model) handleFollowupKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	followups := m.staleLeads()

	switch msg.String() {
	case "esc":
		m.selectedRow = 0
		m.viewMode = ViewList
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(followups)-1 {
			m.selectedRow++
		}
	case "enter", "s":
		if m.selectedRow >= len(followups) {
			return m, nil
		}
		lead := followups[m.selectedRow]
		m.selectedID = lead.ID
		m.selectedEvent = 0
		m.loadEvents()
		if msg.String() == "s" {
			return m.openSchedule(nil, &lead)
		}
		m.viewMode = ViewDetail
	}

	return m, nil
}
