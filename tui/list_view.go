// ABOUTME: Lead list view for the TUI
// ABOUTME: Table of visible leads with search, status filter, and sort cycling
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadbook/models"
)

func (m Model) renderListView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("LEADBOOK"))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n")
	if m.searching || m.search.Value() != "" {
		s.WriteString(m.search.View())
		s.WriteString("\n")
	}
	s.WriteString("\n")

	s.WriteString(m.renderLeadTable())
	s.WriteString("\n")
	s.WriteString(m.renderStatusLine())

	s.WriteString(m.renderListHelp())

	return s.String()
}

// renderTabs shows the status filter as tabs, followed by the current sort.
func (m Model) renderTabs() string {
	var rendered []string
	for i, status := range statusFilters {
		label := status
		if label == "" {
			label = "all"
		}
		if i == m.statusIndex {
			rendered = append(rendered, tabActiveStyle.Render(label))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(label))
		}
	}
	rendered = append(rendered, tabInactiveStyle.Render("sort: "+sortOrders[m.sortIndex].String()))

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderLeadTable() string {
	if len(m.leads) == 0 {
		return "No leads found.\n"
	}

	columns := []table.Column{
		{Title: "Name", Width: 25},
		{Title: "Status", Width: 10},
		{Title: "Interest", Width: 8},
		{Title: "Budget", Width: 10},
		{Title: "Area", Width: 15},
		{Title: "Email", Width: 28},
	}

	var rows []table.Row
	for _, lead := range m.leads {
		budget := "-"
		if lead.Budget > 0 {
			budget = fmt.Sprintf("$%dK", lead.Budget/100000)
		}
		rows = append(rows, table.Row{
			lead.Name,
			lead.Status,
			lead.Interest,
			budget,
			lead.Area,
			lead.Email,
		})
	}

	height := m.height - 12
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

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Enter: Details",
		"/: Search",
		"f: Filter status",
		"o: Sort",
		"s: Schedule",
		"u: Follow-ups",
		"g: Pipeline graph",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	m.err = nil

	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(m.leads)-1 {
			m.selectedRow++
		}
	case "f":
		m.statusIndex = (m.statusIndex + 1) % len(statusFilters)
		m.selectedRow = 0
		m.loadLeads()
	case "o":
		m.sortIndex = (m.sortIndex + 1) % len(sortOrders)
		m.loadLeads()
	case "r":
		m.loadLeads()
	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case "enter":
		if lead, ok := m.currentLead(); ok {
			m.selectedID = lead.ID
			m.selectedEvent = 0
			m.loadEvents()
			m.viewMode = ViewDetail
		}
	case "s":
		if lead, ok := m.currentLead(); ok {
			m.selectedID = lead.ID
			return m.openSchedule(nil, &lead)
		}
	case "u":
		m.selectedRow = 0
		m.viewMode = ViewFollowups
	case "g":
		if err := m.generateGraph(); err != nil {
			m.err = err
		} else {
			m.viewMode = ViewGraph
		}
	}

	return m, nil
}

func (m Model) currentLead() (models.Lead, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.leads) {
		return models.Lead{}, false
	}
	return m.leads[m.selectedRow], true
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.loadLeads()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.selectedRow = 0
	m.loadLeads()
	return m, cmd
}
