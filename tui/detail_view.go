// ABOUTME: Lead detail view for the TUI
// ABOUTME: Shows lead fields and scheduled events, and opens the scheduling form
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(20)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedEventStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235")).
				Foreground(lipgloss.Color("255")).
				Bold(true)
)

func (m Model) renderDetailView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("LEAD"))
	s.WriteString("\n\n")
	s.WriteString(m.renderLeadDetail())
	s.WriteString("\n")
	s.WriteString(m.renderStatusLine())
	s.WriteString(m.renderDetailHelp())

	return s.String()
}

func (m Model) renderLeadDetail() string {
	lead, err := m.selectedLead()
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if lead == nil {
		return "Lead not found.\n"
	}

	var s strings.Builder

	s.WriteString(m.renderField("Name", lead.Name))
	s.WriteString(m.renderField("Status", lead.Status))
	s.WriteString(m.renderField("Email", lead.Email))
	s.WriteString(m.renderField("Phone", lead.Phone))
	s.WriteString(m.renderField("Interest", lead.Interest))
	if lead.Budget > 0 {
		s.WriteString(m.renderField("Budget", fmt.Sprintf("$%d", lead.Budget/100)))
	}
	s.WriteString(m.renderField("Area", lead.Area))
	s.WriteString(m.renderField("Source", lead.Source))
	s.WriteString(m.renderField("Assigned To", lead.AssignedTo))
	if lead.LastContactedAt != nil {
		s.WriteString(m.renderField("Last Contacted", lead.LastContactedAt.Format("2006-01-02")))
	}
	s.WriteString(m.renderField("Notes", lead.Notes))

	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Bold(true).Render("SCHEDULED EVENTS"))
	s.WriteString("\n")

	if len(m.events) == 0 {
		s.WriteString("  none\n")
	}
	loc := m.form.Location()
	for i, event := range m.events {
		line := fmt.Sprintf("  %s  %s", event.Start.In(loc).Format("Mon Jan 2 15:04"), event.Title)
		if event.ProviderEventID == "" {
			line += " (local only)"
		}
		if i == m.selectedEvent {
			line = selectedEventStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) renderField(label, value string) string {
	if value == "" {
		value = "-"
	}
	return fmt.Sprintf("%s %s\n",
		fieldLabelStyle.Render(label+":"),
		fieldValueStyle.Render(value))
}

func (m Model) renderDetailHelp() string {
	help := []string{
		"Esc: Back",
		"↑/↓: Select event",
		"s: Schedule",
		"e: Reschedule event",
		"d: Delete",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	switch msg.String() {
	case "esc":
		m.message = ""
		m.viewMode = ViewList
		m.loadLeads()
	case "up", "k":
		if m.selectedEvent > 0 {
			m.selectedEvent--
		}
	case "down", "j":
		if m.selectedEvent < len(m.events)-1 {
			m.selectedEvent++
		}
	case "s":
		lead, err := m.selectedLead()
		if err != nil {
			m.err = err
			return m, nil
		}
		if lead != nil {
			return m.openSchedule(nil, lead)
		}
	case "e":
		if m.selectedEvent < len(m.events) {
			event := m.events[m.selectedEvent]
			return m.openSchedule(&event, nil)
		}
	case "d":
		m.message = ""
		m.viewMode = ViewConfirmDelete
	}

	return m, nil
}
