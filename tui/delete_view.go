// ABOUTME: Delete confirmation view for TUI
// ABOUTME: Confirms and performs lead deletion for viewers allowed to delete
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
)

var (
	confirmBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(1, 2).
			Width(60).
			Align(lipgloss.Center)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	confirmButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("9")).
				Padding(0, 2).
				MarginRight(2)

	cancelButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("8")).
				Padding(0, 2)
)

func (m Model) renderConfirmDeleteView() string {
	lead, err := m.selectedLead()
	if err != nil {
		return fmt.Sprintf("Error loading lead: %v", err)
	}
	if lead == nil {
		return "Lead not found."
	}

	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		confirmButtonStyle.Render("Yes, Delete (y)"),
		cancelButtonStyle.Render("Cancel (n/esc)"),
	)

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		warningStyle.Render("⚠  DELETE CONFIRMATION  ⚠"),
		"",
		"Are you sure you want to delete this lead?",
		fmt.Sprintf("\nLEAD: %s\n", lead.Name),
		"\nScheduled events stay in Google Calendar.",
		"",
		buttons,
	)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		confirmBoxStyle.Render(content),
	)
}

func (m Model) handleConfirmDeleteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if err := m.performDelete(); err != nil {
			m.err = err
			m.viewMode = ViewDetail
			return m, nil
		}
		m.message = "Lead deleted"
		m.viewMode = ViewList
		m.loadLeads()
	case "n", "N", "esc":
		m.viewMode = ViewDetail
	}

	return m, nil
}

func (m Model) performDelete() error {
	if !leads.CanDelete(m.viewer) {
		return fmt.Errorf("%s users cannot delete leads", m.viewer.Role)
	}
	lead, err := m.selectedLead()
	if err != nil {
		return err
	}
	if lead == nil {
		return fmt.Errorf("lead not found")
	}
	return db.DeleteLead(m.db, lead.ID)
}
