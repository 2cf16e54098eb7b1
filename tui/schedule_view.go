// ABOUTME: Event scheduling view for the TUI
// ABOUTME: Drives scheduling.Form with text inputs and submits asynchronously
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadbook/models"
	"github.com/harperreed/leadbook/scheduling"
)

const (
	fieldTitle = iota
	fieldDescription
	fieldLocation
	fieldDate
	fieldStart
	fieldEnd
	fieldAttendee
	fieldReminders
	fieldCount
)

var fieldLabels = []string{
	"Title",
	"Description",
	"Location",
	"Date",
	"Start",
	"End",
	"Add attendee",
	"Reminders",
}

var (
	focusedLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("170")).
				Width(14)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	chipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("237")).
			Padding(0, 1).
			MarginRight(1)
)

type scheduleState struct {
	inputs         []textinput.Model
	focus          int
	reminderCursor int
	// generation is the form generation this view opened; results from other generations are dropped.
	generation uint64
	submitting bool
}

// submitResultMsg carries a finished Submit back into the update loop.
type submitResultMsg struct {
	generation uint64
	result     scheduling.Result
}

func newScheduleState(fields scheduling.Fields) scheduleState {
	inputs := make([]textinput.Model, fieldAttendee+1)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].CharLimit = 200
	}

	inputs[fieldTitle].Placeholder = "Showing at 12 Oak St"
	inputs[fieldDescription].Placeholder = "Notes for attendees"
	inputs[fieldDescription].CharLimit = 1000
	inputs[fieldLocation].Placeholder = "Address"
	inputs[fieldDate].Placeholder = "YYYY-MM-DD"
	inputs[fieldDate].CharLimit = 10
	inputs[fieldStart].Placeholder = "HH:MM"
	inputs[fieldStart].CharLimit = 5
	inputs[fieldEnd].Placeholder = "HH:MM"
	inputs[fieldEnd].CharLimit = 5
	inputs[fieldAttendee].Placeholder = "name@example.com, Enter to add"

	inputs[fieldTitle].SetValue(fields.Title)
	inputs[fieldDescription].SetValue(fields.Description)
	inputs[fieldLocation].SetValue(fields.Location)
	inputs[fieldDate].SetValue(fields.Date)
	inputs[fieldStart].SetValue(fields.StartTime)
	inputs[fieldEnd].SetValue(fields.EndTime)

	st := scheduleState{inputs: inputs}
	st.updateFocus()
	return st
}

func (st *scheduleState) updateFocus() {
	for i := range st.inputs {
		if i == st.focus {
			st.inputs[i].Focus()
		} else {
			st.inputs[i].Blur()
		}
	}
}

func (m Model) openSchedule(existing *models.EventRecord, lead *models.Lead) (tea.Model, tea.Cmd) {
	m.form.Open(existing, lead)
	m.schedule = newScheduleState(m.form.Fields())
	m.schedule.generation = m.form.Generation()
	m.message = ""
	m.err = nil
	m.viewMode = ViewSchedule
	return m, textinput.Blink
}

// WithSchedule returns m with the scheduling form already open for lead or existing.
// Leaving the form lands on that lead's detail view.
func (m Model) WithSchedule(existing *models.EventRecord, lead *models.Lead) Model {
	switch {
	case lead != nil:
		m.selectedID = lead.ID
	case existing != nil && existing.LeadID != nil:
		m.selectedID = *existing.LeadID
	}
	next, _ := m.openSchedule(existing, lead)
	return next.(Model)
}

// syncForm copies the text inputs into the form before submit.
func (m Model) syncForm() {
	in := m.schedule.inputs
	m.form.SetTitle(in[fieldTitle].Value())
	m.form.SetDescription(in[fieldDescription].Value())
	m.form.SetLocation(in[fieldLocation].Value())
	m.form.SetDate(in[fieldDate].Value())
	m.form.SetStartTime(in[fieldStart].Value())
	m.form.SetEndTime(in[fieldEnd].Value())
}

func submitCmd(form *scheduling.Form, generation uint64) tea.Cmd {
	return func() tea.Msg {
		return submitResultMsg{generation: generation, result: form.Submit(context.Background())}
	}
}

func (m Model) renderScheduleView() string {
	var s strings.Builder

	if m.form.IsEditing() {
		s.WriteString(titleStyle.Render("RESCHEDULE EVENT"))
	} else {
		s.WriteString(titleStyle.Render("SCHEDULE EVENT"))
	}
	s.WriteString("\n\n")

	for i, input := range m.schedule.inputs {
		s.WriteString(m.renderFieldLabel(i))
		s.WriteString(input.View())
		s.WriteString("\n")
	}

	fields := m.form.Fields()

	s.WriteString(labelStyle.Render("Attendees"))
	if len(fields.Attendees) == 0 {
		s.WriteString("-")
	}
	for _, a := range fields.Attendees {
		s.WriteString(chipStyle.Render(a))
	}
	s.WriteString("\n")

	s.WriteString(m.renderFieldLabel(fieldReminders))
	for i, offset := range models.ReminderOffsets {
		box := "[ ]"
		if m.form.HasReminder(offset) {
			box = "[x]"
		}
		item := fmt.Sprintf("%s %dm", box, offset)
		if m.schedule.focus == fieldReminders && i == m.schedule.reminderCursor {
			item = selectedEventStyle.Render(item)
		}
		s.WriteString(item)
		s.WriteString("  ")
	}
	s.WriteString("\n")
	s.WriteString(labelStyle.Render("Time zone"))
	s.WriteString(m.form.Location().String())
	s.WriteString("\n\n")

	if m.schedule.submitting {
		s.WriteString(messageStyle.Render("Saving to Google Calendar..."))
		s.WriteString("\n")
	}
	s.WriteString(m.renderStatusLine())
	s.WriteString(m.renderScheduleHelp())

	return s.String()
}

func (m Model) renderFieldLabel(i int) string {
	if i == m.schedule.focus {
		return focusedLabelStyle.Render("> " + fieldLabels[i])
	}
	return labelStyle.Render("  " + fieldLabels[i])
}

func (m Model) renderScheduleHelp() string {
	help := []string{
		"Tab: Next field",
		"Enter: Add attendee",
		"Ctrl+D: Remove attendee",
		"Space: Toggle reminder",
		"Ctrl+S: Save",
		"Esc: Cancel",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleScheduleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.form.Close()
		m.schedule = scheduleState{}
		m.message = ""
		m.err = nil
		m.viewMode = ViewDetail
		m.loadEvents()
		return m, nil
	case "tab", "down":
		m.schedule.focus = (m.schedule.focus + 1) % fieldCount
		m.schedule.updateFocus()
		return m, nil
	case "shift+tab", "up":
		m.schedule.focus = (m.schedule.focus + fieldCount - 1) % fieldCount
		m.schedule.updateFocus()
		return m, nil
	case "ctrl+s":
		if m.schedule.submitting {
			return m, nil
		}
		m.syncForm()
		m.schedule.submitting = true
		m.message = ""
		m.err = nil
		return m, submitCmd(m.form, m.schedule.generation)
	}

	switch m.schedule.focus {
	case fieldAttendee:
		return m.handleAttendeeKeys(msg)
	case fieldReminders:
		return m.handleReminderKeys(msg)
	}

	var cmd tea.Cmd
	m.schedule.inputs[m.schedule.focus], cmd = m.schedule.inputs[m.schedule.focus].Update(msg)
	return m, cmd
}

func (m Model) handleAttendeeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	input := &m.schedule.inputs[fieldAttendee]

	switch msg.String() {
	case "enter":
		if err := m.form.AddAttendee(input.Value()); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		input.SetValue("")
		return m, nil
	case "ctrl+d":
		// Removes the typed address, or the last one added when the field is empty.
		email := strings.TrimSpace(input.Value())
		if email == "" {
			attendees := m.form.Fields().Attendees
			if len(attendees) == 0 {
				return m, nil
			}
			email = attendees[len(attendees)-1]
		}
		if m.form.RemoveAttendee(email) {
			input.SetValue("")
		}
		return m, nil
	}

	var cmd tea.Cmd
	*input, cmd = input.Update(msg)
	return m, cmd
}

func (m Model) handleReminderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		if m.schedule.reminderCursor > 0 {
			m.schedule.reminderCursor--
		}
	case "right", "l":
		if m.schedule.reminderCursor < len(models.ReminderOffsets)-1 {
			m.schedule.reminderCursor++
		}
	case " ", "enter":
		if err := m.form.ToggleReminder(models.ReminderOffsets[m.schedule.reminderCursor]); err != nil {
			m.err = err
		}
	}
	return m, nil
}

func (m Model) handleSubmitResult(msg submitResultMsg) (tea.Model, tea.Cmd) {
	// A closed or reopened form already moved on; its record was saved by the form callback.
	if msg.generation != m.schedule.generation || msg.result.Stale {
		if m.viewMode == ViewDetail {
			m.loadEvents()
		}
		return m, nil
	}

	m.schedule.submitting = false
	result := msg.result

	switch result.Outcome {
	case scheduling.OutcomeCreated, scheduling.OutcomeUpdated:
		m.err = nil
		m.message = fmt.Sprintf("✓ Event %s: %s", result.Outcome, result.Record.Title)
		m.schedule = scheduleState{}
		m.viewMode = ViewDetail
		m.loadEvents()
		m.loadLeads()
	case scheduling.OutcomeSignInRequired:
		if result.SignedIn {
			m.err = nil
			m.message = "Signed in to Google Calendar. Press Ctrl+S to save."
		} else {
			m.err = errors.New("google calendar sign-in did not complete")
		}
	default:
		m.err = result.Err
		if m.err == nil {
			m.err = errors.New("failed to save event")
		}
	}

	return m, nil
}
