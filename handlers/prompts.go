// ABOUTME: MCP prompt handlers for reusable lead workflow templates
// ABOUTME: Provides lead summary, follow-up, and pipeline review prompts
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
)

type PromptHandlers struct {
	db  *sql.DB
	now func() time.Time
}

func NewPromptHandlers(database *sql.DB) *PromptHandlers {
	return &PromptHandlers{db: database, now: time.Now}
}

// Prompts lists the prompt templates GetPrompt serves.
func (h *PromptHandlers) Prompts() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        "lead-summary",
			Description: "Summarize a lead with their scheduled events and recent activity",
			Arguments: []*mcp.PromptArgument{
				{Name: "lead_id", Description: "Lead ID", Required: true},
			},
		},
		{
			Name:        "follow-up-suggestions",
			Description: "Open leads that have not been contacted recently",
			Arguments: []*mcp.PromptArgument{
				{Name: "days_since_contact", Description: "Days without contact (default 14)"},
			},
		},
		{
			Name:        "pipeline-review",
			Description: "Review lead counts and budgets by pipeline status",
		},
	}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "lead-summary":
		return h.getLeadSummaryPrompt(arguments)
	case "follow-up-suggestions":
		return h.getFollowUpSuggestionsPrompt(arguments)
	case "pipeline-review":
		return h.getPipelineReviewPrompt()
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) getLeadSummaryPrompt(args map[string]string) (*mcp.GetPromptResult, error) {
	leadIDStr, ok := args["lead_id"]
	if !ok {
		return nil, fmt.Errorf("lead_id is required")
	}

	leadID, err := uuid.Parse(leadIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid lead_id: %w", err)
	}

	lead, err := db.GetLead(h.db, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}
	if lead == nil {
		return nil, fmt.Errorf("lead not found: %s", leadIDStr)
	}

	events, err := db.ListEventRecords(h.db, &leadID, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	activity, err := db.ListLeadActivity(h.db, leadID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString("Please provide a summary of this lead:\n\n")
	promptText.WriteString(fmt.Sprintf("Name: %s\n", lead.Name))
	promptText.WriteString(fmt.Sprintf("Status: %s\n", lead.Status))
	if lead.Email != "" {
		promptText.WriteString(fmt.Sprintf("Email: %s\n", lead.Email))
	}
	if lead.Phone != "" {
		promptText.WriteString(fmt.Sprintf("Phone: %s\n", lead.Phone))
	}
	if lead.Interest != "" {
		promptText.WriteString(fmt.Sprintf("Interest: %s\n", lead.Interest))
	}
	if lead.Budget > 0 {
		promptText.WriteString(fmt.Sprintf("Budget: $%d\n", lead.Budget/100))
	}
	if lead.Area != "" {
		promptText.WriteString(fmt.Sprintf("Area: %s\n", lead.Area))
	}
	if lead.LastContactedAt != nil {
		promptText.WriteString(fmt.Sprintf("Last Contacted: %s\n", lead.LastContactedAt.Format("2006-01-02")))
	}

	if len(events) > 0 {
		promptText.WriteString(fmt.Sprintf("\nScheduled events: %d\n", len(events)))
		for _, ev := range events {
			promptText.WriteString(fmt.Sprintf("  - %s: %s\n", ev.Start.Format("2006-01-02 15:04 MST"), ev.Title))
		}
	}
	if len(activity) > 0 {
		promptText.WriteString("\nRecent activity:\n")
		for _, a := range activity {
			promptText.WriteString(fmt.Sprintf("  - %s %s %s %s\n", a.CreatedAt.Format("2006-01-02"), a.Actor, a.Verb, a.ObjectKind))
		}
	}
	if lead.Notes != "" {
		promptText.WriteString(fmt.Sprintf("\nNotes: %s\n", lead.Notes))
	}

	promptText.WriteString("\nPlease analyze this lead and provide:")
	promptText.WriteString("\n1. Where they are in the buying or selling process")
	promptText.WriteString("\n2. Recommended next steps, including what to schedule")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Summary for lead: %s", lead.Name),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *PromptHandlers) getFollowUpSuggestionsPrompt(args map[string]string) (*mcp.GetPromptResult, error) {
	days := 14
	if d, ok := args["days_since_contact"]; ok && d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid days_since_contact: %s", d)
		}
		days = n
	}

	all, err := db.ListLeads(h.db, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	now := h.now()
	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Leads that may need follow-up (no contact in %d+ days):\n\n", days))

	count := 0
	for i := range all {
		lead := &all[i]
		if !leads.IsStale(lead, days, now) {
			continue
		}
		if lead.LastContactedAt == nil {
			promptText.WriteString(fmt.Sprintf("- %s [%s] (never contacted)\n", lead.Name, lead.Status))
		} else {
			promptText.WriteString(fmt.Sprintf("- %s [%s] (%d days)\n", lead.Name, lead.Status, lead.DaysSinceContact(now)))
		}
		count++
	}

	if count == 0 {
		promptText.WriteString("All open leads have been contacted recently.\n")
	}

	promptText.WriteString("\nPlease:")
	promptText.WriteString("\n1. Prioritize which leads to reach out to first")
	promptText.WriteString("\n2. Suggest a call, showing, or meeting to schedule for each")

	return &mcp.GetPromptResult{
		Description: "Follow-up suggestions for leads",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *PromptHandlers) getPipelineReviewPrompt() (*mcp.GetPromptResult, error) {
	all, err := db.ListLeads(h.db, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	statusCount := make(map[string]int)
	statusBudget := make(map[string]int64)
	for _, lead := range all {
		statusCount[lead.Status]++
		statusBudget[lead.Status] += lead.Budget
	}

	var promptText strings.Builder
	promptText.WriteString("Please review the current lead pipeline:\n\n")
	promptText.WriteString(fmt.Sprintf("Total Leads: %d\n\n", len(all)))
	promptText.WriteString("Pipeline by Status:\n")
	for _, status := range models.LeadStatuses {
		promptText.WriteString(fmt.Sprintf("  - %s: %d leads, $%d combined budget\n",
			status, statusCount[status], statusBudget[status]/100))
	}

	promptText.WriteString("\nPlease provide:")
	promptText.WriteString("\n1. Analysis of pipeline health and distribution")
	promptText.WriteString("\n2. Suggestions for moving qualified leads to showings")

	return &mcp.GetPromptResult{
		Description: "Lead pipeline review",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}
