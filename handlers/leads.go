// ABOUTME: Lead MCP tool handlers
// ABOUTME: Implements add_lead, find_leads, update_lead, delete_lead, and list_lead_events tools
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrLeadNotFound = errors.New("lead not found")
	ErrNotPermitted = errors.New("not permitted")
)

type LeadHandlers struct {
	db     *sql.DB
	viewer models.Viewer
	now    func() time.Time
}

// NewLeadHandlers acts on behalf of viewer; its ID is recorded as the actor on every change.
func NewLeadHandlers(database *sql.DB, viewer models.Viewer) *LeadHandlers {
	return &LeadHandlers{db: database, viewer: viewer, now: time.Now}
}

type AddLeadInput struct {
	Name       string  `json:"name" jsonschema:"Lead name (required)"`
	Email      string  `json:"email,omitempty" jsonschema:"Lead email address"`
	Phone      string  `json:"phone,omitempty" jsonschema:"Lead phone number"`
	Source     string  `json:"source,omitempty" jsonschema:"Where the lead came from (zillow, referral, open house...)"`
	Interest   string  `json:"interest,omitempty" jsonschema:"buy, sell, or rent"`
	Budget     float64 `json:"budget,omitempty" jsonschema:"Budget in dollars"`
	Area       string  `json:"area,omitempty" jsonschema:"Neighborhood or area of interest"`
	Notes      string  `json:"notes,omitempty" jsonschema:"Additional notes about the lead"`
	AssignedTo string  `json:"assigned_to,omitempty" jsonschema:"Agent the lead is assigned to (defaults to you)"`
}

type LeadOutput struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	Status          string  `json:"status"`
	Source          string  `json:"source,omitempty"`
	Interest        string  `json:"interest,omitempty"`
	Budget          float64 `json:"budget,omitempty"`
	Area            string  `json:"area,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	AssignedTo      string  `json:"assigned_to,omitempty"`
	LastContactedAt *string `json:"last_contacted_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func (h *LeadHandlers) AddLead(_ context.Context, request *mcp.CallToolRequest, input AddLeadInput) (*mcp.CallToolResult, LeadOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, LeadOutput{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateInterest(input.Interest); err != nil {
		return nil, LeadOutput{}, err
	}

	assignedTo := input.AssignedTo
	if assignedTo == "" {
		assignedTo = h.viewer.ID
	}

	lead := &models.Lead{
		Name:       strings.TrimSpace(input.Name),
		Email:      input.Email,
		Phone:      input.Phone,
		Source:     input.Source,
		Interest:   strings.ToLower(input.Interest),
		Budget:     dollarsToCents(input.Budget),
		Area:       input.Area,
		Notes:      input.Notes,
		AssignedTo: assignedTo,
		CreatedBy:  h.viewer.ID,
	}

	if err := db.CreateLead(h.db, lead); err != nil {
		return nil, LeadOutput{}, fmt.Errorf("failed to create lead: %w", err)
	}

	if err := h.logLeadActivity(lead.ID, models.VerbCreated, nil); err != nil {
		return nil, LeadOutput{}, err
	}

	return nil, leadToOutput(lead), nil
}

type FindLeadsInput struct {
	Query      string  `json:"query,omitempty" jsonschema:"Search text (matches name, email, phone, area, notes)"`
	Status     string  `json:"status,omitempty" jsonschema:"Filter by status (new, contacted, qualified, showing, offer, closed, lost)"`
	Source     string  `json:"source,omitempty" jsonschema:"Filter by source"`
	Interest   string  `json:"interest,omitempty" jsonschema:"Filter by interest (buy, sell, rent)"`
	AssignedTo string  `json:"assigned_to,omitempty" jsonschema:"Filter by assigned agent"`
	MinBudget  float64 `json:"min_budget,omitempty" jsonschema:"Minimum budget in dollars"`
	MaxBudget  float64 `json:"max_budget,omitempty" jsonschema:"Maximum budget in dollars"`
	Sort       string  `json:"sort,omitempty" jsonschema:"Sort field (name, created_at, updated_at, budget, status); prefix with - for descending"`
	Limit      int     `json:"limit,omitempty" jsonschema:"Maximum number of results (default 20)"`
}

type FindLeadsOutput struct {
	Leads []LeadOutput `json:"leads"`
	Total int          `json:"total"`
}

func (h *LeadHandlers) FindLeads(_ context.Context, request *mcp.CallToolRequest, input FindLeadsInput) (*mcp.CallToolResult, FindLeadsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 20
	}

	sortBy := leads.DefaultSort
	if input.Sort != "" {
		s, err := leads.ParseSort(input.Sort)
		if err != nil {
			return nil, FindLeadsOutput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		sortBy = s
	}

	all, err := db.ListLeads(h.db, 0)
	if err != nil {
		return nil, FindLeadsOutput{}, fmt.Errorf("failed to list leads: %w", err)
	}

	filter := leads.Filter{
		Query:      input.Query,
		Status:     input.Status,
		Source:     input.Source,
		Interest:   input.Interest,
		AssignedTo: input.AssignedTo,
		MinBudget:  dollarsToCents(input.MinBudget),
		MaxBudget:  dollarsToCents(input.MaxBudget),
	}
	matched := leads.Apply(h.viewer, all, filter, sortBy)

	total := len(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	result := make([]LeadOutput, len(matched))
	for i := range matched {
		result[i] = leadToOutput(&matched[i])
	}

	return nil, FindLeadsOutput{Leads: result, Total: total}, nil
}

type UpdateLeadInput struct {
	ID         string   `json:"id" jsonschema:"Lead ID (required)"`
	Name       *string  `json:"name,omitempty" jsonschema:"New name"`
	Email      *string  `json:"email,omitempty" jsonschema:"New email"`
	Phone      *string  `json:"phone,omitempty" jsonschema:"New phone"`
	Status     *string  `json:"status,omitempty" jsonschema:"New status"`
	Source     *string  `json:"source,omitempty" jsonschema:"New source"`
	Interest   *string  `json:"interest,omitempty" jsonschema:"New interest (buy, sell, rent)"`
	Budget     *float64 `json:"budget,omitempty" jsonschema:"New budget in dollars"`
	Area       *string  `json:"area,omitempty" jsonschema:"New area"`
	Notes      *string  `json:"notes,omitempty" jsonschema:"New notes"`
	AssignedTo *string  `json:"assigned_to,omitempty" jsonschema:"Reassign to agent"`
}

func (h *LeadHandlers) UpdateLead(_ context.Context, request *mcp.CallToolRequest, input UpdateLeadInput) (*mcp.CallToolResult, LeadOutput, error) {
	lead, err := h.visibleLead(input.ID)
	if err != nil {
		return nil, LeadOutput{}, err
	}

	changed := []string{}
	setString := func(field string, dst *string, v *string) {
		if v != nil && *v != *dst {
			*dst = *v
			changed = append(changed, field)
		}
	}
	setString("name", &lead.Name, input.Name)
	setString("email", &lead.Email, input.Email)
	setString("phone", &lead.Phone, input.Phone)
	setString("source", &lead.Source, input.Source)
	setString("area", &lead.Area, input.Area)
	setString("notes", &lead.Notes, input.Notes)
	setString("assigned_to", &lead.AssignedTo, input.AssignedTo)

	if input.Interest != nil {
		if err := validateInterest(*input.Interest); err != nil {
			return nil, LeadOutput{}, err
		}
		interest := strings.ToLower(*input.Interest)
		setString("interest", &lead.Interest, &interest)
	}
	if input.Budget != nil {
		if budget := dollarsToCents(*input.Budget); budget != lead.Budget {
			lead.Budget = budget
			changed = append(changed, "budget")
		}
	}

	contactedBefore := lead.LastContactedAt
	if input.Status != nil && *input.Status != lead.Status {
		if err := leads.TransitionStatus(lead, strings.ToLower(*input.Status), h.now()); err != nil {
			return nil, LeadOutput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		changed = append(changed, "status")
	}

	if strings.TrimSpace(lead.Name) == "" {
		return nil, LeadOutput{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}

	if err := db.UpdateLead(h.db, lead.ID, lead); err != nil {
		return nil, LeadOutput{}, fmt.Errorf("failed to update lead: %w", err)
	}
	if contactedBefore == nil && lead.LastContactedAt != nil {
		if err := db.TouchLeadContacted(h.db, lead.ID, *lead.LastContactedAt); err != nil {
			return nil, LeadOutput{}, fmt.Errorf("failed to record contact: %w", err)
		}
	}

	if len(changed) > 0 {
		if err := h.logLeadActivity(lead.ID, models.VerbUpdated, map[string]interface{}{"fields": changed}); err != nil {
			return nil, LeadOutput{}, err
		}
	}

	return nil, leadToOutput(lead), nil
}

type DeleteLeadInput struct {
	ID string `json:"id" jsonschema:"Lead ID (required)"`
}

type DeleteLeadOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (h *LeadHandlers) DeleteLead(_ context.Context, request *mcp.CallToolRequest, input DeleteLeadInput) (*mcp.CallToolResult, DeleteLeadOutput, error) {
	if !leads.CanDelete(h.viewer) {
		return nil, DeleteLeadOutput{}, fmt.Errorf("%w: role %q may not delete leads", ErrNotPermitted, h.viewer.Role)
	}

	lead, err := h.visibleLead(input.ID)
	if err != nil {
		return nil, DeleteLeadOutput{}, err
	}

	if err := db.DeleteLead(h.db, lead.ID); err != nil {
		return nil, DeleteLeadOutput{}, fmt.Errorf("failed to delete lead: %w", err)
	}

	return nil, DeleteLeadOutput{ID: lead.ID.String(), Deleted: true}, nil
}

type ListLeadEventsInput struct {
	LeadID string `json:"lead_id" jsonschema:"Lead ID (required)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of events (default 20)"`
}

type EventRecordOutput struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Location        string   `json:"location,omitempty"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	Attendees       []string `json:"attendees,omitempty"`
	Reminders       []int    `json:"reminders,omitempty"`
	LeadID          string   `json:"lead_id,omitempty"`
	ProviderEventID string   `json:"provider_event_id,omitempty"`
}

type ListLeadEventsOutput struct {
	Events []EventRecordOutput `json:"events"`
}

func (h *LeadHandlers) ListLeadEvents(_ context.Context, request *mcp.CallToolRequest, input ListLeadEventsInput) (*mcp.CallToolResult, ListLeadEventsOutput, error) {
	lead, err := h.visibleLead(input.LeadID)
	if err != nil {
		return nil, ListLeadEventsOutput{}, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = 20
	}

	records, err := db.ListEventRecords(h.db, &lead.ID, limit)
	if err != nil {
		return nil, ListLeadEventsOutput{}, fmt.Errorf("failed to list events: %w", err)
	}

	result := make([]EventRecordOutput, len(records))
	for i := range records {
		result[i] = recordToOutput(&records[i])
	}

	return nil, ListLeadEventsOutput{Events: result}, nil
}

// GetLead returns one lead the viewer can see.
func (h *LeadHandlers) GetLead(id string) (LeadOutput, error) {
	lead, err := h.visibleLead(id)
	if err != nil {
		return LeadOutput{}, err
	}
	return leadToOutput(lead), nil
}

// LeadActivity returns the newest timeline entries of a lead the viewer can see.
func (h *LeadHandlers) LeadActivity(id string, limit int) ([]models.Activity, error) {
	lead, err := h.visibleLead(id)
	if err != nil {
		return nil, err
	}

	activity, err := db.ListLeadActivity(h.db, lead.ID, limit)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		activity = []models.Activity{}
	}
	return activity, nil
}

// visibleLead loads a lead and hides it entirely when the viewer may not see it.
func (h *LeadHandlers) visibleLead(idStr string) (*models.Lead, error) {
	if idStr == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id: %v", ErrInvalidInput, err)
	}

	lead, err := db.GetLead(h.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	if lead == nil || !leads.CanView(h.viewer, lead) {
		return nil, fmt.Errorf("%w: %s", ErrLeadNotFound, idStr)
	}

	return lead, nil
}

func (h *LeadHandlers) logLeadActivity(leadID uuid.UUID, verb models.ActivityVerb, metadata map[string]interface{}) error {
	err := db.LogActivity(h.db, &models.Activity{
		LeadID:     leadID,
		Actor:      h.viewer.ID,
		Verb:       verb,
		ObjectKind: models.KindLead,
		ObjectID:   leadID.String(),
		Metadata:   metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

func validateInterest(interest string) error {
	switch strings.ToLower(interest) {
	case "", models.InterestBuy, models.InterestSell, models.InterestRent:
		return nil
	default:
		return fmt.Errorf("%w: interest %q (valid: buy, sell, rent)", ErrInvalidInput, interest)
	}
}

func dollarsToCents(dollars float64) int64 {
	return int64(dollars*100 + 0.5)
}

func leadToOutput(lead *models.Lead) LeadOutput {
	output := LeadOutput{
		ID:         lead.ID.String(),
		Name:       lead.Name,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Status:     lead.Status,
		Source:     lead.Source,
		Interest:   lead.Interest,
		Budget:     float64(lead.Budget) / 100,
		Area:       lead.Area,
		Notes:      lead.Notes,
		AssignedTo: lead.AssignedTo,
		CreatedAt:  lead.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  lead.UpdatedAt.Format(time.RFC3339),
	}

	if lead.LastContactedAt != nil {
		contacted := lead.LastContactedAt.Format(time.RFC3339)
		output.LastContactedAt = &contacted
	}

	return output
}

func recordToOutput(record *models.EventRecord) EventRecordOutput {
	output := EventRecordOutput{
		ID:              record.ID,
		Title:           record.Title,
		Description:     record.Description,
		Location:        record.Location,
		Start:           record.Start.Format(time.RFC3339),
		End:             record.End.Format(time.RFC3339),
		Attendees:       record.Attendees,
		Reminders:       record.Reminders,
		ProviderEventID: record.ProviderEventID,
	}
	if record.LeadID != nil {
		output.LeadID = record.LeadID.String()
	}
	return output
}
