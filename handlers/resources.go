// ABOUTME: MCP resource handlers for exposing lead data
// ABOUTME: Provides read-only access to leads, upcoming events, and the pipeline via leadbook:// URIs
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
)

const resourceScheme = "leadbook://"

type ResourceHandlers struct {
	db     *sql.DB
	viewer models.Viewer
	now    func() time.Time
}

func NewResourceHandlers(database *sql.DB, viewer models.Viewer) *ResourceHandlers {
	return &ResourceHandlers{db: database, viewer: viewer, now: time.Now}
}

// Resources lists the fixed URIs ReadResource serves.
func (h *ResourceHandlers) Resources() []*mcp.Resource {
	return []*mcp.Resource{
		{
			Name:        "leads",
			Title:       "Leads",
			Description: "Every lead visible to you, newest first",
			MIMEType:    "application/json",
			URI:         resourceScheme + "leads",
		},
		{
			Name:        "upcoming_events",
			Title:       "Upcoming Events",
			Description: "Scheduled events starting from now",
			MIMEType:    "application/json",
			URI:         resourceScheme + "events",
		},
		{
			Name:        "pipeline",
			Title:       "Pipeline",
			Description: "Lead counts and budgets by status",
			MIMEType:    "application/json",
			URI:         resourceScheme + "pipeline",
		},
	}
}

// LeadResourceTemplate describes per-lead URIs.
func (h *ResourceHandlers) LeadResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "lead",
		Title:       "Lead",
		Description: "A lead with its scheduled events. URI format: leadbook://leads/{lead_id}",
		MIMEType:    "application/json",
		URITemplate: resourceScheme + "leads/{lead_id}",
	}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	path := strings.TrimPrefix(uri, resourceScheme)
	parts := strings.Split(path, "/")

	switch parts[0] {
	case "leads":
		if len(parts) == 1 {
			return h.readAllLeads()
		}
		return h.readLead(parts[1])

	case "events":
		return h.readUpcomingEvents()

	case "pipeline":
		return h.readPipeline()

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}

func (h *ResourceHandlers) readAllLeads() (*mcp.ReadResourceResult, error) {
	all, err := db.ListLeads(h.db, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	return jsonResource(resourceScheme+"leads", leads.Visible(h.viewer, all))
}

func (h *ResourceHandlers) readLead(idStr string) (*mcp.ReadResourceResult, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid lead ID: %w", err)
	}

	lead, err := db.GetLead(h.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}
	if lead == nil || !leads.CanView(h.viewer, lead) {
		return nil, fmt.Errorf("lead not found: %s", idStr)
	}

	events, err := db.ListEventRecords(h.db, &id, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead events: %w", err)
	}
	if events == nil {
		events = []models.EventRecord{}
	}

	leadData := struct {
		models.Lead
		Events []models.EventRecord `json:"events"`
	}{
		Lead:   *lead,
		Events: events,
	}

	return jsonResource(fmt.Sprintf("%sleads/%s", resourceScheme, idStr), leadData)
}

func (h *ResourceHandlers) readUpcomingEvents() (*mcp.ReadResourceResult, error) {
	records, err := db.ListUpcomingEventRecords(h.db, h.now(), 100)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	if records == nil {
		records = []models.EventRecord{}
	}

	return jsonResource(resourceScheme+"events", records)
}

func (h *ResourceHandlers) readPipeline() (*mcp.ReadResourceResult, error) {
	all, err := db.ListLeads(h.db, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	type statusTotals struct {
		Count  int   `json:"count"`
		Budget int64 `json:"total_budget"`
	}
	pipeline := make(map[string]statusTotals)
	for _, status := range models.LeadStatuses {
		pipeline[status] = statusTotals{}
	}
	for _, lead := range leads.Visible(h.viewer, all) {
		p := pipeline[lead.Status]
		p.Count++
		p.Budget += lead.Budget
		pipeline[lead.Status] = p
	}

	return jsonResource(resourceScheme+"pipeline", pipeline)
}
