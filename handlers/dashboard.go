// ABOUTME: Dashboard and graph MCP handlers
// ABOUTME: Provides lead_dashboard and pipeline_graph tools for agents
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbook/models"
	"github.com/harperreed/leadbook/viz"
)

type DashboardHandlers struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

func NewDashboardHandlers(database *sql.DB, loc *time.Location) *DashboardHandlers {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandlers{db: database, loc: loc, now: time.Now}
}

type LeadDashboardInput struct{}

type StatusCountOutput struct {
	Status string  `json:"status"`
	Count  int     `json:"count"`
	Budget float64 `json:"budget"`
}

type LeadDashboardOutput struct {
	TotalLeads     int                 `json:"total_leads"`
	OpenLeads      int                 `json:"open_leads"`
	NewThisWeek    int                 `json:"new_this_week"`
	ConversionRate float64             `json:"conversion_rate"`
	ByStatus       []StatusCountOutput `json:"by_status"`
	StaleLeads     []viz.StaleLead     `json:"stale_leads,omitempty"`
	Upcoming       []viz.UpcomingEvent `json:"upcoming,omitempty"`
	Rendered       string              `json:"rendered"`
}

func (h *DashboardHandlers) LeadDashboard(_ context.Context, request *mcp.CallToolRequest, input LeadDashboardInput) (*mcp.CallToolResult, LeadDashboardOutput, error) {
	stats, err := viz.GenerateDashboardStats(h.db, h.now())
	if err != nil {
		return nil, LeadDashboardOutput{}, fmt.Errorf("failed to generate dashboard: %w", err)
	}

	output := LeadDashboardOutput{
		TotalLeads:     stats.TotalLeads,
		OpenLeads:      stats.OpenLeads,
		NewThisWeek:    stats.NewThisWeek,
		ConversionRate: stats.ConversionRate,
		ByStatus:       []StatusCountOutput{},
		StaleLeads:     stats.StaleLeads,
		Upcoming:       stats.Upcoming,
		Rendered:       viz.RenderDashboard(stats, h.loc),
	}
	for _, status := range models.LeadStatuses {
		s := stats.ByStatus[status]
		output.ByStatus = append(output.ByStatus, StatusCountOutput{
			Status: status,
			Count:  s.Count,
			Budget: float64(s.Budget) / 100,
		})
	}

	return nil, output, nil
}

type PipelineGraphInput struct{}

type PipelineGraphOutput struct {
	DOTSource string `json:"dot_source"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

func (h *DashboardHandlers) PipelineGraph(ctx context.Context, request *mcp.CallToolRequest, input PipelineGraphInput) (*mcp.CallToolResult, PipelineGraphOutput, error) {
	dot, err := viz.NewGraphGenerator(h.db).GeneratePipelineGraph(ctx)
	if err != nil {
		return nil, PipelineGraphOutput{}, fmt.Errorf("failed to generate graph: %w", err)
	}

	// Count nodes and edges for stats
	nodeCount := strings.Count(dot, "[label=")
	edgeCount := strings.Count(dot, "->")

	return nil, PipelineGraphOutput{
		DOTSource: dot,
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
	}, nil
}
