// ABOUTME: MCP server subcommand
// ABOUTME: Registers lead, scheduling, dashboard tools plus resources and prompts on stdio
package cli

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/handlers"
	"github.com/harperreed/leadbook/models"
)

// NewMCPServer builds the server with every tool, resource, and prompt registered.
func NewMCPServer(db *sql.DB, conn *calendar.Connector, viewer models.Viewer, loc *time.Location, logger *slog.Logger, version string) *mcp.Server {
	leadHandlers := handlers.NewLeadHandlers(db, viewer)
	eventHandlers := handlers.NewEventHandlers(db, viewer, conn, loc, logger)
	dashboardHandlers := handlers.NewDashboardHandlers(db, loc)
	promptHandlers := handlers.NewPromptHandlers(db)
	resourceHandlers := handlers.NewResourceHandlers(db, viewer)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "leadbook",
		Version: version,
	}, nil)

	// Lead tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_lead",
		Description: "Add a new real-estate lead. Budget is in dollars; interest is buy, sell, or rent",
	}, leadHandlers.AddLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_leads",
		Description: "Search leads by text, status, source, interest, assignee, or budget range, with sorting",
	}, leadHandlers.FindLeads)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_lead",
		Description: "Update a lead's details or move it to another pipeline status",
	}, leadHandlers.UpdateLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_lead",
		Description: "Delete a lead. Its scheduled events stay in the calendar",
	}, leadHandlers.DeleteLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_lead_events",
		Description: "List events scheduled for a lead",
	}, leadHandlers.ListLeadEvents)

	// Calendar tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "schedule_lead_event",
		Description: "Create or reschedule a Google Calendar event for a lead. Requires a connected calendar (run 'leadbook calendar connect')",
	}, eventHandlers.ScheduleLeadEvent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_calendar_events",
		Description: "List upcoming Google Calendar events, linked to leads where known",
	}, eventHandlers.ListCalendarEvents)

	// Dashboard tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "lead_dashboard",
		Description: "Pipeline totals, conversion rate, stale leads, and upcoming events",
	}, dashboardHandlers.LeadDashboard)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "pipeline_graph",
		Description: "Graphviz DOT source of the lead pipeline",
	}, dashboardHandlers.PipelineGraph)

	for _, resource := range resourceHandlers.Resources() {
		server.AddResource(resource, resourceHandlers.ReadResource)
	}
	server.AddResourceTemplate(resourceHandlers.LeadResourceTemplate(), resourceHandlers.ReadResource)

	for _, prompt := range promptHandlers.Prompts() {
		server.AddPrompt(prompt, promptHandlers.GetPrompt)
	}

	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, db *sql.DB, conn *calendar.Connector, viewer models.Viewer, loc *time.Location, logger *slog.Logger, version string) error {
	log.Println("Starting leadbook MCP server...")

	server := NewMCPServer(db, conn, viewer, loc, logger, version)
	return server.Run(ctx, &mcp.StdioTransport{})
}
