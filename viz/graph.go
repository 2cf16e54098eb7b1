// ABOUTME: Graphviz rendering of the lead pipeline
// ABOUTME: Status stages form a chain, each lead hangs off its stage with its scheduled events
package viz

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/models"
)

type GraphGenerator struct {
	db *sql.DB
}

func NewGraphGenerator(database *sql.DB) *GraphGenerator {
	return &GraphGenerator{db: database}
}

var statusColors = map[string]string{
	models.LeadStatusNew:       "lightgrey",
	models.LeadStatusContacted: "lightblue",
	models.LeadStatusQualified: "lightcyan",
	models.LeadStatusShowing:   "lightyellow",
	models.LeadStatusOffer:     "orange",
	models.LeadStatusClosed:    "lightgreen",
	models.LeadStatusLost:      "pink",
}

// GeneratePipelineGraph renders the pipeline as DOT source.
func (g *GraphGenerator) GeneratePipelineGraph(ctx context.Context) (string, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create graphviz: %w", err)
	}
	defer func() { _ = gv.Close() }()

	graph, err := gv.Graph()
	if err != nil {
		return "", fmt.Errorf("failed to create graph: %w", err)
	}
	defer func() { _ = graph.Close() }()

	graph.SetLabel("Lead Pipeline")
	graph.SetRankDir(cgraph.LRRank)

	all, err := db.ListLeads(g.db, 10000)
	if err != nil {
		return "", fmt.Errorf("failed to fetch leads: %w", err)
	}

	counts := make(map[string]int)
	for _, lead := range all {
		counts[lead.Status]++
	}

	stageNodes := make(map[string]*cgraph.Node)
	var prev *cgraph.Node
	for _, status := range models.LeadStatuses {
		node, err := graph.CreateNodeByName("status_" + status)
		if err != nil {
			return "", fmt.Errorf("failed to create status node: %w", err)
		}
		node.SetLabel(fmt.Sprintf("%s\n(%d)", status, counts[status]))
		node.SetShape("box")
		node.SetStyle("filled")
		node.SetFillColor(statusColors[status])
		stageNodes[status] = node

		// closed and lost are both terminal, so lost branches from offer rather than closed
		if status == models.LeadStatusLost {
			prev = stageNodes[models.LeadStatusOffer]
		}
		if prev != nil {
			edge, err := graph.CreateEdgeByName("next_"+status, prev, node)
			if err != nil {
				return "", fmt.Errorf("failed to create stage edge: %w", err)
			}
			edge.SetStyle("bold")
		}
		prev = node
	}

	leadNodes := make(map[string]*cgraph.Node)
	for _, lead := range all {
		stage, ok := stageNodes[lead.Status]
		if !ok {
			continue
		}
		node, err := graph.CreateNodeByName("lead_" + lead.ID.String()[:8])
		if err != nil {
			return "", fmt.Errorf("failed to create lead node: %w", err)
		}
		label := lead.Name
		if lead.Budget > 0 {
			label = fmt.Sprintf("%s\n$%dK", lead.Name, lead.Budget/100000)
		}
		node.SetLabel(label)
		node.SetShape("ellipse")
		leadNodes[lead.ID.String()] = node

		edge, err := graph.CreateEdgeByName("in_stage", stage, node)
		if err != nil {
			return "", fmt.Errorf("failed to create edge: %w", err)
		}
		edge.SetStyle("dashed")
	}

	records, err := db.ListEventRecords(g.db, nil, 1000)
	if err != nil {
		return "", fmt.Errorf("failed to fetch event records: %w", err)
	}
	for _, r := range records {
		if r.LeadID == nil {
			continue
		}
		leadNode, ok := leadNodes[r.LeadID.String()]
		if !ok {
			continue
		}
		node, err := graph.CreateNodeByName("event_" + r.ID)
		if err != nil {
			return "", fmt.Errorf("failed to create event node: %w", err)
		}
		node.SetLabel(fmt.Sprintf("%s\n%s", r.Title, r.Start.UTC().Format("2006-01-02 15:04")))
		node.SetShape("note")
		edge, err := graph.CreateEdgeByName("scheduled", leadNode, node)
		if err != nil {
			return "", fmt.Errorf("failed to create edge: %w", err)
		}
		edge.SetStyle("dotted")
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("failed to render graph: %w", err)
	}

	return buf.String(), nil
}
