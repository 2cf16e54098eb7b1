// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Summarises the lead pipeline, stale leads, and upcoming scheduled events
package viz

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
)

// StaleAfterDays is how long an open lead can go without contact before it needs attention.
const StaleAfterDays = 14

const upcomingLimit = 5

type DashboardStats struct {
	// Pipeline overview
	ByStatus map[string]PipelineStatusStats

	TotalLeads     int
	OpenLeads      int
	NewThisWeek    int
	ConversionRate float64 // percent of decided leads that closed

	// Needs attention
	StaleLeads []StaleLead

	Upcoming []UpcomingEvent
}

type PipelineStatusStats struct {
	Status string
	Count  int
	Budget int64 // in cents
}

type StaleLead struct {
	ID        string
	Name      string
	DaysSince int
}

type UpcomingEvent struct {
	Title  string
	Start  time.Time
	LeadID string
}

// GenerateDashboardStats computes the dashboard as of now.
func GenerateDashboardStats(database *sql.DB, now time.Time) (*DashboardStats, error) {
	stats := &DashboardStats{
		ByStatus: make(map[string]PipelineStatusStats),
	}

	all, err := db.ListLeads(database, 10000)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	weekAgo := now.AddDate(0, 0, -7)
	for i := range all {
		lead := &all[i]

		status := lead.Status
		if status == "" {
			status = "unknown"
		}
		pstats := stats.ByStatus[status]
		pstats.Status = status
		pstats.Count++
		pstats.Budget += lead.Budget
		stats.ByStatus[status] = pstats

		if lead.IsOpen() {
			stats.OpenLeads++
		}
		if !lead.CreatedAt.Before(weekAgo) {
			stats.NewThisWeek++
		}
		if leads.IsStale(lead, StaleAfterDays, now) {
			stats.StaleLeads = append(stats.StaleLeads, StaleLead{
				ID:        lead.ID.String(),
				Name:      lead.Name,
				DaysSince: lead.DaysSinceContact(now),
			})
		}
	}
	stats.TotalLeads = len(all)

	closed := stats.ByStatus[models.LeadStatusClosed].Count
	lost := stats.ByStatus[models.LeadStatusLost].Count
	if closed+lost > 0 {
		stats.ConversionRate = float64(closed) * 100 / float64(closed+lost)
	}

	records, err := db.ListUpcomingEventRecords(database, now, upcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch upcoming events: %w", err)
	}
	for _, r := range records {
		item := UpcomingEvent{Title: r.Title, Start: r.Start}
		if r.LeadID != nil {
			item.LeadID = r.LeadID.String()
		}
		stats.Upcoming = append(stats.Upcoming, item)
	}

	return stats, nil
}

// RenderDashboard formats stats for the terminal. Event times are shown in loc.
func RenderDashboard(stats *DashboardStats, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var out strings.Builder

	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  LEADBOOK DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	out.WriteString("PIPELINE OVERVIEW\n")
	renderPipeline(&out, stats.ByStatus)
	out.WriteString("\n")

	out.WriteString("STATS\n")
	out.WriteString(fmt.Sprintf("  📇 %d leads  🔥 %d open  🆕 %d this week  ✅ %.0f%% converted\n\n",
		stats.TotalLeads, stats.OpenLeads, stats.NewThisWeek, stats.ConversionRate))

	if len(stats.Upcoming) > 0 {
		out.WriteString("UPCOMING\n")
		for _, ev := range stats.Upcoming {
			out.WriteString(fmt.Sprintf("  📅 %s  %s\n", ev.Start.In(loc).Format("Mon Jan 2 15:04"), ev.Title))
		}
		out.WriteString("\n")
	}

	if len(stats.StaleLeads) > 0 {
		out.WriteString("NEEDS ATTENTION\n")
		out.WriteString(fmt.Sprintf("  ⚠️  %d leads - no contact in %d+ days\n", len(stats.StaleLeads), StaleAfterDays))
	}

	return out.String()
}

func renderPipeline(out *strings.Builder, pipeline map[string]PipelineStatusStats) {
	maxCount := 0
	for _, pstats := range pipeline {
		if pstats.Count > maxCount {
			maxCount = pstats.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, status := range models.LeadStatuses {
		pstats, exists := pipeline[status]
		if !exists {
			continue
		}

		barLength := (pstats.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)

		budgetK := pstats.Budget / 100000

		out.WriteString(fmt.Sprintf("  %-10s %s  %2d ($%dK)\n",
			status, bar, pstats.Count, budgetK))
	}
}
