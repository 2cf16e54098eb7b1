// ABOUTME: Follow-up CLI commands
// ABOUTME: Lists open leads gone quiet and records that a lead was contacted
package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
	"github.com/harperreed/leadbook/viz"
)

// FollowupListCommand lists open leads needing follow-up, longest silence first.
func FollowupListCommand(database *sql.DB, viewer models.Viewer, args []string) error {
	fs := flag.NewFlagSet("leads followups", flag.ExitOnError)
	days := fs.Int("days", viz.StaleAfterDays, "Days without contact before a lead needs follow-up")
	limit := fs.Int("limit", 10, "Maximum number of leads to show")
	_ = fs.Parse(args)

	all, err := db.ListLeads(database, 0)
	if err != nil {
		return fmt.Errorf("failed to list leads: %w", err)
	}

	now := time.Now()
	var due []models.Lead
	for _, lead := range leads.Visible(viewer, all) {
		if leads.IsStale(&lead, *days, now) {
			due = append(due, lead)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].DaysSinceContact(now) > due[j].DaysSinceContact(now)
	})
	if *limit > 0 && len(due) > *limit {
		due = due[:*limit]
	}

	if len(due) == 0 {
		_, _ = fmt.Fprintln(output, "No leads need follow-up")
		return nil
	}

	w := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDAYS SINCE\tSTATUS\tEMAIL\tID")
	_, _ = fmt.Fprintln(w, "----\t----------\t------\t-----\t--")

	for _, lead := range due {
		since := lead.DaysSinceContact(now)
		indicator := "🟡"
		if since > *days*2 {
			indicator = "🔴"
		}

		_, _ = fmt.Fprintf(w, "%s %s\t%d\t%s\t%s\t%s\n",
			indicator, lead.Name, since, lead.Status, dash(lead.Email), lead.ID.String()[:8])
	}

	_ = w.Flush()
	return nil
}

// ContactedCommand records that a lead was just contacted.
func ContactedCommand(database *sql.DB, viewer models.Viewer, args []string) error {
	fs := flag.NewFlagSet("leads contacted", flag.ExitOnError)
	_ = fs.Parse(args)

	if len(fs.Args()) < 1 {
		return fmt.Errorf("lead ID is required")
	}

	lead, err := resolveLead(database, fs.Args()[0])
	if err != nil {
		return err
	}
	if !leads.CanView(viewer, lead) {
		return fmt.Errorf("lead not found: %s", fs.Args()[0])
	}

	now := time.Now()
	if err := db.TouchLeadContacted(database, lead.ID, now); err != nil {
		return fmt.Errorf("failed to record contact: %w", err)
	}

	if lead.Status == models.LeadStatusNew {
		if err := leads.TransitionStatus(lead, models.LeadStatusContacted, now); err != nil {
			return err
		}
		if err := db.UpdateLead(database, lead.ID, lead); err != nil {
			return fmt.Errorf("failed to update lead: %w", err)
		}
		if err := logLeadActivity(database, viewer, lead, models.VerbUpdated, map[string]interface{}{"fields": []string{"status"}}); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(output, "✓ Logged contact with %s\n", lead.Name)
	return nil
}
