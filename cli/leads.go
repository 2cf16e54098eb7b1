// ABOUTME: Lead CLI commands
// ABOUTME: Human-friendly commands for adding, listing, updating, showing, and deleting leads
package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/leads"
	"github.com/harperreed/leadbook/models"
)

// AddLeadCommand adds a new lead.
func AddLeadCommand(database *sql.DB, viewer models.Viewer, args []string) error {
	fs := flag.NewFlagSet("leads add", flag.ExitOnError)
	name := fs.String("name", "", "Lead name (required)")
	email := fs.String("email", "", "Email address")
	phone := fs.String("phone", "", "Phone number")
	source := fs.String("source", "", "Where the lead came from")
	interest := fs.String("interest", "", "buy, sell, or rent")
	budget := fs.Int64("budget", 0, "Budget in dollars")
	area := fs.String("area", "", "Neighborhood or area")
	notes := fs.String("notes", "", "Notes about the lead")
	assign := fs.String("assign", "", "Agent to assign (default: you)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return fmt.Errorf("--name is required")
	}
	if err := validateInterest(*interest); err != nil {
		return err
	}

	assignedTo := *assign
	if assignedTo == "" {
		assignedTo = viewer.ID
	}

	lead := &models.Lead{
		Name:       strings.TrimSpace(*name),
		Email:      *email,
		Phone:      *phone,
		Source:     *source,
		Interest:   strings.ToLower(*interest),
		Budget:     *budget * 100,
		Area:       *area,
		Notes:      *notes,
		AssignedTo: assignedTo,
		CreatedBy:  viewer.ID,
	}

	if err := db.CreateLead(database, lead); err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	if err := logLeadActivity(database, viewer, lead, models.VerbCreated, nil); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(output, "✓ Lead created: %s (ID: %s)\n", lead.Name, lead.ID)
	if lead.Email != "" {
		_, _ = fmt.Fprintf(output, "  Email: %s\n", lead.Email)
	}
	if lead.Budget > 0 {
		_, _ = fmt.Fprintf(output, "  Budget: %s\n", formatBudget(lead.Budget))
	}

	return nil
}

// ListLeadsCommand lists leads with filters and sorting.
func ListLeadsCommand(database *sql.DB, viewer models.Viewer, args []string) error {
	fs := flag.NewFlagSet("leads list", flag.ExitOnError)
	query := fs.String("query", "", "Search name, email, phone, area, notes")
	status := fs.String("status", "", "Filter by status")
	source := fs.String("source", "", "Filter by source")
	interest := fs.String("interest", "", "Filter by interest")
	assigned := fs.String("assigned", "", "Filter by assigned agent")
	minBudget := fs.Int64("min-budget", 0, "Minimum budget in dollars")
	maxBudget := fs.Int64("max-budget", 0, "Maximum budget in dollars")
	sortFlag := fs.String("sort", "-created_at", "Sort field, prefix - for descending")
	limit := fs.Int("limit", 50, "Maximum results")
	_ = fs.Parse(args)

	sortBy, err := leads.ParseSort(*sortFlag)
	if err != nil {
		return err
	}

	all, err := db.ListLeads(database, 0)
	if err != nil {
		return fmt.Errorf("failed to list leads: %w", err)
	}

	filtered := leads.Apply(viewer, all, leads.Filter{
		Query:      *query,
		Status:     *status,
		Source:     *source,
		Interest:   *interest,
		AssignedTo: *assigned,
		MinBudget:  *minBudget * 100,
		MaxBudget:  *maxBudget * 100,
	}, sortBy)

	if len(filtered) == 0 {
		_, _ = fmt.Fprintln(output, "No leads found")
		return nil
	}

	total := len(filtered)
	if *limit > 0 && len(filtered) > *limit {
		filtered = filtered[:*limit]
	}

	w := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSTATUS\tINTEREST\tBUDGET\tAREA\tASSIGNED\tID")
	_, _ = fmt.Fprintln(w, "----\t------\t--------\t------\t----\t--------\t--")

	for _, lead := range filtered {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			lead.Name, lead.Status, dash(lead.Interest), formatBudget(lead.Budget),
			dash(lead.Area), dash(lead.AssignedTo), lead.ID.String()[:8])
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(output, "\nShowing %d of %d lead(s)\n", len(filtered), total)
	return nil
}

// UpdateLeadCommand updates an existing lead.
func UpdateLeadCommand(database *sql.DB, viewer models.Viewer, args []string) error {
	fs := flag.NewFlagSet("leads update", flag.ExitOnError)
	name := fs.String("name", "", "Lead name")
	email := fs.String("email", "", "Email address")
	phone := fs.String("phone", "", "Phone number")
	status := fs.String("status", "", "Pipeline status")
	source := fs.String("source", "", "Lead source")
	interest := fs.String("interest", "", "buy, sell, or rent")
	budget := fs.Int64("budget", -1, "Budget in dollars")
	area := fs.String("area", "", "Neighborhood or area")
	notes := fs.String("notes", "", "Notes about the lead")
	assign := fs.String("assign", "", "Reassign to agent")
	_ = fs.Parse(args)

	// First positional arg is the lead ID
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

	var changed []string
	apply := func(field, v string, dst *string) {
		if v != "" && v != *dst {
			*dst = v
			changed = append(changed, field)
		}
	}
	apply("name", *name, &lead.Name)
	apply("email", *email, &lead.Email)
	apply("phone", *phone, &lead.Phone)
	apply("source", *source, &lead.Source)
	apply("area", *area, &lead.Area)
	apply("notes", *notes, &lead.Notes)
	apply("assigned_to", *assign, &lead.AssignedTo)
	if *interest != "" {
		if err := validateInterest(*interest); err != nil {
			return err
		}
		apply("interest", strings.ToLower(*interest), &lead.Interest)
	}
	if *budget >= 0 && *budget*100 != lead.Budget {
		lead.Budget = *budget * 100
		changed = append(changed, "budget")
	}

	contactedBefore := lead.LastContactedAt
	if *status != "" && *status != lead.Status {
		if err := leads.TransitionStatus(lead, strings.ToLower(*status), time.Now()); err != nil {
			return err
		}
		changed = append(changed, "status")
	}

	if len(changed) == 0 {
		_, _ = fmt.Fprintln(output, "Nothing to update")
		return nil
	}

	if err := db.UpdateLead(database, lead.ID, lead); err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if contactedBefore == nil && lead.LastContactedAt != nil {
		if err := db.TouchLeadContacted(database, lead.ID, *lead.LastContactedAt); err != nil {
			return fmt.Errorf("failed to record contact: %w", err)
		}
	}
	if err := logLeadActivity(database, viewer, lead, models.VerbUpdated, map[string]interface{}{"fields": changed}); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(output, "✓ Lead updated: %s (%s)\n", lead.Name, strings.Join(changed, ", "))
	return nil
}

// DeleteLeadCommand deletes a lead. Its scheduled events stay in the calendar.
func DeleteLeadCommand(database *sql.DB, viewer models.Viewer, args []string) error {
	fs := flag.NewFlagSet("leads delete", flag.ExitOnError)
	_ = fs.Parse(args)

	if len(fs.Args()) < 1 {
		return fmt.Errorf("lead ID is required")
	}
	if !leads.CanDelete(viewer) {
		return fmt.Errorf("role %q may not delete leads", viewer.Role)
	}

	lead, err := resolveLead(database, fs.Args()[0])
	if err != nil {
		return err
	}

	if err := db.DeleteLead(database, lead.ID); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}

	_, _ = fmt.Fprintf(output, "✓ Lead deleted: %s\n", lead.Name)
	return nil
}

// ShowLeadCommand prints a lead with its events and recent activity.
func ShowLeadCommand(database *sql.DB, viewer models.Viewer, loc *time.Location, args []string) error {
	fs := flag.NewFlagSet("leads show", flag.ExitOnError)
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

	events, err := db.ListEventRecords(database, &lead.ID, 50)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	activity, err := db.ListLeadActivity(database, lead.ID, 10)
	if err != nil {
		return fmt.Errorf("failed to list activity: %w", err)
	}

	_, _ = fmt.Fprintf(output, "%s  [%s]\n", lead.Name, lead.Status)
	_, _ = fmt.Fprintf(output, "  ID:        %s\n", lead.ID)
	_, _ = fmt.Fprintf(output, "  Email:     %s\n", dash(lead.Email))
	_, _ = fmt.Fprintf(output, "  Phone:     %s\n", dash(lead.Phone))
	_, _ = fmt.Fprintf(output, "  Interest:  %s\n", dash(lead.Interest))
	_, _ = fmt.Fprintf(output, "  Budget:    %s\n", formatBudget(lead.Budget))
	_, _ = fmt.Fprintf(output, "  Area:      %s\n", dash(lead.Area))
	_, _ = fmt.Fprintf(output, "  Source:    %s\n", dash(lead.Source))
	_, _ = fmt.Fprintf(output, "  Assigned:  %s\n", dash(lead.AssignedTo))
	if lead.LastContactedAt != nil {
		_, _ = fmt.Fprintf(output, "  Contacted: %s\n", lead.LastContactedAt.In(loc).Format("2006-01-02"))
	}
	if lead.Notes != "" {
		_, _ = fmt.Fprintf(output, "  Notes:     %s\n", lead.Notes)
	}

	if len(events) > 0 {
		_, _ = fmt.Fprintln(output, "\nEVENTS")
		w := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
		for _, ev := range events {
			_, _ = fmt.Fprintf(w, "  %s\t%s–%s\t%s\t%s\n",
				ev.Start.In(loc).Format("Mon Jan 2"), ev.Start.In(loc).Format("15:04"),
				ev.End.In(loc).Format("15:04"), ev.Title, ev.ID)
		}
		_ = w.Flush()
	}

	if len(activity) > 0 {
		_, _ = fmt.Fprintln(output, "\nACTIVITY")
		for _, a := range activity {
			_, _ = fmt.Fprintf(output, "  %s  %s %s %s\n",
				a.CreatedAt.In(loc).Format("2006-01-02 15:04"), a.Actor, a.Verb, a.ObjectKind)
		}
	}

	return nil
}

func logLeadActivity(database *sql.DB, viewer models.Viewer, lead *models.Lead, verb models.ActivityVerb, metadata map[string]interface{}) error {
	err := db.LogActivity(database, &models.Activity{
		LeadID:     lead.ID,
		Actor:      viewer.ID,
		Verb:       verb,
		ObjectKind: models.KindLead,
		ObjectID:   lead.ID.String(),
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
		return fmt.Errorf("invalid interest: %s (valid: buy, sell, rent)", interest)
	}
}
