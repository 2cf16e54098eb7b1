// ABOUTME: Calendar CLI commands
// ABOUTME: Connects, disconnects, inspects, lists, deletes, and exports calendar events
package cli

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/models"
)

// CalendarConnectCommand runs the consent flow and records the linked account.
func CalendarConnectCommand(ctx context.Context, database *sql.DB, conn *calendar.Connector, args []string) error {
	fs := flag.NewFlagSet("calendar connect", flag.ExitOnError)
	_ = fs.Parse(args)

	if err := conn.Initialize(ctx); err == nil && conn.IsSignedIn() {
		_, _ = fmt.Fprintln(output, "✓ Google Calendar is already connected")
		return nil
	}

	if !conn.SignIn(ctx) {
		msg := "sign-in was not completed"
		if err := conn.LastError(); err != nil {
			msg = err.Error()
		}
		if err := db.UpdateCalendarAccountStatus(database, calendar.ProviderGoogle, models.AccountStatusError, &msg); err != nil {
			return err
		}
		return fmt.Errorf("calendar sign-in failed: %s", msg)
	}

	email, err := conn.AccountEmail(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(output, "warning: could not read account email: %v\n", err)
	}
	if err := db.LinkCalendarAccount(database, calendar.ProviderGoogle, email); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(output, "✓ Connected Google Calendar %s\n", email)
	return nil
}

// CalendarDisconnectCommand revokes access and clears the stored linkage. Event records stay.
func CalendarDisconnectCommand(ctx context.Context, database *sql.DB, conn *calendar.Connector, args []string) error {
	fs := flag.NewFlagSet("calendar disconnect", flag.ExitOnError)
	_ = fs.Parse(args)

	if err := conn.Disconnect(ctx); err != nil {
		msg := err.Error()
		_ = db.UpdateCalendarAccountStatus(database, calendar.ProviderGoogle, models.AccountStatusError, &msg)
		return fmt.Errorf("failed to disconnect calendar: %w", err)
	}
	if err := db.UnlinkCalendarAccount(database, calendar.ProviderGoogle); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(output, "✓ Google Calendar disconnected")
	return nil
}

// CalendarStatusCommand prints connector state and the stored linkage.
func CalendarStatusCommand(ctx context.Context, database *sql.DB, conn *calendar.Connector, args []string) error {
	fs := flag.NewFlagSet("calendar status", flag.ExitOnError)
	_ = fs.Parse(args)

	initErr := conn.Initialize(ctx)

	account, err := db.GetCalendarAccount(database, calendar.ProviderGoogle)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(output, "Connector: %s\n", conn.State())
	_, _ = fmt.Fprintf(output, "Session:   %s\n", conn.AuthState())
	if initErr != nil {
		var ie *calendar.InitializationError
		if errors.As(initErr, &ie) {
			_, _ = fmt.Fprintf(output, "Failed at: %s\n", ie.Stage)
		}
		_, _ = fmt.Fprintf(output, "Error:     %v\n", initErr)
	}

	if account == nil {
		_, _ = fmt.Fprintln(output, "Account:   never linked")
		return nil
	}
	_, _ = fmt.Fprintf(output, "Account:   %s (%s)\n", dash(account.AccountEmail), account.Status)
	if account.LinkedAt != nil {
		_, _ = fmt.Fprintf(output, "Linked:    %s\n", account.LinkedAt.Format(time.RFC3339))
	}
	if account.ErrorMessage != nil {
		_, _ = fmt.Fprintf(output, "Last error: %s\n", *account.ErrorMessage)
	}

	return nil
}

// CalendarEventsCommand lists upcoming provider events, marking the ones scheduled for leads.
func CalendarEventsCommand(ctx context.Context, database *sql.DB, conn *calendar.Connector, loc *time.Location, args []string) error {
	fs := flag.NewFlagSet("calendar events", flag.ExitOnError)
	days := fs.Int("days", 7, "How many days ahead to list")
	_ = fs.Parse(args)

	now := time.Now()
	events, err := conn.GetEvents(ctx, calendar.ListOptions{
		TimeMin: now,
		TimeMax: now.AddDate(0, 0, *days),
	})
	if err != nil {
		return fmt.Errorf("failed to list calendar events: %w", err)
	}

	if len(events) == 0 {
		_, _ = fmt.Fprintf(output, "No events in the next %d day(s)\n", *days)
		return nil
	}

	w := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tTITLE\tLEAD\tEVENT ID")
	_, _ = fmt.Fprintln(w, "----\t-----\t----\t--------")

	for _, ev := range events {
		leadName := "-"
		record, err := db.GetEventRecordByProviderID(database, ev.ID)
		if err != nil {
			return fmt.Errorf("failed to look up event record: %w", err)
		}
		if record != nil && record.LeadID != nil {
			if lead, err := db.GetLead(database, *record.LeadID); err == nil && lead != nil {
				leadName = lead.Name
			}
		}

		start := ev.Start.DateTime.In(loc)
		_, _ = fmt.Fprintf(w, "%s %s–%s\t%s\t%s\t%s\n",
			start.Format("Mon Jan 2"), start.Format("15:04"), ev.End.DateTime.In(loc).Format("15:04"),
			ev.Title, leadName, ev.ID)
	}
	_ = w.Flush()

	return nil
}

// CalendarDeleteEventCommand deletes a provider event. The local record is left in place.
func CalendarDeleteEventCommand(ctx context.Context, database *sql.DB, conn *calendar.Connector, args []string) error {
	fs := flag.NewFlagSet("calendar delete-event", flag.ExitOnError)
	_ = fs.Parse(args)

	if len(fs.Args()) < 1 {
		return fmt.Errorf("event ID is required")
	}

	// Accept either the provider id or a local record id.
	eventID := fs.Args()[0]
	record, err := db.GetEventRecord(database, eventID)
	if err != nil {
		return err
	}
	if record != nil && record.ProviderEventID != "" {
		eventID = record.ProviderEventID
	}

	if err := conn.DeleteEvent(ctx, eventID); err != nil {
		if calendar.IsNotFound(err) {
			return fmt.Errorf("event %s no longer exists in the calendar", eventID)
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}

	_, _ = fmt.Fprintf(output, "✓ Deleted calendar event %s\n", eventID)
	return nil
}

// CalendarExportCommand writes local event records as an iCalendar file.
func CalendarExportCommand(database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("calendar export", flag.ExitOnError)
	out := fs.String("output", "", "Output file (default: stdout)")
	leadFlag := fs.String("lead", "", "Only events for this lead")
	_ = fs.Parse(args)

	var records []models.EventRecord
	var err error
	if *leadFlag != "" {
		lead, err := resolveLead(database, *leadFlag)
		if err != nil {
			return err
		}
		records, err = db.ListEventRecords(database, &lead.ID, 10000)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
	} else {
		records, err = db.ListEventRecords(database, nil, 10000)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
	}

	data, err := calendar.ExportICS(records, time.Now())
	if err != nil {
		return err
	}

	if *out != "" {
		if err := os.WriteFile(*out, data, 0644); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(output, "✓ Exported %d event(s) to %s\n", len(records), *out)
		return nil
	}

	_, err = output.Write(data)
	return err
}
