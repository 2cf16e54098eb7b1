// ABOUTME: Shared wiring for CLI commands
// ABOUTME: Builds the calendar connector from config and resolves leads from short IDs
package cli

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/config"
	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/models"
)

// output is where commands print; tests swap it for a buffer.
var output io.Writer = os.Stdout

// NewConnector builds the Google-backed connector. The consent flow only opens a browser
// when stdin is an interactive terminal; otherwise it prints the URL.
func NewConnector(cfg *config.Config, logger *slog.Logger) *calendar.Connector {
	var openURL func(string) error
	if term.IsTerminal(int(os.Stdin.Fd())) {
		openURL = calendar.OpenBrowser
	}

	client := calendar.NewGoogleClient(calendar.GoogleClientOptions{
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Tokens:       calendar.NewTokenStore(cfg.TokenPath),
		Consent:      calendar.LoopbackConsent(openURL, os.Stderr),
		Logger:       logger,
	})

	return calendar.NewConnector(client, calendar.Options{
		ClientID: cfg.GoogleClientID,
		APIKey:   cfg.GoogleAPIKey,
		Logger:   logger,
	})
}

// Owner is the viewer for local commands: whoever runs the binary owns the database.
func Owner(cfg *config.Config) models.Viewer {
	return models.Viewer{ID: cfg.User, Role: models.RoleAdmin}
}

// resolveLead accepts a full UUID or the short prefix printed by list commands.
func resolveLead(database *sql.DB, idOrPrefix string) (*models.Lead, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, fmt.Errorf("lead ID is required")
	}

	if id, err := uuid.Parse(idOrPrefix); err == nil {
		lead, err := db.GetLead(database, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get lead: %w", err)
		}
		if lead == nil {
			return nil, fmt.Errorf("lead not found: %s", idOrPrefix)
		}
		return lead, nil
	}

	all, err := db.ListLeads(database, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	var match *models.Lead
	for i := range all {
		if strings.HasPrefix(all[i].ID.String(), strings.ToLower(idOrPrefix)) {
			if match != nil {
				return nil, fmt.Errorf("lead ID prefix %q is ambiguous", idOrPrefix)
			}
			match = &all[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("lead not found: %s", idOrPrefix)
	}
	return match, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatBudget(cents int64) string {
	if cents == 0 {
		return "-"
	}
	return fmt.Sprintf("$%d", cents/100)
}
