// ABOUTME: Interactive and server commands: the TUI, direct scheduling, and the web API
// ABOUTME: Wires config, the calendar connector, and the database into tui and web
package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/adrg/xdg"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/config"
	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/models"
	"github.com/harperreed/leadbook/tui"
	"github.com/harperreed/leadbook/web"
)

// tuiLogger writes to a state file; stderr would draw over the full-screen UI.
func tuiLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	path, err := xdg.StateFile("leadbook/tui.log")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve log path: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

func newTUIModel(database *sql.DB, conn *calendar.Connector, cfg *config.Config, logger *slog.Logger) (tui.Model, error) {
	loc, err := cfg.Location()
	if err != nil {
		return tui.Model{}, err
	}
	return tui.NewModel(database, tui.Options{
		Viewer:    Owner(cfg),
		Scheduler: conn,
		Location:  loc,
		Logger:    logger,
	}), nil
}

// TUICommand opens the full-screen lead browser.
func TUICommand(ctx context.Context, database *sql.DB, conn *calendar.Connector, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	_ = fs.Parse(args)

	logger, closer, err := tuiLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	m, err := newTUIModel(database, conn, cfg, logger)
	if err != nil {
		return err
	}
	return tui.Run(ctx, m)
}

// ScheduleCommand opens the TUI directly on the scheduling form for a lead,
// or on an existing event record when --event is given.
func ScheduleCommand(ctx context.Context, database *sql.DB, conn *calendar.Connector, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	eventID := fs.String("event", "", "Existing event record ID to reschedule")
	_ = fs.Parse(args)

	var existing *models.EventRecord
	if *eventID != "" {
		record, err := db.GetEventRecord(database, *eventID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("event record not found: %s", *eventID)
		}
		existing = record
	}

	var lead *models.Lead
	if fs.NArg() > 0 {
		l, err := resolveLead(database, fs.Arg(0))
		if err != nil {
			return err
		}
		lead = l
	} else if existing == nil {
		return fmt.Errorf("usage: schedule <lead-id> [--event <record-id>]")
	}

	if existing != nil && lead != nil && existing.LeadID != nil && *existing.LeadID != lead.ID {
		return fmt.Errorf("event %s belongs to a different lead", existing.ID)
	}

	logger, closer, err := tuiLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	m, err := newTUIModel(database, conn, cfg, logger)
	if err != nil {
		return err
	}
	return tui.Run(ctx, m.WithSchedule(existing, lead))
}

// WebCommand serves the JSON API until ctx is cancelled.
func WebCommand(ctx context.Context, database *sql.DB, conn *calendar.Connector, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("web", flag.ExitOnError)
	port := fs.Int("port", cfg.WebPort, "Port to listen on")
	_ = fs.Parse(args)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		logger.Warn("LEADBOOK_JWT_SECRET is not set; every API request will be refused")
	}

	server := web.NewServer(database, conn, web.Options{
		Secret:   cfg.JWTSecret,
		Location: loc,
		Logger:   logger,
	})

	_, _ = fmt.Fprintf(output, "Starting web API on http://localhost:%d\n", *port)
	return server.Start(ctx, *port)
}

// WebTokenCommand prints a bearer token for the web API.
func WebTokenCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("web token", flag.ExitOnError)
	user := fs.String("user", cfg.User, "Viewer ID the token names")
	role := fs.String("role", models.RoleAdmin, "Role: admin, manager, or agent")
	ttl := fs.Duration("ttl", 24*time.Hour, "How long the token stays valid")
	_ = fs.Parse(args)

	switch *role {
	case models.RoleAdmin, models.RoleManager, models.RoleAgent:
	default:
		return fmt.Errorf("invalid role %q (valid: admin, manager, agent)", *role)
	}

	token, err := web.IssueToken(cfg.JWTSecret, models.Viewer{ID: *user, Role: *role}, *ttl, time.Now())
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(output, token)
	return nil
}
