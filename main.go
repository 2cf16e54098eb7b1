// ABOUTME: Entry point for the leadbook CLI, TUI, web API, and MCP server
// ABOUTME: Loads config, opens the database, and routes to commands based on arguments
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harperreed/leadbook/cli"
	"github.com/harperreed/leadbook/config"
	"github.com/harperreed/leadbook/db"
)

const version = "0.2.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/leadbook/leadbook.db)")
	initOnly := flag.Bool("init", false, "Initialize database and exit")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("leadbook version %s\n", version)
		os.Exit(0)
	}

	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	args := flag.Args()
	if len(args) == 0 && !*initOnly {
		printUsage()
		os.Exit(0)
	}

	logger := config.NewLogger(cfg.LogLevel)
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if *initOnly {
		log.Printf("Database initialized at %s", cfg.DBPath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := cli.NewConnector(cfg, logger)
	owner := cli.Owner(cfg)

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "mcp":
		if err := cli.MCPCommand(ctx, database, conn, owner, loc, logger, version); err != nil {
			log.Fatalf("MCP server failed: %v", err)
		}

	case "leads":
		runLeads(database, cfg, commandArgs)

	case "calendar":
		if !cfg.HasGoogleCredentials() {
			fmt.Println("Hint: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET (or put them in .env) to use Google Calendar")
		}
		runCalendar(commandArgs, func(sub string, subArgs []string) error {
			switch sub {
			case "connect":
				return cli.CalendarConnectCommand(ctx, database, conn, subArgs)
			case "disconnect":
				return cli.CalendarDisconnectCommand(ctx, database, conn, subArgs)
			case "status":
				return cli.CalendarStatusCommand(ctx, database, conn, subArgs)
			case "events":
				return cli.CalendarEventsCommand(ctx, database, conn, loc, subArgs)
			case "delete-event":
				return cli.CalendarDeleteEventCommand(ctx, database, conn, subArgs)
			case "export":
				return cli.CalendarExportCommand(database, subArgs)
			}
			return errUnknown
		})

	case "schedule":
		if err := cli.ScheduleCommand(ctx, database, conn, cfg, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "tui":
		if err := cli.TUICommand(ctx, database, conn, cfg, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "web":
		if len(commandArgs) > 0 && commandArgs[0] == "token" {
			if err := cli.WebTokenCommand(cfg, commandArgs[1:]); err != nil {
				log.Fatalf("Error: %v", err)
			}
			return
		}
		if err := cli.WebCommand(ctx, database, conn, cfg, logger, commandArgs); err != nil {
			log.Fatalf("Web server failed: %v", err)
		}

	case "dashboard":
		if err := cli.DashboardCommand(database, loc, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "graph":
		if err := cli.GraphCommand(ctx, database, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

var errUnknown = errors.New("unknown subcommand")

func runLeads(database *sql.DB, cfg *config.Config, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: leads requires a subcommand")
		printUsage()
		os.Exit(1)
	}

	loc, _ := cfg.Location()
	owner := cli.Owner(cfg)
	sub, subArgs := args[0], args[1:]

	var err error
	switch sub {
	case "add":
		err = cli.AddLeadCommand(database, owner, subArgs)
	case "list":
		err = cli.ListLeadsCommand(database, owner, subArgs)
	case "update":
		err = cli.UpdateLeadCommand(database, owner, subArgs)
	case "delete":
		err = cli.DeleteLeadCommand(database, owner, subArgs)
	case "show":
		err = cli.ShowLeadCommand(database, owner, loc, subArgs)
	case "followups":
		err = cli.FollowupListCommand(database, owner, subArgs)
	case "contacted":
		err = cli.ContactedCommand(database, owner, subArgs)
	default:
		fmt.Printf("Unknown leads command: %s\n\n", sub)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func runCalendar(args []string, dispatch func(string, []string) error) {
	if len(args) == 0 {
		fmt.Println("Error: calendar requires a subcommand")
		printUsage()
		os.Exit(1)
	}

	err := dispatch(args[0], args[1:])
	if errors.Is(err, errUnknown) {
		fmt.Printf("Unknown calendar command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func printUsage() {
	fmt.Printf(`leadbook v%s - Real estate lead book with Google Calendar scheduling

USAGE:
  leadbook [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Database path (default: ~/.local/share/leadbook/leadbook.db)
  --init                 Initialize database and exit

COMMANDS:
  leads                  Lead management commands
  calendar               Google Calendar commands
  schedule <lead-id>     Open the scheduling form for a lead
  tui                    Full-screen lead browser
  web                    Start the JSON web API
  mcp                    Start MCP server for Claude Desktop
  dashboard              Print the pipeline dashboard
  graph                  Generate the pipeline graph (Graphviz DOT)

LEADS COMMANDS:
  leadbook leads add        Add a new lead
    --name <name>             Lead name (required)
    --email <email>           Email address
    --phone <phone>           Phone number
    --source <source>         Where the lead came from
    --interest <kind>         buy, sell, or rent
    --budget <dollars>        Budget in dollars
    --area <area>             Neighborhood or area
    --notes <notes>           Notes about the lead
    --assign <agent>          Agent to assign (default: you)

  leadbook leads list       List leads
    --query <text>            Search name, email, phone, area, notes
    --status <status>         Filter by status
    --sort <field>            name, created_at, updated_at, budget, status (prefix - for descending)
    --limit <n>               Max results (default: 50)

  leadbook leads update [flags] <id>  Update a lead
    Note: flags must come before the lead ID

  leadbook leads show <id>      Show a lead with its events and activity
  leadbook leads delete <id>    Delete a lead
  leadbook leads followups      List open leads needing follow-up
    --days <n>                    Days without contact (default: 14)
  leadbook leads contacted <id> Record that a lead was contacted

  IDs may be the 8-character prefix printed by list commands.

CALENDAR COMMANDS:
  leadbook calendar connect       Sign in to Google Calendar
  leadbook calendar disconnect    Revoke access and unlink the account
  leadbook calendar status        Show connector state and linked account
  leadbook calendar events        List upcoming calendar events
    --days <n>                      Days ahead (default: 7)
  leadbook calendar delete-event <id>  Delete a calendar event (provider or record ID)
  leadbook calendar export        Export scheduled events as iCalendar
    --lead <id>                     Only events for this lead
    --output <file>                 Output file (default: stdout)

SCHEDULING:
  leadbook schedule <lead-id>     Schedule an event with a lead
    --event <record-id>             Reschedule an existing event instead

WEB API:
  leadbook web                    Serve the API (needs LEADBOOK_JWT_SECRET)
    --port <n>                      Port (default: LEADBOOK_WEB_PORT or 8080)
  leadbook web token              Print a bearer token
    --user <id>                     Viewer ID (default: LEADBOOK_USER)
    --role <role>                   admin, manager, or agent (default: admin)
    --ttl <duration>                Lifetime (default: 24h)

ENVIRONMENT:
  GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_API_KEY
  LEADBOOK_DB_PATH, LEADBOOK_TOKEN_PATH, LEADBOOK_TIMEZONE, LEADBOOK_USER
  LEADBOOK_WEB_PORT, LEADBOOK_JWT_SECRET, LEADBOOK_LOG_LEVEL
  Values may also be set in a .env file in the working directory.

EXAMPLES:
  # Add a lead and schedule a showing
  leadbook leads add --name "Maria Chen" --email maria@example.com --interest buy --budget 650000
  leadbook schedule 3f2a9c1e

  # Who has gone quiet?
  leadbook leads followups

  # Start MCP server for Claude Desktop
  leadbook mcp

`, version)
}
