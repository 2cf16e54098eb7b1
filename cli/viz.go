// ABOUTME: Visualization CLI commands
// ABOUTME: Prints the pipeline dashboard and writes the pipeline graph
package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/harperreed/leadbook/viz"
)

// DashboardCommand prints the text dashboard.
func DashboardCommand(database *sql.DB, loc *time.Location, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	_ = fs.Parse(args)

	stats, err := viz.GenerateDashboardStats(database, time.Now())
	if err != nil {
		return fmt.Errorf("failed to generate dashboard stats: %w", err)
	}

	_, _ = fmt.Fprint(output, viz.RenderDashboard(stats, loc))
	return nil
}

// GraphCommand generates the lead pipeline graph.
func GraphCommand(ctx context.Context, database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	outFile := fs.String("output", "", "Output file (default: stdout)")
	_ = fs.Parse(args)

	dot, err := viz.NewGraphGenerator(database).GeneratePipelineGraph(ctx)
	if err != nil {
		return err
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(dot), 0644); err != nil {
			return fmt.Errorf("failed to write graph: %w", err)
		}
		_, _ = fmt.Fprintf(output, "✓ Pipeline graph written to %s\n", *outFile)
		return nil
	}

	_, _ = fmt.Fprintln(output, dot)
	return nil
}
