// ABOUTME: Migration utility for upgrading leadbook databases created by earlier releases.
// ABOUTME: Backs up the database file, then applies pending numbered migrations with a dry-run mode.

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harperreed/leadbook/config"
	"github.com/harperreed/leadbook/db"
)

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", "", "Path to database file (default: LEADBOOK_DB_PATH or the XDG data path)")
	dryRun := flag.Bool("dry-run", false, "Show pending migrations without applying them")
	backup := flag.Bool("backup", true, "Create backup before migration")
	flag.Parse()

	path := *dbPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		path = cfg.DBPath
	}

	if err := migrate(path, *dryRun, *backup); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}

func migrate(dbPath string, dryRun, createBackup bool) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", dbPath)
	}

	if createBackup && !dryRun {
		backupPath := fmt.Sprintf("%s.backup.%s", dbPath, time.Now().Format("20060102-150405"))
		log.Printf("Creating backup: %s", backupPath)

		input, err := os.ReadFile(dbPath)
		if err != nil {
			return fmt.Errorf("failed to read database: %w", err)
		}

		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("Backup created successfully")
	}

	database, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	tables, err := getCurrentTables(database)
	if err != nil {
		return fmt.Errorf("failed to get current tables: %w", err)
	}
	log.Printf("Current tables: %v", tables)

	if !contains(tables, "leads") {
		return fmt.Errorf("%s is not a leadbook database (no leads table)", dbPath)
	}

	if dryRun {
		if !contains(tables, "schema_migrations") {
			log.Printf("[DRY RUN] - Create missing tables, including schema_migrations")
			log.Printf("[DRY RUN] - Apply every numbered migration")
			return nil
		}
		pending, err := db.Migrate(database, true)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			log.Printf("[DRY RUN] Schema is up to date")
			return nil
		}
		log.Printf("[DRY RUN] Would apply migrations: %v", pending)
		return nil
	}

	before, err := schemaVersion(database, tables)
	if err != nil {
		return err
	}

	// InitSchema creates any missing tables, then applies pending migrations.
	if err := db.InitSchema(database); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	after, err := db.SchemaVersion(database)
	if err != nil {
		return err
	}
	log.Printf("Schema version %d -> %d", before, after)

	return nil
}

func schemaVersion(database *sql.DB, tables []string) (int, error) {
	if !contains(tables, "schema_migrations") {
		return 0, nil
	}
	return db.SchemaVersion(database)
}

func getCurrentTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
