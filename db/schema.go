// ABOUTME: Database schema definitions and numbered migrations
// ABOUTME: Handles SQLite table creation, schema versioning, and upgrades
package db

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	status TEXT NOT NULL DEFAULT 'new',
	source TEXT,
	interest TEXT,
	budget INTEGER NOT NULL DEFAULT 0,
	area TEXT,
	notes TEXT,
	assigned_to TEXT,
	created_by TEXT,
	last_contacted_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_assigned_to ON leads(assigned_to);
CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);

CREATE TABLE IF NOT EXISTS event_records (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	start_at DATETIME NOT NULL,
	end_at DATETIME NOT NULL,
	attendees TEXT NOT NULL DEFAULT '[]',
	reminders TEXT NOT NULL DEFAULT '[]',
	lead_id TEXT,
	provider_event_id TEXT,
	created_by TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (lead_id) REFERENCES leads(id)
);

CREATE INDEX IF NOT EXISTS idx_event_records_lead_id ON event_records(lead_id);
CREATE INDEX IF NOT EXISTS idx_event_records_start ON event_records(start_at);

CREATE TABLE IF NOT EXISTS lead_activity (
	id TEXT PRIMARY KEY,
	lead_id TEXT NOT NULL,
	actor TEXT NOT NULL,
	verb TEXT NOT NULL CHECK(verb IN ('created', 'updated', 'scheduled', 'rescheduled')),
	object_kind TEXT NOT NULL,
	object_id TEXT NOT NULL,
	metadata TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (lead_id) REFERENCES leads(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_lead_activity_lead ON lead_activity(lead_id, created_at DESC);

CREATE TABLE IF NOT EXISTS calendar_accounts (
	provider TEXT PRIMARY KEY,
	account_email TEXT,
	status TEXT NOT NULL CHECK(status IN ('linked', 'unlinked', 'error')),
	error_message TEXT,
	linked_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// migration upgrades databases created by earlier releases.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{
		version: 1,
		name:    "add event location",
		stmt:    `ALTER TABLE event_records ADD COLUMN location TEXT`,
	},
	{
		version: 2,
		name:    "index provider event ids",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_event_records_provider ON event_records(provider_event_id)`,
	},
}

func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := Migrate(db, false)
	return err
}

// Migrate applies pending migrations in order and returns the versions it applied
// (or would apply, when dryRun is set).
func Migrate(db *sql.DB, dryRun bool) ([]int, error) {
	applied := make(map[int]bool)

	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	var pending []int
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		pending = append(pending, m.version)
		if dryRun {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return pending, fmt.Errorf("failed to start migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			_ = tx.Rollback()
			return pending, fmt.Errorf("failed to apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return pending, fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return pending, fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return pending, nil
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}
