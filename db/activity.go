// ABOUTME: Lead activity timeline database operations
// ABOUTME: Records who created, updated, or scheduled something for a lead
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/leadbook/models"
)

func LogActivity(db *sql.DB, activity *models.Activity) error {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}

	var metadata *string
	if len(activity.Metadata) > 0 {
		data, err := json.Marshal(activity.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		s := string(data)
		metadata = &s
	}

	_, err := db.Exec(`
		INSERT INTO lead_activity (id, lead_id, actor, verb, object_kind, object_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, activity.ID.String(), activity.LeadID.String(), activity.Actor, string(activity.Verb),
		activity.ObjectKind, activity.ObjectID, metadata, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	return nil
}

// ListLeadActivity returns the newest activity entries for a lead.
func ListLeadActivity(db *sql.DB, leadID uuid.UUID, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, lead_id, actor, verb, object_kind, object_id, metadata, created_at
		FROM lead_activity
		WHERE lead_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, leadID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		var verb string
		var metadata sql.NullString

		if err := rows.Scan(&a.ID, &a.LeadID, &a.Actor, &verb, &a.ObjectKind, &a.ObjectID, &metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Verb = models.ActivityVerb(verb)

		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode activity metadata: %w", err)
			}
		}

		activities = append(activities, a)
	}

	return activities, rows.Err()
}
