// ABOUTME: Event record database operations
// ABOUTME: Stores the local index of events scheduled in the external calendar
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/leadbook/models"
)

const eventColumns = `id, title, description, location, start_at, end_at, attendees, reminders, lead_id, provider_event_id, created_by, created_at, updated_at`

// CreateEventRecord inserts a record. The ID is assigned by the caller (the scheduling form
// generates one), CreatedAt/UpdatedAt are filled when zero.
func CreateEventRecord(db *sql.DB, record *models.EventRecord) error {
	if record.ID == "" {
		return fmt.Errorf("event record id is required")
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	attendees, reminders, err := encodeEventLists(record)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO event_records (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Title, record.Description, record.Location, record.Start.UTC(), record.End.UTC(),
		attendees, reminders, nullableUUID(record.LeadID), nullableString(record.ProviderEventID),
		record.CreatedBy, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event record: %w", err)
	}

	return nil
}

func UpdateEventRecord(db *sql.DB, record *models.EventRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}

	attendees, reminders, err := encodeEventLists(record)
	if err != nil {
		return err
	}

	result, err := db.Exec(`
		UPDATE event_records
		SET title = ?, description = ?, location = ?, start_at = ?, end_at = ?, attendees = ?,
			reminders = ?, lead_id = ?, provider_event_id = ?, updated_at = ?
		WHERE id = ?
	`, record.Title, record.Description, record.Location, record.Start.UTC(), record.End.UTC(), attendees,
		reminders, nullableUUID(record.LeadID), nullableString(record.ProviderEventID),
		record.UpdatedAt, record.ID)
	if err != nil {
		return fmt.Errorf("failed to update event record: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("event record not found: %s", record.ID)
	}

	return nil
}

// SaveEventRecord creates the record or updates it when the id already exists.
func SaveEventRecord(db *sql.DB, record *models.EventRecord) error {
	existing, err := GetEventRecord(db, record.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return CreateEventRecord(db, record)
	}
	return UpdateEventRecord(db, record)
}

func GetEventRecord(db *sql.DB, id string) (*models.EventRecord, error) {
	record, err := scanEventRecord(db.QueryRow(`SELECT `+eventColumns+` FROM event_records WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func GetEventRecordByProviderID(db *sql.DB, providerEventID string) (*models.EventRecord, error) {
	record, err := scanEventRecord(db.QueryRow(`
		SELECT `+eventColumns+` FROM event_records WHERE provider_event_id = ?
	`, providerEventID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListEventRecords returns records ordered by start time, optionally limited to one lead.
func ListEventRecords(db *sql.DB, leadID *uuid.UUID, limit int) ([]models.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error

	if leadID != nil {
		rows, err = db.Query(`
			SELECT `+eventColumns+`
			FROM event_records
			WHERE lead_id = ?
			ORDER BY start_at ASC
			LIMIT ?
		`, leadID.String(), limit)
	} else {
		rows, err = db.Query(`
			SELECT `+eventColumns+`
			FROM event_records
			ORDER BY start_at ASC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEventRecords(rows)
}

// ListUpcomingEventRecords returns records starting at or after from.
func ListUpcomingEventRecords(db *sql.DB, from time.Time, limit int) ([]models.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(`
		SELECT `+eventColumns+`
		FROM event_records
		WHERE start_at >= ?
		ORDER BY start_at ASC
		LIMIT ?
	`, from.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEventRecords(rows)
}

func collectEventRecords(rows *sql.Rows) ([]models.EventRecord, error) {
	var records []models.EventRecord
	for rows.Next() {
		record, err := scanEventRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanEventRecord(row rowScanner) (*models.EventRecord, error) {
	var record models.EventRecord
	var description, location, leadID, providerID, createdBy sql.NullString
	var attendees, reminders string

	err := row.Scan(
		&record.ID,
		&record.Title,
		&description,
		&location,
		&record.Start,
		&record.End,
		&attendees,
		&reminders,
		&leadID,
		&providerID,
		&createdBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Description = description.String
	record.Location = location.String
	record.ProviderEventID = providerID.String
	record.CreatedBy = createdBy.String

	if leadID.Valid {
		id, err := uuid.Parse(leadID.String)
		if err == nil {
			record.LeadID = &id
		}
	}

	if err := json.Unmarshal([]byte(attendees), &record.Attendees); err != nil {
		return nil, fmt.Errorf("failed to decode attendees: %w", err)
	}
	if err := json.Unmarshal([]byte(reminders), &record.Reminders); err != nil {
		return nil, fmt.Errorf("failed to decode reminders: %w", err)
	}

	return &record, nil
}

func encodeEventLists(record *models.EventRecord) (string, string, error) {
	attendees := record.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	reminders := record.Reminders
	if reminders == nil {
		reminders = []int{}
	}

	a, err := json.Marshal(attendees)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode attendees: %w", err)
	}
	r, err := json.Marshal(reminders)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode reminders: %w", err)
	}
	return string(a), string(r), nil
}

func nullableUUID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordScheduledEvent saves a record produced by the scheduling form and, when it belongs to a
// lead, adds a scheduled or rescheduled entry to the lead's timeline.
func RecordScheduledEvent(db *sql.DB, record *models.EventRecord, actor string, verb models.ActivityVerb) error {
	if err := SaveEventRecord(db, record); err != nil {
		return err
	}
	if record.LeadID == nil {
		return nil
	}

	return LogActivity(db, &models.Activity{
		LeadID:     *record.LeadID,
		Actor:      actor,
		Verb:       verb,
		ObjectKind: models.KindEvent,
		ObjectID:   record.ID,
		Metadata: map[string]interface{}{
			"title": record.Title,
			"start": record.Start.UTC().Format(time.RFC3339),
		},
	})
}
