// ABOUTME: Lead database operations
// ABOUTME: Handles CRUD operations, lead lookups, and last-contacted tracking
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/leadbook/models"
)

const leadColumns = `id, name, email, phone, status, source, interest, budget, area, notes, assigned_to, created_by, last_contacted_at, created_at, updated_at`

func CreateLead(db *sql.DB, lead *models.Lead) error {
	lead.ID = uuid.New()
	now := time.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	_, err := db.Exec(`
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, lead.ID.String(), lead.Name, lead.Email, lead.Phone, lead.Status, lead.Source, lead.Interest,
		lead.Budget, lead.Area, lead.Notes, lead.AssignedTo, lead.CreatedBy, lead.LastContactedAt,
		lead.CreatedAt, lead.UpdatedAt)

	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var lead models.Lead
	var email, phone, source, interest, area, notes, assignedTo, createdBy sql.NullString
	var lastContacted sql.NullTime

	err := row.Scan(
		&lead.ID,
		&lead.Name,
		&email,
		&phone,
		&lead.Status,
		&source,
		&interest,
		&lead.Budget,
		&area,
		&notes,
		&assignedTo,
		&createdBy,
		&lastContacted,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.Email = email.String
	lead.Phone = phone.String
	lead.Source = source.String
	lead.Interest = interest.String
	lead.Area = area.String
	lead.Notes = notes.String
	lead.AssignedTo = assignedTo.String
	lead.CreatedBy = createdBy.String
	if lastContacted.Valid {
		lead.LastContactedAt = &lastContacted.Time
	}

	return &lead, nil
}

func GetLead(db *sql.DB, id uuid.UUID) (*models.Lead, error) {
	lead, err := scanLead(db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// ListLeads returns leads newest first. Filtering and permission checks happen in memory
// (see package leads) so every surface applies the same predicates.
func ListLeads(db *sql.DB, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := db.Query(`
		SELECT `+leadColumns+`
		FROM leads
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}

	return leads, rows.Err()
}

func UpdateLead(db *sql.DB, id uuid.UUID, updates *models.Lead) error {
	updates.UpdatedAt = time.Now()

	result, err := db.Exec(`
		UPDATE leads
		SET name = ?, email = ?, phone = ?, status = ?, source = ?, interest = ?, budget = ?,
			area = ?, notes = ?, assigned_to = ?, updated_at = ?
		WHERE id = ?
	`, updates.Name, updates.Email, updates.Phone, updates.Status, updates.Source, updates.Interest,
		updates.Budget, updates.Area, updates.Notes, updates.AssignedTo, updates.UpdatedAt, id.String())
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("lead not found: %s", id)
	}

	return nil
}

// DeleteLead removes a lead and its activity. Scheduled event records are kept and unlinked;
// they still mirror events that exist in the external calendar.
func DeleteLead(db *sql.DB, id uuid.UUID) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Safe even after commit
	}()

	_, err = tx.Exec(`UPDATE event_records SET lead_id = NULL WHERE lead_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to unlink event records: %w", err)
	}

	_, err = tx.Exec(`DELETE FROM lead_activity WHERE lead_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}

	_, err = tx.Exec(`DELETE FROM leads WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}

	return tx.Commit()
}

func TouchLeadContacted(db *sql.DB, leadID uuid.UUID, timestamp time.Time) error {
	_, err := db.Exec(`
		UPDATE leads
		SET last_contacted_at = ?, updated_at = ?
		WHERE id = ?
	`, timestamp, time.Now(), leadID.String())

	return err
}
