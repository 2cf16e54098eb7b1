// ABOUTME: Database operations for the calendar_accounts table
// ABOUTME: Tracks which provider account is linked and the last connector error
package db

import (
	"database/sql"
	"fmt"

	"github.com/harperreed/leadbook/models"
)

// GetCalendarAccount retrieves the linkage for a provider.
func GetCalendarAccount(db *sql.DB, provider string) (*models.CalendarAccount, error) {
	var account models.CalendarAccount
	var email, errorMessage sql.NullString
	var linkedAt sql.NullTime

	err := db.QueryRow(`
		SELECT provider, account_email, status, error_message, linked_at, created_at, updated_at
		FROM calendar_accounts
		WHERE provider = ?
	`, provider).Scan(
		&account.Provider,
		&email,
		&account.Status,
		&errorMessage,
		&linkedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar account: %w", err)
	}

	account.AccountEmail = email.String
	if errorMessage.Valid {
		account.ErrorMessage = &errorMessage.String
	}
	if linkedAt.Valid {
		account.LinkedAt = &linkedAt.Time
	}

	return &account, nil
}

// LinkCalendarAccount records a successful sign-in.
func LinkCalendarAccount(db *sql.DB, provider, accountEmail string) error {
	_, err := db.Exec(`
		INSERT INTO calendar_accounts (provider, account_email, status, linked_at, created_at, updated_at)
		VALUES (?, ?, 'linked', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(provider) DO UPDATE SET
			account_email = excluded.account_email,
			status = 'linked',
			error_message = NULL,
			linked_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
	`, provider, accountEmail)

	if err != nil {
		return fmt.Errorf("failed to link calendar account: %w", err)
	}

	return nil
}

// UnlinkCalendarAccount clears the stored linkage for a provider.
func UnlinkCalendarAccount(db *sql.DB, provider string) error {
	_, err := db.Exec(`
		INSERT INTO calendar_accounts (provider, status, created_at, updated_at)
		VALUES (?, 'unlinked', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(provider) DO UPDATE SET
			account_email = NULL,
			status = 'unlinked',
			error_message = NULL,
			linked_at = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, provider)

	if err != nil {
		return fmt.Errorf("failed to unlink calendar account: %w", err)
	}

	return nil
}

// UpdateCalendarAccountStatus updates the status and error message for a provider.
func UpdateCalendarAccountStatus(db *sql.DB, provider, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO calendar_accounts (provider, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(provider) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, provider, status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update calendar account status: %w", err)
	}

	return nil
}
