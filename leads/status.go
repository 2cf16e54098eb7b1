// ABOUTME: Lead status transitions and staleness checks
// ABOUTME: Moving a lead out of "new" stamps its last contact time
package leads

import (
	"fmt"
	"time"

	"github.com/harperreed/leadbook/models"
)

// TransitionStatus validates and applies a status change.
func TransitionStatus(lead *models.Lead, newStatus string, now time.Time) error {
	if !models.IsLeadStatus(newStatus) {
		return fmt.Errorf("invalid lead status: %s", newStatus)
	}

	oldStatus := lead.Status
	lead.Status = newStatus

	if oldStatus == models.LeadStatusNew && newStatus != models.LeadStatusNew && lead.LastContactedAt == nil {
		contacted := now
		lead.LastContactedAt = &contacted
	}

	return nil
}

// IsStale reports whether an open lead has gone more than days without contact.
func IsStale(lead *models.Lead, days int, now time.Time) bool {
	if !lead.IsOpen() {
		return false
	}
	return lead.DaysSinceContact(now) > days
}
