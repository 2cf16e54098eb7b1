// ABOUTME: Lead list filtering predicates
// ABOUTME: Free-text query plus exact-match and budget range filters
package leads

import (
	"strings"

	"github.com/harperreed/leadbook/models"
)

// Filter selects leads. Zero-valued fields match everything.
type Filter struct {
	Query      string `json:"query,omitempty"`
	Status     string `json:"status,omitempty"`
	Source     string `json:"source,omitempty"`
	Interest   string `json:"interest,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
	MinBudget  int64  `json:"min_budget,omitempty"`
	MaxBudget  int64  `json:"max_budget,omitempty"`
}

// Match reports whether lead satisfies every set field. Query is a case-insensitive
// substring match over name, email, phone, area, and notes.
func (f Filter) Match(lead *models.Lead) bool {
	if f.Status != "" && !strings.EqualFold(lead.Status, f.Status) {
		return false
	}
	if f.Source != "" && !strings.EqualFold(lead.Source, f.Source) {
		return false
	}
	if f.Interest != "" && !strings.EqualFold(lead.Interest, f.Interest) {
		return false
	}
	if f.AssignedTo != "" && lead.AssignedTo != f.AssignedTo {
		return false
	}
	if f.MinBudget > 0 && lead.Budget < f.MinBudget {
		return false
	}
	if f.MaxBudget > 0 && lead.Budget > f.MaxBudget {
		return false
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	if query == "" {
		return true
	}
	for _, field := range []string{lead.Name, lead.Email, lead.Phone, lead.Area, lead.Notes} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (f Filter) IsZero() bool {
	return f == Filter{}
}
