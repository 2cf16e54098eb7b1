// ABOUTME: Lead list ordering
// ABOUTME: Stable sorts on name, dates, budget, or pipeline position
package leads

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harperreed/leadbook/models"
)

const (
	SortName      = "name"
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortBudget    = "budget"
	SortStatus    = "status"
)

// SortFields lists the accepted sort keys.
var SortFields = []string{SortName, SortCreatedAt, SortUpdatedAt, SortBudget, SortStatus}

type Sort struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// DefaultSort shows the newest leads first.
var DefaultSort = Sort{Field: SortCreatedAt, Desc: true}

// ParseSort reads "field" or "-field" (descending). Empty input yields DefaultSort.
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSort, nil
	}

	desc := strings.HasPrefix(s, "-")
	field := strings.TrimPrefix(s, "-")
	for _, f := range SortFields {
		if f == field {
			return Sort{Field: field, Desc: desc}, nil
		}
	}
	return Sort{}, fmt.Errorf("unknown sort field: %s", field)
}

func (s Sort) String() string {
	if s.Desc {
		return "-" + s.Field
	}
	return s.Field
}

func statusRank(status string) int {
	for i, st := range models.LeadStatuses {
		if st == status {
			return i
		}
	}
	return len(models.LeadStatuses)
}

// compare returns <0, 0, >0 in ascending order for the sort field.
func (s Sort) compare(a, b *models.Lead) int {
	switch s.Field {
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case SortBudget:
		switch {
		case a.Budget < b.Budget:
			return -1
		case a.Budget > b.Budget:
			return 1
		}
		return 0
	case SortStatus:
		return statusRank(a.Status) - statusRank(b.Status)
	default:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
}

// SortLeads orders leads in place. Ties fall back to name, ascending.
func SortLeads(leads []models.Lead, s Sort) {
	sort.SliceStable(leads, func(i, j int) bool {
		c := s.compare(&leads[i], &leads[j])
		if c == 0 {
			return strings.ToLower(leads[i].Name) < strings.ToLower(leads[j].Name)
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}
