// ABOUTME: Role-based lead visibility
// ABOUTME: Admins and managers see every lead; agents see their own
package leads

import (
	"github.com/harperreed/leadbook/models"
)

// CanView reports whether viewer may see lead.
func CanView(viewer models.Viewer, lead *models.Lead) bool {
	if viewer.ID == "" {
		return false
	}
	switch viewer.Role {
	case models.RoleAdmin, models.RoleManager:
		return true
	case models.RoleAgent:
		return lead.AssignedTo == viewer.ID || lead.CreatedBy == viewer.ID
	default:
		return false
	}
}

// CanDelete allows admins and managers to remove leads.
func CanDelete(viewer models.Viewer) bool {
	if viewer.ID == "" {
		return false
	}
	return viewer.Role == models.RoleAdmin || viewer.Role == models.RoleManager
}

// Visible returns the leads viewer may see, preserving order.
func Visible(viewer models.Viewer, leads []models.Lead) []models.Lead {
	out := make([]models.Lead, 0, len(leads))
	for i := range leads {
		if CanView(viewer, &leads[i]) {
			out = append(out, leads[i])
		}
	}
	return out
}

// Apply runs the permission filter, then f, then sorts.
func Apply(viewer models.Viewer, leads []models.Lead, f Filter, s Sort) []models.Lead {
	visible := Visible(viewer, leads)
	out := visible[:0]
	for i := range visible {
		if f.Match(&visible[i]) {
			out = append(out, visible[i])
		}
	}
	SortLeads(out, s)
	return out
}
