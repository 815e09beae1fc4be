package handlers

import "github.com/baticonnect/artisan-backend/internal/models"

// isStaff reports whether the capability tag grants platform-operator
// access.
func isStaff(role string) bool {
	return role == models.RoleAdmin || role == models.RoleZoneReferent
}
