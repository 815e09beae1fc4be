package models

import (
	"time"

	"github.com/google/uuid"
)

// Capability tags. Mediator eligibility and high-value dispute routing are
// predicates over the tag plus the escrow total, not a type hierarchy.
const (
	RoleClient       = "client"
	RoleArtisan      = "artisan"
	RoleSupplier     = "supplier"
	RoleAdmin        = "admin"
	RoleZoneReferent = "zone_referent"
)

// ValidRoles lists the accepted capability tags.
var ValidRoles = map[string]struct{}{
	RoleClient:       {},
	RoleArtisan:      {},
	RoleSupplier:     {},
	RoleAdmin:        {},
	RoleZoneReferent: {},
}

// User is a platform account. The Role tag is the capability model: it
// decides what the identity may do, there is no role hierarchy.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Phone        string     `db:"phone" json:"phone"`
	FullName     string     `db:"full_name" json:"full_name"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	Zone         *string    `db:"zone" json:"zone,omitempty"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// CanMediate reports whether the user may be assigned as a mediator at all.
func (u *User) CanMediate() bool {
	return u.Role == RoleAdmin || u.Role == RoleZoneReferent
}
