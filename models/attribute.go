package models

import (
	"time"

	"github.com/google/uuid"
)

// Well-known attribute names consulted by the policy engine.
const (
	AttrPodAccess         = "pod_access"
	AttrEmergencyOverride = "emergency_override"
	AttrJITPermission     = "jit_permission"
	AttrBreakGlass        = "break_glass"
)

// UserAttribute is a dynamic fact about a user: pod membership, an
// emergency override window, a JIT-granted permission. Rows are
// append-only; superseding facts are written as new rows and old rows
// age out via ExpiresAt or IsActive.
type UserAttribute struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Name      string     `json:"name" db:"name"`
	Value     string     `json:"value" db:"value"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	GrantedBy *uuid.UUID `json:"granted_by,omitempty" db:"granted_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the UserAttribute model
func (UserAttribute) TableName() string {
	return "user_attributes"
}

// NewUserAttribute creates an active attribute row with no expiry.
func NewUserAttribute(userID uuid.UUID, name, value string) *UserAttribute {
	return &UserAttribute{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Value:     value,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}

// WithExpiry sets the expiry timestamp.
func (a *UserAttribute) WithExpiry(expiresAt time.Time) *UserAttribute {
	a.ExpiresAt = &expiresAt
	return a
}

// WithGrantor records who issued the attribute.
func (a *UserAttribute) WithGrantor(grantedBy uuid.UUID) *UserAttribute {
	a.GrantedBy = &grantedBy
	return a
}

// ActiveAt reports whether the attribute is in force at the given
// instant: flagged active and not past its expiry.
func (a *UserAttribute) ActiveAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}
