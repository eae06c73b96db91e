package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a staff member, client, or external party known to
// the agency. The role is assigned at creation and never reassigned.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	OrgID     uuid.UUID `json:"org_id" db:"org_id"`
	Role      Role      `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(email string, orgID uuid.UUID, role Role) *User {
	now := time.Now()
	return &User{
		ID:        uuid.New(),
		Email:     email,
		OrgID:     orgID,
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
