package models

import (
	"time"

	"github.com/google/uuid"
)

// EmergencyType categorizes a break-glass activation and selects the
// permission bundle the permit carries.
type EmergencyType string

const (
	EmergencyClientCare      EmergencyType = "client_care_emergency"
	EmergencyMissedVisit     EmergencyType = "missed_visit"
	EmergencyNaturalDisaster EmergencyType = "natural_disaster"
	EmergencySystemOutage    EmergencyType = "system_outage"
)

// EmergencySeverity sets the length of the break-glass window.
type EmergencySeverity string

const (
	SeverityCritical EmergencySeverity = "critical"
	SeverityHigh     EmergencySeverity = "high"
	SeverityMedium   EmergencySeverity = "medium"
	SeverityLow      EmergencySeverity = "low"
)

// BreakGlassPermit is a time-boxed emergency grant of read access to a
// specific client. Permits are never revoked, only time-limited.
type BreakGlassPermit struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	UserID    uuid.UUID         `json:"user_id" db:"user_id"`
	ClientID  uuid.UUID         `json:"client_id" db:"client_id"`
	Reason    string            `json:"reason" db:"reason"`
	Severity  EmergencySeverity `json:"severity" db:"severity"`
	ExpiresAt time.Time         `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the BreakGlassPermit model
func (BreakGlassPermit) TableName() string {
	return "break_glass_permits"
}

// NewBreakGlassPermit creates a permit for (user, client) expiring at
// the given instant.
func NewBreakGlassPermit(userID, clientID uuid.UUID, reason string, severity EmergencySeverity, expiresAt time.Time) *BreakGlassPermit {
	return &BreakGlassPermit{
		ID:        uuid.New(),
		UserID:    userID,
		ClientID:  clientID,
		Reason:    reason,
		Severity:  severity,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

// ActiveAt reports whether the permit is unexpired at the given instant.
func (p *BreakGlassPermit) ActiveAt(now time.Time) bool {
	return p.ExpiresAt.After(now)
}

// EmergencyDeclaration is the caller-supplied description of an
// emergency used to activate break-glass access.
type EmergencyDeclaration struct {
	Type            EmergencyType     `json:"type"`
	Description     string            `json:"description"`
	Severity        EmergencySeverity `json:"severity"`
	AffectedClients []uuid.UUID       `json:"affected_clients,omitempty"`
}

// JITGrant is a time-boxed elevation of a user's permission set,
// requested and approved out of band. It is recorded as one
// jit_permission attribute row per granted permission.
type JITGrant struct {
	ID            uuid.UUID    `json:"id"`
	UserID        uuid.UUID    `json:"user_id"`
	RequestedBy   uuid.UUID    `json:"requested_by"`
	Approver      *uuid.UUID   `json:"approver,omitempty"`
	Permissions   []Permission `json:"permissions"`
	Justification string       `json:"justification"`
	ExpiresAt     time.Time    `json:"expires_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// SecurityIncident records an operational security event that needs
// follow-up, such as a break-glass activation.
type SecurityIncident struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Kind        string     `json:"kind" db:"kind"`
	Severity    string     `json:"severity" db:"severity"`
	Description string     `json:"description" db:"description"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// TableName returns the table name for the SecurityIncident model
func (SecurityIncident) TableName() string {
	return "security_incidents"
}

// NewSecurityIncident opens an incident in the "open" state.
func NewSecurityIncident(userID uuid.UUID, kind, severity, description string) *SecurityIncident {
	return &SecurityIncident{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        kind,
		Severity:    severity,
		Description: description,
		Status:      "open",
		CreatedAt:   time.Now(),
	}
}
