package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditOutcome records whether the audited action succeeded.
type AuditOutcome string

const (
	OutcomeAllowed AuditOutcome = "allowed"
	OutcomeDenied  AuditOutcome = "denied"
	OutcomeError   AuditOutcome = "error"
)

// AuditLog is an audit trail entry for an access or data action.
// User, organization, and session may all be absent; the sink accepts
// partial context.
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrgID        *uuid.UUID      `json:"org_id,omitempty" db:"org_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Action       string          `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Outcome      AuditOutcome    `json:"outcome" db:"outcome"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	SessionID    string          `json:"session_id,omitempty" db:"session_id"`
	IPAddress    string          `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    string          `json:"user_agent,omitempty" db:"user_agent"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action, resourceType string, outcome AuditOutcome) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		Outcome:      outcome,
		Timestamp:    time.Now(),
	}
}

// WithOrg sets the organization ID
func (a *AuditLog) WithOrg(orgID uuid.UUID) *AuditLog {
	a.OrgID = &orgID
	return a
}

// WithUser sets the acting user ID
func (a *AuditLog) WithUser(userID uuid.UUID) *AuditLog {
	a.UserID = &userID
	return a
}

// WithResource sets the target resource ID
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithSession sets session metadata
func (a *AuditLog) WithSession(sessionID, ipAddress, userAgent string) *AuditLog {
	a.SessionID = sessionID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// SecurityEventKind categorizes security events.
type SecurityEventKind string

const (
	SecurityEventPHIAccessViolation  SecurityEventKind = "phi_access_violation"
	SecurityEventBreakGlassActivated SecurityEventKind = "break_glass_activated"
	SecurityEventPrivilegeEscalation SecurityEventKind = "privilege_escalation"
	SecurityEventSuspiciousActivity  SecurityEventKind = "suspicious_activity"
)

// SecurityEventSeverity ranks security events for triage.
type SecurityEventSeverity string

const (
	SecuritySeverityCritical SecurityEventSeverity = "critical"
	SecuritySeverityHigh     SecurityEventSeverity = "high"
	SecuritySeverityMedium   SecurityEventSeverity = "medium"
	SecuritySeverityLow      SecurityEventSeverity = "low"
)

// SecurityEvent is a high-signal security record: break-glass usage,
// privilege escalations, evaluation faults.
type SecurityEvent struct {
	ID        uuid.UUID             `json:"id" db:"id"`
	OrgID     *uuid.UUID            `json:"org_id,omitempty" db:"org_id"`
	UserID    *uuid.UUID            `json:"user_id,omitempty" db:"user_id"`
	Kind      SecurityEventKind     `json:"kind" db:"kind"`
	Severity  SecurityEventSeverity `json:"severity" db:"severity"`
	Details   json.RawMessage       `json:"details,omitempty" db:"details"`
	SessionID string                `json:"session_id,omitempty" db:"session_id"`
	IPAddress string                `json:"ip_address,omitempty" db:"ip_address"`
	Timestamp time.Time             `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the SecurityEvent model
func (SecurityEvent) TableName() string {
	return "security_events"
}

// NewSecurityEvent creates a new SecurityEvent instance
func NewSecurityEvent(kind SecurityEventKind, severity SecurityEventSeverity) *SecurityEvent {
	return &SecurityEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Severity:  severity,
		Timestamp: time.Now(),
	}
}

// WithOrg sets the organization ID
func (e *SecurityEvent) WithOrg(orgID uuid.UUID) *SecurityEvent {
	e.OrgID = &orgID
	return e
}

// WithUser sets the acting user ID
func (e *SecurityEvent) WithUser(userID uuid.UUID) *SecurityEvent {
	e.UserID = &userID
	return e
}

// WithDetails sets the details
func (e *SecurityEvent) WithDetails(details interface{}) *SecurityEvent {
	if data, err := json.Marshal(details); err == nil {
		e.Details = data
	}
	return e
}

// WithSession sets session metadata
func (e *SecurityEvent) WithSession(sessionID, ipAddress string) *SecurityEvent {
	e.SessionID = sessionID
	e.IPAddress = ipAddress
	return e
}
