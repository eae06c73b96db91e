package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evercare/agency-erp/models"
)

// TransactionManager manages database transactions.
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Automatically commits if function succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// AttributeRepository exposes a user's dynamic facts: active
// attributes, caseload membership, shift assignment, and family portal
// grants. All lookups are point reads evaluated against shared
// persistent state; writes are append-only.
type AttributeRepository interface {
	// ActiveAttributes retrieves the user's attributes that are flagged
	// active and not past expiry at the given instant.
	ActiveAttributes(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.UserAttribute, error)

	// InsertAttributes appends a batch of attribute rows. Callers that
	// need the batch to be atomic run it inside a transaction.
	InsertAttributes(ctx context.Context, attrs []*models.UserAttribute) error

	// HasActiveCaseload reports whether the user has an active caseload
	// row for the client.
	HasActiveCaseload(ctx context.Context, userID, clientID uuid.UUID) (bool, error)

	// ShiftCaregiver retrieves the caregiver assigned to a shift.
	ShiftCaregiver(ctx context.Context, shiftID uuid.UUID) (uuid.UUID, error)

	// FamilyClientIDs retrieves the client IDs the user may view
	// through family portal grants.
	FamilyClientIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// PermitRepository exposes time-bounded emergency permits. Permits are
// append-only; expiry is the only lifecycle transition.
type PermitRepository interface {
	// ActiveBreakGlassPermit retrieves the unexpired break-glass permit
	// for (user, client), or nil when none exists.
	ActiveBreakGlassPermit(ctx context.Context, userID, clientID uuid.UUID, now time.Time) (*models.BreakGlassPermit, error)

	// CreatePermit appends a break-glass permit.
	CreatePermit(ctx context.Context, permit *models.BreakGlassPermit) error

	// CreateIncident opens a security incident record.
	CreateIncident(ctx context.Context, incident *models.SecurityIncident) error
}

// AuditRepository persists audit and security events.
type AuditRepository interface {
	// InsertAuditLog inserts an audit trail entry
	InsertAuditLog(ctx context.Context, log *models.AuditLog) error

	// InsertSecurityEvent inserts a security event
	InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error

	// ListAuditLogs retrieves audit logs for an organization with pagination
	ListAuditLogs(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)

	// ListSecurityEvents retrieves security events for an organization with pagination
	ListSecurityEvents(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error)
}

// UserRepository handles user data operations
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users      UserRepository
	Attributes AttributeRepository
	Permits    PermitRepository
	AuditLogs  AuditRepository
}
