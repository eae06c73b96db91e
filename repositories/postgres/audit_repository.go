package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/repositories"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// InsertAuditLog inserts an audit trail entry
func (r *AuditRepository) InsertAuditLog(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, org_id, user_id, action, resource_type, resource_id, outcome, details, session_id, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.OrgID,
		log.UserID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.Outcome,
		log.Details,
		log.SessionID,
		log.IPAddress,
		log.UserAgent,
		log.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// InsertSecurityEvent inserts a security event
func (r *AuditRepository) InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (id, org_id, user_id, kind, severity, details, session_id, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		event.ID,
		event.OrgID,
		event.UserID,
		event.Kind,
		event.Severity,
		event.Details,
		event.SessionID,
		event.IPAddress,
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}

	return nil
}

// ListAuditLogs retrieves audit logs for an organization with pagination
func (r *AuditRepository) ListAuditLogs(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, org_id, user_id, action, resource_type, resource_id, outcome, details, session_id, ip_address, user_agent, timestamp
		FROM audit_logs
		WHERE org_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		err := rows.Scan(
			&log.ID,
			&log.OrgID,
			&log.UserID,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&log.Outcome,
			&log.Details,
			&log.SessionID,
			&log.IPAddress,
			&log.UserAgent,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}

// ListSecurityEvents retrieves security events for an organization with pagination
func (r *AuditRepository) ListSecurityEvents(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, org_id, user_id, kind, severity, details, session_id, ip_address, timestamp
		FROM security_events
		WHERE org_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	var events []*models.SecurityEvent
	for rows.Next() {
		event := &models.SecurityEvent{}
		err := rows.Scan(
			&event.ID,
			&event.OrgID,
			&event.UserID,
			&event.Kind,
			&event.Severity,
			&event.Details,
			&event.SessionID,
			&event.IPAddress,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}
