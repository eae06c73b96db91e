package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/repositories"
)

// PermitRepository implements the repositories.PermitRepository interface
type PermitRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPermitRepository creates a new permit repository
func NewPermitRepository(db *DB, logger *zap.Logger) repositories.PermitRepository {
	return &PermitRepository{
		db:     db,
		logger: logger,
	}
}

// ActiveBreakGlassPermit retrieves the unexpired break-glass permit for
// (user, client), or nil when none exists. When multiple permits
// overlap the one expiring last wins.
func (r *PermitRepository) ActiveBreakGlassPermit(ctx context.Context, userID, clientID uuid.UUID, now time.Time) (*models.BreakGlassPermit, error) {
	query := `
		SELECT id, user_id, client_id, reason, severity, expires_at, created_at
		FROM break_glass_permits
		WHERE user_id = $1 AND client_id = $2 AND expires_at > $3
		ORDER BY expires_at DESC
		LIMIT 1
	`

	executor := GetExecutor(ctx, r.db)
	permit := &models.BreakGlassPermit{}

	err := executor.QueryRowContext(ctx, query, userID, clientID, now).Scan(
		&permit.ID,
		&permit.UserID,
		&permit.ClientID,
		&permit.Reason,
		&permit.Severity,
		&permit.ExpiresAt,
		&permit.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get break-glass permit: %w", err)
	}

	return permit, nil
}

// CreatePermit appends a break-glass permit.
func (r *PermitRepository) CreatePermit(ctx context.Context, permit *models.BreakGlassPermit) error {
	query := `
		INSERT INTO break_glass_permits (id, user_id, client_id, reason, severity, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		permit.ID,
		permit.UserID,
		permit.ClientID,
		permit.Reason,
		permit.Severity,
		permit.ExpiresAt,
		permit.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create break-glass permit: %w", err)
	}

	r.logger.Debug("break-glass permit created",
		zap.String("id", permit.ID.String()),
		zap.Time("expires_at", permit.ExpiresAt))
	return nil
}

// CreateIncident opens a security incident record.
func (r *PermitRepository) CreateIncident(ctx context.Context, incident *models.SecurityIncident) error {
	query := `
		INSERT INTO security_incidents (id, user_id, kind, severity, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		incident.ID,
		incident.UserID,
		incident.Kind,
		incident.Severity,
		incident.Description,
		incident.Status,
		incident.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create security incident: %w", err)
	}

	r.logger.Debug("security incident opened", zap.String("id", incident.ID.String()))
	return nil
}
