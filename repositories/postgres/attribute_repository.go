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

// AttributeRepository implements the repositories.AttributeRepository interface
type AttributeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAttributeRepository creates a new attribute repository
func NewAttributeRepository(db *DB, logger *zap.Logger) repositories.AttributeRepository {
	return &AttributeRepository{
		db:     db,
		logger: logger,
	}
}

// ActiveAttributes retrieves the user's attributes that are flagged
// active and not past expiry at the given instant.
func (r *AttributeRepository) ActiveAttributes(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.UserAttribute, error) {
	query := `
		SELECT id, user_id, name, value, is_active, expires_at, granted_by, created_at
		FROM user_attributes
		WHERE user_id = $1
			AND is_active = true
			AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query user attributes: %w", err)
	}
	defer rows.Close()

	var attrs []*models.UserAttribute
	for rows.Next() {
		attr := &models.UserAttribute{}
		err := rows.Scan(
			&attr.ID,
			&attr.UserID,
			&attr.Name,
			&attr.Value,
			&attr.IsActive,
			&attr.ExpiresAt,
			&attr.GrantedBy,
			&attr.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user attribute: %w", err)
		}
		attrs = append(attrs, attr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attribute rows: %w", err)
	}

	return attrs, nil
}

// InsertAttributes appends a batch of attribute rows. Runs against the
// transaction in the context when one is present, which is how JIT
// grant batches stay atomic.
func (r *AttributeRepository) InsertAttributes(ctx context.Context, attrs []*models.UserAttribute) error {
	query := `
		INSERT INTO user_attributes (id, user_id, name, value, is_active, expires_at, granted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	executor := GetExecutor(ctx, r.db)
	for _, attr := range attrs {
		_, err := executor.ExecContext(ctx, query,
			attr.ID,
			attr.UserID,
			attr.Name,
			attr.Value,
			attr.IsActive,
			attr.ExpiresAt,
			attr.GrantedBy,
			attr.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user attribute %s: %w", attr.Name, err)
		}
	}

	r.logger.Debug("user attributes inserted", zap.Int("count", len(attrs)))
	return nil
}

// HasActiveCaseload reports whether the user has an active caseload
// row for the client.
func (r *AttributeRepository) HasActiveCaseload(ctx context.Context, userID, clientID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM caseloads
			WHERE user_id = $1 AND client_id = $2 AND active = true
		)
	`

	executor := GetExecutor(ctx, r.db)
	var exists bool
	if err := executor.QueryRowContext(ctx, query, userID, clientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check caseload: %w", err)
	}

	return exists, nil
}

// ShiftCaregiver retrieves the caregiver assigned to a shift.
func (r *AttributeRepository) ShiftCaregiver(ctx context.Context, shiftID uuid.UUID) (uuid.UUID, error) {
	query := `SELECT caregiver_id FROM shifts WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	var caregiverID uuid.UUID
	err := executor.QueryRowContext(ctx, query, shiftID).Scan(&caregiverID)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, fmt.Errorf("shift not found: %s", shiftID)
		}
		return uuid.Nil, fmt.Errorf("failed to get shift caregiver: %w", err)
	}

	return caregiverID, nil
}

// FamilyClientIDs retrieves the client IDs the user may view through
// family portal grants.
func (r *AttributeRepository) FamilyClientIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT client_id FROM family_links
		WHERE user_id = $1 AND active = true
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family links: %w", err)
	}
	defer rows.Close()

	var clientIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan family link: %w", err)
		}
		clientIDs = append(clientIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating family link rows: %w", err)
	}

	return clientIDs, nil
}
