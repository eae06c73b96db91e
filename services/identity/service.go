package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/repositories"
	"github.com/evercare/agency-erp/services"
)

// SessionInfo is the request metadata attached to a resolved context.
type SessionInfo struct {
	SessionID string
	IPAddress string
	UserAgent string
}

// Config holds resolver tuning knobs.
type Config struct {
	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Resolver assembles the request-scoped UserContext the policy engine
// evaluates: the user row, the role's baseline permissions, and the
// user's attributes active at resolution time.
type Resolver struct {
	users  repositories.UserRepository
	attrs  repositories.AttributeRepository
	logger *zap.Logger
	cfg    Config
}

// NewResolver creates a new identity resolver.
func NewResolver(users repositories.UserRepository, attrs repositories.AttributeRepository, logger *zap.Logger, cfg Config) *Resolver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{
		users:  users,
		attrs:  attrs,
		logger: logger,
		cfg:    cfg,
	}
}

// Resolve builds the UserContext for an authenticated user. Deactivated
// users resolve to an unauthorized error; the caller never sees a
// context for them.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, session SessionInfo) (*models.UserContext, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.ErrUnauthorized
		}
		return nil, services.WrapInternal("failed to load user", err)
	}
	if !user.Active {
		r.logger.Warn("deactivated user attempted access", zap.String("user_id", userID.String()))
		return nil, services.ErrUnauthorized
	}

	attrs, err := r.attrs.ActiveAttributes(ctx, userID, r.cfg.Now())
	if err != nil {
		return nil, services.WrapInternal("failed to load user attributes", err)
	}

	uc := &models.UserContext{
		UserID:         user.ID,
		OrganizationID: user.OrgID,
		Role:           user.Role,
		Permissions:    models.PermissionsForRole(user.Role),
		Attributes:     make([]models.UserAttribute, 0, len(attrs)),
		SessionID:      session.SessionID,
		IPAddress:      session.IPAddress,
		UserAgent:      session.UserAgent,
	}
	for _, attr := range attrs {
		uc.Attributes = append(uc.Attributes, *attr)
	}

	return uc, nil
}
