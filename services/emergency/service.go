package emergency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/repositories"
	"github.com/evercare/agency-erp/services"
	"github.com/evercare/agency-erp/services/audit"
)

// severityWindows maps emergency severity to the length of the
// break-glass window. Windows are short on purpose; a permit that is
// still needed gets re-activated, not extended.
var severityWindows = map[models.EmergencySeverity]time.Duration{
	models.SeverityCritical: 60 * time.Minute,
	models.SeverityHigh:     30 * time.Minute,
	models.SeverityMedium:   15 * time.Minute,
	models.SeverityLow:      5 * time.Minute,
}

// emergencyBundles maps emergency type to the permissions the
// activation conveys for the window.
var emergencyBundles = map[models.EmergencyType][]models.Permission{
	models.EmergencyClientCare: {
		models.PermClientRead, models.PermClientPHIAccess,
		models.PermScheduleRead, models.PermScheduleUpdate,
		models.PermEVVRead, models.PermEVVUpdate,
	},
	models.EmergencyMissedVisit: {
		models.PermClientRead,
		models.PermScheduleRead, models.PermScheduleUpdate,
		models.PermEVVRead, models.PermEVVUpdate,
	},
	models.EmergencyNaturalDisaster: {
		models.PermClientRead, models.PermClientPHIAccess,
		models.PermScheduleRead, models.PermScheduleUpdate,
	},
	models.EmergencySystemOutage: {
		models.PermClientRead,
		models.PermScheduleRead,
		models.PermEVVRead,
	},
}

// Config holds manager tuning knobs.
type Config struct {
	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{Now: time.Now}
}

// Manager issues break-glass permits and JIT permission grants. Every
// grant is written atomically: a partially written grant is treated as
// not issued and the caller must retry.
type Manager struct {
	attrs   repositories.AttributeRepository
	permits repositories.PermitRepository
	txMgr   repositories.TransactionManager
	sink    audit.Sink
	logger  *zap.Logger
	cfg     Config
}

// NewManager creates a new emergency access manager.
func NewManager(attrs repositories.AttributeRepository, permits repositories.PermitRepository, txMgr repositories.TransactionManager, sink audit.Sink, logger *zap.Logger, cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		attrs:   attrs,
		permits: permits,
		txMgr:   txMgr,
		sink:    sink,
		logger:  logger,
		cfg:     cfg,
	}
}

// BreakGlassActivation is the result of a successful activation.
type BreakGlassActivation struct {
	IncidentID  uuid.UUID                  `json:"incident_id"`
	Permits     []*models.BreakGlassPermit `json:"permits"`
	Permissions []models.Permission        `json:"permissions"`
	ExpiresAt   time.Time                  `json:"expires_at"`
}

// ActivateBreakGlass issues a break-glass permit for each affected
// client, opens a security incident, and records the activation as a
// critical security event. The permits and the incident are written in
// one transaction; on any write failure the grant is not issued.
func (m *Manager) ActivateBreakGlass(ctx context.Context, user *models.UserContext, decl models.EmergencyDeclaration) (*BreakGlassActivation, error) {
	window, ok := severityWindows[decl.Severity]
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown emergency severity", nil).
			WithDetail("severity", string(decl.Severity))
	}
	bundle, ok := emergencyBundles[decl.Type]
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown emergency type", nil).
			WithDetail("type", string(decl.Type))
	}
	if decl.Description == "" {
		return nil, services.ErrEmptyJustification
	}
	if len(decl.AffectedClients) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "at least one affected client is required", nil)
	}

	now := m.cfg.Now()
	expiresAt := now.Add(window)

	incident := models.NewSecurityIncident(user.UserID,
		string(models.SecurityEventBreakGlassActivated),
		string(decl.Severity),
		decl.Description)

	permits := make([]*models.BreakGlassPermit, 0, len(decl.AffectedClients))
	for _, clientID := range decl.AffectedClients {
		permits = append(permits, models.NewBreakGlassPermit(user.UserID, clientID, decl.Description, decl.Severity, expiresAt))
	}

	err := m.txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		if err := m.permits.CreateIncident(txCtx, incident); err != nil {
			return err
		}
		for _, permit := range permits {
			if err := m.permits.CreatePermit(txCtx, permit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.logger.Error("break-glass activation not recorded",
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return nil, services.WrapGrantFault("break-glass permit not issued", err)
	}

	m.logger.Warn("break-glass activated",
		zap.String("user_id", user.UserID.String()),
		zap.String("incident_id", incident.ID.String()),
		zap.String("type", string(decl.Type)),
		zap.String("severity", string(decl.Severity)),
		zap.Int("client_count", len(permits)),
		zap.Time("expires_at", expiresAt))

	evctx := audit.EventContext{
		UserID:    &user.UserID,
		OrgID:     &user.OrganizationID,
		SessionID: user.SessionID,
		IPAddress: user.IPAddress,
		UserAgent: user.UserAgent,
		Details: map[string]interface{}{
			"incident_id":  incident.ID.String(),
			"type":         string(decl.Type),
			"severity":     string(decl.Severity),
			"client_count": len(permits),
			"expires_at":   expiresAt,
		},
	}
	m.sink.LogSecurity(models.SecurityEventBreakGlassActivated, models.SecuritySeverityCritical, evctx)
	m.sink.LogAudit("emergency.break_glass.activate", audit.ResourceInfo{Type: "security_incident", ID: &incident.ID}, models.OutcomeAllowed, evctx)

	return &BreakGlassActivation{
		IncidentID:  incident.ID,
		Permits:     permits,
		Permissions: bundle,
		ExpiresAt:   expiresAt,
	}, nil
}

// GrantJITAccess records a just-in-time permission grant as one
// jit_permission attribute row per permission, written atomically. The
// grant elevates the user only until ExpiresAt; nothing is revoked on
// expiry, the rows simply stop matching.
func (m *Manager) GrantJITAccess(ctx context.Context, grant *models.JITGrant) ([]*models.UserAttribute, error) {
	if grant.Justification == "" {
		return nil, services.ErrEmptyJustification
	}
	if len(grant.Permissions) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "at least one permission is required", nil)
	}
	for _, p := range grant.Permissions {
		if !p.Valid() {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown permission", nil).
				WithDetail("permission", string(p))
		}
	}

	now := m.cfg.Now()
	if !grant.ExpiresAt.After(now) {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "grant expiry must be in the future", nil)
	}

	grantor := grant.RequestedBy
	if grant.Approver != nil {
		grantor = *grant.Approver
	}

	attrs := make([]*models.UserAttribute, 0, len(grant.Permissions))
	for _, p := range grant.Permissions {
		attr := models.NewUserAttribute(grant.UserID, models.AttrJITPermission, string(p)).
			WithExpiry(grant.ExpiresAt).
			WithGrantor(grantor)
		attrs = append(attrs, attr)
	}

	err := m.txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		return m.attrs.InsertAttributes(txCtx, attrs)
	})
	if err != nil {
		m.logger.Error("jit grant not recorded",
			zap.String("user_id", grant.UserID.String()),
			zap.Error(err))
		return nil, services.WrapGrantFault("jit grant not issued", err)
	}

	perms := make([]string, 0, len(grant.Permissions))
	for _, p := range grant.Permissions {
		perms = append(perms, string(p))
	}

	m.logger.Info("jit grant issued",
		zap.String("user_id", grant.UserID.String()),
		zap.Strings("permissions", perms),
		zap.Time("expires_at", grant.ExpiresAt))

	evctx := audit.EventContext{
		UserID: &grant.UserID,
		Details: map[string]interface{}{
			"permissions":   perms,
			"requested_by":  grant.RequestedBy.String(),
			"justification": grant.Justification,
			"expires_at":    grant.ExpiresAt,
		},
	}
	if grant.Approver != nil {
		evctx.Details["approver"] = grant.Approver.String()
	}
	m.sink.LogSecurity(models.SecurityEventPrivilegeEscalation, models.SecuritySeverityHigh, evctx)
	m.sink.LogAudit("emergency.jit.grant", audit.ResourceInfo{Type: "user", ID: &grant.UserID}, models.OutcomeAllowed, evctx)

	return attrs, nil
}
