package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/services/audit"
)

// AttributeStore is the engine's read surface for caseload, shift
// assignment, and family portal facts.
type AttributeStore interface {
	HasActiveCaseload(ctx context.Context, userID, clientID uuid.UUID) (bool, error)
	ShiftCaregiver(ctx context.Context, shiftID uuid.UUID) (uuid.UUID, error)
	FamilyClientIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// PermitStore is the engine's read surface for break-glass permits.
type PermitStore interface {
	ActiveBreakGlassPermit(ctx context.Context, userID, clientID uuid.UUID, now time.Time) (*models.BreakGlassPermit, error)
}

// Config holds engine tuning knobs.
type Config struct {
	// Location is the timezone the business-hours window is evaluated
	// in. The window is deliberately not server-local.
	Location *time.Location

	// BusinessHoursStart/End bound the window for sensitive actions,
	// as local hours [start, end).
	BusinessHoursStart int
	BusinessHoursEnd   int

	// LookupTimeout bounds each evaluation's store lookups. A timeout
	// is an evaluation fault, not a hang.
	LookupTimeout time.Duration

	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Location:           time.UTC,
		BusinessHoursStart: 6,
		BusinessHoursEnd:   22,
		LookupTimeout:      3 * time.Second,
		Now:                time.Now,
	}
}

// Engine evaluates access requests: an RBAC check against the role
// permission table, then a fixed, ordered chain of attribute rules,
// short-circuiting on the first denial. A decision is a pure function
// of (UserContext, AccessRequest, clock, persisted state); the engine
// itself holds no mutable state and may be invoked concurrently.
type Engine struct {
	attrs   AttributeStore
	permits PermitStore
	sink    audit.Sink
	logger  *zap.Logger
	cfg     Config
	rules   []rule
}

// NewEngine creates a new policy engine.
func NewEngine(attrs AttributeStore, permits PermitStore, sink audit.Sink, logger *zap.Logger, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.BusinessHoursStart == 0 && cfg.BusinessHoursEnd == 0 {
		cfg.BusinessHoursStart = def.BusinessHoursStart
		cfg.BusinessHoursEnd = def.BusinessHoursEnd
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = def.LookupTimeout
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}

	e := &Engine{
		attrs:   attrs,
		permits: permits,
		sink:    sink,
		logger:  logger,
		cfg:     cfg,
	}

	// Fixed evaluation order. Each guard is the narrowest applicable
	// check; later guards assume earlier ones passed.
	e.rules = []rule{
		&caseloadRule{engine: e},
		&podRule{},
		&assignmentRule{engine: e},
		&familyRule{engine: e},
		&classificationRule{},
		&separationOfDutiesRule{},
		&timeOfDayRule{engine: e},
		&locationRule{},
	}

	return e
}

// EvaluateAccess evaluates an access request and returns a decision.
// It never returns an error: any internal fault is converted to a
// fail-closed denial with classification CONFIDENTIAL.
func (e *Engine) EvaluateAccess(ctx context.Context, user *models.UserContext, req *models.AccessRequest) (decision models.AccessDecision) {
	defer func() {
		if p := recover(); p != nil {
			decision = e.failClosed(user, req, fmt.Errorf("panic during evaluation: %v", p))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.LookupTimeout)
	defer cancel()

	d, err := e.evaluate(ctx, user, req)
	if err != nil {
		return e.failClosed(user, req, err)
	}
	return d
}

func (e *Engine) evaluate(ctx context.Context, user *models.UserContext, req *models.AccessRequest) (models.AccessDecision, error) {
	if user == nil || req == nil {
		return models.AccessDecision{}, fmt.Errorf("malformed access request")
	}

	now := e.cfg.Now()
	effective := e.effectivePermissions(user, now)

	// RBAC first: the baseline gate every request must clear.
	if !effective.Has(req.Action) {
		e.logger.Debug("rbac denial",
			zap.String("user_id", user.UserID.String()),
			zap.String("role", string(user.Role)),
			zap.String("action", string(req.Action)))
		return models.AccessDecision{
			Allowed:            false,
			Reason:             fmt.Sprintf("Role %s does not include permission %s", user.Role, req.Action),
			AuditRequired:      true,
			DataClassification: req.Classification(),
		}, nil
	}

	eval := evaluation{
		user:        user,
		req:         req,
		now:         now,
		permissions: effective,
	}

	var conditions []string
	forceAudit := false

	for _, r := range e.rules {
		outcome, err := r.Evaluate(ctx, &eval)
		if err != nil {
			return models.AccessDecision{}, fmt.Errorf("rule %s: %w", r.Name(), err)
		}
		if !outcome.allowed {
			classification := req.Classification()
			if outcome.classification != "" {
				classification = outcome.classification
			}
			return models.AccessDecision{
				Allowed:            false,
				Reason:             outcome.reason,
				AuditRequired:      true,
				DataClassification: classification,
			}, nil
		}
		conditions = append(conditions, outcome.conditions...)
		if outcome.auditRequired {
			forceAudit = true
		}
		if outcome.reason != "" {
			eval.allowReason = outcome.reason
		}
	}

	reason := eval.allowReason
	if reason == "" {
		reason = "Access granted"
	}

	return models.AccessDecision{
		Allowed:            true,
		Reason:             reason,
		Conditions:         conditions,
		AuditRequired:      forceAudit || e.isAuditedAction(req.Action) || req.Classification() == models.ClassificationPHI,
		DataClassification: req.Classification(),
	}, nil
}

// failClosed converts any evaluation fault into a denial. The engine
// never fails open.
func (e *Engine) failClosed(user *models.UserContext, req *models.AccessRequest, err error) models.AccessDecision {
	e.logger.Error("access evaluation fault", zap.Error(err))

	evctx := audit.EventContext{
		Details: map[string]interface{}{"error": err.Error()},
	}
	if user != nil {
		evctx.UserID = &user.UserID
		evctx.OrgID = &user.OrganizationID
		evctx.SessionID = user.SessionID
		evctx.IPAddress = user.IPAddress
		if req != nil {
			evctx.Details["action"] = string(req.Action)
		}
	}
	e.sink.LogSecurity(models.SecurityEventSuspiciousActivity, models.SecuritySeverityHigh, evctx)

	return models.AccessDecision{
		Allowed:            false,
		Reason:             "Access evaluation failed",
		AuditRequired:      true,
		DataClassification: models.ClassificationConfidential,
	}
}

// effectivePermissions merges the role baseline with active JIT
// permission attributes, making elevation visible to the RBAC check.
func (e *Engine) effectivePermissions(user *models.UserContext, now time.Time) models.PermissionSet {
	effective := make(models.PermissionSet, len(user.Permissions))
	for p := range user.Permissions {
		effective[p] = struct{}{}
	}
	for i := range user.Attributes {
		attr := &user.Attributes[i]
		if attr.Name == models.AttrJITPermission && attr.ActiveAt(now) {
			effective[models.Permission(attr.Value)] = struct{}{}
		}
	}
	return effective
}

// auditedActions are sensitive enough that even an ordinary allow is
// recorded.
var auditedActions = map[models.Permission]struct{}{
	models.PermClientPHIAccess:  {},
	models.PermBillingSubmit:    {},
	models.PermEVVOverride:      {},
	models.PermUserCreate:       {},
	models.PermUserDeactivate:   {},
	models.PermSystemConfig:     {},
	models.PermComplianceManage: {},
}

func (e *Engine) isAuditedAction(p models.Permission) bool {
	_, ok := auditedActions[p]
	return ok
}
