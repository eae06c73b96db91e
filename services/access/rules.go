package access

import (
	"context"
	"fmt"
	"time"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/services/audit"
)

// evaluation is the per-call state shared down the rule chain.
type evaluation struct {
	user        *models.UserContext
	req         *models.AccessRequest
	now         time.Time
	permissions models.PermissionSet
	allowReason string
}

// ruleOutcome is the result of one rule. A denial carries the reason
// shown to the caller; an allow may attach conditions, force auditing,
// or override the final reason (break-glass does all three).
type ruleOutcome struct {
	allowed        bool
	reason         string
	conditions     []string
	auditRequired  bool
	classification models.DataClassification
}

func pass() (ruleOutcome, error) {
	return ruleOutcome{allowed: true}, nil
}

func deny(reason string) (ruleOutcome, error) {
	return ruleOutcome{allowed: false, reason: reason}, nil
}

// rule is one step of the ABAC chain.
type rule interface {
	Name() string
	Evaluate(ctx context.Context, eval *evaluation) (ruleOutcome, error)
}

// caseloadRule requires clinical staff to hold an active caseload row
// for the client they are touching. A live break-glass permit
// substitutes for the caseload, but the access is flagged and a
// security event is emitted naming the permit.
type caseloadRule struct {
	engine *Engine
}

func (r *caseloadRule) Name() string { return "caseload" }

func (r *caseloadRule) Evaluate(ctx context.Context, eval *evaluation) (ruleOutcome, error) {
	if eval.req.Resource.Type != models.ResourceClient || !eval.user.Role.IsClinical() {
		return pass()
	}
	if eval.req.Resource.ID == nil {
		return pass()
	}
	clientID := *eval.req.Resource.ID

	onCaseload, err := r.engine.attrs.HasActiveCaseload(ctx, eval.user.UserID, clientID)
	if err != nil {
		return ruleOutcome{}, fmt.Errorf("caseload lookup: %w", err)
	}
	if onCaseload {
		return pass()
	}

	permit, err := r.engine.permits.ActiveBreakGlassPermit(ctx, eval.user.UserID, clientID, eval.now)
	if err != nil {
		return ruleOutcome{}, fmt.Errorf("break-glass lookup: %w", err)
	}
	if permit == nil {
		return ruleOutcome{
			allowed:        false,
			reason:         "Patient not in active caseload",
			classification: models.ClassificationPHI,
		}, nil
	}

	// Break-glass access is allowed but never silent.
	r.engine.sink.LogSecurity(models.SecurityEventPHIAccessViolation, models.SecuritySeverityHigh, audit.EventContext{
		UserID:    &eval.user.UserID,
		OrgID:     &eval.user.OrganizationID,
		SessionID: eval.user.SessionID,
		IPAddress: eval.user.IPAddress,
		Details: map[string]interface{}{
			"break_glass_permit_id": permit.ID.String(),
			"client_id":             clientID.String(),
			"permit_expires_at":     permit.ExpiresAt,
			"action":                string(eval.req.Action),
		},
	})

	return ruleOutcome{
		allowed:       true,
		reason:        "Break-Glass emergency access",
		conditions:    []string{"Access granted under a Break-Glass permit; all actions are recorded"},
		auditRequired: true,
	}, nil
}

// podRule scopes client and shift resources to the user's pods.
// High-level roles bypass pod scoping.
type podRule struct{}

func (r *podRule) Name() string { return "pod" }

func (r *podRule) Evaluate(_ context.Context, eval *evaluation) (ruleOutcome, error) {
	if eval.req.Resource.Type != models.ResourceClient && eval.req.Resource.Type != models.ResourceShift {
		return pass()
	}
	if eval.user.Role.IsHighLevel() {
		return pass()
	}

	podID := eval.req.Resource.Attribute("pod_id")
	if podID == "" {
		return pass()
	}

	for i := range eval.user.Attributes {
		attr := &eval.user.Attributes[i]
		if attr.Name == models.AttrPodAccess && attr.Value == podID && attr.ActiveAt(eval.now) {
			return pass()
		}
	}
	return deny("User does not have access to this pod")
}

// assignmentRule restricts caregivers to shifts assigned to them.
type assignmentRule struct {
	engine *Engine
}

func (r *assignmentRule) Name() string { return "assignment" }

func (r *assignmentRule) Evaluate(ctx context.Context, eval *evaluation) (ruleOutcome, error) {
	if eval.req.Resource.Type != models.ResourceShift || eval.user.Role != models.RoleCaregiver {
		return pass()
	}
	if eval.req.Resource.ID == nil {
		return pass()
	}

	caregiverID, err := r.engine.attrs.ShiftCaregiver(ctx, *eval.req.Resource.ID)
	if err != nil {
		return ruleOutcome{}, fmt.Errorf("shift assignment lookup: %w", err)
	}
	if caregiverID != eval.user.UserID {
		return deny("Caregiver can only access their own shifts")
	}
	return pass()
}

// familyRule restricts family portal users to their linked clients.
type familyRule struct {
	engine *Engine
}

func (r *familyRule) Name() string { return "family" }

func (r *familyRule) Evaluate(ctx context.Context, eval *evaluation) (ruleOutcome, error) {
	if eval.user.Role != models.RoleFamily {
		return pass()
	}
	if eval.req.Resource.Type != models.ResourceClient || eval.req.Resource.ID == nil {
		return pass()
	}

	clientIDs, err := r.engine.attrs.FamilyClientIDs(ctx, eval.user.UserID)
	if err != nil {
		return ruleOutcome{}, fmt.Errorf("family link lookup: %w", err)
	}
	target := *eval.req.Resource.ID
	for _, id := range clientIDs {
		if id == target {
			return pass()
		}
	}
	return deny("Family members can only view clients linked to their account")
}

// classificationRule gates PHI-classified requests on the explicit PHI
// permission. High-level roles bypass the gate.
type classificationRule struct{}

func (r *classificationRule) Name() string { return "data_classification" }

func (r *classificationRule) Evaluate(_ context.Context, eval *evaluation) (ruleOutcome, error) {
	if eval.req.Classification() != models.ClassificationPHI {
		return pass()
	}
	if eval.user.Role.IsHighLevel() {
		return pass()
	}
	if eval.permissions.Has(models.PermClientPHIAccess) {
		return pass()
	}
	return ruleOutcome{
		allowed:        false,
		reason:         "PHI access requires explicit authorization",
		classification: models.ClassificationPHI,
	}, nil
}

// separationOfDutiesRule prevents one person from overriding visit
// verification and then billing the same visit.
type separationOfDutiesRule struct{}

func (r *separationOfDutiesRule) Name() string { return "separation_of_duties" }

func (r *separationOfDutiesRule) Evaluate(_ context.Context, eval *evaluation) (ruleOutcome, error) {
	if eval.req.Action != models.PermBillingSubmit {
		return pass()
	}
	if eval.user.Role.IsHighLevel() {
		return pass()
	}
	if eval.permissions.Has(models.PermEVVOverride) {
		return deny("Separation of duties: users with EVV override cannot submit billing")
	}
	return pass()
}

// sensitiveAfterHours are the actions blocked outside the business-hours
// window unless an emergency override is active.
var sensitiveAfterHours = map[models.Permission]struct{}{
	models.PermBillingSubmit: {},
	models.PermUserCreate:    {},
	models.PermSystemConfig:  {},
}

// timeOfDayRule blocks sensitive actions outside business hours unless
// the user holds an active emergency_override attribute.
type timeOfDayRule struct {
	engine *Engine
}

func (r *timeOfDayRule) Name() string { return "time_of_day" }

func (r *timeOfDayRule) Evaluate(_ context.Context, eval *evaluation) (ruleOutcome, error) {
	if _, sensitive := sensitiveAfterHours[eval.req.Action]; !sensitive {
		return pass()
	}

	hour := eval.now.In(r.engine.cfg.Location).Hour()
	if hour >= r.engine.cfg.BusinessHoursStart && hour < r.engine.cfg.BusinessHoursEnd {
		return pass()
	}

	for i := range eval.user.Attributes {
		attr := &eval.user.Attributes[i]
		if attr.Name == models.AttrEmergencyOverride && attr.ActiveAt(eval.now) {
			return ruleOutcome{
				allowed:       true,
				conditions:    []string{"Performed outside business hours under emergency override"},
				auditRequired: true,
			}, nil
		}
	}

	return deny(fmt.Sprintf("Action %s is not permitted outside business hours (%02d:00-%02d:00)",
		eval.req.Action, r.engine.cfg.BusinessHoursStart, r.engine.cfg.BusinessHoursEnd))
}

// locationRule is the reserved extension point for geolocation-based
// restriction. It currently always passes.
type locationRule struct{}

func (r *locationRule) Name() string { return "location" }

func (r *locationRule) Evaluate(_ context.Context, _ *evaluation) (ruleOutcome, error) {
	return pass()
}
