package access

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
)

func TestCaseloadRule_DeniedWithoutCaseload(t *testing.T) {
	user := testUser(models.RoleRegisteredNurse)
	clientID := uuid.New()

	attrs := &mockAttributeStore{}
	attrs.On("HasActiveCaseload", mock.Anything, user.UserID, clientID).Return(false, nil)
	permits := &mockPermitStore{}
	permits.On("ActiveBreakGlassPermit", mock.Anything, user.UserID, clientID, businessHoursNow).Return(nil, nil)

	engine := newTestEngine(attrs, permits, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, clientRequest(models.PermClientRead, clientID, models.ClassificationPHI))

	assert.False(t, decision.Allowed)
	assert.Equal(t, "Patient not in active caseload", decision.Reason)
	assert.True(t, decision.AuditRequired)
	assert.Equal(t, models.ClassificationPHI, decision.DataClassification)
}

func TestCaseloadRule_BreakGlassPermitGrantsAccess(t *testing.T) {
	user := testUser(models.RoleRegisteredNurse)
	clientID := uuid.New()
	permit := models.NewBreakGlassPermit(user.UserID, clientID, "client found unresponsive", models.SeverityCritical, businessHoursNow.Add(24*time.Hour))

	attrs := &mockAttributeStore{}
	attrs.On("HasActiveCaseload", mock.Anything, user.UserID, clientID).Return(false, nil)
	permits := &mockPermitStore{}
	permits.On("ActiveBreakGlassPermit", mock.Anything, user.UserID, clientID, businessHoursNow).Return(permit, nil)

	sink := &recordingSink{}
	engine := newTestEngine(attrs, permits, sink, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, clientRequest(models.PermClientRead, clientID, models.ClassificationPHI))

	assert.True(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "Break-Glass")
	assert.True(t, decision.AuditRequired)
	assert.NotEmpty(t, decision.Conditions)

	events := sink.securityEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.SecurityEventPHIAccessViolation, events[0].kind)
	assert.Equal(t, models.SecuritySeverityHigh, events[0].severity)
	assert.Equal(t, permit.ID.String(), events[0].evctx.Details["break_glass_permit_id"])
}

func TestCaseloadRule_SkipsNonClinicalRoles(t *testing.T) {
	user := testUser(models.RoleBiller)
	clientID := uuid.New()

	// No store expectations: the rule must not consult the caseload for
	// administrative roles.
	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, clientRequest(models.PermClientRead, clientID, models.ClassificationInternal))

	assert.True(t, decision.Allowed)
}

func TestPodRule_DeniesOutsidePod(t *testing.T) {
	user := testUser(models.RoleScheduler)
	clientID := uuid.New()

	req := clientRequest(models.PermClientRead, clientID, models.ClassificationInternal)
	req.Resource.Attributes = map[string]string{"pod_id": "pod-7"}

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, req)

	assert.False(t, decision.Allowed)
	assert.Equal(t, "User does not have access to this pod", decision.Reason)
}

func TestPodRule_AllowsWithActivePodAttribute(t *testing.T) {
	user := testUser(models.RoleScheduler)
	user.Attributes = []models.UserAttribute{
		*models.NewUserAttribute(user.UserID, models.AttrPodAccess, "pod-7"),
	}
	clientID := uuid.New()

	req := clientRequest(models.PermClientRead, clientID, models.ClassificationInternal)
	req.Resource.Attributes = map[string]string{"pod_id": "pod-7"}

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, req)

	assert.True(t, decision.Allowed)
}

func TestPodRule_ExpiredPodAttributeDenies(t *testing.T) {
	user := testUser(models.RoleScheduler)
	attr := models.NewUserAttribute(user.UserID, models.AttrPodAccess, "pod-7").
		WithExpiry(businessHoursNow.Add(-1 * time.Hour))
	user.Attributes = []models.UserAttribute{*attr}
	clientID := uuid.New()

	req := clientRequest(models.PermClientRead, clientID, models.ClassificationInternal)
	req.Resource.Attributes = map[string]string{"pod_id": "pod-7"}

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, req)

	assert.False(t, decision.Allowed)
}

func TestPodRule_HighLevelRoleBypasses(t *testing.T) {
	user := testUser(models.RoleSecurityOfficer)
	clientID := uuid.New()

	req := clientRequest(models.PermClientRead, clientID, models.ClassificationInternal)
	req.Resource.Attributes = map[string]string{"pod_id": "pod-7"}

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, req)

	assert.True(t, decision.Allowed)
}

func TestAssignmentRule_CaregiverForeignShiftDenied(t *testing.T) {
	user := testUser(models.RoleCaregiver)
	shiftID := uuid.New()

	attrs := &mockAttributeStore{}
	attrs.On("ShiftCaregiver", mock.Anything, shiftID).Return(uuid.New(), nil)

	engine := newTestEngine(attrs, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermEVVCreate,
		Resource: models.ResourceRef{Type: models.ResourceShift, ID: &shiftID},
	})

	assert.False(t, decision.Allowed)
	assert.Equal(t, "Caregiver can only access their own shifts", decision.Reason)
}

func TestAssignmentRule_CaregiverOwnShiftAllowed(t *testing.T) {
	user := testUser(models.RoleCaregiver)
	shiftID := uuid.New()

	attrs := &mockAttributeStore{}
	attrs.On("ShiftCaregiver", mock.Anything, shiftID).Return(user.UserID, nil)

	engine := newTestEngine(attrs, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermEVVCreate,
		Resource: models.ResourceRef{Type: models.ResourceShift, ID: &shiftID},
	})

	assert.True(t, decision.Allowed)
}

func TestAssignmentRule_SkipsOtherRoles(t *testing.T) {
	user := testUser(models.RoleScheduler)
	shiftID := uuid.New()

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermScheduleUpdate,
		Resource: models.ResourceRef{Type: models.ResourceShift, ID: &shiftID},
	})

	assert.True(t, decision.Allowed)
}

func TestFamilyRule_UnlinkedClientDenied(t *testing.T) {
	user := testUser(models.RoleFamily)
	clientID := uuid.New()

	attrs := &mockAttributeStore{}
	attrs.On("FamilyClientIDs", mock.Anything, user.UserID).Return([]uuid.UUID{uuid.New()}, nil)

	engine := newTestEngine(attrs, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, clientRequest(models.PermClientRead, clientID, models.ClassificationInternal))

	assert.False(t, decision.Allowed)
	assert.Equal(t, "Family members can only view clients linked to their account", decision.Reason)
}

func TestFamilyRule_LinkedClientAllowed(t *testing.T) {
	user := testUser(models.RoleFamily)
	clientID := uuid.New()

	attrs := &mockAttributeStore{}
	attrs.On("FamilyClientIDs", mock.Anything, user.UserID).Return([]uuid.UUID{clientID}, nil)

	engine := newTestEngine(attrs, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, clientRequest(models.PermClientRead, clientID, models.ClassificationInternal))

	assert.True(t, decision.Allowed)
}

func TestClassificationRule_PHIDeniedWithoutExplicitPermission(t *testing.T) {
	// Caregivers hold client:read but not client:phi_access, so a
	// PHI-classified read must fall through RBAC and die here.
	user := testUser(models.RoleCaregiver)
	clientID := uuid.New()

	attrs := &mockAttributeStore{}
	attrs.On("HasActiveCaseload", mock.Anything, user.UserID, clientID).Return(true, nil)

	engine := newTestEngine(attrs, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, clientRequest(models.PermClientRead, clientID, models.ClassificationPHI))

	assert.False(t, decision.Allowed)
	assert.Equal(t, "PHI access requires explicit authorization", decision.Reason)
	assert.Equal(t, models.ClassificationPHI, decision.DataClassification)
}

func TestClassificationRule_HighLevelRoleBypasses(t *testing.T) {
	user := testUser(models.RoleComplianceOfficer)
	clientID := uuid.New()

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, clientRequest(models.PermClientRead, clientID, models.ClassificationPHI))

	assert.True(t, decision.Allowed)
	assert.True(t, decision.AuditRequired)
}

func TestSeparationOfDuties_EVVOverrideBlocksBilling(t *testing.T) {
	user := testUser(models.RoleBiller)
	attr := models.NewUserAttribute(user.UserID, models.AttrJITPermission, string(models.PermEVVOverride)).
		WithExpiry(businessHoursNow.Add(time.Hour))
	user.Attributes = []models.UserAttribute{*attr}

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermBillingSubmit,
		Resource: models.ResourceRef{Type: "billing"},
	})

	assert.False(t, decision.Allowed)
	assert.Equal(t, "Separation of duties: users with EVV override cannot submit billing", decision.Reason)
}

func TestSeparationOfDuties_BillerWithoutOverrideAllowed(t *testing.T) {
	user := testUser(models.RoleBiller)

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, businessHoursNow)
	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermBillingSubmit,
		Resource: models.ResourceRef{Type: "billing"},
	})

	assert.True(t, decision.Allowed)
	assert.True(t, decision.AuditRequired)
}

func TestTimeOfDayRule_SensitiveActionBlockedAfterHours(t *testing.T) {
	afterHours := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	user := testUser(models.RoleBiller)

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, afterHours)
	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermBillingSubmit,
		Resource: models.ResourceRef{Type: "billing"},
	})

	assert.False(t, decision.Allowed)
	assert.Equal(t, "Action billing:submit is not permitted outside business hours (06:00-22:00)", decision.Reason)
}

func TestTimeOfDayRule_EmergencyOverrideAllowsAfterHours(t *testing.T) {
	afterHours := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	user := testUser(models.RoleBiller)
	attr := models.NewUserAttribute(user.UserID, models.AttrEmergencyOverride, "storm response").
		WithExpiry(afterHours.Add(time.Hour))
	user.Attributes = []models.UserAttribute{*attr}

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, afterHours)
	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermBillingSubmit,
		Resource: models.ResourceRef{Type: "billing"},
	})

	assert.True(t, decision.Allowed)
	assert.True(t, decision.AuditRequired)
	assert.NotEmpty(t, decision.Conditions)
}

func TestTimeOfDayRule_WindowUsesConfiguredTimezone(t *testing.T) {
	// 23:30 UTC is 18:30 in a UTC-5 zone, inside the window.
	afterHoursUTC := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	user := testUser(models.RoleBiller)

	cfg := DefaultConfig()
	cfg.Location = time.FixedZone("UTC-5", -5*3600)
	cfg.Now = func() time.Time { return afterHoursUTC }
	engine := NewEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, zap.NewNop(), cfg)

	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermBillingSubmit,
		Resource: models.ResourceRef{Type: "billing"},
	})

	assert.True(t, decision.Allowed)
}

func TestTimeOfDayRule_RoutineActionUnrestricted(t *testing.T) {
	afterHours := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	user := testUser(models.RoleScheduler)

	engine := newTestEngine(&mockAttributeStore{}, &mockPermitStore{}, &recordingSink{}, afterHours)
	decision := engine.EvaluateAccess(context.Background(), user, &models.AccessRequest{
		Action:   models.PermScheduleRead,
		Resource: models.ResourceRef{Type: "schedule"},
	})

	assert.True(t, decision.Allowed)
}
