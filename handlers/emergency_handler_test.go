package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/services"
	"github.com/evercare/agency-erp/services/emergency"
)

type stubManager struct {
	activation *emergency.BreakGlassActivation
	attrs      []*models.UserAttribute
	err        error
	lastDecl   *models.EmergencyDeclaration
	lastGrant  *models.JITGrant
}

func (s *stubManager) ActivateBreakGlass(_ context.Context, _ *models.UserContext, decl models.EmergencyDeclaration) (*emergency.BreakGlassActivation, error) {
	s.lastDecl = &decl
	return s.activation, s.err
}

func (s *stubManager) GrantJITAccess(_ context.Context, grant *models.JITGrant) ([]*models.UserAttribute, error) {
	s.lastGrant = grant
	return s.attrs, s.err
}

func TestHandleBreakGlass_Created(t *testing.T) {
	clientID := uuid.New()
	mgr := &stubManager{activation: &emergency.BreakGlassActivation{
		IncidentID: uuid.New(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}}
	h := NewEmergencyHandler(mgr, zap.NewNop())

	rec := postJSON(t, h.HandleBreakGlass, "/api/v1/emergency/break-glass", map[string]interface{}{
		"type":             "client_care_emergency",
		"description":      "client found unresponsive during visit",
		"severity":         "critical",
		"affected_clients": []string{clientID.String()},
	}, true)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, mgr.lastDecl)
	assert.Equal(t, models.EmergencyClientCare, mgr.lastDecl.Type)
	assert.Equal(t, models.SeverityCritical, mgr.lastDecl.Severity)
	assert.Equal(t, []uuid.UUID{clientID}, mgr.lastDecl.AffectedClients)
}

func TestHandleBreakGlass_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "unknown type",
			body: map[string]interface{}{
				"type":             "alien_invasion",
				"description":      "something strange happened",
				"severity":         "high",
				"affected_clients": []string{uuid.New().String()},
			},
		},
		{
			name: "short description",
			body: map[string]interface{}{
				"type":             "client_care_emergency",
				"description":      "help",
				"severity":         "high",
				"affected_clients": []string{uuid.New().String()},
			},
		},
		{
			name: "no clients",
			body: map[string]interface{}{
				"type":        "client_care_emergency",
				"description": "client found unresponsive",
				"severity":    "high",
			},
		},
		{
			name: "bad client id",
			body: map[string]interface{}{
				"type":             "client_care_emergency",
				"description":      "client found unresponsive",
				"severity":         "high",
				"affected_clients": []string{"not-a-uuid"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := &stubManager{}
			h := NewEmergencyHandler(mgr, zap.NewNop())

			rec := postJSON(t, h.HandleBreakGlass, "/api/v1/emergency/break-glass", tt.body, true)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, mgr.lastDecl)
		})
	}
}

func TestHandleBreakGlass_GrantFaultIs503(t *testing.T) {
	mgr := &stubManager{err: services.WrapGrantFault("break-glass permit not issued", nil)}
	h := NewEmergencyHandler(mgr, zap.NewNop())

	rec := postJSON(t, h.HandleBreakGlass, "/api/v1/emergency/break-glass", map[string]interface{}{
		"type":             "client_care_emergency",
		"description":      "client found unresponsive",
		"severity":         "critical",
		"affected_clients": []string{uuid.New().String()},
	}, true)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleJITGrant_Created(t *testing.T) {
	targetID := uuid.New()
	approverID := uuid.New()
	mgr := &stubManager{attrs: []*models.UserAttribute{
		models.NewUserAttribute(targetID, models.AttrJITPermission, string(models.PermEVVOverride)),
	}}
	h := NewEmergencyHandler(mgr, zap.NewNop())

	rec := postJSON(t, h.HandleJITGrant, "/api/v1/emergency/jit-grants", map[string]interface{}{
		"user_id":        targetID.String(),
		"permissions":    []string{"evv:override"},
		"justification":  "payroll correction for week 11",
		"duration_hours": 4,
		"approver":       approverID.String(),
	}, true)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, mgr.lastGrant)
	assert.Equal(t, targetID, mgr.lastGrant.UserID)
	assert.Equal(t, []models.Permission{models.PermEVVOverride}, mgr.lastGrant.Permissions)
	require.NotNil(t, mgr.lastGrant.Approver)
	assert.Equal(t, approverID, *mgr.lastGrant.Approver)
	assert.True(t, mgr.lastGrant.ExpiresAt.After(time.Now()))
}

func TestHandleJITGrant_UnknownPermissionIs400(t *testing.T) {
	mgr := &stubManager{}
	h := NewEmergencyHandler(mgr, zap.NewNop())

	rec := postJSON(t, h.HandleJITGrant, "/api/v1/emergency/jit-grants", map[string]interface{}{
		"user_id":        uuid.New().String(),
		"permissions":    []string{"root:everything"},
		"justification":  "payroll correction for week 11",
		"duration_hours": 4,
	}, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, mgr.lastGrant)
}

func TestHandleJITGrant_DurationBounds(t *testing.T) {
	mgr := &stubManager{}
	h := NewEmergencyHandler(mgr, zap.NewNop())

	rec := postJSON(t, h.HandleJITGrant, "/api/v1/emergency/jit-grants", map[string]interface{}{
		"user_id":        uuid.New().String(),
		"permissions":    []string{"evv:override"},
		"justification":  "payroll correction for week 11",
		"duration_hours": 48,
	}, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleJITGrant_UnauthenticatedIs401(t *testing.T) {
	h := NewEmergencyHandler(&stubManager{}, zap.NewNop())

	rec := postJSON(t, h.HandleJITGrant, "/api/v1/emergency/jit-grants", map[string]interface{}{
		"user_id":        uuid.New().String(),
		"permissions":    []string{"evv:override"},
		"justification":  "payroll correction for week 11",
		"duration_hours": 4,
	}, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
