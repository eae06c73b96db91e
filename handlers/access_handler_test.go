package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/middleware"
	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/services/audit"
)

type stubEngine struct {
	decision models.AccessDecision
	lastReq  *models.AccessRequest
}

func (s *stubEngine) EvaluateAccess(_ context.Context, _ *models.UserContext, req *models.AccessRequest) models.AccessDecision {
	s.lastReq = req
	return s.decision
}

type captureSink struct {
	audits []string
}

func (s *captureSink) LogAudit(action string, _ audit.ResourceInfo, _ models.AuditOutcome, _ audit.EventContext) {
	s.audits = append(s.audits, action)
}

func (s *captureSink) LogSecurity(models.SecurityEventKind, models.SecurityEventSeverity, audit.EventContext) {
}

func authedContext(req *http.Request) *http.Request {
	uc := &models.UserContext{
		UserID:         uuid.New(),
		OrganizationID: uuid.New(),
		Role:           models.RoleRegisteredNurse,
		Permissions:    models.PermissionsForRole(models.RoleRegisteredNurse),
	}
	return req.WithContext(middleware.WithUserContext(req.Context(), uc))
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	if authed {
		req = authedContext(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleEvaluate_ReturnsDecision(t *testing.T) {
	engine := &stubEngine{decision: models.AccessDecision{
		Allowed:            true,
		Reason:             "Access granted",
		AuditRequired:      true,
		DataClassification: models.ClassificationPHI,
	}}
	sink := &captureSink{}
	h := NewAccessHandler(engine, sink, zap.NewNop())

	clientID := uuid.New()
	rec := postJSON(t, h.HandleEvaluate, "/api/v1/access/evaluate", map[string]interface{}{
		"action": "client:read",
		"resource": map[string]interface{}{
			"type": "client",
			"id":   clientID.String(),
		},
		"context": map[string]interface{}{
			"data_classification": "phi",
		},
	}, true)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data models.AccessDecision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Allowed)
	assert.Equal(t, models.ClassificationPHI, body.Data.DataClassification)

	require.NotNil(t, engine.lastReq)
	assert.Equal(t, models.PermClientRead, engine.lastReq.Action)
	require.NotNil(t, engine.lastReq.Resource.ID)
	assert.Equal(t, clientID, *engine.lastReq.Resource.ID)
	assert.Equal(t, []string{"client:read"}, sink.audits)
}

func TestHandleEvaluate_NoAuditForRoutineDecision(t *testing.T) {
	engine := &stubEngine{decision: models.AccessDecision{
		Allowed:            true,
		Reason:             "Access granted",
		DataClassification: models.ClassificationInternal,
	}}
	sink := &captureSink{}
	h := NewAccessHandler(engine, sink, zap.NewNop())

	rec := postJSON(t, h.HandleEvaluate, "/api/v1/access/evaluate", map[string]interface{}{
		"action":   "schedule:read",
		"resource": map[string]interface{}{"type": "schedule"},
	}, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sink.audits)
}

func TestHandleEvaluate_UnknownActionIs400(t *testing.T) {
	h := NewAccessHandler(&stubEngine{}, &captureSink{}, zap.NewNop())

	rec := postJSON(t, h.HandleEvaluate, "/api/v1/access/evaluate", map[string]interface{}{
		"action":   "root:everything",
		"resource": map[string]interface{}{"type": "client"},
	}, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvaluate_UnauthenticatedIs401(t *testing.T) {
	h := NewAccessHandler(&stubEngine{}, &captureSink{}, zap.NewNop())

	rec := postJSON(t, h.HandleEvaluate, "/api/v1/access/evaluate", map[string]interface{}{
		"action":   "client:read",
		"resource": map[string]interface{}{"type": "client"},
	}, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleEvaluate_MalformedBodyIs400(t *testing.T) {
	h := NewAccessHandler(&stubEngine{}, &captureSink{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/access/evaluate", bytes.NewReader([]byte("{not json")))
	req = authedContext(req)
	rec := httptest.NewRecorder()
	h.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
