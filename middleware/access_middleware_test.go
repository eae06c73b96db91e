package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

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

func authedUser() *models.UserContext {
	return &models.UserContext{
		UserID:         uuid.New(),
		OrganizationID: uuid.New(),
		Role:           models.RoleRegisteredNurse,
		Permissions:    models.PermissionsForRole(models.RoleRegisteredNurse),
	}
}

func serveThrough(t *testing.T, mw func(http.Handler) http.Handler, uc *models.UserContext, target string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.With(mw).Get("/clients/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if uc != nil {
		req = req.WithContext(WithUserContext(req.Context(), uc))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAccessMiddleware_AllowedSetsClassificationHeader(t *testing.T) {
	engine := &stubEngine{decision: models.AccessDecision{
		Allowed:            true,
		Reason:             "Access granted",
		DataClassification: models.ClassificationPHI,
	}}
	mw := NewAccessMiddleware(engine, &captureSink{}, zap.NewNop())

	clientID := uuid.New()
	rec := serveThrough(t, mw.Require(models.PermClientRead, models.ResourceClient, models.ClassificationPHI), authedUser(), "/clients/"+clientID.String())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "phi", rec.Header().Get(DataClassificationHeader))
	require.NotNil(t, engine.lastReq)
	require.NotNil(t, engine.lastReq.Resource.ID)
	assert.Equal(t, clientID, *engine.lastReq.Resource.ID)
}

func TestAccessMiddleware_DeniedReturns403WithReason(t *testing.T) {
	engine := &stubEngine{decision: models.AccessDecision{
		Allowed:            false,
		Reason:             "Patient not in active caseload",
		AuditRequired:      true,
		DataClassification: models.ClassificationPHI,
	}}
	sink := &captureSink{}
	mw := NewAccessMiddleware(engine, sink, zap.NewNop())

	rec := serveThrough(t, mw.Require(models.PermClientRead, models.ResourceClient, models.ClassificationPHI), authedUser(), "/clients/"+uuid.New().String())

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body.Error)
	assert.Equal(t, "Patient not in active caseload", body.Message)
	assert.Equal(t, []string{"client:read"}, sink.audits)
}

func TestAccessMiddleware_MissingUserContextIs401(t *testing.T) {
	engine := &stubEngine{decision: models.AccessDecision{Allowed: true}}
	mw := NewAccessMiddleware(engine, &captureSink{}, zap.NewNop())

	rec := serveThrough(t, mw.Require(models.PermClientRead, models.ResourceClient, models.ClassificationPHI), nil, "/clients/"+uuid.New().String())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, engine.lastReq)
}

func TestAccessMiddleware_InvalidResourceIDIs400(t *testing.T) {
	engine := &stubEngine{decision: models.AccessDecision{Allowed: true}}
	mw := NewAccessMiddleware(engine, &captureSink{}, zap.NewNop())

	rec := serveThrough(t, mw.Require(models.PermClientRead, models.ResourceClient, models.ClassificationPHI), authedUser(), "/clients/not-a-uuid")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, engine.lastReq)
}

func TestAccessMiddleware_PodAttributeFromQuery(t *testing.T) {
	engine := &stubEngine{decision: models.AccessDecision{Allowed: true, DataClassification: models.ClassificationInternal}}
	mw := NewAccessMiddleware(engine, &captureSink{}, zap.NewNop())

	rec := serveThrough(t, mw.Require(models.PermClientRead, models.ResourceClient, models.ClassificationInternal), authedUser(), "/clients/"+uuid.New().String()+"?pod_id=pod-7")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, engine.lastReq)
	assert.Equal(t, "pod-7", engine.lastReq.Resource.Attribute("pod_id"))
}
