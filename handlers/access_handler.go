package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/middleware"
	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/services/audit"
	"github.com/evercare/agency-erp/utils"
)

// AccessHandler exposes policy evaluation as an API for clients that
// need a decision before acting, such as the mobile app hiding UI.
type AccessHandler struct {
	engine middleware.PolicyEngine
	sink   audit.Sink
	logger *zap.Logger
}

// NewAccessHandler creates a new AccessHandler
func NewAccessHandler(engine middleware.PolicyEngine, sink audit.Sink, logger *zap.Logger) *AccessHandler {
	return &AccessHandler{
		engine: engine,
		sink:   sink,
		logger: logger,
	}
}

// EvaluateRequest is the request body for POST /api/v1/access/evaluate
type EvaluateRequest struct {
	Action   string `json:"action" validate:"required,permission"`
	Resource struct {
		Type       string            `json:"type" validate:"required"`
		ID         string            `json:"id" validate:"omitempty,uuid"`
		Attributes map[string]string `json:"attributes"`
	} `json:"resource"`
	Context struct {
		DataClassification string `json:"data_classification" validate:"omitempty,oneof=public internal confidential phi"`
		Purpose            string `json:"purpose"`
	} `json:"context"`
}

// HandleEvaluate handles POST /api/v1/access/evaluate. It evaluates
// the requested action for the calling user and returns the decision
// without performing the action.
func (h *AccessHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	uc := middleware.GetUserContext(r.Context())
	if uc == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var body EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	req := &models.AccessRequest{
		Action: models.Permission(body.Action),
		Resource: models.ResourceRef{
			Type:       body.Resource.Type,
			Attributes: body.Resource.Attributes,
		},
		Context: models.RequestContext{
			DataClassification: models.DataClassification(body.Context.DataClassification),
			Purpose:            body.Context.Purpose,
		},
	}
	if body.Resource.ID != "" {
		id, err := uuid.Parse(body.Resource.ID)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid resource ID", nil)
			return
		}
		req.Resource.ID = &id
	}

	decision := h.engine.EvaluateAccess(r.Context(), uc, req)

	if decision.AuditRequired {
		outcome := models.OutcomeDenied
		if decision.Allowed {
			outcome = models.OutcomeAllowed
		}
		h.sink.LogAudit(body.Action, audit.ResourceInfo{Type: body.Resource.Type, ID: req.Resource.ID}, outcome, audit.EventContext{
			UserID:    &uc.UserID,
			OrgID:     &uc.OrganizationID,
			SessionID: uc.SessionID,
			IPAddress: uc.IPAddress,
			UserAgent: uc.UserAgent,
			Details: map[string]interface{}{
				"reason":              decision.Reason,
				"data_classification": string(decision.DataClassification),
				"evaluate_only":       true,
			},
		})
	}

	_ = utils.WriteOK(w, decision)
}
