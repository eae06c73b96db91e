package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/middleware"
	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/services/emergency"
	"github.com/evercare/agency-erp/utils"
)

// EmergencyAccessManager is the handler-facing surface of the
// emergency service.
type EmergencyAccessManager interface {
	ActivateBreakGlass(ctx context.Context, user *models.UserContext, decl models.EmergencyDeclaration) (*emergency.BreakGlassActivation, error)
	GrantJITAccess(ctx context.Context, grant *models.JITGrant) ([]*models.UserAttribute, error)
}

// EmergencyHandler handles break-glass and JIT grant requests
type EmergencyHandler struct {
	manager EmergencyAccessManager
	logger  *zap.Logger
}

// NewEmergencyHandler creates a new EmergencyHandler
func NewEmergencyHandler(manager EmergencyAccessManager, logger *zap.Logger) *EmergencyHandler {
	return &EmergencyHandler{
		manager: manager,
		logger:  logger,
	}
}

// BreakGlassRequest is the request body for POST /api/v1/emergency/break-glass
type BreakGlassRequest struct {
	Type            string   `json:"type" validate:"required,oneof=client_care_emergency missed_visit natural_disaster system_outage"`
	Description     string   `json:"description" validate:"required,min=10"`
	Severity        string   `json:"severity" validate:"required,oneof=critical high medium low"`
	AffectedClients []string `json:"affected_clients" validate:"required,min=1,dive,uuid"`
}

// HandleBreakGlass handles POST /api/v1/emergency/break-glass
func (h *EmergencyHandler) HandleBreakGlass(w http.ResponseWriter, r *http.Request) {
	uc := middleware.GetUserContext(r.Context())
	if uc == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var body BreakGlassRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	clients := make([]uuid.UUID, 0, len(body.AffectedClients))
	for _, raw := range body.AffectedClients {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid client ID", map[string]interface{}{"client_id": raw})
			return
		}
		clients = append(clients, id)
	}

	activation, err := h.manager.ActivateBreakGlass(r.Context(), uc, models.EmergencyDeclaration{
		Type:            models.EmergencyType(body.Type),
		Description:     body.Description,
		Severity:        models.EmergencySeverity(body.Severity),
		AffectedClients: clients,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, activation)
}

// JITGrantRequest is the request body for POST /api/v1/emergency/jit-grants
type JITGrantRequest struct {
	UserID        string   `json:"user_id" validate:"required,uuid"`
	Permissions   []string `json:"permissions" validate:"required,min=1,dive,permission"`
	Justification string   `json:"justification" validate:"required,min=10"`
	DurationHours int      `json:"duration_hours" validate:"required,min=1,max=24"`
	Approver      string   `json:"approver" validate:"omitempty,uuid"`
}

// HandleJITGrant handles POST /api/v1/emergency/jit-grants
func (h *EmergencyHandler) HandleJITGrant(w http.ResponseWriter, r *http.Request) {
	uc := middleware.GetUserContext(r.Context())
	if uc == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var body JITGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	grant := &models.JITGrant{
		ID:            uuid.New(),
		UserID:        userID,
		RequestedBy:   uc.UserID,
		Justification: body.Justification,
		ExpiresAt:     time.Now().Add(time.Duration(body.DurationHours) * time.Hour),
		CreatedAt:     time.Now(),
	}
	for _, p := range body.Permissions {
		grant.Permissions = append(grant.Permissions, models.Permission(p))
	}
	if body.Approver != "" {
		approver, err := uuid.Parse(body.Approver)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid approver ID", nil)
			return
		}
		grant.Approver = &approver
	}

	attrs, err := h.manager.GrantJITAccess(r.Context(), grant)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, map[string]interface{}{
		"grant_id":   grant.ID,
		"user_id":    grant.UserID,
		"attributes": attrs,
		"expires_at": grant.ExpiresAt,
	})
}
