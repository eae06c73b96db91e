package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/evercare/agency-erp/middleware"
	"github.com/evercare/agency-erp/repositories"
	"github.com/evercare/agency-erp/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// AuditHandler serves the audit trail for compliance review
type AuditHandler struct {
	auditLogs repositories.AuditRepository
	logger    *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditLogs repositories.AuditRepository, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditLogs: auditLogs,
		logger:    logger,
	}
}

// HandleListAuditLogs handles GET /api/v1/audit/logs
func (h *AuditHandler) HandleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	uc := middleware.GetUserContext(r.Context())
	if uc == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := pagination(r)
	logs, err := h.auditLogs.ListAuditLogs(r.Context(), uc.OrganizationID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list audit logs", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}

// HandleListSecurityEvents handles GET /api/v1/audit/security-events
func (h *AuditHandler) HandleListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	uc := middleware.GetUserContext(r.Context())
	if uc == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := pagination(r)
	events, err := h.auditLogs.ListSecurityEvents(r.Context(), uc.OrganizationID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list security events", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
