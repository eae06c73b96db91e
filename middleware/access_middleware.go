package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/services/audit"
	"github.com/evercare/agency-erp/utils"
)

// DataClassificationHeader carries the classification of the response
// payload on allowed requests.
const DataClassificationHeader = "X-Data-Classification"

// PolicyEngine is the decision surface the middleware enforces.
type PolicyEngine interface {
	EvaluateAccess(ctx context.Context, user *models.UserContext, req *models.AccessRequest) models.AccessDecision
}

// AccessMiddleware enforces policy decisions on routes. It builds the
// access request from route metadata, asks the engine, and converts a
// denial into a 403 carrying the decision's reason and conditions.
type AccessMiddleware struct {
	engine PolicyEngine
	sink   audit.Sink
	logger *zap.Logger
}

// NewAccessMiddleware creates a new AccessMiddleware
func NewAccessMiddleware(engine PolicyEngine, sink audit.Sink, logger *zap.Logger) *AccessMiddleware {
	return &AccessMiddleware{
		engine: engine,
		sink:   sink,
		logger: logger,
	}
}

// Require gates a route on an action against a resource type. The
// resource ID is taken from the route's {id} parameter when present,
// and the classification is fixed per route.
func (m *AccessMiddleware) Require(action models.Permission, resourceType string, classification models.DataClassification) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			uc := GetUserContext(ctx)
			if uc == nil {
				m.logger.Error("user context not found",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			req := &models.AccessRequest{
				Action:   action,
				Resource: models.ResourceRef{Type: resourceType},
				Context:  models.RequestContext{DataClassification: classification},
			}
			if raw := chi.URLParam(r, "id"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					_ = utils.WriteBadRequest(w, "Invalid resource ID", nil)
					return
				}
				req.Resource.ID = &id
			}
			if pod := r.URL.Query().Get("pod_id"); pod != "" {
				req.Resource.Attributes = map[string]string{"pod_id": pod}
			}

			decision := m.engine.EvaluateAccess(ctx, uc, req)

			if decision.AuditRequired {
				outcome := models.OutcomeDenied
				if decision.Allowed {
					outcome = models.OutcomeAllowed
				}
				m.sink.LogAudit(string(action), audit.ResourceInfo{Type: resourceType, ID: req.Resource.ID}, outcome, audit.EventContext{
					UserID:    &uc.UserID,
					OrgID:     &uc.OrganizationID,
					SessionID: uc.SessionID,
					IPAddress: uc.IPAddress,
					UserAgent: uc.UserAgent,
					Details: map[string]interface{}{
						"reason":              decision.Reason,
						"data_classification": string(decision.DataClassification),
					},
				})
			}

			if !decision.Allowed {
				m.logger.Info("access denied",
					zap.String("request_id", requestID),
					zap.String("user_id", uc.UserID.String()),
					zap.String("action", string(action)),
					zap.String("reason", decision.Reason))

				details := map[string]interface{}{
					"data_classification": string(decision.DataClassification),
				}
				if len(decision.Conditions) > 0 {
					details["conditions"] = decision.Conditions
				}
				_ = utils.WriteForbidden(w, decision.Reason, details)
				return
			}

			w.Header().Set(DataClassificationHeader, string(decision.DataClassification))
			next.ServeHTTP(w, r)
		})
	}
}
