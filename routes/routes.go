package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/evercare/agency-erp/app"
	"github.com/evercare/agency-erp/handlers"
	"github.com/evercare/agency-erp/models"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-Data-Classification"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.DB.DB, deps.Logger)
	accessHandler := handlers.NewAccessHandler(deps.Engine, deps.AuditService, deps.Logger)
	emergencyHandler := handlers.NewEmergencyHandler(deps.EmergencyManager, deps.Logger)
	auditHandler := handlers.NewAuditHandler(deps.AuditLogs, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		// Policy decision endpoint
		r.Post("/access/evaluate", accessHandler.HandleEvaluate)

		// Emergency access
		r.Route("/emergency", func(r chi.Router) {
			r.Post("/break-glass", emergencyHandler.HandleBreakGlass)
			r.With(deps.AccessMiddleware.Require(
				models.PermUserUpdate, "user", models.ClassificationConfidential,
			)).Post("/jit-grants", emergencyHandler.HandleJITGrant)
		})

		// Audit trail (compliance review)
		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.AccessMiddleware.Require(
				models.PermAuditRead, "audit_log", models.ClassificationConfidential,
			))
			r.Get("/logs", auditHandler.HandleListAuditLogs)
			r.Get("/security-events", auditHandler.HandleListSecurityEvents)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
