package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/evercare/agency-erp/auth"
	"github.com/evercare/agency-erp/config"
	"github.com/evercare/agency-erp/middleware"
	"github.com/evercare/agency-erp/repositories"
	"github.com/evercare/agency-erp/repositories/postgres"
	"github.com/evercare/agency-erp/services/access"
	"github.com/evercare/agency-erp/services/audit"
	"github.com/evercare/agency-erp/services/emergency"
	"github.com/evercare/agency-erp/services/identity"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users      repositories.UserRepository
	Attributes repositories.AttributeRepository
	Permits    repositories.PermitRepository
	AuditLogs  repositories.AuditRepository
	TxManager  repositories.TransactionManager

	// Services
	AuditService     *audit.Service
	Engine           *access.Engine
	EmergencyManager *emergency.Manager
	IdentityResolver *identity.Resolver

	// Auth
	TokenValidator   *auth.Validator
	AuthMiddleware   *middleware.AuthMiddleware
	AccessMiddleware *middleware.AccessMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(cfg); err != nil {
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		_ = deps.AuditService.Stop(cfg.Audit.ShutdownTimeout)
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	// Test the connection
	if err := d.DB.PingContext(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Attributes = repos.Attributes
	d.Permits = repos.Permits
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices wires the audit pipeline, the policy engine, the
// emergency access manager and the identity resolver.
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.AuditService = audit.NewService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := d.AuditService.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.Engine = access.NewEngine(d.Attributes, d.Permits, d.AuditService, d.Logger, access.Config{
		Location:           cfg.Access.Location(),
		BusinessHoursStart: cfg.Access.BusinessHoursStart,
		BusinessHoursEnd:   cfg.Access.BusinessHoursEnd,
		LookupTimeout:      cfg.Access.LookupTimeout,
	})

	d.EmergencyManager = emergency.NewManager(
		d.Attributes, d.Permits, d.TxManager, d.AuditService, d.Logger, emergency.DefaultConfig())

	d.IdentityResolver = identity.NewResolver(d.Users, d.Attributes, d.Logger, identity.Config{})

	d.Logger.Info("services initialized")
	return nil
}

// initAuth wires the token validator and the two middleware layers.
func (d *Dependencies) initAuth(cfg *config.Config) error {
	validator, err := auth.NewValidator(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	d.TokenValidator = validator
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.IdentityResolver, d.Logger)
	d.AccessMiddleware = middleware.NewAccessMiddleware(d.Engine, d.AuditService, d.Logger)

	d.Logger.Info("auth initialized")
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain the audit pipeline before closing its database
	if d.AuditService != nil {
		if err := d.AuditService.Stop(d.Config.Audit.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		} else {
			d.Logger.Info("audit service stopped")
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
