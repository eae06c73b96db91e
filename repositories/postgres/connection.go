package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Users table
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			org_id UUID NOT NULL,
			role VARCHAR(50) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Dynamic user attributes (pod access, overrides, JIT grants).
		-- Append-only: superseding facts are added as new rows.
		CREATE TABLE IF NOT EXISTS user_attributes (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			value TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			expires_at TIMESTAMP,
			granted_by UUID,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Caseload membership: the clients a clinician may treat
		CREATE TABLE IF NOT EXISTS caseloads (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			client_id UUID NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, client_id)
		);

		-- Shifts (assignment lookup only; scheduling logic lives elsewhere)
		CREATE TABLE IF NOT EXISTS shifts (
			id UUID PRIMARY KEY,
			client_id UUID NOT NULL,
			caregiver_id UUID NOT NULL,
			pod_id VARCHAR(100),
			starts_at TIMESTAMP NOT NULL,
			ends_at TIMESTAMP NOT NULL
		);

		-- Family portal grants
		CREATE TABLE IF NOT EXISTS family_links (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			client_id UUID NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, client_id)
		);

		-- Break-glass permits: expiry-only lifecycle, never revoked
		CREATE TABLE IF NOT EXISTS break_glass_permits (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			client_id UUID NOT NULL,
			reason TEXT NOT NULL,
			severity VARCHAR(20) NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Security incidents opened by emergency access
		CREATE TABLE IF NOT EXISTS security_incidents (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			kind VARCHAR(100) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			description TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			resolved_at TIMESTAMP
		);

		-- Audit logs
		CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY,
			org_id UUID,
			user_id UUID,
			action VARCHAR(100) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id UUID,
			outcome VARCHAR(20) NOT NULL,
			details JSONB,
			session_id VARCHAR(255),
			ip_address VARCHAR(45),
			user_agent TEXT,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Security events
		CREATE TABLE IF NOT EXISTS security_events (
			id UUID PRIMARY KEY,
			org_id UUID,
			user_id UUID,
			kind VARCHAR(100) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			details JSONB,
			session_id VARCHAR(255),
			ip_address VARCHAR(45),
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for the engine's point lookups
		CREATE INDEX IF NOT EXISTS idx_user_attributes_user_id ON user_attributes(user_id);
		CREATE INDEX IF NOT EXISTS idx_user_attributes_name ON user_attributes(name);
		CREATE INDEX IF NOT EXISTS idx_user_attributes_expires_at ON user_attributes(expires_at);

		CREATE INDEX IF NOT EXISTS idx_caseloads_user_client ON caseloads(user_id, client_id);
		CREATE INDEX IF NOT EXISTS idx_shifts_caregiver_id ON shifts(caregiver_id);
		CREATE INDEX IF NOT EXISTS idx_family_links_user_id ON family_links(user_id);

		CREATE INDEX IF NOT EXISTS idx_break_glass_user_client ON break_glass_permits(user_id, client_id);
		CREATE INDEX IF NOT EXISTS idx_break_glass_expires_at ON break_glass_permits(expires_at);

		CREATE INDEX IF NOT EXISTS idx_audit_logs_org_id ON audit_logs(org_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
		CREATE INDEX IF NOT EXISTS idx_security_events_org_id ON security_events(org_id);
		CREATE INDEX IF NOT EXISTS idx_security_events_kind ON security_events(kind);
		CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// InitAuditSchema initializes the audit database schema (audit tables only, no FK).
// Use for the separate audit database when DATABASE_URL_AUDIT is set.
func (db *DB) InitAuditSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY,
			org_id UUID,
			user_id UUID,
			action VARCHAR(100) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id UUID,
			outcome VARCHAR(20) NOT NULL,
			details JSONB,
			session_id VARCHAR(255),
			ip_address VARCHAR(45),
			user_agent TEXT,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS security_events (
			id UUID PRIMARY KEY,
			org_id UUID,
			user_id UUID,
			kind VARCHAR(100) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			details JSONB,
			session_id VARCHAR(255),
			ip_address VARCHAR(45),
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_org_id ON audit_logs(org_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
		CREATE INDEX IF NOT EXISTS idx_security_events_org_id ON security_events(org_id);
		CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	db.logger.Info("audit schema initialized successfully")
	return nil
}
