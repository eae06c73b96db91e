package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/evercare/agency-erp/config"
	"github.com/evercare/agency-erp/repositories"
)

// RepositoryFactory creates repositories against the main database and,
// when configured, a separate audit database.
type RepositoryFactory struct {
	db      *DB
	auditDB *DB
	txMgr   repositories.TransactionManager
	logger  *zap.Logger
}

// NewRepositoryFactory opens the database connections and builds the factory.
// When cfg.AuditDatabase is nil, audit tables live in the main database.
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	auditDB := db
	if cfg.AuditDatabase != nil {
		auditDB, err = NewDB(*cfg.AuditDatabase, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to audit database: %w", err)
		}
		logger.Info("using separate audit database",
			zap.String("connection", cfg.AuditDatabase.LogString()))
	}

	return &RepositoryFactory{
		db:      db,
		auditDB: auditDB,
		txMgr:   NewTransactionManager(db, logger),
		logger:  logger,
	}, nil
}

// GetDB returns the main database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// GetTransactionManager returns the transaction manager for the main database
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return f.txMgr
}

// InitSchema initializes the main schema, and the audit schema when a
// separate audit database is configured.
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	if err := f.db.InitSchema(ctx); err != nil {
		return err
	}
	if f.auditDB != f.db {
		if err := f.auditDB.InitAuditSchema(ctx); err != nil {
			return err
		}
	}
	return nil
}

// NewRepositories builds the repository aggregate
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:      NewUserRepository(f.db, f.logger),
		Attributes: NewAttributeRepository(f.db, f.logger),
		Permits:    NewPermitRepository(f.db, f.logger),
		AuditLogs:  NewAuditRepository(f.auditDB, f.logger),
	}
}

// Close closes all database connections
func (f *RepositoryFactory) Close() error {
	var firstErr error
	if f.auditDB != f.db {
		if err := f.auditDB.Close(); err != nil {
			firstErr = err
		}
	}
	if err := f.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
