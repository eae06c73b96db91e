package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/repositories"
)

// EventContext carries the caller's identity and session metadata.
// Every field may be absent; the sink accepts partial context.
type EventContext struct {
	UserID    *uuid.UUID
	OrgID     *uuid.UUID
	SessionID string
	IPAddress string
	UserAgent string
	Details   map[string]interface{}
}

// ResourceInfo identifies the resource an audit entry refers to.
type ResourceInfo struct {
	Type string
	ID   *uuid.UUID
}

// Sink is the engine-facing audit contract: fire-and-forget recording
// of audit and security events. Implementations must never block the
// decision path; a failed write surfaces in operational logs only.
type Sink interface {
	LogAudit(action string, resource ResourceInfo, outcome models.AuditOutcome, evctx EventContext)
	LogSecurity(kind models.SecurityEventKind, severity models.SecurityEventSeverity, evctx EventContext)
}

// event is the unit queued for the background writer.
type event struct {
	log      *models.AuditLog
	security *models.SecurityEvent
}

// Service handles asynchronous audit logging
type Service struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *event
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the audit Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent writers
}

// DefaultConfig returns the default configuration. A single worker
// keeps events in emission order.
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 1,
	}
}

// NewService creates a new audit Service instance
func NewService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *Service {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *event, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Waits for all pending events to be processed.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	// Close the event channel (no more events will be accepted)
	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogAudit queues an audit trail entry. Non-blocking: when the buffer
// is full the event is dropped and a warning is logged.
func (s *Service) LogAudit(action string, resource ResourceInfo, outcome models.AuditOutcome, evctx EventContext) {
	log := models.NewAuditLog(action, resource.Type, outcome)
	if resource.ID != nil {
		log.WithResource(*resource.ID)
	}
	if evctx.OrgID != nil {
		log.WithOrg(*evctx.OrgID)
	}
	if evctx.UserID != nil {
		log.WithUser(*evctx.UserID)
	}
	log.WithSession(evctx.SessionID, evctx.IPAddress, evctx.UserAgent)
	if evctx.Details != nil {
		log.WithDetails(evctx.Details)
	}

	s.enqueue(&event{log: log}, action)
}

// LogSecurity queues a security event. Non-blocking, same drop
// semantics as LogAudit.
func (s *Service) LogSecurity(kind models.SecurityEventKind, severity models.SecurityEventSeverity, evctx EventContext) {
	ev := models.NewSecurityEvent(kind, severity)
	if evctx.OrgID != nil {
		ev.WithOrg(*evctx.OrgID)
	}
	if evctx.UserID != nil {
		ev.WithUser(*evctx.UserID)
	}
	ev.WithSession(evctx.SessionID, evctx.IPAddress)
	if evctx.Details != nil {
		ev.WithDetails(evctx.Details)
	}

	s.enqueue(&event{security: ev}, string(kind))
}

func (s *Service) enqueue(ev *event, label string) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		s.logger.Warn("audit event before service start, dropping", zap.String("event", label))
		return
	}
	s.mu.Unlock()

	select {
	case s.eventChan <- ev:
	default:
		s.logger.Warn("audit event channel full, dropping event", zap.String("event", label))
	}
}

// worker processes events from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for ev := range s.eventChan {
		if err := s.processEvent(ev); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent writes a single event with its own timeout so a slow
// audit store cannot back up the decision path.
func (s *Service) processEvent(ev *event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if ev.log != nil {
		if err := s.auditRepo.InsertAuditLog(ctx, ev.log); err != nil {
			return fmt.Errorf("failed to insert audit log: %w", err)
		}
	}
	if ev.security != nil {
		if err := s.auditRepo.InsertSecurityEvent(ctx, ev.security); err != nil {
			return fmt.Errorf("failed to insert security event: %w", err)
		}
	}

	return nil
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}
