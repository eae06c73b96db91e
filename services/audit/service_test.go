package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
)

// recordingAuditRepo records inserted events in memory. failInserts
// makes every insert fail, to exercise worker resilience.
type recordingAuditRepo struct {
	mu          sync.Mutex
	logs        []*models.AuditLog
	events      []*models.SecurityEvent
	attempts    int
	failInserts bool
}

func (r *recordingAuditRepo) InsertAuditLog(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failInserts {
		return fmt.Errorf("audit db unavailable")
	}
	r.logs = append(r.logs, log)
	return nil
}

func (r *recordingAuditRepo) InsertSecurityEvent(_ context.Context, event *models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failInserts {
		return fmt.Errorf("audit db unavailable")
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAuditRepo) ListAuditLogs(context.Context, uuid.UUID, int, int) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *recordingAuditRepo) ListSecurityEvents(context.Context, uuid.UUID, int, int) ([]*models.SecurityEvent, error) {
	return nil, nil
}

func (r *recordingAuditRepo) snapshot() ([]*models.AuditLog, []*models.SecurityEvent, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuditLog(nil), r.logs...), append([]*models.SecurityEvent(nil), r.events...), r.attempts
}

func TestService_WritesQueuedEvents(t *testing.T) {
	repo := &recordingAuditRepo{}
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 16, WorkerCount: 1})
	require.NoError(t, svc.Start())

	userID := uuid.New()
	orgID := uuid.New()
	clientID := uuid.New()

	svc.LogAudit("client:phi_access", ResourceInfo{Type: "client", ID: &clientID}, models.OutcomeAllowed, EventContext{
		UserID:    &userID,
		OrgID:     &orgID,
		SessionID: "sess-1",
		IPAddress: "10.0.0.4",
		Details:   map[string]interface{}{"reason": "Access granted"},
	})
	svc.LogSecurity(models.SecurityEventSuspiciousActivity, models.SecuritySeverityHigh, EventContext{
		UserID: &userID,
		OrgID:  &orgID,
	})

	require.NoError(t, svc.Stop(time.Second))

	logs, events, _ := repo.snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, "client:phi_access", logs[0].Action)
	assert.Equal(t, models.OutcomeAllowed, logs[0].Outcome)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, userID, *logs[0].UserID)
	require.NotNil(t, logs[0].ResourceID)
	assert.Equal(t, clientID, *logs[0].ResourceID)

	require.Len(t, events, 1)
	assert.Equal(t, models.SecurityEventSuspiciousActivity, events[0].Kind)
	assert.Equal(t, models.SecuritySeverityHigh, events[0].Severity)
}

func TestService_DropsEventsBeforeStart(t *testing.T) {
	repo := &recordingAuditRepo{}
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 4})

	svc.LogAudit("client:read", ResourceInfo{Type: "client"}, models.OutcomeAllowed, EventContext{})

	logs, events, attempts := repo.snapshot()
	assert.Empty(t, logs)
	assert.Empty(t, events)
	assert.Zero(t, attempts)

	assert.Error(t, svc.Stop(time.Second))
}

func TestService_StartTwiceFails(t *testing.T) {
	svc := NewService(&recordingAuditRepo{}, zap.NewNop(), Config{BufferSize: 4})
	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())
	require.NoError(t, svc.Stop(time.Second))
}

func TestService_SingleWorkerPreservesOrder(t *testing.T) {
	repo := &recordingAuditRepo{}
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 64, WorkerCount: 1})
	require.NoError(t, svc.Start())

	for i := 0; i < 10; i++ {
		svc.LogAudit(fmt.Sprintf("action-%d", i), ResourceInfo{Type: "client"}, models.OutcomeAllowed, EventContext{})
	}

	require.NoError(t, svc.Stop(time.Second))

	logs, _, _ := repo.snapshot()
	require.Len(t, logs, 10)
	for i, log := range logs {
		assert.Equal(t, fmt.Sprintf("action-%d", i), log.Action)
	}
}

func TestService_WriteFailureDoesNotStopWorker(t *testing.T) {
	repo := &recordingAuditRepo{failInserts: true}
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 8, WorkerCount: 1})
	require.NoError(t, svc.Start())

	svc.LogAudit("client:read", ResourceInfo{Type: "client"}, models.OutcomeAllowed, EventContext{})
	svc.LogAudit("client:read", ResourceInfo{Type: "client"}, models.OutcomeAllowed, EventContext{})

	require.NoError(t, svc.Stop(time.Second))

	_, _, attempts := repo.snapshot()
	assert.Equal(t, 2, attempts)
}

func TestService_DefaultsAppliedForZeroConfig(t *testing.T) {
	svc := NewService(&recordingAuditRepo{}, zap.NewNop(), Config{})

	stats := svc.GetStats()
	assert.Equal(t, DefaultConfig().BufferSize, stats.BufferSize)
	assert.Equal(t, DefaultConfig().WorkerCount, stats.WorkerCount)
	assert.False(t, stats.Started)
}
