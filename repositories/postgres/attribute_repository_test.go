package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return &DB{DB: mockDB, logger: zap.NewNop()}, mock
}

func TestAttributeRepository_ActiveAttributes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttributeRepository(db, zap.NewNop())

	userID := uuid.New()
	now := time.Now()
	expiry := now.Add(time.Hour)

	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "value", "is_active", "expires_at", "granted_by", "created_at"}).
		AddRow(uuid.New(), userID, models.AttrPodAccess, "pod-12", true, nil, nil, now.Add(-time.Hour)).
		AddRow(uuid.New(), userID, models.AttrEmergencyOverride, "true", true, expiry, nil, now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT id, user_id, name, value, is_active, expires_at, granted_by, created_at\s+FROM user_attributes`).
		WithArgs(userID, now).
		WillReturnRows(rows)

	attrs, err := repo.ActiveAttributes(context.Background(), userID, now)
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, models.AttrPodAccess, attrs[0].Name)
	assert.Equal(t, "pod-12", attrs[0].Value)
	require.NotNil(t, attrs[1].ExpiresAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttributeRepository_InsertAttributes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttributeRepository(db, zap.NewNop())

	userID := uuid.New()
	grantor := uuid.New()
	expiry := time.Now().Add(30 * time.Minute)

	attrs := []*models.UserAttribute{
		models.NewUserAttribute(userID, models.AttrJITPermission, "billing:submit").
			WithExpiry(expiry).WithGrantor(grantor),
		models.NewUserAttribute(userID, models.AttrJITPermission, "billing:adjust").
			WithExpiry(expiry).WithGrantor(grantor),
	}

	for range attrs {
		mock.ExpectExec(`INSERT INTO user_attributes`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	err := repo.InsertAttributes(context.Background(), attrs)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttributeRepository_InsertAttributes_FailurePropagates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttributeRepository(db, zap.NewNop())

	userID := uuid.New()
	attrs := []*models.UserAttribute{
		models.NewUserAttribute(userID, models.AttrJITPermission, "billing:submit"),
	}

	mock.ExpectExec(`INSERT INTO user_attributes`).
		WillReturnError(assert.AnError)

	err := repo.InsertAttributes(context.Background(), attrs)
	assert.Error(t, err)
}

func TestAttributeRepository_HasActiveCaseload(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttributeRepository(db, zap.NewNop())

	userID := uuid.New()
	clientID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(userID, clientID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasActiveCaseload(context.Background(), userID, clientID)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(userID, clientID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err = repo.HasActiveCaseload(context.Background(), userID, clientID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttributeRepository_ShiftCaregiver(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttributeRepository(db, zap.NewNop())

	shiftID := uuid.New()
	caregiverID := uuid.New()

	mock.ExpectQuery(`SELECT caregiver_id FROM shifts`).
		WithArgs(shiftID).
		WillReturnRows(sqlmock.NewRows([]string{"caregiver_id"}).AddRow(caregiverID))

	got, err := repo.ShiftCaregiver(context.Background(), shiftID)
	require.NoError(t, err)
	assert.Equal(t, caregiverID, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttributeRepository_FamilyClientIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttributeRepository(db, zap.NewNop())

	userID := uuid.New()
	clientA := uuid.New()
	clientB := uuid.New()

	mock.ExpectQuery(`SELECT client_id FROM family_links`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}).AddRow(clientA).AddRow(clientB))

	ids, err := repo.FamilyClientIDs(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{clientA, clientB}, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}
