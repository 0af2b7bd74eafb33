package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"clinic/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	admin    *models.User
	customer *models.User
	provider *models.Provider
	service  *models.Service
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	doctor := &models.User{Name: "Dr. Karimi", Email: "karimi@clinic.test", PasswordHash: "x", Role: models.RoleProvider}
	require.NoError(t, db.CreateUser(ctx, doctor))
	customer := &models.User{Name: "Sara", Email: "sara@clinic.test", PasswordHash: "x"}
	require.NoError(t, db.CreateUser(ctx, customer))
	admin := &models.User{Name: "Admin", Email: "admin@clinic.test", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.CreateUser(ctx, admin))

	provider := &models.Provider{UserID: doctor.ID, Speciality: "dentist", IsActive: true}
	require.NoError(t, db.CreateProvider(ctx, provider))
	service := &models.Service{Name: "Checkup", DurationMinutes: 30, Price: 1500, IsActive: true}
	require.NoError(t, db.CreateService(ctx, service))

	return fixture{admin: admin, customer: customer, provider: provider, service: service}
}

func createSlot(t *testing.T, db *DB, f fixture, date, start, end string) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		ProviderID:      f.provider.ID,
		ServiceID:       f.service.ID,
		AppointmentDate: date,
		StartTime:       start,
		EndTime:         end,
	}
	require.NoError(t, db.CreateAppointment(context.Background(), appt))
	return appt
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "clinic.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	require.NoError(t, db.CreateUser(context.Background(), &models.User{Name: "A", Email: "a@b.c", PasswordHash: "x"}))
	db.Close()

	// Повторное открытие не должно падать на CREATE TABLE IF NOT EXISTS
	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	u, err := db.GetUserByEmail(context.Background(), "A@B.C")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)
}

func TestDB_Health(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Health(context.Background()))
}
