package database

import (
	"context"
	"io"
	"testing"
	"time"

	"clinic/internal/domain"
	"clinic/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close() // Close the DB to trigger errors

	ctx := context.Background()

	t.Run("GetAppointment_Error", func(t *testing.T) {
		_, err := db.GetAppointment(ctx, 1)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("CreateAppointment_Error", func(t *testing.T) {
		err := db.CreateAppointment(ctx, &models.Appointment{})
		assert.Error(t, err)
	})

	t.Run("UpdateAppointment_Error", func(t *testing.T) {
		err := db.UpdateAppointment(ctx, 1, models.AppointmentUpdate{Status: models.StringPtr(models.StatusOpen)})
		assert.Error(t, err)
	})

	t.Run("SwapAppointments_Error", func(t *testing.T) {
		assert.Error(t, db.SwapAppointments(ctx, 1, 2, 3))
	})

	t.Run("Lists_Error", func(t *testing.T) {
		_, err := db.GetAllAppointments(ctx)
		assert.Error(t, err)
		_, err = db.GetCustomerAppointments(ctx, 1)
		assert.Error(t, err)
		_, err = db.GetOpenAppointments(ctx, 1, "1404-10-13")
		assert.Error(t, err)
		_, err = db.GetReportRows(ctx)
		assert.Error(t, err)
		_, err = db.GetProviders(ctx)
		assert.Error(t, err)
		_, err = db.GetActiveServices(ctx)
		assert.Error(t, err)
	})

	t.Run("Leases_Error", func(t *testing.T) {
		_, err := db.AcquireLease(ctx, "k", "o", time.Second)
		assert.Error(t, err)
		_, err = db.ReleaseLease(ctx, "k", "o")
		assert.Error(t, err)
		_, err = db.DeleteExpiredLeases(ctx, time.Now())
		assert.Error(t, err)
	})

	t.Run("Tokens_Error", func(t *testing.T) {
		assert.Error(t, db.CreateToken(ctx, &models.AccessToken{}))
		_, err := db.DeleteExpiredTokens(ctx, time.Now())
		assert.Error(t, err)
	})

	t.Run("Health_Error", func(t *testing.T) {
		assert.Error(t, db.Health(ctx))
	})
}
