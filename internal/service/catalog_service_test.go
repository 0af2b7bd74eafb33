package service

import (
	"context"
	"io"
	"testing"

	"clinic/internal/database"
	"clinic/internal/domain"
	"clinic/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_NoProviders(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	catalog := NewCatalogService(db, db, db)
	_, err = catalog.GetProviders(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	services, err := catalog.GetActiveServices(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, services)
	assert.Empty(t, services)
}

func TestCatalog_AvailableSlots(t *testing.T) {
	env := newTestEnv(t)
	catalog := NewCatalogService(env.db, env.db, env.db)
	ctx := context.Background()

	env.insertSlot(t, 1, "09:00", models.StatusOpen, nil)
	env.insertSlot(t, 2, "10:00", models.StatusReserved, models.Int64Ptr(7))
	env.insertSlot(t, 3, "11:00", models.StatusCompleted, nil)
	env.insertSlot(t, 4, "12:00", models.StatusCancelled, nil)
	require.NoError(t, env.db.CreateSchedule(ctx, &models.ProviderSchedule{
		ProviderID: env.provider.ID, DayOfWeek: "saturday", StartTime: "09:00", EndTime: "13:00",
	}))

	providers, err := catalog.GetProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 1)

	slots, err := catalog.GetAvailableSlots(ctx, env.provider.ID, "1404-10-13", "Saturday")
	require.NoError(t, err)
	require.Len(t, slots.Appointments, 2)
	assert.Equal(t, int64(1), slots.Appointments[0].ID)
	assert.Equal(t, int64(3), slots.Appointments[1].ID)
	require.Len(t, slots.Schedules, 1)
	assert.Equal(t, "saturday", slots.DayOfWeek)

	empty, err := catalog.GetAvailableSlots(ctx, env.provider.ID, "1404-11-01", "")
	require.NoError(t, err)
	assert.NotNil(t, empty.Appointments)
	assert.Empty(t, empty.Appointments)
	assert.Empty(t, empty.Schedules)

	_, err = catalog.GetAvailableSlots(ctx, env.provider.ID, "tomorrow", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = catalog.GetAvailableSlots(ctx, 404, "1404-10-13", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
