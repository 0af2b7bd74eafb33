package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clinic/internal/config"
	"clinic/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	storagePath := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(tempDir, "source.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.CreateService(context.Background(), &models.Service{Name: "Checkup", DurationMinutes: 30}))

	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	s := NewBackupService(db, cfg, &logger)

	var backupPath string
	t.Run("PerformBackup", func(t *testing.T) {
		backupPath, err = s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, backupPath)

		// копия открывается и содержит данные
		copyDB, err := NewDB(backupPath, &logger)
		require.NoError(t, err)
		defer copyDB.Close()
		svc, err := copyDB.GetServiceByName(context.Background(), "Checkup")
		require.NoError(t, err)
		assert.Equal(t, 30, svc.DurationMinutes)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "clinic_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		assert.Equal(t, 1, s.CleanupOldBackups())
		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, backupPath)
	})

	t.Run("CleanupKeepsNewest", func(t *testing.T) {
		oldTime := time.Now().AddDate(0, 0, -5)
		require.NoError(t, os.Chtimes(backupPath, oldTime, oldTime))
		assert.Equal(t, 0, s.CleanupOldBackups())
		assert.FileExists(t, backupPath)
	})
}

func TestBackupService_Disabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}
