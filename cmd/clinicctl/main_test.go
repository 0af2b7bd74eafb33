package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clinic/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "database:\n  path: \"" + filepath.Join(dir, "clinic.db") + "\"\n" +
		"backup:\n  storage_path: \"" + filepath.Join(dir, "backups") + "\"\n" +
		"logging:\n  level: \"error\"\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestUserCreateAndList(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "user", "create",
		"--name", "Admin", "--email", "admin@clinic.test", "--password", "secret-pass", "--role", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, `created admin user "admin@clinic.test"`)

	_, err = execute(t, "--config", cfg, "user", "create",
		"--name", "Admin", "--email", "admin@clinic.test", "--password", "secret-pass")
	require.Error(t, err)

	out, err = execute(t, "--config", cfg, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "admin@clinic.test")
	assert.Contains(t, out, "admin")
}

func TestProviderActivateUnknown(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "--config", cfg, "provider", "deactivate", "42")
	require.Error(t, err)

	_, err = execute(t, "--config", cfg, "provider", "activate", "abc")
	require.Error(t, err)
}

func TestBackupAndReport(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "backup")
	require.NoError(t, err)
	assert.Contains(t, out, "backup written to")

	exports := t.TempDir()
	out, err = execute(t, "--config", cfg, "report", "--dir", exports)
	require.NoError(t, err)
	assert.Contains(t, out, exports)

	entries, err := os.ReadDir(exports)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".xlsx"))
}

func TestPrintReport(t *testing.T) {
	rows := []*models.ReportRow{
		{AppointmentID: 12, AppointmentDate: "1404-10-13", ProviderName: "Dr. Rahimi", ServiceName: "Consultation",
			CustomerName: "Sara", StartTime: "09:00", EndTime: "09:30", Status: models.StatusReserved},
		{AppointmentID: 13, AppointmentDate: "1404-10-13", ProviderName: "Dr. Rahimi", ServiceName: "Consultation",
			StartTime: "09:30", EndTime: "10:00", Status: models.StatusOpen},
	}

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "09:00-09:30")
	assert.Contains(t, lines[1], "Sara")
	assert.Contains(t, lines[2], " - ")
}
