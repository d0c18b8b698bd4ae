package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".harness/harness.db", s.DatabaseURL)
	assert.Equal(t, "@every 1m", s.MonitorSchedule)
	assert.Equal(t, ":8080", s.ListenAddr)
	assert.Equal(t, 10*time.Second, s.AgentPollInterval)
	assert.Equal(t, 30*time.Minute, s.StaleAfter)
	assert.Equal(t, 100.0, s.ServiceRate)
	assert.Equal(t, 200, s.ServiceBurst)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://localhost/harness
listen_addr: ":9090"
monitor_schedule: "@every 5m"
heartbeat_interval: 15s
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/harness", s.DatabaseURL)
	assert.Equal(t, ":9090", s.ListenAddr)
	assert.Equal(t, "@every 5m", s.MonitorSchedule)
	assert.Equal(t, 15*time.Second, s.HeartbeatInterval)
	// Untouched keys keep their defaults.
	assert.Equal(t, ":8081", s.ServiceListenAddr)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "listen_addr: \":9090\"\n")
	t.Setenv("HARNESS_LISTEN_ADDR", ":7070")
	t.Setenv("HARNESS_WEBHOOK_SECRET", "hunter2")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", s.ListenAddr)
	assert.Equal(t, "hunter2", s.WebhookSecret)
}

func TestLoadEmptyFileIsFine(t *testing.T) {
	path := writeConfig(t, "\n")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.ListenAddr)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "listen_addr: [unterminated\n")
	_, err := Load(path)
	require.Error(t, err)
}
