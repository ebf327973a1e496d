package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:8080", cfg.MainAddr())
	assert.Equal(t, "0.0.0.0:27888", cfg.ControlAddr())
	assert.Equal(t, 120*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 3*time.Second, cfg.CleanupInterval)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("does/not/exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	yaml := `
main_port: 27999
server_name: "Test Arcade"
welcome_message: "hi"
max_users: 32
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 27999, cfg.MainPort)
	assert.Equal(t, "Test Arcade", cfg.ServerName)
	assert.Equal(t, "hi", cfg.WelcomeMessage)
	assert.Equal(t, 32, cfg.MaxUsers)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched keys keep their defaults.
	assert.Equal(t, 27888, cfg.ControlPort)
	assert.Equal(t, 120*time.Second, cfg.SessionTimeout)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("main_port: [oops"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
