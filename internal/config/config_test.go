package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
state:
  backend: memory
jwt:
  signing_key: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Equal(t, 10, cfg.Invite.LeaderboardSize)
	assert.Equal(t, 7*24*time.Hour, cfg.Invite.StatsWindow)
	assert.Equal(t, 5, cfg.Invite.MaxRetries)
	assert.Equal(t, 10*time.Minute, cfg.Invite.StalenessBound)
	assert.Equal(t, 24*time.Hour, cfg.Invite.AdminListTTL)
	assert.Equal(t, "log", cfg.Notify.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
invite:
  leaderboard_size: 25
  stats_window: 72h
  block_notice_ttl: 5s
bot:
  user_id: 777
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Invite.LeaderboardSize)
	assert.Equal(t, 72*time.Hour, cfg.Invite.StatsWindow)
	assert.Equal(t, 5*time.Second, cfg.Invite.BlockNoticeTTL)
	assert.Equal(t, int64(777), cfg.Bot.UserID)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
invite:
  max_retries: 3
`)
	t.Setenv("INVITE_MAX_RETRIES", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Invite.MaxRetries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
