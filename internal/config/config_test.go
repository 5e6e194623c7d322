package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coachboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithMockCoach(t *testing.T) {
	t.Setenv("COACH_USE_MOCK", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 30*24*time.Hour, cfg.Auth.SessionTTL)
	require.True(t, cfg.Coach.UseMock)
	require.False(t, cfg.BillingEnabled())
	require.False(t, cfg.TelegramEnabled())
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
database:
  path: /tmp/coach.db
auth:
  session_ttl: 48h
coach:
  api_key: file-key
  model: gemini-2.5-pro
schedule:
  daily_summary: "0 21 * * *"
`)
	t.Setenv("PORT", "7070")
	t.Setenv("COACH_MODEL", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "/tmp/coach.db", cfg.Database.Path)
	require.Equal(t, 48*time.Hour, cfg.Auth.SessionTTL)
	require.Equal(t, "file-key", cfg.Coach.APIKey)
	require.Equal(t, "gemini-2.5-pro", cfg.Coach.Model)
	require.Equal(t, "0 21 * * *", cfg.Schedule.DailySummary)
	require.Equal(t, "* * * * *", cfg.Schedule.Reminders)
}

func TestLoadRejectsIncompleteBilling(t *testing.T) {
	t.Setenv("COACH_USE_MOCK", "1")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	_, err := Load("")
	require.ErrorContains(t, err, "webhook_secret")
}

func TestLoadRequiresCoachKey(t *testing.T) {
	t.Setenv("COACH_USE_MOCK", "false")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load("")
	require.ErrorContains(t, err, "coach.api_key")
}

func TestLoadInvalidBool(t *testing.T) {
	t.Setenv("COACH_USE_MOCK", "maybe")

	_, err := Load("")
	require.ErrorContains(t, err, "COACH_USE_MOCK")
}
