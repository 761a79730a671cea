// internal/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISCORD_BOT_TOKEN", "AI_PROVIDER", "GCP_PROJECT_ID", "GCP_LOCATION",
		"VERTEX_AI_MODEL", "OPENAI_API_KEY", "OPENAI_MODEL",
		"DB_DRIVER", "DATABASE_PATH", "DATABASE_DSN",
		"CLEANUP_INTERVAL_HOURS", "CLEANUP_MAX_AGE_HOURS", "APP_ENV",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, "us-central1", cfg.AI.Location)
	assert.Equal(t, "gemini-1.5-pro", cfg.AI.Model)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/threads.db", cfg.Database.Path)
	assert.Equal(t, 0, cfg.Cleanup.IntervalHours)
	assert.Equal(t, 24, cfg.Cleanup.MaxAgeHours)
}

func TestValidate_MissingToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("GCP_PROJECT_ID", "proj")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_BOT_TOKEN")
}

func TestValidate_GeminiRequiresProject(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GCP_PROJECT_ID")
}

func TestValidate_OpenAIRequiresKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("AI_PROVIDER", "openai")

	err := Load().Validate()
	require.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.NoError(t, Load().Validate())
}

func TestValidate_UnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("AI_PROVIDER", "bard")

	assert.Error(t, Load().Validate())
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("GCP_PROJECT_ID", "proj")
	t.Setenv("DB_DRIVER", "postgres")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DSN")

	t.Setenv("DATABASE_DSN", "host=localhost user=bot dbname=threads")
	assert.NoError(t, Load().Validate())
}

func TestLoad_CleanupInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLEANUP_INTERVAL_HOURS", "6")
	t.Setenv("CLEANUP_MAX_AGE_HOURS", "not a number")

	cfg := Load()
	assert.Equal(t, 6, cfg.Cleanup.IntervalHours)
	assert.Equal(t, 24, cfg.Cleanup.MaxAgeHours)
}
