// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Provider names accepted in AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Discord  DiscordConfig
	AI       AIConfig
	Database DatabaseConfig
	Cleanup  CleanupConfig
	Env      string
}

type DiscordConfig struct {
	Token string
}

type AIConfig struct {
	Provider string

	// Gemini / Vertex AI
	ProjectID string
	Location  string
	Model     string

	// OpenAI
	OpenAIKey   string
	OpenAIModel string
}

type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

type CleanupConfig struct {
	// IntervalHours between background cleanup sweeps; 0 disables them.
	IntervalHours int
	// MaxAgeHours a context may be idle before a sweep removes it.
	MaxAgeHours int
}

// Load reads configuration from the environment. Call godotenv first if a
// .env file should be honored.
func Load() *Config {
	return &Config{
		Discord: DiscordConfig{
			Token: os.Getenv("DISCORD_BOT_TOKEN"),
		},
		AI: AIConfig{
			Provider:    getEnv("AI_PROVIDER", ProviderGemini),
			ProjectID:   os.Getenv("GCP_PROJECT_ID"),
			Location:    getEnv("GCP_LOCATION", "us-central1"),
			Model:       getEnv("VERTEX_AI_MODEL", "gemini-1.5-pro"),
			OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			Path:   getEnv("DATABASE_PATH", "data/threads.db"),
			DSN:    os.Getenv("DATABASE_DSN"),
		},
		Cleanup: CleanupConfig{
			IntervalHours: getEnvInt("CLEANUP_INTERVAL_HOURS", 0),
			MaxAgeHours:   getEnvInt("CLEANUP_MAX_AGE_HOURS", 24),
		},
		Env: getEnv("APP_ENV", "development"),
	}
}

// Validate reports the first fatal configuration problem. The process must
// not start serving with an invalid config.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	switch c.AI.Provider {
	case ProviderGemini:
		if c.AI.ProjectID == "" || c.AI.Location == "" {
			return fmt.Errorf("GCP_PROJECT_ID and GCP_LOCATION are required for the gemini provider")
		}
	case ProviderOpenAI:
		if c.AI.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER: %q", c.AI.Provider)
	}

	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required when DB_DRIVER=postgres")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
