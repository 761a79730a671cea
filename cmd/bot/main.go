// cmd/bot/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"discord-thread-bot/internal/ai"
	"discord-thread-bot/internal/bot"
	"discord-thread-bot/internal/config"
	"discord-thread-bot/internal/database"
	"discord-thread-bot/internal/thread"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		sugar.Fatalw("failed to open database", "error", err)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		sugar.Fatalw("failed to initialize AI provider", "error", err)
	}
	sugar.Infow("AI provider initialized", "provider", provider.Name())

	contexts := thread.NewService(db, sugar)
	streamer := ai.NewService(provider, sugar)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		sugar.Fatalw("failed to create Discord session", "error", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	discordBot, err := bot.NewBot(session, contexts, streamer, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize bot", "error", err)
	}

	if err := session.Open(); err != nil {
		sugar.Fatalw("failed to open Discord connection", "error", err)
	}
	defer session.Close()

	if err := discordBot.RegisterCommands(); err != nil {
		sugar.Fatalw("failed to register slash commands", "error", err)
	}

	if cfg.Cleanup.IntervalHours > 0 {
		go runCleanupLoop(contexts, cfg.Cleanup, sugar)
	}

	sugar.Infow("bot is running",
		"provider", provider.Name(),
		"database", cfg.Database.Driver)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sugar.Info("shutting down")
}

func newProvider(cfg *config.Config) (ai.Provider, error) {
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		return ai.NewGeminiProvider(context.Background(), cfg.AI.ProjectID, cfg.AI.Location, cfg.AI.Model)
	case config.ProviderOpenAI:
		return ai.NewOpenAIProvider(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q", cfg.AI.Provider)
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProductionConfig().Build()
	}
	return zap.NewDevelopmentConfig().Build()
}

// runCleanupLoop periodically removes contexts idle past the age
// threshold. The admin command uses the same threshold on demand.
func runCleanupLoop(contexts *thread.Service, cfg config.CleanupConfig, log *zap.SugaredLogger) {
	ticker := time.NewTicker(time.Duration(cfg.IntervalHours) * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		count := contexts.Cleanup(cfg.MaxAgeHours)
		log.Infow("background cleanup sweep finished", "removed", count)
	}
}
