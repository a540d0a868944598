package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/amirmolavi/llamabot/pkg/logger"
)

// Config holds the environment-resolved settings shared by every bot.
type Config struct {
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL"`
	ModelName      string `env:"LLAMABOT_MODEL" envDefault:"gpt-4"`
	EmbeddingModel string `env:"LLAMABOT_EMBEDDING_MODEL" envDefault:"text-embedding-ada-002"`
	LogLevel       string `env:"LLAMABOT_LOG_LEVEL" envDefault:"info"`
}

var warnMissingKeyOnce sync.Once

// Load resolves configuration from dotenv files and the process
// environment. Variables already set in the environment win over file
// entries. A missing API key is warned about once, not failed on; the
// first model call surfaces the actual error.
func Load(ctx context.Context) (*Config, error) {
	loadDotenv()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if cfg.OpenAIAPIKey == "" {
		warnMissingKeyOnce.Do(func() {
			logger.FromContext(ctx).Warn(
				"no OpenAI API key found; set OPENAI_API_KEY before making model calls")
		})
	}
	return cfg, nil
}

// RCPath returns the user-level rc file consulted by Load.
func RCPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".llamabot", ".llamabotrc"), nil
}

func loadDotenv() {
	// Missing files are fine; the environment stays authoritative.
	_ = godotenv.Load(".env")
	if rc, err := RCPath(); err == nil {
		_ = godotenv.Load(rc)
	}
}
