// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is every knob the service reads. Optional integrations stay off
// while their key is empty.
type Config struct {
	Port         string `env:"PORT" envDefault:"5175"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty    bool   `env:"LOG_PRETTY" envDefault:"false"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	SessionSecret string        `env:"SESSION_SECRET" envDefault:"dev-secret-change-me"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"2h"`

	OracleAPIKey     string        `env:"ORACLE_API_KEY"`
	OracleBaseURL    string        `env:"ORACLE_BASE_URL" envDefault:"https://api.openai.com/v1/"`
	OracleModel      string        `env:"ORACLE_MODEL" envDefault:"gpt-4o-mini"`
	OracleTimeout    time.Duration `env:"ORACLE_TIMEOUT" envDefault:"30s"`
	OracleMaxRetries int           `env:"ORACLE_MAX_RETRIES" envDefault:"0"`
	OracleCacheTTL   time.Duration `env:"ORACLE_CACHE_TTL" envDefault:"24h"`

	RiddlesFile   string `env:"RIDDLES_FILE"`
	CatalogDB     string `env:"CATALOG_DB"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"sql"`
	DailySalt     string `env:"DAILY_SALT" envDefault:"riddler"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	TelegramToken string `env:"TELEGRAM_TOKEN"`

	VisionCredentialsFile string `env:"VISION_CREDENTIALS_FILE"`
}

// Load parses the process environment. Call godotenv first if a .env
// file should be honoured.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("parse env: SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	return cfg, nil
}
