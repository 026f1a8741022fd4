// internal/config/config.go
//
// Server settings loaded from the environment (after godotenv has merged .env).
// Every field has a default suited to local development.

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the server. Defaults suit local development.
type Config struct {
	Port     string `env:"PORT"      envDefault:"5175"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath   string `env:"DB_PATH"   envDefault:"./data/wordguess.db"`

	WordAPIURL     string        `env:"WORD_API_URL"     envDefault:"https://random-word-api.herokuapp.com"`
	WordAPITimeout time.Duration `env:"WORD_API_TIMEOUT" envDefault:"10s"`
	TickInterval   time.Duration `env:"TICK_INTERVAL"    envDefault:"1s"`

	JWTSecret      string        `env:"JWT_SECRET"       envDefault:"dev_secret_change_me"`
	SessionTTL     time.Duration `env:"SESSION_TTL"      envDefault:"2h"`
	RateLimitRPS   int           `env:"RATE_LIMIT_RPS"   envDefault:"5"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
	ClientOrigin   string        `env:"CLIENT_ORIGIN"    envDefault:"http://localhost:5173"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
