package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	EnvProduction = "production"

	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// AppConfig holds the server settings read from the environment.
type AppConfig struct {
	// Env selects the OTP policy; anything but "production" enables the debug code.
	Env                string `env:"APP_ENV" envDefault:"development"`
	ServerPort         string `env:"SERVER_PORT" envDefault:"8080"`
	JWTSecret          string `env:"JWT_SECRET_KEY"`
	JWTExpirationHours int64  `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`
	// Storage is "postgres" or "memory". The memory store loses everything on
	// restart and is refused in production.
	Storage            string `env:"STORAGE" envDefault:"postgres"`

	SMSAPIKey  string `env:"SMS_API_KEY"`
	SMSBaseURL string `env:"SMS_BASE_URL" envDefault:"https://www.smslocal.com/dev/bulkV2"`
	SMSSender  string `env:"SMS_SENDER"`
}

// LoadAppConfig parses AppConfig from the environment and validates it.
func LoadAppConfig() (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET_KEY must be set")
	}
	if cfg.JWTExpirationHours <= 0 {
		return nil, errors.New("config: JWT_EXPIRATION_HOURS must be positive")
	}
	switch cfg.Storage {
	case StoragePostgres:
	case StorageMemory:
		if cfg.IsProduction() {
			return nil, errors.New("config: STORAGE=memory is not allowed when APP_ENV=production")
		}
	default:
		return nil, fmt.Errorf("config: unknown STORAGE %q", cfg.Storage)
	}
	if cfg.IsProduction() && cfg.SMSAPIKey == "" {
		return nil, errors.New("config: SMS_API_KEY must be set when APP_ENV=production")
	}
	return &cfg, nil
}

// IsProduction reports whether the server runs with production OTP policy.
func (c *AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}
