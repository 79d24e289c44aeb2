// Package config provides configuration for the chat service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the chat service configuration.
type Config struct {
	// Server settings
	HTTPPort       int      `env:"HTTP_PORT" envDefault:"3000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Storage
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:chat.db?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Auth settings
	CookieSecret         string        `env:"COOKIE_SECRET,required"`
	SessionCookieName    string        `env:"SESSION_COOKIE_NAME" envDefault:"sessionId"`
	SessionKeyPrefix     string        `env:"SESSION_KEY_PREFIX"`
	SessionLookupTimeout time.Duration `env:"SESSION_LOOKUP_TIMEOUT" envDefault:"2s"`
	RequiredRole         string        `env:"REQUIRED_ROLE" envDefault:"onroad"`

	// WebSocket settings
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`
	SendBufferSize int           `env:"WS_SEND_BUFFER" envDefault:"256"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PingInterval >= cfg.ReadTimeout {
		return nil, fmt.Errorf("WS_PING_INTERVAL (%s) must be shorter than WS_READ_TIMEOUT (%s)", cfg.PingInterval, cfg.ReadTimeout)
	}
	return &cfg, nil
}
