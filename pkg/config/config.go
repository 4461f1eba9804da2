package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration values
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	BackendURL  string        `env:"BACKEND_URL" envDefault:"http://localhost:5000"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	GeocoderURL       string        `env:"GEOCODER_URL" envDefault:"https://nominatim.openstreetmap.org"`
	GeocoderUserAgent string        `env:"GEOCODER_USER_AGENT" envDefault:"registration-portal/1.0"`
	LocationTimeout   time.Duration `env:"LOCATION_TIMEOUT" envDefault:"10s"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	// Redis is used for session storage when set, otherwise sessions live in memory.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	EventName         string `env:"EVENT_NAME" envDefault:"Yogi Vemana Jayanti Celebration"`
	EventSlug         string `env:"EVENT_SLUG" envDefault:"yogi_vemana_jayanti"`
	EventFilePrefix   string `env:"EVENT_FILE_PREFIX" envDefault:"YogiVemanaJayanti"`
	CertificatePrefix string `env:"CERTIFICATE_PREFIX" envDefault:"YVJ"`
	EventYear         int    `env:"EVENT_YEAR" envDefault:"2026"`
}

// LoadConfig reads configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
