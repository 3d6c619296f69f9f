package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Party   PartyConfig
	Storage StorageConfig
	Spotify SpotifyConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Env  string `env:"ENV" envDefault:"development"` // "development" or "production"
}

// PartyConfig holds party-related configuration
type PartyConfig struct {
	CodeLength         int  `env:"PARTY_CODE_LENGTH" envDefault:"6"`
	GracePeriodSeconds int  `env:"PARTY_GRACE_PERIOD_SECONDS" envDefault:"120"`
	AllowSelfRemove    bool `env:"PARTY_ALLOW_SELF_REMOVE" envDefault:"true"`
}

// StorageConfig holds persistence configuration. An empty DatabaseURL selects
// the in-memory store; an empty RedisAddr disables the cross-node relay.
type StorageConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`
}

// SpotifyConfig holds catalog credentials. Search and playback are disabled
// when the client ID is empty. RedirectURL must match the URL registered in
// the Spotify developer dashboard.
type SpotifyConfig struct {
	ClientID     string `env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURL  string `env:"SPOTIFY_REDIRECT_URL" envDefault:"http://localhost:8080/api/spotify/callback"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from a .env file if present, then the environment
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// GracePeriod returns the idle-party grace period as a duration
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Party.GracePeriodSeconds) * time.Second
}
