package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/caarlos0/env/v11"

	"trivia/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Game     GameConfig
	Logging  LoggingConfig
	AI       AIConfig
	Storage  StorageConfig
	Netcheck NetcheckConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Env  string `env:"ENV" envDefault:"development"` // "development" or "production"
}

// GameConfig holds game-related configuration
type GameConfig struct {
	DirectTimeLimit time.Duration `env:"DIRECT_TIME_LIMIT" envDefault:"45s"`
	ChoiceTimeLimit time.Duration `env:"CHOICE_TIME_LIMIT" envDefault:"20s"`
	NextTurnDelay   time.Duration `env:"NEXT_TURN_DELAY" envDefault:"7s"`
	WinThreshold    int           `env:"WIN_THRESHOLD" envDefault:"10"`
	MinPlayers      int           `env:"MIN_PLAYERS" envDefault:"2"`
	MaxPlayers      int           `env:"MAX_PLAYERS" envDefault:"6"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	Format string     `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// AIConfig configures the question and grading service
type AIConfig struct {
	APIKey  string        `env:"AI_API_KEY"`
	BaseURL string        `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1/"`
	Model   string        `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	Timeout time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
}

// StorageConfig configures the game history database
type StorageConfig struct {
	DBPath string `env:"DB_PATH" envDefault:"data/trivia.db"`
}

// NetcheckConfig configures the connectivity probe
type NetcheckConfig struct {
	Addr     string        `env:"NETCHECK_ADDR" envDefault:"api.openai.com:443"`
	Interval time.Duration `env:"NETCHECK_INTERVAL" envDefault:"5s"`
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the game cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Game.DirectTimeLimit < time.Second || c.Game.ChoiceTimeLimit < time.Second {
		errs = append(errs, errors.New("time limits must be at least one second"))
	}
	if c.Game.NextTurnDelay < 0 {
		errs = append(errs, errors.New("NEXT_TURN_DELAY must not be negative"))
	}
	if c.Game.WinThreshold < 1 {
		errs = append(errs, errors.New("WIN_THRESHOLD must be positive"))
	}
	if c.Game.MinPlayers < 2 {
		errs = append(errs, errors.New("MIN_PLAYERS must be at least 2"))
	}
	if c.Game.MaxPlayers < c.Game.MinPlayers {
		errs = append(errs, errors.New("MAX_PLAYERS must not be below MIN_PLAYERS"))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Logging.Format))
	}
	if c.Netcheck.Interval <= 0 {
		errs = append(errs, errors.New("NETCHECK_INTERVAL must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// GameSettings converts the game section to engine settings
func (c *Config) GameSettings() domain.GameSettings {
	settings := domain.DefaultGameSettings()
	settings.MinPlayers = c.Game.MinPlayers
	settings.MaxPlayers = c.Game.MaxPlayers
	settings.DirectTimeLimit = c.Game.DirectTimeLimit
	settings.ChoiceTimeLimit = c.Game.ChoiceTimeLimit
	settings.ResultDelay = c.Game.NextTurnDelay
	settings.WinThreshold = c.Game.WinThreshold
	return settings
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
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}
