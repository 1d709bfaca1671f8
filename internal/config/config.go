// Package config loads server settings from the environment (after an
// optional .env file has been applied by the caller).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jeffreyp/wordgame/internal/game"
)

// Config is the process configuration.
type Config struct {
	Port         string `env:"PORT" envDefault:"5000"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`
	SecretKey    string `env:"SECRET_KEY" envDefault:"dev_key"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	GridSize      int           `env:"GRID_SIZE" envDefault:"4"`
	RoundDuration time.Duration `env:"ROUND_DURATION" envDefault:"120s"`
	WordsFile     string        `env:"WORDS_FILE"`
	MinWordLength int           `env:"MIN_WORD_LENGTH" envDefault:"3"`

	// DBPath enables the finished-round archive when set.
	DBPath string `env:"DB_PATH"`
}

// Load parses the process environment into a Config and validates it.
func Load() (Config, error) { return LoadFrom(nil) }

// LoadFrom is Load over an explicit environment; nil means the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if err := game.ValidateGridSize(c.GridSize); err != nil {
		errs = append(errs, fmt.Errorf("GRID_SIZE: %w", err))
	}
	if c.RoundDuration <= 0 {
		errs = append(errs, fmt.Errorf("ROUND_DURATION must be positive, got %s", c.RoundDuration))
	}
	if c.MinWordLength < 1 {
		errs = append(errs, fmt.Errorf("MIN_WORD_LENGTH must be at least 1, got %d", c.MinWordLength))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c Config) Addr() string { return ":" + c.Port }
