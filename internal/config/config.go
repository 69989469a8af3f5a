// Package config loads process settings for the avocado.town binaries.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Server is the server process configuration. Command-line flags may
// override any field after Load.
type Server struct {
	Addr           string   `env:"AVOCADO_ADDR" envDefault:":8080"`
	DBPath         string   `env:"AVOCADO_DB_PATH" envDefault:"data/avocado.sqlite"`
	DataDir        string   `env:"AVOCADO_DATA_DIR" envDefault:"data"`
	TuningPath     string   `env:"AVOCADO_TUNING" envDefault:"configs/tuning.yaml"`
	LegacyPath     string   `env:"AVOCADO_LEGACY_DB"`
	AllowedOrigins []string `env:"AVOCADO_ALLOWED_ORIGINS" envSeparator:","`
	PersistQueue   int      `env:"AVOCADO_PERSIST_QUEUE" envDefault:"4096"`
	ClientQueue    int      `env:"AVOCADO_CLIENT_QUEUE" envDefault:"256"`
	DisableJournal bool     `env:"AVOCADO_DISABLE_JOURNAL"`
}

// MemoryDB selects the in-process store instead of SQLite.
const MemoryDB = ":mem:"

// Load reads Server from the environment.
func Load() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Server) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DBPath == "" {
		return errors.New("AVOCADO_DB_PATH is required")
	}
	if c.PersistQueue <= 0 {
		return fmt.Errorf("persist queue must be > 0 (got %d)", c.PersistQueue)
	}
	if c.ClientQueue <= 0 {
		return fmt.Errorf("client queue must be > 0 (got %d)", c.ClientQueue)
	}
	return nil
}
