// Package config loads service configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Seed     SeedConfig     `yaml:"seed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig holds connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// SeedConfig controls the bootstrap seeding routine.
type SeedConfig struct {
	OnStart bool `yaml:"on_start"`
}

// Load reads the config file when present and applies environment overrides.
// A missing file is not an error: everything can come from the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{MaxConns: 25, MinConns: 5},
		Logging:  LoggingConfig{Level: "info"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required (DATABASE_URL or config file)")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if os.Getenv("APP_ENV") == "development" {
		c.Logging.Development = true
	}
	if os.Getenv("SEED_ON_START") == "true" {
		c.Seed.OnStart = true
	}
}
