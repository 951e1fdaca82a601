// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads scriptfinder settings.
//
// Settings are layered: the embedded default_config.yaml, then an optional
// override file, then environment variables. The result is validated before
// it is returned.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

// MaxConfigFileSize bounds override files.
const MaxConfigFileSize = 1 << 20

// Config is the complete service configuration.
//
// Thread Safety: Immutable after Load; safe for concurrent reads.
type Config struct {
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Session  SessionConfig  `yaml:"session"`
	Fallback FallbackConfig `yaml:"fallback"`
	Forward  ForwardConfig  `yaml:"forward"`
}

// ServerConfig configures the HTTP interaction API.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	Debug           bool          `yaml:"debug"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// CatalogConfig locates the script catalog.
type CatalogConfig struct {
	// Path is a .json, .yaml/.yml or .toml file.
	Path string `yaml:"path" validate:"required"`
}

// SessionConfig configures disambiguation sessions.
type SessionConfig struct {
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	Retention       time.Duration `yaml:"retention" validate:"gte=0"`
	BindToRequester bool          `yaml:"bind_to_requester"`
}

// FallbackConfig configures the external code search.
type FallbackConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	PerPage           int           `yaml:"per_page" validate:"min=1,max=100"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`

	// CacheDir enables the on-disk result cache when set.
	CacheDir string        `yaml:"cache_dir"`
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`

	// Token is a GitHub token. Prefer GITHUB_TOKEN over writing it to a file.
	Token string `yaml:"token"`
}

// ForwardConfig configures request forwarding.
type ForwardConfig struct {
	WebhookURL string        `yaml:"webhook_url" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Default returns the embedded defaults without environment overrides.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("Default: parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from the embedded defaults, applies overridePath (if not empty)
//	on top, then environment variables, then validates.
//
// Inputs:
//
//	overridePath - Optional YAML file. Keys it omits keep their defaults.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if a file cannot be read or parsed, or validation fails.
func Load(overridePath string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if overridePath != "" {
		data, err := readOverride(overridePath)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load: parsing %s: %w", overridePath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

func readOverride(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%s exceeds maximum size (%d > %d)", path, info.Size(), MaxConfigFileSize)
	}
	return os.ReadFile(path)
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to a slog.Level. Unknown names are Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
