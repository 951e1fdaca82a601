// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variables read by applyEnv.
const (
	EnvPort            = "SCRIPTFINDER_PORT"
	EnvDebug           = "SCRIPTFINDER_DEBUG"
	EnvLogLevel        = "SCRIPTFINDER_LOG_LEVEL"
	EnvCatalog         = "SCRIPTFINDER_CATALOG"
	EnvSessionTimeout  = "SCRIPTFINDER_SESSION_TIMEOUT"
	EnvBindToRequester = "SCRIPTFINDER_BIND_TO_REQUESTER"
	EnvFallback        = "SCRIPTFINDER_FALLBACK"
	EnvFallbackRPM     = "SCRIPTFINDER_FALLBACK_RPM"
	EnvCacheDir        = "SCRIPTFINDER_CACHE_DIR"
	EnvGitHubToken     = "GITHUB_TOKEN"
	EnvWebhookURL      = "REQUEST_WEBHOOK_URL"
)

func applyEnv(cfg *Config) {
	cfg.LogLevel = envString(EnvLogLevel, cfg.LogLevel)
	cfg.Server.Port = envInt(EnvPort, cfg.Server.Port)
	cfg.Server.Debug = envBool(EnvDebug, cfg.Server.Debug)
	cfg.Catalog.Path = envString(EnvCatalog, cfg.Catalog.Path)
	cfg.Session.Timeout = envDuration(EnvSessionTimeout, cfg.Session.Timeout)
	cfg.Session.BindToRequester = envBool(EnvBindToRequester, cfg.Session.BindToRequester)
	cfg.Fallback.Enabled = envBool(EnvFallback, cfg.Fallback.Enabled)
	cfg.Fallback.RequestsPerMinute = envInt(EnvFallbackRPM, cfg.Fallback.RequestsPerMinute)
	cfg.Fallback.CacheDir = envString(EnvCacheDir, cfg.Fallback.CacheDir)
	cfg.Fallback.Token = envString(EnvGitHubToken, cfg.Fallback.Token)
	cfg.Forward.WebhookURL = envString(EnvWebhookURL, cfg.Forward.WebhookURL)
}

// envString reads a string environment variable with a default value.
func envString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envBool reads a boolean environment variable with a default value.
func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envDuration reads a time.Duration environment variable with a default value.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
