package openapi

import (
	"fmt"
	"net/url"
	"os"
)

// Config holds OpenAPI metadata for spec generation. ServerURL replaces the
// API base path in the servers list when the service sits behind a proxy
// that rewrites paths.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	ServerURL   string `toml:"server_url"`
}

// ConfigEnv maps config fields to environment variable names for override injection.
type ConfigEnv struct {
	Title       string
	Description string
	ServerURL   string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Title != "" {
		c.Title = overlay.Title
	}
	if overlay.Description != "" {
		c.Description = overlay.Description
	}
	if overlay.ServerURL != "" {
		c.ServerURL = overlay.ServerURL
	}
}

// Server returns ServerURL, or basePath when none is configured.
func (c *Config) Server(basePath string) string {
	if c.ServerURL != "" {
		return c.ServerURL
	}
	return basePath
}

func (c *Config) loadDefaults() {
	if c.Title == "" {
		c.Title = "Ledger API"
	}
	if c.Description == "" {
		c.Description = "Financial document ingestion with checkpointed extraction, validation, compliance audit and human review."
	}
}

func (c *Config) loadEnv(env *ConfigEnv) {
	if env.Title != "" {
		if v := os.Getenv(env.Title); v != "" {
			c.Title = v
		}
	}
	if env.Description != "" {
		if v := os.Getenv(env.Description); v != "" {
			c.Description = v
		}
	}
	if env.ServerURL != "" {
		if v := os.Getenv(env.ServerURL); v != "" {
			c.ServerURL = v
		}
	}
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return nil
	}
	if _, err := url.Parse(c.ServerURL); err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	return nil
}
