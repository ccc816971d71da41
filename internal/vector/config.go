package vector

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config points at an OpenAI-compatible embeddings endpoint. An empty
// Endpoint disables indexing.
type Config struct {
	Endpoint   string `toml:"endpoint"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	MaxChars   int    `toml:"max_chars"`
	Timeout    string `toml:"timeout"`
}

// Env maps config fields to environment variable names.
type Env struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions string
	MaxChars   string
	Timeout    string
}

// Enabled reports whether an embeddings endpoint is configured.
func (c *Config) Enabled() bool {
	return c.Endpoint != ""
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Dimensions != 0 {
		c.Dimensions = overlay.Dimensions
	}
	if overlay.MaxChars != 0 {
		c.MaxChars = overlay.MaxChars
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.MaxChars == 0 {
		c.MaxChars = 8000
	}
	if c.Timeout == "" {
		c.Timeout = "20s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Endpoint != "" {
		if v := os.Getenv(env.Endpoint); v != "" {
			c.Endpoint = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.Dimensions != "" {
		if v := os.Getenv(env.Dimensions); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Dimensions = n
			}
		}
	}
	if env.MaxChars != "" {
		if v := os.Getenv(env.MaxChars); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxChars = n
			}
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.Dimensions < 0 {
		return fmt.Errorf("dimensions must be non-negative")
	}
	if c.MaxChars <= 0 {
		return fmt.Errorf("max_chars must be positive")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
