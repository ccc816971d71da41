package graph

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Graph backends.
const (
	ProviderNeo4j  = "neo4j"
	ProviderMemory = "memory"
)

// Config holds graph backend selection and Neo4j connection parameters.
type Config struct {
	Provider       string `toml:"provider"`
	URI            string `toml:"uri"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Database       string `toml:"database"`
	ConnectTimeout string `toml:"connect_timeout"`
}

// Env maps config fields to environment variable names.
type Env struct {
	Provider       string
	URI            string
	Username       string
	Password       string
	Database       string
	ConnectTimeout string
}

// ConnectTimeoutDuration returns ConnectTimeout as a time.Duration.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnectTimeout)
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
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.URI != "" {
		c.URI = overlay.URI
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.Database != "" {
		c.Database = overlay.Database
	}
	if overlay.ConnectTimeout != "" {
		c.ConnectTimeout = overlay.ConnectTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderNeo4j
	}
	if c.URI == "" {
		c.URI = "neo4j://localhost:7687"
	}
	if c.Username == "" {
		c.Username = "neo4j"
	}
	if c.Database == "" {
		c.Database = "neo4j"
	}
	if c.ConnectTimeout == "" {
		c.ConnectTimeout = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.URI != "" {
		if v := os.Getenv(env.URI); v != "" {
			c.URI = v
		}
	}
	if env.Username != "" {
		if v := os.Getenv(env.Username); v != "" {
			c.Username = v
		}
	}
	if env.Password != "" {
		if v := os.Getenv(env.Password); v != "" {
			c.Password = v
		}
	}
	if env.Database != "" {
		if v := os.Getenv(env.Database); v != "" {
			c.Database = v
		}
	}
	if env.ConnectTimeout != "" {
		if v := os.Getenv(env.ConnectTimeout); v != "" {
			c.ConnectTimeout = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderNeo4j:
	case ProviderMemory:
		return nil
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider)
	}

	switch {
	case strings.HasPrefix(c.URI, "neo4j://"),
		strings.HasPrefix(c.URI, "neo4j+s://"),
		strings.HasPrefix(c.URI, "bolt://"),
		strings.HasPrefix(c.URI, "bolt+s://"):
	default:
		return fmt.Errorf("unsupported uri scheme: %s", c.URI)
	}
	if _, err := time.ParseDuration(c.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid connect_timeout: %w", err)
	}
	return nil
}
