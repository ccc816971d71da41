package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Provider names a blob storage backend.
type Provider string

const (
	ProviderAzure  Provider = "azure"
	ProviderMinio  Provider = "minio"
	ProviderMemory Provider = "memory"
)

// Config selects a blob provider and holds its connection parameters.
// Azure uses ConnectionString when set, otherwise AccountURL with the
// default Azure credential chain. MinIO uses Endpoint and static keys.
type Config struct {
	Provider         Provider `toml:"provider"`
	Container        string   `toml:"container"`
	ConnectionString string   `toml:"connection_string"`
	AccountURL       string   `toml:"account_url"`
	Endpoint         string   `toml:"endpoint"`
	AccessKey        string   `toml:"access_key"`
	SecretKey        string   `toml:"secret_key"`
	Region           string   `toml:"region"`
	UseSSL           bool     `toml:"use_ssl"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider         string
	Container        string
	ConnectionString string
	AccountURL       string
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Region           string
	UseSSL           string
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
	if overlay.Container != "" {
		c.Container = overlay.Container
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.AccountURL != "" {
		c.AccountURL = overlay.AccountURL
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.AccessKey != "" {
		c.AccessKey = overlay.AccessKey
	}
	if overlay.SecretKey != "" {
		c.SecretKey = overlay.SecretKey
	}
	if overlay.Region != "" {
		c.Region = overlay.Region
	}
	if overlay.UseSSL {
		c.UseSSL = true
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAzure
	}
	if c.Container == "" {
		c.Container = "documents"
	}
}

func (c *Config) loadEnv(env *Env) {
	str := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = Provider(v)
		}
	}
	str(env.Container, &c.Container)
	str(env.ConnectionString, &c.ConnectionString)
	str(env.AccountURL, &c.AccountURL)
	str(env.Endpoint, &c.Endpoint)
	str(env.AccessKey, &c.AccessKey)
	str(env.SecretKey, &c.SecretKey)
	str(env.Region, &c.Region)

	if env.UseSSL != "" {
		if v := os.Getenv(env.UseSSL); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.UseSSL = b
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Container == "" {
		return fmt.Errorf("container required")
	}

	switch c.Provider {
	case ProviderAzure:
		if c.ConnectionString == "" && c.AccountURL == "" {
			return fmt.Errorf("connection_string or account_url required")
		}
	case ProviderMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint required")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProvider, c.Provider)
	}
	return nil
}
