package tracing

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Exporter names a span exporter.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPGRPC Exporter = "otlp-grpc"
	ExporterOTLPHTTP Exporter = "otlp-http"
)

// Config selects a span exporter and sampling policy.
type Config struct {
	Exporter     Exporter `toml:"exporter"`
	Endpoint     string   `toml:"endpoint"`
	Headers      string   `toml:"headers"`
	Insecure     bool     `toml:"insecure"`
	Sampler      string   `toml:"sampler"`
	SamplerRatio float64  `toml:"sampler_ratio"`
	ServiceName  string   `toml:"service_name"`
	Environment  string   `toml:"environment"`
}

// Env maps config fields to environment variable names.
type Env struct {
	Exporter     string
	Endpoint     string
	Headers      string
	Insecure     string
	Sampler      string
	SamplerRatio string
	ServiceName  string
	Environment  string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	c.applyEndpointDefault()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Exporter != "" {
		c.Exporter = overlay.Exporter
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.Headers != "" {
		c.Headers = overlay.Headers
	}
	if overlay.Insecure {
		c.Insecure = true
	}
	if overlay.Sampler != "" {
		c.Sampler = overlay.Sampler
	}
	if overlay.SamplerRatio != 0 {
		c.SamplerRatio = overlay.SamplerRatio
	}
	if overlay.ServiceName != "" {
		c.ServiceName = overlay.ServiceName
	}
	if overlay.Environment != "" {
		c.Environment = overlay.Environment
	}
}

// HeaderMap parses Headers as comma-separated key=value pairs.
func (c *Config) HeaderMap() map[string]string {
	out := map[string]string{}
	for _, p := range strings.Split(c.Headers, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func (c *Config) loadDefaults() {
	if c.Exporter == "" {
		c.Exporter = ExporterNone
	}
	if c.Sampler == "" {
		c.Sampler = "always_on"
	}
	if c.SamplerRatio == 0 {
		c.SamplerRatio = 1
	}
	if c.ServiceName == "" {
		c.ServiceName = "ledger"
	}
}

func (c *Config) applyEndpointDefault() {
	if c.Endpoint != "" {
		return
	}
	switch c.Exporter {
	case ExporterOTLPGRPC:
		c.Endpoint = "localhost:4317"
	case ExporterOTLPHTTP:
		c.Endpoint = "http://localhost:4318"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Exporter != "" {
		if v := os.Getenv(env.Exporter); v != "" {
			c.Exporter = Exporter(strings.ToLower(v))
		}
	}
	if env.Endpoint != "" {
		if v := os.Getenv(env.Endpoint); v != "" {
			c.Endpoint = v
		}
	}
	if env.Headers != "" {
		if v := os.Getenv(env.Headers); v != "" {
			c.Headers = v
		}
	}
	if env.Insecure != "" {
		if v := os.Getenv(env.Insecure); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Insecure = b
			}
		}
	}
	if env.Sampler != "" {
		if v := os.Getenv(env.Sampler); v != "" {
			c.Sampler = strings.ToLower(v)
		}
	}
	if env.SamplerRatio != "" {
		if v := os.Getenv(env.SamplerRatio); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.SamplerRatio = f
			}
		}
	}
	if env.ServiceName != "" {
		if v := os.Getenv(env.ServiceName); v != "" {
			c.ServiceName = v
		}
	}
	if env.Environment != "" {
		if v := os.Getenv(env.Environment); v != "" {
			c.Environment = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
	default:
		return fmt.Errorf("unsupported exporter: %s", c.Exporter)
	}
	switch c.Sampler {
	case "always_on", "always_off", "ratio":
	default:
		return fmt.Errorf("unsupported sampler: %s", c.Sampler)
	}
	if c.SamplerRatio < 0 || c.SamplerRatio > 1 {
		return fmt.Errorf("sampler_ratio must be between 0 and 1")
	}
	return nil
}
