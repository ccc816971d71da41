package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/ledger/internal/graph"
	"github.com/JaimeStill/ledger/internal/vector"
	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/database"
	"github.com/JaimeStill/ledger/pkg/storage"
	"github.com/JaimeStill/ledger/pkg/tracing"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvLedgerEnv             = "LEDGER_ENV"
	EnvLedgerShutdownTimeout = "LEDGER_SHUTDOWN_TIMEOUT"
	EnvLedgerVersion         = "LEDGER_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "LEDGER_DB_HOST",
	Port:            "LEDGER_DB_PORT",
	Name:            "LEDGER_DB_NAME",
	User:            "LEDGER_DB_USER",
	Password:        "LEDGER_DB_PASSWORD",
	SSLMode:         "LEDGER_DB_SSL_MODE",
	MaxOpenConns:    "LEDGER_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "LEDGER_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "LEDGER_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "LEDGER_DB_CONN_TIMEOUT",
	ApplicationName: "LEDGER_DB_APPLICATION_NAME",
}

var storageEnv = &storage.Env{
	Provider:         "LEDGER_STORAGE_PROVIDER",
	Container:        "LEDGER_STORAGE_CONTAINER",
	ConnectionString: "LEDGER_STORAGE_CONNECTION_STRING",
	AccountURL:       "LEDGER_STORAGE_ACCOUNT_URL",
	Endpoint:         "LEDGER_STORAGE_ENDPOINT",
	AccessKey:        "LEDGER_STORAGE_ACCESS_KEY",
	SecretKey:        "LEDGER_STORAGE_SECRET_KEY",
	Region:           "LEDGER_STORAGE_REGION",
	UseSSL:           "LEDGER_STORAGE_USE_SSL",
}

var graphEnv = &graph.Env{
	Provider:       "LEDGER_GRAPH_PROVIDER",
	URI:            "LEDGER_GRAPH_URI",
	Username:       "LEDGER_GRAPH_USERNAME",
	Password:       "LEDGER_GRAPH_PASSWORD",
	Database:       "LEDGER_GRAPH_DATABASE",
	ConnectTimeout: "LEDGER_GRAPH_CONNECT_TIMEOUT",
}

var vectorEnv = &vector.Env{
	Endpoint:   "LEDGER_VECTOR_ENDPOINT",
	APIKey:     "LEDGER_VECTOR_API_KEY",
	Model:      "LEDGER_VECTOR_MODEL",
	Dimensions: "LEDGER_VECTOR_DIMENSIONS",
	MaxChars:   "LEDGER_VECTOR_MAX_CHARS",
	Timeout:    "LEDGER_VECTOR_TIMEOUT",
}

var tracingEnv = &tracing.Env{
	Exporter:     "LEDGER_TRACING_EXPORTER",
	Endpoint:     "LEDGER_TRACING_ENDPOINT",
	Headers:      "LEDGER_TRACING_HEADERS",
	Insecure:     "LEDGER_TRACING_INSECURE",
	Sampler:      "LEDGER_TRACING_SAMPLER",
	SamplerRatio: "LEDGER_TRACING_SAMPLER_RATIO",
	ServiceName:  "LEDGER_TRACING_SERVICE_NAME",
	Environment:  "LEDGER_ENV",
}

var workflowEnv = &workflow.Env{
	MaxRetries:      "LEDGER_WORKFLOW_MAX_RETRIES",
	CallTimeout:     "LEDGER_WORKFLOW_CALL_TIMEOUT",
	ConfidenceFloor: "LEDGER_WORKFLOW_CONFIDENCE_FLOOR",
	Workers:         "LEDGER_WORKFLOW_WORKERS",
	CheckpointStore: "LEDGER_WORKFLOW_CHECKPOINT_STORE",
	SemanticCheck:   "LEDGER_WORKFLOW_SEMANTIC_CHECK",
}

// Config is the root configuration for the Ledger service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	Graph           graph.Config         `toml:"graph"`
	Vector          vector.Config        `toml:"vector"`
	Tracing         tracing.Config       `toml:"tracing"`
	Workflow        workflow.Config      `toml:"workflow"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the LEDGER_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvLedgerEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Graph.Merge(&overlay.Graph)
	c.Vector.Merge(&overlay.Vector)
	c.Tracing.Merge(&overlay.Tracing)
	c.Workflow.Merge(&overlay.Workflow)
}

// Finalize applies defaults, environment overrides, and validation to the
// root config and every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"agent", func() error { return FinalizeAgent(&c.Agent) }},
		{"graph", func() error { return c.Graph.Finalize(graphEnv) }},
		{"vector", func() error { return c.Vector.Finalize(vectorEnv) }},
		{"tracing", func() error { return c.Tracing.Finalize(tracingEnv) }},
		{"workflow", func() error { return c.Workflow.Finalize(workflowEnv) }},
	}

	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvLedgerShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvLedgerVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvLedgerEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
