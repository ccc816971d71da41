package workflow

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/ledger/internal/anomaly"
)

// Checkpoint store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the read-only settings shared by every document's workflow.
type Config struct {
	MaxRetries      int                  `toml:"max_retries"`
	CallTimeout     string               `toml:"call_timeout"`
	ConfidenceFloor float64              `toml:"confidence_floor"`
	Workers         int                  `toml:"workers"`
	CheckpointStore string               `toml:"checkpoint_store"`
	SemanticCheck   bool                 `toml:"semantic_check"`
	Thresholds      anomaly.Thresholds   `toml:"thresholds"`
	Audit           anomaly.AuditOptions `toml:"audit"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxRetries      string
	CallTimeout     string
	ConfidenceFloor string
	Workers         string
	CheckpointStore string
	SemanticCheck   string
}

// CallTimeoutDuration returns CallTimeout as a time.Duration.
func (c *Config) CallTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CallTimeout)
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

// Merge overwrites non-zero fields from overlay. SemanticCheck always applies.
func (c *Config) Merge(overlay *Config) {
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.CallTimeout != "" {
		c.CallTimeout = overlay.CallTimeout
	}
	if overlay.ConfidenceFloor != 0 {
		c.ConfidenceFloor = overlay.ConfidenceFloor
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.CheckpointStore != "" {
		c.CheckpointStore = overlay.CheckpointStore
	}
	c.SemanticCheck = overlay.SemanticCheck

	if overlay.Thresholds.Critical != 0 {
		c.Thresholds.Critical = overlay.Thresholds.Critical
	}
	if overlay.Thresholds.High != 0 {
		c.Thresholds.High = overlay.Thresholds.High
	}
	if overlay.Audit.RetentionTolerance != 0 {
		c.Audit.RetentionTolerance = overlay.Audit.RetentionTolerance
	}
	if overlay.Audit.PriceTolerance != 0 {
		c.Audit.PriceTolerance = overlay.Audit.PriceTolerance
	}
	if overlay.Audit.PriceHigh != 0 {
		c.Audit.PriceHigh = overlay.Audit.PriceHigh
	}
	if overlay.Audit.BillingCapCritical != 0 {
		c.Audit.BillingCapCritical = overlay.Audit.BillingCapCritical
	}
}

func (c *Config) loadDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.CallTimeout == "" {
		c.CallTimeout = "30s"
	}
	if c.ConfidenceFloor == 0 {
		c.ConfidenceFloor = 0.7
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.CheckpointStore == "" {
		c.CheckpointStore = StorePostgres
	}

	thresholds := anomaly.DefaultThresholds()
	if c.Thresholds.Critical == 0 {
		c.Thresholds.Critical = thresholds.Critical
	}
	if c.Thresholds.High == 0 {
		c.Thresholds.High = thresholds.High
	}

	audit := anomaly.DefaultAuditOptions()
	if c.Audit.RetentionTolerance == 0 {
		c.Audit.RetentionTolerance = audit.RetentionTolerance
	}
	if c.Audit.PriceTolerance == 0 {
		c.Audit.PriceTolerance = audit.PriceTolerance
	}
	if c.Audit.PriceHigh == 0 {
		c.Audit.PriceHigh = audit.PriceHigh
	}
	if c.Audit.BillingCapCritical == 0 {
		c.Audit.BillingCapCritical = audit.BillingCapCritical
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.MaxRetries != "" {
		if v := os.Getenv(env.MaxRetries); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxRetries = n
			}
		}
	}
	if env.CallTimeout != "" {
		if v := os.Getenv(env.CallTimeout); v != "" {
			c.CallTimeout = v
		}
	}
	if env.ConfidenceFloor != "" {
		if v := os.Getenv(env.ConfidenceFloor); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.ConfidenceFloor = f
			}
		}
	}
	if env.Workers != "" {
		if v := os.Getenv(env.Workers); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Workers = n
			}
		}
	}
	if env.CheckpointStore != "" {
		if v := os.Getenv(env.CheckpointStore); v != "" {
			c.CheckpointStore = v
		}
	}
	if env.SemanticCheck != "" {
		if v := os.Getenv(env.SemanticCheck); v != "" {
			if enabled, err := strconv.ParseBool(v); err == nil {
				c.SemanticCheck = enabled
			}
		}
	}
}

func (c *Config) validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if d, err := time.ParseDuration(c.CallTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid call_timeout %q", c.CallTimeout)
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor must be between 0 and 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if c.CheckpointStore != StorePostgres && c.CheckpointStore != StoreMemory {
		return fmt.Errorf("unknown checkpoint_store %q", c.CheckpointStore)
	}
	return nil
}
