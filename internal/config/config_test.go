package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JaimeStill/ledger/internal/config"
	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/storage"
	"github.com/JaimeStill/ledger/pkg/tracing"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
port = 8080

[database]
host = "localhost"
name = "ledger"
user = "ledger"

[storage]
provider = "memory"

[api]
base_path = "/api"
max_body_size = "2MB"

[api.pagination]
default_page_size = 25
max_page_size = 50

[graph]
uri = "bolt://graph:7687"
password = "secret"

[workflow]
max_retries = 2
checkpoint_store = "memory"

[workflow.thresholds]
critical = 20000
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[workflow]
workers = 8
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Provider != storage.ProviderMemory {
		t.Errorf("storage provider: got %s, want memory", cfg.Storage.Provider)
	}
	if cfg.API.MaxBodySizeBytes() != 2*1024*1024 {
		t.Errorf("max body size: got %d", cfg.API.MaxBodySizeBytes())
	}
	if cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.Graph.URI != "bolt://graph:7687" || cfg.Graph.Username != "neo4j" {
		t.Errorf("graph: got %+v", cfg.Graph)
	}
	if cfg.Workflow.MaxRetries != 2 {
		t.Errorf("max_retries: got %d, want 2", cfg.Workflow.MaxRetries)
	}
	if cfg.Workflow.Thresholds.Critical != 20000 {
		t.Errorf("critical threshold: got %v, want 20000", cfg.Workflow.Thresholds.Critical)
	}
	if cfg.Workflow.CheckpointStore != workflow.StoreMemory {
		t.Errorf("checkpoint store: got %s", cfg.Workflow.CheckpointStore)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv(config.EnvLedgerEnv, "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Workflow.Workers != 8 {
		t.Errorf("workers: got %d, want 8 (from overlay)", cfg.Workflow.Workers)
	}
	if cfg.Workflow.MaxRetries != 2 {
		t.Errorf("max_retries: got %d, want 2 (from base)", cfg.Workflow.MaxRetries)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	t.Setenv("LEDGER_VERSION", "2.0.0")
	t.Setenv("LEDGER_SERVER_PORT", "3000")
	t.Setenv("LEDGER_WORKFLOW_MAX_RETRIES", "5")
	t.Setenv("LEDGER_GRAPH_URI", "neo4j+s://cloud:7687")
	t.Setenv("LEDGER_TRACING_EXPORTER", "stdout")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Workflow.MaxRetries != 5 {
		t.Errorf("max_retries: got %d, want 5", cfg.Workflow.MaxRetries)
	}
	if cfg.Graph.URI != "neo4j+s://cloud:7687" {
		t.Errorf("graph uri: got %s", cfg.Graph.URI)
	}
	if cfg.Tracing.Exporter != tracing.ExporterStdout {
		t.Errorf("tracing exporter: got %s", cfg.Tracing.Exporter)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("LEDGER_STORAGE_PROVIDER", "memory")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("server addr: got %s", cfg.Server.Addr())
	}
	if cfg.Server.IdleTimeoutDuration() != 2*time.Minute {
		t.Errorf("idle timeout: got %s", cfg.Server.IdleTimeoutDuration())
	}
	if cfg.Database.Name != "ledger" {
		t.Errorf("db name default: got %s, want ledger", cfg.Database.Name)
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("shutdown timeout: got %s", cfg.ShutdownTimeoutDuration())
	}
	if cfg.Workflow.MaxRetries != 3 || cfg.Workflow.ConfidenceFloor != 0.7 {
		t.Errorf("workflow defaults: got %+v", cfg.Workflow)
	}
	if cfg.Workflow.CallTimeoutDuration() != 30*time.Second {
		t.Errorf("call timeout: got %s", cfg.Workflow.CallTimeoutDuration())
	}
	if cfg.Vector.Enabled() {
		t.Error("vector index enabled without an endpoint")
	}
	if cfg.Agent.Name == "" {
		t.Error("agent name not defaulted")
	}
}

func TestAgentEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("LEDGER_STORAGE_PROVIDER", "memory")
	t.Setenv("LEDGER_AGENT_NAME", "invoice-reader")
	t.Setenv("LEDGER_AGENT_BASE_URL", "http://llm.test:11434")
	t.Setenv("LEDGER_AGENT_TOKEN", "secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Agent.Name != "invoice-reader" {
		t.Errorf("agent name: got %s", cfg.Agent.Name)
	}
	if cfg.Agent.Provider.BaseURL != "http://llm.test:11434" {
		t.Errorf("base url: got %s", cfg.Agent.Provider.BaseURL)
	}
	if cfg.Agent.Provider.Options["token"] != "secret" {
		t.Errorf("token option: got %v", cfg.Agent.Provider.Options["token"])
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"shutdown timeout", map[string]string{"LEDGER_SHUTDOWN_TIMEOUT": "soon"}},
		{"negative idle timeout", map[string]string{"LEDGER_SERVER_IDLE_TIMEOUT": "-1s"}},
		{"server port", map[string]string{"LEDGER_SERVER_PORT": "70000"}},
		{"graph scheme", map[string]string{"LEDGER_GRAPH_URI": "http://graph"}},
		{"tracing exporter", map[string]string{"LEDGER_TRACING_EXPORTER": "zipkin"}},
		{"checkpoint store", map[string]string{"LEDGER_WORKFLOW_CHECKPOINT_STORE": "redis"}},
		{"body size", map[string]string{"LEDGER_API_MAX_BODY_SIZE": "lots"}},
		{"agent base url", map[string]string{"LEDGER_AGENT_BASE_URL": "localhost"}},
		{"database ssl mode", map[string]string{"LEDGER_WORKFLOW_CHECKPOINT_STORE": "postgres", "LEDGER_DB_SSL_MODE": "on"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			chdir(t, dir)

			t.Setenv("LEDGER_STORAGE_PROVIDER", "memory")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := config.Load(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnv(t *testing.T) {
	var cfg config.Config
	if got := cfg.Env(); got != "local" {
		t.Errorf("Env() = %s, want local", got)
	}

	t.Setenv(config.EnvLedgerEnv, "prod")
	if got := cfg.Env(); got != "prod" {
		t.Errorf("Env() = %s, want prod", got)
	}
}
