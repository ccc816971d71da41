// Package infrastructure provides core service initialization for application startup.
// It assembles the shared systems (logging, database, blob storage, graph,
// tracing) that domain systems require.
package infrastructure

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/ledger/internal/config"
	"github.com/JaimeStill/ledger/internal/graph"
	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/database"
	"github.com/JaimeStill/ledger/pkg/lifecycle"
	"github.com/JaimeStill/ledger/pkg/storage"
	"github.com/JaimeStill/ledger/pkg/tracing"
)

// Infrastructure holds the core systems required by all domain modules.
// Database is nil when workflows checkpoint to memory.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Graph     graph.System
	Tracing   tracing.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	infra := &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
	}

	if cfg.Workflow.CheckpointStore == workflow.StorePostgres {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}
	infra.Storage = store

	g, err := graph.New(&cfg.Graph, logger)
	if err != nil {
		return nil, fmt.Errorf("graph init failed: %w", err)
	}
	infra.Graph = g

	tr, err := tracing.New(&cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}
	infra.Tracing = tr

	return infra, nil
}

// DB returns the connection pool, or nil when no database is configured.
func (i *Infrastructure) DB() *sql.DB {
	if i.Database == nil {
		return nil
	}
	return i.Database.Connection()
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Graph.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("graph start failed: %w", err)
	}
	if err := i.Tracing.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("tracing start failed: %w", err)
	}
	return nil
}
