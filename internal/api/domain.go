package api

import (
	"fmt"

	"github.com/JaimeStill/ledger/internal/archive"
	"github.com/JaimeStill/ledger/internal/checkpoints"
	"github.com/JaimeStill/ledger/internal/config"
	"github.com/JaimeStill/ledger/internal/extraction"
	"github.com/JaimeStill/ledger/internal/ingestion"
	"github.com/JaimeStill/ledger/internal/quarantine"
	"github.com/JaimeStill/ledger/internal/vector"
	"github.com/JaimeStill/ledger/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Engine     *workflow.Engine
	Ingestion  *ingestion.Handler
	Quarantine quarantine.System
	Archive    *archive.Handler
}

// NewDomain builds the workflow engine and the systems exposed over HTTP.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	complete := extraction.AgentCompleter(cfg.Agent)
	archiver := archive.New(runtime.Storage, runtime.Logger)
	contracts := runtime.Graph.Store()

	rt := &workflow.Runtime{
		Extractor: extraction.NewExtractor(complete, runtime.Logger),
		Critic:    extraction.NewCritic(complete, runtime.Logger),
		Contracts: contracts,
		Graph:     contracts,
		Archiver:  archiver,
		Config:    cfg.Workflow,
		Logger:    runtime.Logger,
		Tracer:    runtime.Tracing.Tracer("github.com/JaimeStill/ledger/internal/workflow"),
	}

	if cfg.Workflow.SemanticCheck {
		rt.Semantic = extraction.NewSemanticChecker(complete, runtime.Logger)
	}

	if cfg.Vector.Enabled() && runtime.DB() != nil {
		rt.Embedder = vector.NewEmbedder(
			&cfg.Vector,
			vector.NewClient(&cfg.Vector),
			vector.NewIndex(runtime.DB()),
			runtime.Logger,
		)
	}

	engine, err := workflow.New(rt, checkpointStore(cfg, runtime))
	if err != nil {
		return nil, fmt.Errorf("workflow engine: %w", err)
	}

	return &Domain{
		Engine: engine,
		Ingestion: ingestion.NewHandler(
			engine,
			runtime.Lifecycle.Context,
			runtime.Logger,
			runtime.MaxBodySize,
		),
		Quarantine: quarantine.New(
			runtime.DB(),
			engine,
			runtime.Logger,
			runtime.Pagination,
		),
		Archive: archive.NewHandler(archiver, runtime.Logger),
	}, nil
}

func checkpointStore(cfg *config.Config, runtime *Runtime) checkpoints.Store {
	if cfg.Workflow.CheckpointStore == workflow.StoreMemory || runtime.DB() == nil {
		runtime.Logger.Warn("using in-memory checkpoints; workflow state is lost on exit")
		return checkpoints.NewMemoryStore()
	}
	return checkpoints.New(runtime.DB(), runtime.Logger)
}
