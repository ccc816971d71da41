package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Runtime bundles the collaborators and settings the engine requires.
// It is constructed by higher-level composition code from Infrastructure.
// Semantic, Embedder, Archiver and Tracer are optional.
type Runtime struct {
	Extractor Extractor
	Critic    Critic
	Semantic  SemanticChecker
	Contracts ContractLookup
	Graph     GraphWriter
	Embedder  Embedder
	Archiver  Archiver
	Config    Config
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Clock     func() time.Time
}

func (rt *Runtime) validate() error {
	switch {
	case rt.Extractor == nil:
		return fmt.Errorf("extractor required")
	case rt.Critic == nil:
		return fmt.Errorf("critic required")
	case rt.Contracts == nil:
		return fmt.Errorf("contract lookup required")
	case rt.Graph == nil:
		return fmt.Errorf("graph writer required")
	case rt.Logger == nil:
		return fmt.Errorf("logger required")
	}
	return nil
}
