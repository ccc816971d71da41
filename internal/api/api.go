// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/ledger/internal/config"
	"github.com/JaimeStill/ledger/internal/infrastructure"
	"github.com/JaimeStill/ledger/pkg/middleware"
	"github.com/JaimeStill/ledger/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// Workflows left processing by a previous run resume once every startup
// hook has completed.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(cfg, runtime)
	if err != nil {
		return nil, err
	}

	runtime.Lifecycle.OnReady(func() {
		n, err := domain.Engine.Recover(runtime.Lifecycle.Context())
		if err != nil {
			runtime.Logger.Error("workflow recovery failed", "recovered", n, "error", err)
			return
		}
		runtime.Logger.Info("workflow recovery complete", "recovered", n)
	})

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(
		middleware.RequestID(),
		middleware.Logger(runtime.Logger),
		middleware.Recover(runtime.Logger),
		middleware.CORS(&cfg.API.CORS),
	)

	return m, nil
}
