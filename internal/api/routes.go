package api

import (
	"net/http"

	"github.com/JaimeStill/ledger/internal/config"
	"github.com/JaimeStill/ledger/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, cfg *config.Config) error {
	groups := []routes.Group{
		domain.Ingestion.Routes(),
		domain.Quarantine.Handler().Routes(),
		domain.Archive.Routes(),
	}
	routes.Register(mux, groups...)

	spec, err := specHandler(cfg, groups)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", spec)
	return nil
}
