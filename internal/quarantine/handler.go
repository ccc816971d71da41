package quarantine

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/handlers"
	"github.com/JaimeStill/ledger/pkg/pagination"
	"github.com/JaimeStill/ledger/pkg/routes"
)

// Handler provides HTTP endpoints for the review queue.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
	maxBody    int64
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "quarantine"),
		pagination: pagination,
		maxBody:    1 << 20,
	}
}

// Routes returns the route group definition for quarantine endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/quarantine",
		Tags:   []string{"Quarantine"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: listOp},
			{Method: "GET", Pattern: "/owners/{owner}", Handler: h.ForOwner, OpenAPI: forOwnerOp},
			{Method: "POST", Pattern: "/{id}/resolve", Handler: h.Resolve, OpenAPI: resolveOp},
		},
	}
}

// List returns a page of quarantined documents filtered by query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, workflow.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// ForOwner returns every quarantined document of one owner with its
// anomalies and structured data.
func (h *Handler) ForOwner(w http.ResponseWriter, r *http.Request) {
	entries, err := h.sys.ForOwner(r.Context(), r.PathValue("owner"))
	if err != nil {
		handlers.RespondError(w, h.logger, workflow.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, entries)
}

// Resolve applies a reviewer action and returns the resulting state.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var cmd workflow.ResumeCommand
	if err := handlers.DecodeJSON(w, r, h.maxBody, &cmd); err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}

	s, err := h.sys.Resolve(r.Context(), r.PathValue("id"), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, workflow.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}
