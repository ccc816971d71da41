package archive

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/ledger/pkg/handlers"
	"github.com/JaimeStill/ledger/pkg/routes"
)

// Handler serves archived artifacts.
type Handler struct {
	archiver *Archiver
	logger   *slog.Logger
}

func NewHandler(archiver *Archiver, logger *slog.Logger) *Handler {
	return &Handler{
		archiver: archiver,
		logger:   logger.With("handler", "archive"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/archive",
		Tags:   []string{"Archive"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/{artifact}", Handler: h.Download, OpenAPI: downloadOp},
		},
	}
}

// Download streams one artifact with its stored content type.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	art, err := ParseArtifact(r.PathValue("artifact"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	rc, err := h.archiver.Open(r.Context(), r.PathValue("id"), art)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", art.contentType())
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("artifact stream failed", "error", err)
	}
}
