// Package ingestion exposes the workflow engine over HTTP: starting
// documents, reading their state and audit trail, and cancelling them.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/ledger/internal/checkpoints"
	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/handlers"
	"github.com/JaimeStill/ledger/pkg/routes"
)

// MaxBatch is the largest batch accepted in one request.
const MaxBatch = 100

var ErrBatchSize = errors.New("batch size out of range")

// Runner is the engine surface the handlers drive.
type Runner interface {
	Start(ctx context.Context, cmd workflow.StartCommand) (*workflow.State, error)
	StartBatch(ctx context.Context, cmds []workflow.StartCommand) []workflow.BatchResult
	Status(ctx context.Context, documentID string) (*workflow.State, error)
	History(ctx context.Context, documentID string) ([]checkpoints.Checkpoint, error)
	Cancel(ctx context.Context, documentID, reason string) error
}

type batchRequest struct {
	Documents []workflow.StartCommand `json:"documents"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type accepted struct {
	DocumentID string `json:"document_id"`
}

// Handler provides HTTP endpoints for workflow operations.
type Handler struct {
	runner  Runner
	base    func() context.Context
	logger  *slog.Logger
	maxBody int64
}

// NewHandler creates a Handler. base supplies the context for asynchronous
// runs, which outlive the request that started them.
func NewHandler(runner Runner, base func() context.Context, logger *slog.Logger, maxBody int64) *Handler {
	return &Handler{
		runner:  runner,
		base:    base,
		logger:  logger.With("handler", "workflows"),
		maxBody: maxBody,
	}
}

// Routes returns the route group definition for workflow endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows",
		Tags:   []string{"Workflows"},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Start, OpenAPI: startOp},
			{Method: "POST", Pattern: "/batch", Handler: h.StartBatch, OpenAPI: batchOp},
			{Method: "GET", Pattern: "/{id}", Handler: h.Status, OpenAPI: statusOp},
			{Method: "GET", Pattern: "/{id}/history", Handler: h.History, OpenAPI: historyOp},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel, OpenAPI: cancelOp},
		},
	}
}

// Start processes one document. With ?async=true the run continues in the
// background and the response is 202 with the document id.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var cmd workflow.StartCommand
	if err := handlers.DecodeJSON(w, r, h.maxBody, &cmd); err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.startAsync(w, cmd)
		return
	}

	ctx, stop := h.runContext(r)
	defer stop()

	s, err := h.runner.Start(ctx, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, workflow.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

func (h *Handler) startAsync(w http.ResponseWriter, cmd workflow.StartCommand) {
	if strings.TrimSpace(cmd.DocumentID) == "" {
		cmd.DocumentID = uuid.NewString()
	}

	go func() {
		ctx := h.base()
		if _, err := h.runner.Start(ctx, cmd); err != nil {
			h.logger.Warn("async workflow failed", "document_id", cmd.DocumentID, "error", err)
		}
	}()

	handlers.RespondJSON(w, http.StatusAccepted, accepted{DocumentID: cmd.DocumentID})
}

// runContext keeps the request's values but ends only when base does, so a
// client that disconnects does not interrupt a synchronous run.
func (h *Handler) runContext(r *http.Request) (context.Context, func()) {
	base := h.base()
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(r.Context()))
	if base.Err() != nil {
		cancel(context.Cause(base))
	}
	release := context.AfterFunc(base, func() {
		cancel(context.Cause(base))
	})
	return ctx, func() {
		release()
		cancel(nil)
	}
}

// StartBatch processes many documents concurrently and reports each outcome.
func (h *Handler) StartBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := handlers.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}

	if n := len(req.Documents); n == 0 || n > MaxBatch {
		err := fmt.Errorf("%w: %d (max %d)", ErrBatchSize, n, MaxBatch)
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	ctx, stop := h.runContext(r)
	defer stop()

	handlers.RespondJSON(w, http.StatusOK, h.runner.StartBatch(ctx, req.Documents))
}

// Status returns the latest workflow state of a document.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	s, err := h.runner.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, workflow.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// History returns every checkpoint of a document in sequence order.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.runner.History(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, workflow.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, history)
}

// Cancel stops a processing document. An empty body cancels with the
// default reason.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := handlers.DecodeJSON(w, r, h.maxBody, &req); err != nil {
			handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
			return
		}
	}

	if err := h.runner.Cancel(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		handlers.RespondError(w, h.logger, workflow.MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
