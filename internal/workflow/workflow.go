// Package workflow drives the document ingestion state machine. Every stage
// transition is checkpointed before the next stage runs, so a document can be
// resumed from its latest checkpoint by any process.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/checkpoints"
	"github.com/JaimeStill/ledger/internal/documents"
)

const tracerName = "github.com/JaimeStill/ledger/internal/workflow"

// StartCommand begins processing a document. An empty DocumentID is
// replaced with a generated one; an empty DocumentType means invoice.
type StartCommand struct {
	DocumentID   string         `json:"document_id"`
	OwnerID      string         `json:"owner_id"`
	DocumentType documents.Type `json:"document_type"`
	RawText      string         `json:"raw_text"`
}

func (c *StartCommand) normalize() error {
	c.DocumentID = strings.TrimSpace(c.DocumentID)
	c.OwnerID = strings.TrimSpace(c.OwnerID)

	if c.DocumentID == "" {
		c.DocumentID = uuid.NewString()
	}
	if c.DocumentType == "" {
		c.DocumentType = documents.TypeInvoice
	}
	if c.OwnerID == "" {
		return fmt.Errorf("%w: owner_id required", ErrInvalidCommand)
	}
	if !c.DocumentType.Valid() {
		return fmt.Errorf("%w: document_type %q", ErrInvalidCommand, c.DocumentType)
	}
	if strings.TrimSpace(c.RawText) == "" {
		return fmt.Errorf("%w: raw_text required", ErrInvalidCommand)
	}
	return nil
}

// Action is a reviewer's decision on a quarantined document.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCorrect Action = "correct"
)

// ResumeCommand resolves a quarantined document.
type ResumeCommand struct {
	Action      Action                `json:"action"`
	Corrections documents.Corrections `json:"corrections,omitempty"`
	Notes       string                `json:"notes,omitempty"`
}

// QuarantineEntry summarizes a paused document for reviewers.
type QuarantineEntry struct {
	DocumentID      string             `json:"document_id"`
	OwnerID         string             `json:"owner_id"`
	DocumentType    documents.Type     `json:"document_type"`
	PauseReason     PauseReason        `json:"pause_reason"`
	RiskLevel       anomaly.Level      `json:"risk_level,omitempty"`
	QuarantinedFrom Stage              `json:"quarantined_from"`
	RetryCount      int                `json:"retry_count"`
	StructuredData  *documents.Invoice `json:"structured_data"`
	Anomalies       []anomaly.Anomaly  `json:"anomalies"`
	Sequence        int64              `json:"sequence_number"`
	QuarantinedAt   time.Time          `json:"quarantined_at"`
}

// BatchResult is the outcome of one document in StartBatch.
type BatchResult struct {
	DocumentID string `json:"document_id"`
	State      *State `json:"state,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Engine sequences the workflow stages for many documents. Documents run in
// parallel; each document is serialized by a per-document lock and by the
// checkpoint store's sequence guard.
type Engine struct {
	rt     *Runtime
	cfg    Config
	store  checkpoints.Store
	logger *slog.Logger
	tracer trace.Tracer
	locks  *keyedMutex

	mu      sync.Mutex
	active  map[string]bool
	cancels map[string]*cancellation
}

// cancellation is a Cancel call waiting on a running document. done closes
// once the run has either failed the document (applied) or ended without
// reaching another stage boundary.
type cancellation struct {
	reason  string
	done    chan struct{}
	applied bool
	err     error
}

// New creates an engine over the given runtime and checkpoint store.
func New(rt *Runtime, store checkpoints.Store) (*Engine, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime required")
	}
	if err := rt.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("checkpoint store required")
	}

	cfg := rt.Config
	if err := cfg.Finalize(nil); err != nil {
		return nil, fmt.Errorf("workflow config: %w", err)
	}

	tracer := rt.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Engine{
		rt:      rt,
		cfg:     cfg,
		store:   store,
		logger:  rt.Logger.With("system", "workflow"),
		tracer:  tracer,
		locks:   newKeyedMutex(),
		active:  make(map[string]bool),
		cancels: make(map[string]*cancellation),
	}, nil
}

// Config returns the finalized engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start checkpoints a new document and runs it until it completes, fails or
// is quarantined.
func (e *Engine) Start(ctx context.Context, cmd StartCommand) (*State, error) {
	if err := cmd.normalize(); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(cmd.DocumentID)
	defer unlock()

	_, found, err := e.store.Latest(ctx, cmd.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}
	if found {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, cmd.DocumentID)
	}

	s := newState(cmd, e.cfg.MaxRetries, e.now())
	seq, err := e.commit(ctx, s, 0)
	if err != nil {
		return s, err
	}

	e.logger.InfoContext(
		ctx, "workflow started",
		"document_id", s.DocumentID,
		"owner_id", s.OwnerID,
		"document_type", s.DocumentType,
	)

	return e.run(ctx, s, seq)
}

// StartBatch starts documents concurrently, bounded by the configured
// worker count. Failures are reported per document.
func (e *Engine) StartBatch(ctx context.Context, cmds []StartCommand) []BatchResult {
	results := make([]BatchResult, len(cmds))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)

	for i := range cmds {
		g.Go(func() error {
			cmd := cmds[i]
			s, err := e.Start(ctx, cmd)

			results[i].DocumentID = cmd.DocumentID
			if s != nil {
				results[i].DocumentID = s.DocumentID
				results[i].State = s
			}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}

	g.Wait()
	return results
}

// Resume applies a reviewer's decision to a quarantined document and runs it
// from the stage the decision selects. A document whose latest status is not
// quarantined is rejected without any change.
func (e *Engine) Resume(ctx context.Context, documentID string, cmd ResumeCommand) (*State, error) {
	unlock := e.locks.lock(documentID)
	defer unlock()

	s, seq, err := e.latest(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusQuarantined {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotQuarantined, documentID, s.Status)
	}

	now := e.now()
	note := func(prefix string) string {
		if cmd.Notes == "" {
			return prefix
		}
		return prefix + ": " + cmd.Notes
	}

	switch cmd.Action {
	case ActionApprove:
		if s.StructuredData == nil {
			return nil, fmt.Errorf("%w: %s", ErrNothingToApprove, documentID)
		}
		next, ok := s.QuarantinedFrom.next()
		if !ok {
			return nil, fmt.Errorf("%w: cannot approve from stage %q", ErrInvalidState, s.QuarantinedFrom)
		}
		s.record(StageQuarantined, note("approved by reviewer"), now)
		s.enter(Transition{Next: next}, StageQuarantined)

	case ActionReject:
		s.fail(StageQuarantined, note("rejected by reviewer"), now)

	case ActionCorrect:
		if len(cmd.Corrections) == 0 {
			return nil, fmt.Errorf("%w: corrections required", ErrInvalidCommand)
		}
		data, err := documents.ApplyCorrections(s.StructuredData, cmd.Corrections)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		s.record(StageQuarantined, note(fmt.Sprintf("corrected %d field(s) by reviewer", len(cmd.Corrections))), now)
		s.supersede(StageQuarantined, now)
		s.StructuredData = data
		s.RetryCount = 0
		s.enter(Transition{Next: StageValidating}, StageQuarantined)

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, cmd.Action)
	}

	if seq, err = e.commit(ctx, s, seq); err != nil {
		return s, err
	}

	e.logger.InfoContext(
		ctx, "workflow resumed",
		"document_id", documentID,
		"action", cmd.Action,
		"stage", s.CurrentStage,
	)

	return e.run(ctx, s, seq)
}

// Status returns the latest state of a document.
func (e *Engine) Status(ctx context.Context, documentID string) (*State, error) {
	s, _, err := e.latest(ctx, documentID)
	return s, err
}

// History returns every checkpoint recorded for a document.
func (e *Engine) History(ctx context.Context, documentID string) ([]checkpoints.Checkpoint, error) {
	history, err := e.store.History(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	return history, nil
}

// ListQuarantined returns the paused documents of an owner, oldest first.
func (e *Engine) ListQuarantined(ctx context.Context, ownerID string) ([]QuarantineEntry, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner_id required", ErrInvalidCommand)
	}

	paused, err := e.store.Paused(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}

	entries := make([]QuarantineEntry, 0, len(paused))
	for _, cp := range paused {
		s, err := decodeState(cp)
		if err != nil {
			return nil, err
		}
		entries = append(entries, QuarantineEntry{
			DocumentID:      s.DocumentID,
			OwnerID:         s.OwnerID,
			DocumentType:    s.DocumentType,
			PauseReason:     s.PauseReason,
			RiskLevel:       s.RiskLevel,
			QuarantinedFrom: s.QuarantinedFrom,
			RetryCount:      s.RetryCount,
			StructuredData:  s.StructuredData,
			Anomalies:       s.Anomalies(),
			Sequence:        cp.Sequence,
			QuarantinedAt:   cp.UpdatedAt,
		})
	}
	return entries, nil
}

// Cancel fails a processing document. A running document is failed at its
// next stage boundary and Cancel waits for that to happen. If the run ends
// first, the document is no longer processing and ErrNotProcessing is
// returned. An idle document is failed immediately.
func (e *Engine) Cancel(ctx context.Context, documentID, reason string) error {
	if reason == "" {
		reason = "cancelled by request"
	}

	if c := e.requestCancel(documentID, reason); c != nil {
		e.logger.InfoContext(ctx, "workflow cancellation requested", "document_id", documentID)

		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if c.applied {
			return c.err
		}
	}

	unlock := e.locks.lock(documentID)
	defer unlock()

	s, seq, err := e.latest(ctx, documentID)
	if err != nil {
		return err
	}
	if s.Status != StatusProcessing {
		return fmt.Errorf("%w: %s is %s", ErrNotProcessing, documentID, s.Status)
	}

	s.fail(s.CurrentStage, "cancelled: "+reason, e.now())
	_, err = e.commit(ctx, s, seq)
	return err
}

// Recover continues every document whose latest checkpoint is still
// processing, at its recorded stage. It returns how many documents ran.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	pending, err := e.store.Processing(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		n    int
		errs []error
	)
	g.SetLimit(e.cfg.Workers)

	for _, cp := range pending {
		g.Go(func() error {
			ran, err := e.continueRun(ctx, cp.DocumentID)
			mu.Lock()
			defer mu.Unlock()
			if ran {
				n++
			}
			if err != nil && !errors.Is(err, ErrInterrupted) {
				errs = append(errs, err)
			}
			return nil
		})
	}

	g.Wait()

	if n > 0 {
		e.logger.InfoContext(ctx, "recovered workflows", "count", n)
	}
	return n, errors.Join(errs...)
}

func (e *Engine) continueRun(ctx context.Context, documentID string) (bool, error) {
	if e.isActive(documentID) {
		return false, nil
	}

	unlock := e.locks.lock(documentID)
	defer unlock()

	s, seq, err := e.latest(ctx, documentID)
	if err != nil {
		return false, err
	}
	if s.Status != StatusProcessing {
		return false, nil
	}

	_, err = e.run(ctx, s, seq)
	return true, err
}

// run executes stages until a terminal stage. The caller holds the document
// lock. When ctx ends, nothing further is committed: the document stays
// processing at its last checkpoint and Recover continues it later.
func (e *Engine) run(ctx context.Context, s *State, seq int64) (*State, error) {
	e.setActive(s.DocumentID, true)
	defer e.setActive(s.DocumentID, false)

	var err error
	for !s.CurrentStage.Terminal() {
		if ctx.Err() != nil {
			return e.interrupt(ctx, s)
		}

		if c := e.takeCancel(s.DocumentID); c != nil {
			s.fail(s.CurrentStage, "cancelled: "+c.reason, e.now())
			e.logger.WarnContext(ctx, "workflow cancelled", "document_id", s.DocumentID, "reason", c.reason)
			_, err = e.commit(ctx, s, seq)
			c.applied, c.err = true, err
			close(c.done)
			return s, err
		}

		from := s.CurrentStage
		outcome := e.execute(ctx, s)

		// A stage cut short by ctx reports collaborator errors that say
		// nothing about the document.
		if ctx.Err() != nil {
			return e.interrupt(ctx, s)
		}

		t, err := Dispatch(from, outcome, s.Budget())
		if err != nil {
			s.fail(from, err.Error(), e.now())
			e.logger.ErrorContext(ctx, "workflow routing failed", "document_id", s.DocumentID, "error", err)
			if _, cerr := e.commit(ctx, s, seq); cerr != nil {
				return s, cerr
			}
			return s, err
		}

		s.enter(t, from)

		e.logger.InfoContext(
			ctx, "workflow transition",
			"document_id", s.DocumentID,
			"from", from,
			"to", t.Next,
			"outcome", outcome,
			"retry_count", s.RetryCount,
		)

		if seq, err = e.commit(ctx, s, seq); err != nil {
			return s, err
		}
	}

	return s, nil
}

func (e *Engine) execute(ctx context.Context, s *State) Outcome {
	stage := s.CurrentStage

	ctx, span := e.tracer.Start(ctx, "workflow."+string(stage), trace.WithAttributes(
		attribute.String("document.id", s.DocumentID),
		attribute.String("document.owner", s.OwnerID),
		attribute.Int("workflow.retry_count", s.RetryCount),
		attribute.Int("workflow.attempt", s.Attempt),
	))
	defer span.End()

	var outcome Outcome
	switch stage {
	case StageExtracting:
		outcome = e.extract(ctx, s)
	case StageCritiquing:
		outcome = e.critique(ctx, s)
	case StageValidating:
		outcome = e.validate(ctx, s)
	case StageAuditing:
		outcome = e.audit(ctx, s)
	case StageStoring:
		outcome = e.persist(ctx, s)
	}

	span.SetAttributes(attribute.String("workflow.outcome", string(outcome)))
	if outcome == OutcomeFailed || outcome == OutcomeUnavailable {
		span.SetStatus(codes.Error, string(outcome))
	}
	return outcome
}

// commit validates s and appends it as the checkpoint after seq. Writes are
// detached from caller cancellation so a recorded transition is never lost
// to a disconnecting client. A failed write marks s failed in memory only;
// the durable record stays at the last good checkpoint for recovery.
func (e *Engine) commit(ctx context.Context, s *State, seq int64) (int64, error) {
	s.UpdatedAt = e.now()

	if err := s.Validate(); err != nil {
		e.logger.ErrorContext(ctx, "invalid workflow state", "document_id", s.DocumentID, "error", err)
		s.Status, s.CurrentStage, s.Paused, s.PauseReason = StatusFailed, StageFailed, false, ""
		return seq, err
	}

	cp, err := s.checkpoint(seq + 1)
	if err == nil {
		err = e.store.Append(context.WithoutCancel(ctx), cp)
	}
	if err != nil {
		e.logger.ErrorContext(
			ctx, "checkpoint write failed",
			"document_id", s.DocumentID,
			"sequence", seq+1,
			"error", err,
		)
		s.record(s.CurrentStage, fmt.Sprintf("checkpoint write failed: %v", err), s.UpdatedAt)
		s.Status, s.CurrentStage, s.Paused, s.PauseReason = StatusFailed, StageFailed, false, ""
		return seq, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}

	return seq + 1, nil
}

func (e *Engine) latest(ctx context.Context, documentID string) (*State, int64, error) {
	cp, found, err := e.store.Latest(ctx, documentID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}
	if !found {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}

	s, err := decodeState(cp)
	if err != nil {
		return nil, 0, err
	}
	return s, cp.Sequence, nil
}

// interrupt abandons the in-memory progress of s and reports the durable
// state, which is left processing for Recover.
func (e *Engine) interrupt(ctx context.Context, s *State) (*State, error) {
	cause := context.Cause(ctx)
	e.logger.WarnContext(
		ctx, "workflow interrupted",
		"document_id", s.DocumentID,
		"stage", s.CurrentStage,
		"error", cause,
	)

	durable, _, err := e.latest(context.WithoutCancel(ctx), s.DocumentID)
	if err != nil {
		durable = s
	}
	return durable, fmt.Errorf("%w: %w", ErrInterrupted, cause)
}

// requestCancel registers a cancellation for a running document and
// returns nil when the document is not running. Concurrent requests share
// the first reason.
func (e *Engine) requestCancel(documentID, reason string) *cancellation {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active[documentID] {
		return nil
	}
	if c, ok := e.cancels[documentID]; ok {
		return c
	}
	c := &cancellation{reason: reason, done: make(chan struct{})}
	e.cancels[documentID] = c
	return c
}

func (e *Engine) takeCancel(documentID string) *cancellation {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cancels[documentID]
	delete(e.cancels, documentID)
	return c
}

// setActive(false) releases any cancellation the run never reached.
func (e *Engine) setActive(documentID string, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if active {
		e.active[documentID] = true
		return
	}
	delete(e.active, documentID)
	if c, ok := e.cancels[documentID]; ok {
		delete(e.cancels, documentID)
		close(c.done)
	}
}

func (e *Engine) isActive(documentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active[documentID]
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.CallTimeoutDuration())
}

// now reports UTC whatever zone the injected clock uses.
func (e *Engine) now() time.Time {
	if e.rt.Clock != nil {
		return e.rt.Clock().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) warn(ctx context.Context, s *State, stage Stage, msg string, err error) {
	e.logger.WarnContext(
		ctx, msg,
		"document_id", s.DocumentID,
		"stage", stage,
		"error", err,
	)
}
