package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/checkpoints"
	"github.com/JaimeStill/ledger/internal/documents"
	"github.com/JaimeStill/ledger/internal/workflow"
)

var fixedNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func invoice() *documents.Invoice {
	issued := documents.NewDate(2026, time.February, 15)
	due := documents.NewDate(2026, time.March, 15)
	return &documents.Invoice{
		InvoiceNumber: "INV-2026-001",
		InvoiceDate:   &issued,
		DueDate:       &due,
		ContractorID:  "CTR-1",
		ContractID:    "CON-1",
		ProjectID:     "PRJ-1",
		Amount:        documents.Money(50),
		LineItems: []documents.LineItem{
			{ID: "1", Description: "Concrete", Quantity: 10, UnitPrice: 5, Total: 50, CostCode: "03-300"},
		},
	}
}

func contract() *documents.Contract {
	return &documents.Contract{
		ID:                "CON-1",
		OwnerID:           "owner-1",
		ContractorID:      "CTR-1",
		ProjectID:         "PRJ-1",
		Value:             1000,
		UnitPrices:        map[string]float64{"03-300": 5},
		ApprovedCostCodes: []string{"03-300"},
	}
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req workflow.ExtractRequest) (workflow.ExtractResult, error)
	reqs  []workflow.ExtractRequest
}

func returning(inv *documents.Invoice) *fakeExtractor {
	return &fakeExtractor{
		fn: func(int, workflow.ExtractRequest) (workflow.ExtractResult, error) {
			return workflow.ExtractResult{Data: inv.Clone(), Confidence: 0.95}, nil
		},
	}
}

func (f *fakeExtractor) Extract(_ context.Context, req workflow.ExtractRequest) (workflow.ExtractResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.fn(call, req)
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCritic struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCritic) Critique(_ context.Context, req workflow.CritiqueRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "re-check the line items", nil
}

func (f *fakeCritic) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSemantic struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSemantic) Check(context.Context, *documents.Invoice) ([]anomaly.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []anomaly.Anomaly{anomaly.Validation(
		anomaly.CodeSemanticMismatch, anomaly.SeverityMedium,
		"line_items.0.cost_code", "cost code does not match description",
	)}, nil
}

type fakeContracts struct {
	contracts map[string]*documents.Contract
	billed    float64
	lookupErr error
	billedErr error
}

func withContract(c *documents.Contract) *fakeContracts {
	return &fakeContracts{contracts: map[string]*documents.Contract{c.ID: c}}
}

func (f *fakeContracts) LookupContract(_ context.Context, id, _ string) (*documents.Contract, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	c, ok := f.contracts[id]
	return c, ok, nil
}

func (f *fakeContracts) BilledTotal(context.Context, string, string, string) (float64, error) {
	return f.billed, f.billedErr
}

// fakeGraph closes entered on the first upsert and, when release is set,
// holds that upsert until release is closed.
type fakeGraph struct {
	mu      sync.Mutex
	upserts int
	keys    map[string]int
	err     error

	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *fakeGraph) UpsertDocument(_ context.Context, rec workflow.Record) (string, error) {
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.err != nil {
		return "", f.err
	}
	if f.keys == nil {
		f.keys = make(map[string]int)
	}
	f.keys[rec.NaturalKey]++
	return documents.EntityID(rec.NaturalKey).String(), nil
}

func (f *fakeGraph) Upserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, workflow.Record) error {
	return f.err
}

// failingStore fails every append after the first `allow` appends.
type failingStore struct {
	*checkpoints.MemoryStore
	mu    sync.Mutex
	allow int
}

func (s *failingStore) Append(ctx context.Context, cp checkpoints.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allow == 0 {
		return errors.New("database unavailable")
	}
	s.allow--
	return s.MemoryStore.Append(ctx, cp)
}

// signalHandler discards records and closes ch the first time msg is logged.
type signalHandler struct {
	msg  string
	ch   chan struct{}
	once sync.Once
}

func (h *signalHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *signalHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Message == h.msg {
		h.once.Do(func() { close(h.ch) })
	}
	return nil
}

func (h *signalHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *signalHandler) WithGroup(string) slog.Handler      { return h }

type harness struct {
	extractor *fakeExtractor
	critic    *fakeCritic
	semantic  *fakeSemantic
	contracts *fakeContracts
	graph     *fakeGraph
	embedder  *fakeEmbedder
	store     checkpoints.Store
	config    workflow.Config
	logger    *slog.Logger
	clock     func() time.Time
}

func newHarness(inv *documents.Invoice) *harness {
	return &harness{
		extractor: returning(inv),
		critic:    &fakeCritic{},
		contracts: withContract(contract()),
		graph:     &fakeGraph{},
		store:     checkpoints.NewMemoryStore(),
		config:    workflow.Config{MaxRetries: 3},
	}
}

// signalOn returns a channel closed when the engine logs msg.
func (h *harness) signalOn(msg string) <-chan struct{} {
	sh := &signalHandler{msg: msg, ch: make(chan struct{})}
	h.logger = slog.New(sh)
	return sh.ch
}

func (h *harness) engine(t *testing.T) *workflow.Engine {
	t.Helper()

	logger := h.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := h.clock
	if clock == nil {
		clock = func() time.Time { return fixedNow }
	}

	rt := &workflow.Runtime{
		Extractor: h.extractor,
		Critic:    h.critic,
		Contracts: h.contracts,
		Graph:     h.graph,
		Config:    h.config,
		Logger:    logger,
		Clock:     clock,
	}
	if h.semantic != nil {
		rt.Semantic = h.semantic
	}
	if h.embedder != nil {
		rt.Embedder = h.embedder
	}

	e, err := workflow.New(rt, h.store)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func start(id string) workflow.StartCommand {
	return workflow.StartCommand{
		DocumentID:   id,
		OwnerID:      "owner-1",
		DocumentType: documents.TypeInvoice,
		RawText:      "INVOICE INV-2026-001 ...",
	}
}
