package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/checkpoints"
	"github.com/JaimeStill/ledger/internal/documents"
	"github.com/JaimeStill/ledger/internal/workflow"
)

func TestCleanInvoiceCompletes(t *testing.T) {
	h := newHarness(invoice())
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-a"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if s.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if s.CurrentStage != workflow.StageFinalized {
		t.Errorf("stage = %s, want finalized", s.CurrentStage)
	}
	if s.RiskLevel != anomaly.LevelLow {
		t.Errorf("risk = %q, want low", s.RiskLevel)
	}
	if s.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", s.RetryCount)
	}
	if h.extractor.Calls() != 1 {
		t.Errorf("extractor calls = %d, want 1", h.extractor.Calls())
	}
	if h.critic.Calls() != 0 {
		t.Errorf("critic calls = %d, want 0", h.critic.Calls())
	}
	if h.graph.Upserts() != 1 {
		t.Errorf("graph upserts = %d, want 1", h.graph.Upserts())
	}
	if s.GraphID == "" {
		t.Error("graph id not recorded")
	}

	history, err := e.History(context.Background(), "doc-a")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}

	wantStages := []string{"extracting", "validating", "auditing", "storing", "finalized"}
	if len(history) != len(wantStages) {
		t.Fatalf("history length = %d, want %d", len(history), len(wantStages))
	}
	for i, cp := range history {
		if cp.Sequence != int64(i+1) {
			t.Errorf("history[%d].Sequence = %d, want %d", i, cp.Sequence, i+1)
		}
		if cp.CurrentStage != wantStages[i] {
			t.Errorf("history[%d].CurrentStage = %s, want %s", i, cp.CurrentStage, wantStages[i])
		}
	}
}

func TestLineItemMismatchQuarantines(t *testing.T) {
	inv := invoice()
	inv.LineItems[0].Total = 45
	inv.Amount = documents.Money(45)

	h := newHarness(inv)
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-b"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if s.Status != workflow.StatusQuarantined || !s.Paused {
		t.Fatalf("status = %s paused = %t, want quarantined and paused", s.Status, s.Paused)
	}
	if s.PauseReason != workflow.PauseValidationRisk {
		t.Errorf("pause_reason = %s, want validation_risk", s.PauseReason)
	}
	if s.RiskLevel != anomaly.LevelHigh {
		t.Errorf("risk = %s, want high", s.RiskLevel)
	}
	if s.RetryCount != 0 || h.critic.Calls() != 0 {
		t.Errorf("retry_count = %d critic calls = %d, want no retries", s.RetryCount, h.critic.Calls())
	}
	if s.QuarantinedFrom != workflow.StageValidating {
		t.Errorf("quarantined_from = %s, want validating", s.QuarantinedFrom)
	}
}

func TestPersistentMediumAnomalyExhaustsRetries(t *testing.T) {
	h := newHarness(invoice())
	h.semantic = &fakeSemantic{}
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-c"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if s.Status != workflow.StatusQuarantined {
		t.Fatalf("status = %s, want quarantined", s.Status)
	}
	if s.PauseReason != workflow.PauseValidationRisk {
		t.Errorf("pause_reason = %s, want validation_risk", s.PauseReason)
	}
	if s.RetryCount != 3 {
		t.Errorf("retry_count = %d, want 3", s.RetryCount)
	}
	if h.critic.Calls() != 3 {
		t.Errorf("critic calls = %d, want 3", h.critic.Calls())
	}
	if h.extractor.Calls() != 4 {
		t.Errorf("extractor calls = %d, want 4", h.extractor.Calls())
	}
	if h.semantic.calls != 4 {
		t.Errorf("semantic checks = %d, want 4", h.semantic.calls)
	}

	for i, req := range h.extractor.reqs {
		if i == 0 && req.Feedback != "" {
			t.Errorf("first attempt received feedback %q", req.Feedback)
		}
		if i > 0 && req.Feedback == "" {
			t.Errorf("attempt %d received no critic feedback", i+1)
		}
	}
}

func TestComplianceViolationSkipsStorage(t *testing.T) {
	tests := []struct {
		name     string
		billed   float64
		wantCode anomaly.Severity
	}{
		{"cap exceeded by eleven percent", 1054, anomaly.SeverityCritical},
		{"cap exceeded by five percent", 994, anomaly.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := invoice()
			inv.LineItems[0].UnitPrice = 5.60
			inv.LineItems[0].Total = 56
			inv.Amount = documents.Money(56)

			h := newHarness(inv)
			h.contracts.billed = tt.billed
			e := h.engine(t)

			s, err := e.Start(context.Background(), start("doc-d"))
			if err != nil {
				t.Fatalf("Start() error: %v", err)
			}

			if s.Status != workflow.StatusQuarantined {
				t.Fatalf("status = %s, want quarantined", s.Status)
			}
			if s.PauseReason != workflow.PauseComplianceViolation {
				t.Errorf("pause_reason = %s, want compliance_violation", s.PauseReason)
			}
			if h.graph.Upserts() != 0 {
				t.Errorf("graph upserts = %d, want 0", h.graph.Upserts())
			}
			if s.RiskLevel != anomaly.LevelCritical {
				t.Errorf("risk = %s, want critical", s.RiskLevel)
			}

			sev := map[string]anomaly.Severity{}
			for _, a := range s.ComplianceAnomalies {
				sev[a.Code] = a.Severity
			}
			if sev[anomaly.CodeUnitPriceExceeds] != anomaly.SeverityHigh {
				t.Errorf("unit price severity = %q, want high", sev[anomaly.CodeUnitPriceExceeds])
			}
			if sev[anomaly.CodeBillingCapExceeded] != tt.wantCode {
				t.Errorf("billing cap severity = %q, want %s", sev[anomaly.CodeBillingCapExceeded], tt.wantCode)
			}
		})
	}
}

func TestContractNotFoundQuarantines(t *testing.T) {
	h := newHarness(invoice())
	h.contracts = &fakeContracts{}
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-e"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if s.PauseReason != workflow.PauseComplianceViolation {
		t.Fatalf("pause_reason = %s, want compliance_violation", s.PauseReason)
	}
	if len(s.ComplianceAnomalies) != 1 {
		t.Fatalf("compliance anomalies = %v, want one", s.ComplianceAnomalies)
	}
	got := s.ComplianceAnomalies[0]
	if got.Code != anomaly.CodeContractNotFound || got.Severity != anomaly.SeverityCritical {
		t.Errorf("anomaly = %s/%s, want contract_not_found/critical", got.Code, got.Severity)
	}
	if h.graph.Upserts() != 0 {
		t.Errorf("graph upserts = %d, want 0", h.graph.Upserts())
	}
}

func TestMissingContractIDQuarantines(t *testing.T) {
	inv := invoice()
	inv.ContractID = ""

	h := newHarness(inv)
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-nc"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if s.PauseReason != workflow.PauseComplianceViolation {
		t.Errorf("pause_reason = %s, want compliance_violation", s.PauseReason)
	}
	if len(s.ComplianceAnomalies) != 1 || s.ComplianceAnomalies[0].Code != anomaly.CodeMissingContract {
		t.Errorf("compliance anomalies = %v, want missing_contract", s.ComplianceAnomalies)
	}
}

func TestComplianceLookupFailureQuarantines(t *testing.T) {
	h := newHarness(invoice())
	h.contracts.lookupErr = errors.New("graph unavailable")
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-cu"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if s.PauseReason != workflow.PauseComplianceUnavailable {
		t.Errorf("pause_reason = %s, want compliance_unavailable", s.PauseReason)
	}
	if len(s.ErrorHistory) == 0 {
		t.Error("lookup failure not recorded in error history")
	}
}

func TestApproveResumesAfterQuarantiningStage(t *testing.T) {
	inv := invoice()
	inv.LineItems[0].UnitPrice = 5.60
	inv.LineItems[0].Total = 56
	inv.Amount = documents.Money(56)

	h := newHarness(inv)
	h.contracts.billed = 994
	e := h.engine(t)
	ctx := context.Background()

	if _, err := e.Start(ctx, start("doc-approve")); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	s, err := e.Resume(ctx, "doc-approve", workflow.ResumeCommand{
		Action: workflow.ActionApprove,
		Notes:  "price increase approved by change order",
	})
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}

	if s.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if h.extractor.Calls() != 1 {
		t.Errorf("extractor calls = %d, want 1", h.extractor.Calls())
	}
	if h.graph.Upserts() != 1 {
		t.Errorf("graph upserts = %d, want 1", h.graph.Upserts())
	}

	history, _ := e.History(ctx, "doc-approve")
	var stages []string
	for _, cp := range history {
		stages = append(stages, cp.CurrentStage)
	}
	want := "extracting,validating,auditing,quarantined,storing,finalized"
	if got := strings.Join(stages, ","); got != want {
		t.Errorf("stages = %s, want %s", got, want)
	}
}

func TestApproveAfterValidationGoesToAudit(t *testing.T) {
	inv := invoice()
	inv.LineItems[0].Total = 45
	inv.Amount = documents.Money(45)

	h := newHarness(inv)
	e := h.engine(t)
	ctx := context.Background()

	if _, err := e.Start(ctx, start("doc-av")); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	s, err := e.Resume(ctx, "doc-av", workflow.ResumeCommand{Action: workflow.ActionApprove})
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	if s.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if h.extractor.Calls() != 1 {
		t.Errorf("extractor calls = %d, want 1", h.extractor.Calls())
	}
}

func TestCorrectRevalidates(t *testing.T) {
	inv := invoice()
	inv.LineItems[0].Total = 45
	inv.Amount = documents.Money(45)

	h := newHarness(inv)
	h.config.MaxRetries = 2
	e := h.engine(t)
	ctx := context.Background()

	if _, err := e.Start(ctx, start("doc-fix")); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	s, err := e.Resume(ctx, "doc-fix", workflow.ResumeCommand{
		Action: workflow.ActionCorrect,
		Corrections: documents.Corrections{
			"line_items.0.line_total": 50,
			"total_amount":            50,
		},
	})
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}

	if s.Status != workflow.StatusCompleted {
		t.Fatalf("status = %s, want completed (history %v)", s.Status, s.ErrorHistory)
	}
	if s.StructuredData.Total() != 50 || s.StructuredData.LineItems[0].Total != 50 {
		t.Errorf("corrections not applied: %+v", s.StructuredData)
	}
	if s.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", s.RetryCount)
	}
	if h.extractor.Calls() != 1 {
		t.Errorf("extractor calls = %d, want 1", h.extractor.Calls())
	}
}

func TestRejectFails(t *testing.T) {
	h := newHarness(invoice())
	h.contracts = &fakeContracts{}
	e := h.engine(t)
	ctx := context.Background()

	if _, err := e.Start(ctx, start("doc-r")); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	s, err := e.Resume(ctx, "doc-r", workflow.ResumeCommand{
		Action: workflow.ActionReject,
		Notes:  "duplicate submission",
	})
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}

	if s.Status != workflow.StatusFailed || s.Paused {
		t.Errorf("status = %s paused = %t, want failed and not paused", s.Status, s.Paused)
	}
	last := s.ErrorHistory[len(s.ErrorHistory)-1]
	if !strings.Contains(last.Message, "duplicate submission") {
		t.Errorf("last history entry = %q, want rejection note", last.Message)
	}
}

func TestResumeRejectsNonQuarantined(t *testing.T) {
	h := newHarness(invoice())
	e := h.engine(t)
	ctx := context.Background()

	if _, err := e.Start(ctx, start("doc-done")); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	before, _ := e.History(ctx, "doc-done")

	for _, action := range []workflow.Action{workflow.ActionApprove, workflow.ActionReject, workflow.ActionCorrect} {
		_, err := e.Resume(ctx, "doc-done", workflow.ResumeCommand{Action: action})
		if !errors.Is(err, workflow.ErrNotQuarantined) {
			t.Errorf("Resume(%s) error = %v, want ErrNotQuarantined", action, err)
		}
	}

	after, _ := e.History(ctx, "doc-done")
	if len(after) != len(before) {
		t.Errorf("history grew from %d to %d", len(before), len(after))
	}

	s, _ := e.Status(ctx, "doc-done")
	if s.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
}

func TestResumeErrors(t *testing.T) {
	h := newHarness(invoice())
	h.contracts = &fakeContracts{}
	e := h.engine(t)
	ctx := context.Background()

	if _, err := e.Start(ctx, start("doc-q")); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	tests := []struct {
		name string
		id   string
		cmd  workflow.ResumeCommand
		want error
	}{
		{"unknown document", "missing", workflow.ResumeCommand{Action: workflow.ActionApprove}, workflow.ErrNotFound},
		{"unknown action", "doc-q", workflow.ResumeCommand{Action: "escalate"}, workflow.ErrInvalidAction},
		{"correct without corrections", "doc-q", workflow.ResumeCommand{Action: workflow.ActionCorrect}, workflow.ErrInvalidCommand},
		{
			"unknown correction field", "doc-q",
			workflow.ResumeCommand{Action: workflow.ActionCorrect, Corrections: documents.Corrections{"vendor_color": "blue"}},
			workflow.ErrInvalidCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Resume(ctx, tt.id, tt.cmd)
			if !errors.Is(err, tt.want) {
				t.Errorf("Resume() error = %v, want %v", err, tt.want)
			}
		})
	}

	s, _ := e.Status(ctx, "doc-q")
	if s.Status != workflow.StatusQuarantined {
		t.Errorf("status after rejected resumes = %s, want quarantined", s.Status)
	}
}

func TestExtractionExhausted(t *testing.T) {
	h := newHarness(invoice())
	h.config.MaxRetries = 2
	h.extractor = &fakeExtractor{
		fn: func(int, workflow.ExtractRequest) (workflow.ExtractResult, error) {
			return workflow.ExtractResult{}, errors.New("model timeout")
		},
	}
	h.critic.err = errors.New("critic offline")
	e := h.engine(t)
	ctx := context.Background()

	s, err := e.Start(ctx, start("doc-x"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if s.PauseReason != workflow.PauseExtractionExhausted {
		t.Errorf("pause_reason = %s, want extraction_exhausted", s.PauseReason)
	}
	if s.RetryCount != 2 {
		t.Errorf("retry_count = %d, want 2", s.RetryCount)
	}
	if h.extractor.Calls() != 3 {
		t.Errorf("extractor calls = %d, want 3", h.extractor.Calls())
	}
	for i, req := range h.extractor.reqs[1:] {
		if req.Feedback == "" {
			t.Errorf("retry %d received no fallback feedback", i+1)
		}
	}

	_, err = e.Resume(ctx, "doc-x", workflow.ResumeCommand{Action: workflow.ActionApprove})
	if !errors.Is(err, workflow.ErrNothingToApprove) {
		t.Errorf("approve without data error = %v, want ErrNothingToApprove", err)
	}
}

func TestLowConfidenceRetriesThenCompletes(t *testing.T) {
	h := newHarness(invoice())
	h.extractor = &fakeExtractor{
		fn: func(call int, _ workflow.ExtractRequest) (workflow.ExtractResult, error) {
			if call == 1 {
				return workflow.ExtractResult{Data: invoice(), Confidence: 0.4}, nil
			}
			return workflow.ExtractResult{Data: invoice(), Confidence: 0.9}, nil
		},
	}
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-lc"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if s.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if s.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", s.RetryCount)
	}
}

func TestRetryCountNeverExceedsMax(t *testing.T) {
	for max := 1; max <= 4; max++ {
		t.Run(fmt.Sprintf("max_retries=%d", max), func(t *testing.T) {
			inv := invoice()
			inv.InvoiceNumber = ""

			h := newHarness(inv)
			h.config.MaxRetries = max
			e := h.engine(t)
			ctx := context.Background()

			s, err := e.Start(ctx, start("doc-p"))
			if err != nil {
				t.Fatalf("Start() error: %v", err)
			}
			if s.Status != workflow.StatusQuarantined {
				t.Errorf("status = %s, want quarantined", s.Status)
			}
			if s.RetryCount != max {
				t.Errorf("retry_count = %d, want %d", s.RetryCount, max)
			}

			history, _ := e.History(ctx, "doc-p")
			for _, cp := range history {
				if cp.RetryCount > max {
					t.Errorf("checkpoint %d retry_count = %d exceeds %d", cp.Sequence, cp.RetryCount, max)
				}
			}
		})
	}
}

func TestGraphFailureFails(t *testing.T) {
	h := newHarness(invoice())
	h.graph.err = errors.New("neo4j unavailable")
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-g"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if s.Status != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", s.Status)
	}
}

func TestEmbedFailureIsBestEffort(t *testing.T) {
	h := newHarness(invoice())
	h.embedder = &fakeEmbedder{err: errors.New("embedding endpoint down")}
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-v"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if s.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}

	var logged bool
	for _, f := range s.ErrorHistory {
		if f.Stage == workflow.StageStoring && strings.Contains(f.Message, "embed") {
			logged = true
		}
	}
	if !logged {
		t.Error("embed failure not recorded in error history")
	}
}

func TestCheckpointFailureIsFatal(t *testing.T) {
	h := newHarness(invoice())
	h.store = &failingStore{MemoryStore: checkpoints.NewMemoryStore(), allow: 2}
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-cf"))
	if !errors.Is(err, workflow.ErrCheckpoint) {
		t.Fatalf("Start() error = %v, want ErrCheckpoint", err)
	}
	if s.Status != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", s.Status)
	}
	if h.graph.Upserts() != 0 {
		t.Errorf("graph upserts = %d, want 0", h.graph.Upserts())
	}

	latest, err := e.Status(context.Background(), "doc-cf")
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if latest.Status != workflow.StatusProcessing || latest.CurrentStage != workflow.StageValidating {
		t.Errorf("durable state = %s/%s, want processing/validating", latest.Status, latest.CurrentStage)
	}
}

func TestStartRejectsDuplicatesAndInvalidCommands(t *testing.T) {
	h := newHarness(invoice())
	e := h.engine(t)
	ctx := context.Background()

	if _, err := e.Start(ctx, start("doc-dup")); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if _, err := e.Start(ctx, start("doc-dup")); !errors.Is(err, workflow.ErrAlreadyExists) {
		t.Errorf("duplicate Start() error = %v, want ErrAlreadyExists", err)
	}

	invalid := []workflow.StartCommand{
		{DocumentID: "x", DocumentType: documents.TypeInvoice, RawText: "text"},
		{DocumentID: "x", OwnerID: "o", DocumentType: "receipt", RawText: "text"},
		{DocumentID: "x", OwnerID: "o", DocumentType: documents.TypeInvoice},
	}
	for _, cmd := range invalid {
		if _, err := e.Start(ctx, cmd); !errors.Is(err, workflow.ErrInvalidCommand) {
			t.Errorf("Start(%+v) error = %v, want ErrInvalidCommand", cmd, err)
		}
	}
}

func TestTimestampsAreUTC(t *testing.T) {
	h := newHarness(invoice())
	h.graph.err = errors.New("neo4j unavailable")
	local := time.FixedZone("UTC-5", -5*60*60)
	h.clock = func() time.Time { return fixedNow.In(local) }
	e := h.engine(t)

	s, err := e.Start(context.Background(), start("doc-utc"))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if s.CreatedAt.Location() != time.UTC || s.UpdatedAt.Location() != time.UTC {
		t.Errorf("created/updated zones = %v/%v, want UTC", s.CreatedAt.Location(), s.UpdatedAt.Location())
	}
	for _, f := range s.ErrorHistory {
		if f.At.Location() != time.UTC {
			t.Errorf("failure %q at %v, want UTC", f.Message, f.At)
		}
	}
}

func TestStartGeneratesDocumentID(t *testing.T) {
	h := newHarness(invoice())
	e := h.engine(t)

	cmd := start("")
	s, err := e.Start(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if s.DocumentID == "" {
		t.Error("document id not generated")
	}
}

func TestInterruptedRunStaysRecoverable(t *testing.T) {
	h := newHarness(invoice())
	ctx, cancel := context.WithCancel(context.Background())
	h.extractor.fn = func(call int, _ workflow.ExtractRequest) (workflow.ExtractResult, error) {
		if call == 1 {
			cancel()
			return workflow.ExtractResult{}, ctx.Err()
		}
		return workflow.ExtractResult{Data: invoice(), Confidence: 0.95}, nil
	}
	e := h.engine(t)

	s, err := e.Start(ctx, start("doc-interrupt"))
	if !errors.Is(err, workflow.ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() error = %v, want ErrInterrupted wrapping context.Canceled", err)
	}
	if s.Status != workflow.StatusProcessing || s.CurrentStage != workflow.StageExtracting {
		t.Errorf("state = %s/%s, want processing/extracting", s.Status, s.CurrentStage)
	}
	if len(s.ErrorHistory) != 0 {
		t.Errorf("history = %v, want empty", s.ErrorHistory)
	}
	if got := workflow.MapHTTPStatus(err); got != http.StatusServiceUnavailable {
		t.Errorf("MapHTTPStatus = %d, want 503", got)
	}

	n, err := e.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover() error: %v", err)
	}
	if n != 1 {
		t.Errorf("recovered = %d, want 1", n)
	}

	s, _ = e.Status(context.Background(), "doc-interrupt")
	if s.Status != workflow.StatusCompleted {
		t.Errorf("status after recover = %s, want completed", s.Status)
	}
	if h.extractor.Calls() != 2 {
		t.Errorf("extractor calls = %d, want 2", h.extractor.Calls())
	}
}

func TestInterruptedStorageIsNotFailed(t *testing.T) {
	h := newHarness(invoice())
	h.graph.entered = make(chan struct{})
	h.graph.release = make(chan struct{})
	h.graph.err = errors.New("graph upsert: context canceled")
	e := h.engine(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-h.graph.entered
		cancel()
		close(h.graph.release)
	}()

	s, err := e.Start(ctx, start("doc-store"))
	if !errors.Is(err, workflow.ErrInterrupted) {
		t.Fatalf("Start() error = %v, want ErrInterrupted", err)
	}
	if s.Status != workflow.StatusProcessing || s.CurrentStage != workflow.StageStoring {
		t.Errorf("state = %s/%s, want processing/storing", s.Status, s.CurrentStage)
	}
}

type startResult struct {
	state *workflow.State
	err   error
}

func startAsync(e *workflow.Engine, id string) <-chan startResult {
	out := make(chan startResult, 1)
	go func() {
		s, err := e.Start(context.Background(), start(id))
		out <- startResult{s, err}
	}()
	return out
}

func TestCancelRunningDocumentStopsAtNextStage(t *testing.T) {
	h := newHarness(invoice())
	entered := make(chan struct{})
	release := make(chan struct{})
	h.extractor.fn = func(int, workflow.ExtractRequest) (workflow.ExtractResult, error) {
		close(entered)
		<-release
		return workflow.ExtractResult{Data: invoice(), Confidence: 0.95}, nil
	}
	requested := h.signalOn("workflow cancellation requested")
	e := h.engine(t)
	ctx := context.Background()

	started := startAsync(e, "doc-run")
	<-entered

	cancelled := make(chan error, 1)
	go func() { cancelled <- e.Cancel(ctx, "doc-run", "operator abort") }()
	<-requested
	close(release)

	if err := <-cancelled; err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}

	res := <-started
	if res.err != nil {
		t.Fatalf("Start() error: %v", res.err)
	}
	if res.state.Status != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", res.state.Status)
	}
	last := res.state.ErrorHistory[len(res.state.ErrorHistory)-1]
	if !strings.Contains(last.Message, "operator abort") {
		t.Errorf("last failure = %+v, want cancellation reason", last)
	}

	if h.extractor.Calls() != 1 || h.critic.Calls() != 0 || h.graph.Upserts() != 0 {
		t.Errorf("calls after cancel: extract=%d critic=%d graph=%d",
			h.extractor.Calls(), h.critic.Calls(), h.graph.Upserts())
	}

	s, _ := e.Status(ctx, "doc-run")
	if s.Status != workflow.StatusFailed {
		t.Errorf("stored status = %s, want failed", s.Status)
	}
}

func TestCancelAfterFinalStageReportsNotProcessing(t *testing.T) {
	h := newHarness(invoice())
	h.graph.entered = make(chan struct{})
	h.graph.release = make(chan struct{})
	requested := h.signalOn("workflow cancellation requested")
	e := h.engine(t)
	ctx := context.Background()

	started := startAsync(e, "doc-late")
	<-h.graph.entered

	cancelled := make(chan error, 1)
	go func() { cancelled <- e.Cancel(ctx, "doc-late", "operator abort") }()
	<-requested
	close(h.graph.release)

	if err := <-cancelled; !errors.Is(err, workflow.ErrNotProcessing) {
		t.Errorf("Cancel() error = %v, want ErrNotProcessing", err)
	}

	res := <-started
	if res.err != nil {
		t.Fatalf("Start() error: %v", res.err)
	}
	if res.state.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", res.state.Status)
	}
}

// seedProcessing writes a processing checkpoint as if a previous process
// crashed after entering stage.
func seedProcessing(t *testing.T, store checkpoints.Store, id string, stage workflow.Stage) {
	t.Helper()

	s := workflow.State{
		Version:              workflow.StateVersion,
		DocumentID:           id,
		OwnerID:              "owner-1",
		DocumentType:         documents.TypeInvoice,
		RawText:              "INVOICE",
		StructuredData:       invoice(),
		ExtractionConfidence: 0.95,
		MaxRetries:           3,
		Attempt:              1,
		Status:               workflow.StatusProcessing,
		CurrentStage:         stage,
		ErrorHistory:         []workflow.Failure{},
		CreatedAt:            fixedNow,
		UpdatedAt:            fixedNow,
	}
	blob, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}

	err = store.Append(context.Background(), checkpoints.Checkpoint{
		DocumentID:   id,
		Sequence:     1,
		OwnerID:      "owner-1",
		DocumentType: "invoice",
		Status:       "processing",
		CurrentStage: string(stage),
		State:        blob,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
}

func TestRecoverContinuesAtCurrentStage(t *testing.T) {
	h := newHarness(invoice())
	seedProcessing(t, h.store, "doc-crash", workflow.StageStoring)
	e := h.engine(t)
	ctx := context.Background()

	n, err := e.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover() error: %v", err)
	}
	if n != 1 {
		t.Errorf("recovered = %d, want 1", n)
	}

	s, _ := e.Status(ctx, "doc-crash")
	if s.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if h.extractor.Calls() != 0 {
		t.Errorf("extractor calls = %d, want 0", h.extractor.Calls())
	}
	if h.graph.Upserts() != 1 {
		t.Errorf("graph upserts = %d, want 1", h.graph.Upserts())
	}
}

func TestCancelIdleProcessing(t *testing.T) {
	h := newHarness(invoice())
	seedProcessing(t, h.store, "doc-idle", workflow.StageAuditing)
	e := h.engine(t)
	ctx := context.Background()

	if err := e.Cancel(ctx, "doc-idle", "superseded by revision"); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}

	s, _ := e.Status(ctx, "doc-idle")
	if s.Status != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", s.Status)
	}

	if err := e.Cancel(ctx, "doc-idle", ""); !errors.Is(err, workflow.ErrNotProcessing) {
		t.Errorf("second Cancel() error = %v, want ErrNotProcessing", err)
	}
	if err := e.Cancel(ctx, "unknown", ""); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("Cancel(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestListQuarantined(t *testing.T) {
	h := newHarness(invoice())
	h.contracts = &fakeContracts{}
	e := h.engine(t)
	ctx := context.Background()

	for _, id := range []string{"q-1", "q-2"} {
		if _, err := e.Start(ctx, start(id)); err != nil {
			t.Fatalf("Start(%s) error: %v", id, err)
		}
	}

	entries, err := e.ListQuarantined(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListQuarantined() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.PauseReason != workflow.PauseComplianceViolation {
			t.Errorf("%s pause_reason = %s", entry.DocumentID, entry.PauseReason)
		}
		if len(entry.Anomalies) == 0 {
			t.Errorf("%s has no anomalies", entry.DocumentID)
		}
	}

	others, err := e.ListQuarantined(ctx, "owner-2")
	if err != nil {
		t.Fatalf("ListQuarantined(owner-2) error: %v", err)
	}
	if len(others) != 0 {
		t.Errorf("owner-2 entries = %d, want 0", len(others))
	}

	if _, err := e.ListQuarantined(ctx, ""); !errors.Is(err, workflow.ErrInvalidCommand) {
		t.Errorf("ListQuarantined(\"\") error = %v, want ErrInvalidCommand", err)
	}
}

func TestStartBatch(t *testing.T) {
	h := newHarness(invoice())
	h.config.Workers = 3
	e := h.engine(t)

	cmds := make([]workflow.StartCommand, 6)
	for i := range cmds {
		cmds[i] = start(fmt.Sprintf("batch-%d", i))
	}
	cmds[5] = start("batch-0")

	results := e.StartBatch(context.Background(), cmds)
	if len(results) != len(cmds) {
		t.Fatalf("results = %d, want %d", len(results), len(cmds))
	}

	var completed, failed int
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
		case r.State.Status == workflow.StatusCompleted:
			completed++
		}
	}
	if completed != 5 || failed != 1 {
		t.Errorf("completed = %d failed = %d, want 5 and 1", completed, failed)
	}
}
