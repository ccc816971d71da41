package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/documents"
)

// Stage handlers mutate s and report an outcome. They never return errors:
// collaborator failures are recorded in the error history and routed.

func (e *Engine) extract(ctx context.Context, s *State) Outcome {
	now := e.now()
	s.supersede(StageExtracting, now)
	s.Attempt++

	feedback := s.CriticFeedback
	s.CriticFeedback = ""

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	res, err := e.rt.Extractor.Extract(callCtx, ExtractRequest{
		DocumentID:   s.DocumentID,
		DocumentType: s.DocumentType,
		RawText:      s.RawText,
		Feedback:     feedback,
	})
	if err != nil {
		e.warn(ctx, s, StageExtracting, "extraction failed", err)
		s.record(StageExtracting, fmt.Sprintf("extraction failed: %v", err), now)
		return OutcomeFailed
	}
	if res.Data == nil {
		s.record(StageExtracting, "extraction returned no structured data", now)
		s.ExtractionConfidence = 0
		return OutcomeFailed
	}

	s.StructuredData = res.Data
	s.ExtractionConfidence = min(max(res.Confidence, 0), 1)

	if missing := anomaly.MissingRequired(res.Data); len(missing) > 0 {
		s.record(StageExtracting, fmt.Sprintf(
			"extraction incomplete: missing %s", strings.Join(missing, ", "),
		), now)
		return OutcomeRetryable
	}
	if s.ExtractionConfidence < e.cfg.ConfidenceFloor {
		s.record(StageExtracting, fmt.Sprintf(
			"extraction confidence %.2f below floor %.2f",
			s.ExtractionConfidence, e.cfg.ConfidenceFloor,
		), now)
		return OutcomeRetryable
	}

	return OutcomeComplete
}

func (e *Engine) critique(ctx context.Context, s *State) Outcome {
	now := e.now()

	budget, err := s.Budget().Consume()
	if err != nil {
		s.record(StageCritiquing, err.Error(), now)
		return OutcomeExhausted
	}
	s.RetryCount = budget.Used

	req := CritiqueRequest{
		DocumentType: s.DocumentType,
		RawText:      s.RawText,
		Data:         s.StructuredData.Clone(),
		Anomalies:    s.Anomalies(),
		Missing:      anomaly.MissingRequired(s.StructuredData),
		Attempt:      s.Attempt,
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	feedback, err := e.rt.Critic.Critique(callCtx, req)
	if err != nil {
		e.warn(ctx, s, StageCritiquing, "critic failed", err)
		s.record(StageCritiquing, fmt.Sprintf("critic failed, using anomaly summary: %v", err), now)
		feedback = ""
	}
	if strings.TrimSpace(feedback) == "" {
		feedback = fallbackFeedback(req)
	}

	s.CriticFeedback = feedback
	return OutcomeComplete
}

func fallbackFeedback(req CritiqueRequest) string {
	switch {
	case len(req.Anomalies) > 0:
		return "Correct the following issues:\n" + anomaly.Summary(req.Anomalies)
	case req.Data == nil:
		return "The previous attempt produced no structured data. Extract every invoice field present in the text."
	case len(req.Missing) > 0:
		return "The previous attempt omitted required fields: " + strings.Join(req.Missing, ", ")
	default:
		return "The previous attempt had low confidence. Re-read the text and verify every field."
	}
}

func (e *Engine) validate(ctx context.Context, s *State) Outcome {
	found := anomaly.Validate(s.StructuredData, e.now())

	if e.rt.Semantic != nil && s.StructuredData != nil {
		callCtx, cancel := e.callContext(ctx)
		extra, err := e.rt.Semantic.Check(callCtx, s.StructuredData)
		cancel()

		if err != nil {
			e.warn(ctx, s, StageValidating, "semantic check failed", err)
			s.record(StageValidating, fmt.Sprintf("semantic check skipped: %v", err), e.now())
		} else {
			found = append(found, extra...)
		}
	}

	s.ValidationAnomalies = found
	level := anomaly.Classify(found)
	s.RiskLevel = anomaly.Max(s.RiskLevel, level)

	return Outcome(level)
}

func (e *Engine) audit(ctx context.Context, s *State) Outcome {
	inv := s.StructuredData
	now := e.now()

	conclude := func(found []anomaly.Anomaly, outcome Outcome) Outcome {
		s.ComplianceAnomalies = found
		s.RiskLevel = anomaly.Max(s.RiskLevel, anomaly.Classify(s.ValidationAnomalies, found))
		return outcome
	}

	contractID := strings.TrimSpace(inv.ContractID)
	if contractID == "" {
		return conclude(anomaly.MissingContract(), OutcomeViolation)
	}

	lookupCtx, cancel := e.callContext(ctx)
	contract, found, err := e.rt.Contracts.LookupContract(lookupCtx, contractID, s.OwnerID)
	cancel()

	if err != nil {
		e.warn(ctx, s, StageAuditing, "contract lookup failed", err)
		s.record(StageAuditing, fmt.Sprintf("contract lookup failed: %v", err), now)
		return OutcomeUnavailable
	}
	if !found || contract == nil {
		return conclude(anomaly.ContractNotFound(contractID), OutcomeViolation)
	}

	key := documents.NaturalKey(s.OwnerID, s.DocumentID, inv)

	billedCtx, cancel := e.callContext(ctx)
	prior, err := e.rt.Contracts.BilledTotal(billedCtx, contract.ID, s.OwnerID, key)
	cancel()

	if err != nil {
		e.warn(ctx, s, StageAuditing, "billed total lookup failed", err)
		s.record(StageAuditing, fmt.Sprintf("billed total lookup failed: %v", err), now)
		return OutcomeUnavailable
	}

	findings := anomaly.Audit(inv, contract, prior, e.cfg.Audit)
	if e.cfg.Thresholds.Exceeded(findings) {
		return conclude(findings, OutcomeViolation)
	}
	return conclude(findings, OutcomePass)
}

func (e *Engine) persist(ctx context.Context, s *State) Outcome {
	now := e.now()
	rec := Record{
		DocumentID:   s.DocumentID,
		OwnerID:      s.OwnerID,
		NaturalKey:   documents.NaturalKey(s.OwnerID, s.DocumentID, s.StructuredData),
		DocumentType: s.DocumentType,
		RawText:      s.RawText,
		Invoice:      s.StructuredData,
	}

	graphCtx, cancel := e.callContext(ctx)
	id, err := e.rt.Graph.UpsertDocument(graphCtx, rec)
	cancel()

	if err != nil {
		e.warn(ctx, s, StageStoring, "graph upsert failed", err)
		s.record(StageStoring, fmt.Sprintf("graph upsert failed: %v", err), now)
		return OutcomeFailed
	}
	s.GraphID = id

	if e.rt.Embedder != nil {
		embedCtx, cancel := e.callContext(ctx)
		err := e.rt.Embedder.Embed(embedCtx, rec)
		cancel()

		if err != nil {
			e.warn(ctx, s, StageStoring, "embedding failed", err)
			s.record(StageStoring, fmt.Sprintf("vector embed failed: %v", err), now)
		}
	}

	if e.rt.Archiver != nil {
		archiveCtx, cancel := e.callContext(ctx)
		err := e.rt.Archiver.Archive(archiveCtx, rec)
		cancel()

		if err != nil {
			e.warn(ctx, s, StageStoring, "archive failed", err)
			s.record(StageStoring, fmt.Sprintf("archive failed: %v", err), now)
		}
	}

	return OutcomeStored
}
