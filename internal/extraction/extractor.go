package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/documents"
	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/formatting"
)

// Extractor turns raw document text into a structured invoice.
type Extractor struct {
	complete Completer
	logger   *slog.Logger
}

// NewExtractor creates an Extractor over complete.
func NewExtractor(complete Completer, logger *slog.Logger) *Extractor {
	return &Extractor{
		complete: complete,
		logger:   logger.With("system", "extraction"),
	}
}

// Extract implements workflow.Extractor. Confidence is the share of required
// fields present in the parsed result.
func (x *Extractor) Extract(ctx context.Context, req workflow.ExtractRequest) (workflow.ExtractResult, error) {
	prompt, err := Compose(
		TaskExtract,
		Section{Title: "Document type", Body: string(req.DocumentType)},
		Section{Title: "Reviewer feedback from the previous attempt", Body: req.Feedback},
		Section{Title: "Document text", Body: req.RawText},
	)
	if err != nil {
		return workflow.ExtractResult{}, err
	}

	content, err := x.complete(ctx, prompt)
	if err != nil {
		return workflow.ExtractResult{}, fmt.Errorf("extract %s: %w", req.DocumentID, err)
	}

	inv, err := formatting.Parse[documents.Invoice](content)
	if err != nil {
		return workflow.ExtractResult{}, fmt.Errorf("extract %s: %w", req.DocumentID, err)
	}

	confidence := Completeness(&inv)

	x.logger.DebugContext(
		ctx, "extraction parsed",
		"document_id", req.DocumentID,
		"line_items", len(inv.LineItems),
		"confidence", confidence,
		"with_feedback", req.Feedback != "",
	)

	return workflow.ExtractResult{Data: &inv, Confidence: confidence}, nil
}

// Completeness returns the fraction of required invoice fields present.
func Completeness(inv *documents.Invoice) float64 {
	missing := len(anomaly.MissingRequired(inv))
	return float64(anomaly.RequiredFieldCount-missing) / float64(anomaly.RequiredFieldCount)
}
