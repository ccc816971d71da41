package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/documents"
	"github.com/JaimeStill/ledger/pkg/formatting"
)

// MismatchConfidence is the confidence above which a reported cost code
// mismatch becomes an anomaly.
const MismatchConfidence = 0.7

type semanticItem struct {
	Index      int     `json:"index"`
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type semanticResponse struct {
	Items []semanticItem `json:"items"`
}

type lineSummary struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	CostCode    string `json:"cost_code"`
}

// SemanticChecker asks the model whether line descriptions fit their cost codes.
type SemanticChecker struct {
	complete Completer
	logger   *slog.Logger
}

// NewSemanticChecker creates a SemanticChecker over complete.
func NewSemanticChecker(complete Completer, logger *slog.Logger) *SemanticChecker {
	return &SemanticChecker{
		complete: complete,
		logger:   logger.With("system", "semantic"),
	}
}

// Check implements workflow.SemanticChecker.
func (c *SemanticChecker) Check(ctx context.Context, inv *documents.Invoice) ([]anomaly.Anomaly, error) {
	lines := make([]lineSummary, 0, len(inv.LineItems))
	for i, item := range inv.LineItems {
		if item.CostCode == "" {
			continue
		}
		lines = append(lines, lineSummary{Index: i, Description: item.Description, CostCode: item.CostCode})
	}
	if len(lines) == 0 {
		return nil, nil
	}

	prompt, err := Compose(TaskSemantic, Section{Title: "Line items", Body: lines})
	if err != nil {
		return nil, err
	}

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("semantic check: %w", err)
	}

	parsed, err := formatting.Parse[semanticResponse](content)
	if err != nil {
		return nil, fmt.Errorf("semantic check: %w", err)
	}

	var out []anomaly.Anomaly
	for _, item := range parsed.Items {
		if item.Valid || item.Confidence <= MismatchConfidence {
			continue
		}
		if item.Index < 0 || item.Index >= len(inv.LineItems) {
			c.logger.WarnContext(ctx, "semantic check referenced unknown line item", "index", item.Index)
			continue
		}

		line := inv.LineItems[item.Index]
		out = append(out, anomaly.Validation(
			anomaly.CodeSemanticMismatch, anomaly.SeverityMedium,
			fmt.Sprintf("line_items.%d.cost_code", item.Index),
			fmt.Sprintf("cost code %s does not match %q: %s", line.CostCode, line.Description, item.Reason),
		))
	}
	return out, nil
}
