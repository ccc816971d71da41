package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/formatting"
)

type critiqueResponse struct {
	Feedback string `json:"feedback"`
}

// Critic writes correction hints for the next extraction attempt.
type Critic struct {
	complete Completer
	logger   *slog.Logger
}

// NewCritic creates a Critic over complete.
func NewCritic(complete Completer, logger *slog.Logger) *Critic {
	return &Critic{
		complete: complete,
		logger:   logger.With("system", "critic"),
	}
}

// Critique implements workflow.Critic. A response that is not the expected
// JSON is used verbatim as feedback.
func (c *Critic) Critique(ctx context.Context, req workflow.CritiqueRequest) (string, error) {
	var sections []Section
	if len(req.Anomalies) > 0 {
		sections = append(sections, Section{Title: "Issues detected", Body: req.Anomalies})
	}
	sections = append(sections, Section{Title: "Missing required fields", Body: strings.Join(req.Missing, ", ")})
	if req.Data != nil {
		sections = append(sections, Section{Title: "Previous attempt", Body: req.Data})
	}
	sections = append(sections, Section{Title: "Document text", Body: req.RawText})

	prompt, err := Compose(TaskCritique, sections...)
	if err != nil {
		return "", err
	}

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("critique attempt %d: %w", req.Attempt, err)
	}

	parsed, err := formatting.Parse[critiqueResponse](content)
	if err != nil || strings.TrimSpace(parsed.Feedback) == "" {
		c.logger.DebugContext(ctx, "critic response was not structured", "attempt", req.Attempt)
		return strings.TrimSpace(content), nil
	}
	return strings.TrimSpace(parsed.Feedback), nil
}
