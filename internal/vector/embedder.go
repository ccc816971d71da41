// Package vector indexes stored documents as embeddings for similarity
// search. Indexing is best-effort from the workflow's point of view.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/ledger/internal/workflow"
)

// Embedder implements workflow.Embedder over a Client and an Index.
type Embedder struct {
	client   *Client
	index    Index
	model    string
	maxChars int
	logger   *slog.Logger
}

// NewEmbedder creates an Embedder. Content longer than cfg.MaxChars is truncated.
func NewEmbedder(cfg *Config, client *Client, index Index, logger *slog.Logger) *Embedder {
	return &Embedder{
		client:   client,
		index:    index,
		model:    cfg.Model,
		maxChars: cfg.MaxChars,
		logger:   logger.With("system", "vector"),
	}
}

func (e *Embedder) Embed(ctx context.Context, rec workflow.Record) error {
	content := Content(rec, e.maxChars)

	vectors, err := e.client.Embed(ctx, content)
	if err != nil {
		return err
	}

	entry := Entry{
		DocumentID:   rec.DocumentID,
		OwnerID:      rec.OwnerID,
		NaturalKey:   rec.NaturalKey,
		DocumentType: string(rec.DocumentType),
		Content:      content,
		Embedding:    vectors[0],
		Model:        e.model,
	}
	if rec.Invoice != nil {
		entry.CostCodes = rec.Invoice.CostCodes()
	}

	if err := e.index.Upsert(ctx, entry); err != nil {
		return err
	}

	e.logger.DebugContext(ctx, "document indexed", "document_id", rec.DocumentID, "dimensions", len(vectors[0]))
	return nil
}

// Content renders the text that is embedded for rec: a header of the key
// invoice fields followed by line descriptions and the raw text, truncated
// to maxChars runes.
func Content(rec workflow.Record, maxChars int) string {
	var sb strings.Builder

	if inv := rec.Invoice; inv != nil {
		fmt.Fprintf(&sb, "%s %s\n", rec.DocumentType, inv.InvoiceNumber)
		if inv.ContractorName != "" || inv.ContractorID != "" {
			fmt.Fprintf(&sb, "contractor: %s %s\n", inv.ContractorID, inv.ContractorName)
		}
		if inv.ContractID != "" {
			fmt.Fprintf(&sb, "contract: %s\n", inv.ContractID)
		}
		fmt.Fprintf(&sb, "total: %.2f\n", inv.Total())
		for _, item := range inv.LineItems {
			fmt.Fprintf(&sb, "- %s [%s] %.2f\n", item.Description, item.CostCode, item.Total)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(rec.RawText)

	runes := []rune(sb.String())
	if maxChars > 0 && len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	return string(runes)
}
