package workflow

import (
	"context"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/documents"
)

// ExtractRequest is the input to one extraction attempt. Feedback carries
// the critic's hint from the previous attempt, if any.
type ExtractRequest struct {
	DocumentID   string
	DocumentType documents.Type
	RawText      string
	Feedback     string
}

// ExtractResult is a proposed structured record with a 0-1 confidence.
type ExtractResult struct {
	Data       *documents.Invoice
	Confidence float64
}

// Extractor proposes structured data from raw text. It may fail or return
// low-confidence output; the engine routes both.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (ExtractResult, error)
}

// CritiqueRequest carries what the critic needs to write a correction hint.
type CritiqueRequest struct {
	DocumentType documents.Type
	RawText      string
	Data         *documents.Invoice
	Anomalies    []anomaly.Anomaly
	Missing      []string
	Attempt      int
}

// Critic writes natural-language feedback for the next extraction attempt.
type Critic interface {
	Critique(ctx context.Context, req CritiqueRequest) (string, error)
}

// SemanticChecker reports anomalies that need language understanding, such
// as a cost code that does not match its line description.
type SemanticChecker interface {
	Check(ctx context.Context, inv *documents.Invoice) ([]anomaly.Anomaly, error)
}

// ContractLookup resolves the contract an invoice bills against.
type ContractLookup interface {
	// LookupContract returns found=false when no contract matches for the owner.
	LookupContract(ctx context.Context, contractID, ownerID string) (*documents.Contract, bool, error)
	// BilledTotal sums prior invoices against the contract, excluding the
	// invoice identified by excludeKey.
	BilledTotal(ctx context.Context, contractID, ownerID, excludeKey string) (float64, error)
}

// Record is a document ready to be written to the durable stores. NaturalKey
// identifies it across repeated writes.
type Record struct {
	DocumentID   string
	OwnerID      string
	NaturalKey   string
	DocumentType documents.Type
	RawText      string
	Invoice      *documents.Invoice
}

// GraphWriter idempotently upserts a record and returns its entity id.
type GraphWriter interface {
	UpsertDocument(ctx context.Context, rec Record) (string, error)
}

// Embedder indexes a record for similarity search. Failures are best-effort.
type Embedder interface {
	Embed(ctx context.Context, rec Record) error
}

// Archiver keeps a copy of the raw and structured document. Failures are best-effort.
type Archiver interface {
	Archive(ctx context.Context, rec Record) error
}
