// Package checkpoints persists the append-only history of workflow state.
// Each transition of a document's workflow is recorded as an immutable
// Checkpoint; the highest sequence number for a document is its current state.
package checkpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Checkpoint is an immutable snapshot of a document's workflow state.
// The indexed columns duplicate fields of State so stores can filter
// without decoding the blob.
type Checkpoint struct {
	DocumentID   string          `json:"document_id"`
	Sequence     int64           `json:"sequence_number"`
	OwnerID      string          `json:"owner_id"`
	DocumentType string          `json:"document_type"`
	Status       string          `json:"status"`
	Paused       bool            `json:"paused"`
	PauseReason  *string         `json:"pause_reason"`
	RiskLevel    *string         `json:"risk_level"`
	RetryCount   int             `json:"retry_count"`
	CurrentStage string          `json:"current_stage"`
	State        json.RawMessage `json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate checks the fields every store requires.
func (c *Checkpoint) Validate() error {
	if c.DocumentID == "" {
		return fmt.Errorf("%w: document_id required", ErrInvalid)
	}
	if c.Sequence < 1 {
		return fmt.Errorf("%w: sequence_number must be positive", ErrInvalid)
	}
	if c.Status == "" {
		return fmt.Errorf("%w: status required", ErrInvalid)
	}
	if c.CurrentStage == "" {
		return fmt.Errorf("%w: current_stage required", ErrInvalid)
	}
	if len(c.State) == 0 || !json.Valid(c.State) {
		return fmt.Errorf("%w: state must be valid JSON", ErrInvalid)
	}
	return nil
}

// Store is the durable record of workflow checkpoints.
//
// Append must only succeed when cp.Sequence is exactly one greater than the
// latest recorded sequence for the document (or 1 for a new document);
// otherwise it returns ErrSequenceConflict. That rule makes a store a
// single-writer-per-document guard even across processes.
type Store interface {
	// Latest returns the checkpoint with the highest sequence number.
	Latest(ctx context.Context, documentID string) (Checkpoint, bool, error)
	// Append durably records cp.
	Append(ctx context.Context, cp Checkpoint) error
	// History returns every checkpoint for a document in sequence order.
	History(ctx context.Context, documentID string) ([]Checkpoint, error)
	// Paused returns the latest checkpoint of every paused document owned by
	// ownerID. An empty ownerID matches all owners.
	Paused(ctx context.Context, ownerID string) ([]Checkpoint, error)
	// Processing returns the latest checkpoint of every document still processing.
	Processing(ctx context.Context) ([]Checkpoint, error)
}

// Nullable converts an empty string to nil for the nullable columns.
func Nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences a nullable column.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
