// Package quarantine serves the human review queue: listing paused
// documents and applying reviewer decisions through the workflow engine.
package quarantine

import (
	"context"
	"time"

	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/pagination"
)

// Entry is one row of the review queue.
type Entry struct {
	DocumentID      string    `json:"document_id"`
	OwnerID         string    `json:"owner_id"`
	DocumentType    string    `json:"document_type"`
	PauseReason     string    `json:"pause_reason"`
	RiskLevel       *string   `json:"risk_level"`
	QuarantinedFrom string    `json:"quarantined_from"`
	RetryCount      int       `json:"retry_count"`
	Sequence        int64     `json:"sequence_number"`
	QuarantinedAt   time.Time `json:"quarantined_at"`
}

// Reviewer is the engine surface the queue depends on.
type Reviewer interface {
	ListQuarantined(ctx context.Context, ownerID string) ([]workflow.QuarantineEntry, error)
	Resume(ctx context.Context, documentID string, cmd workflow.ResumeCommand) (*workflow.State, error)
}

// System defines the review queue operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Entry], error)
	ForOwner(ctx context.Context, ownerID string) ([]workflow.QuarantineEntry, error)
	Resolve(ctx context.Context, documentID string, cmd workflow.ResumeCommand) (*workflow.State, error)
}

func entryFrom(q workflow.QuarantineEntry) Entry {
	e := Entry{
		DocumentID:      q.DocumentID,
		OwnerID:         q.OwnerID,
		DocumentType:    string(q.DocumentType),
		PauseReason:     string(q.PauseReason),
		QuarantinedFrom: string(q.QuarantinedFrom),
		RetryCount:      q.RetryCount,
		Sequence:        q.Sequence,
		QuarantinedAt:   q.QuarantinedAt,
	}
	if q.RiskLevel != "" {
		level := string(q.RiskLevel)
		e.RiskLevel = &level
	}
	return e
}
