package checkpoints

import (
	"github.com/JaimeStill/ledger/pkg/query"
	"github.com/JaimeStill/ledger/pkg/repository"
)

const columns = `document_id, sequence_number, owner_id, document_type, status, paused,
	pause_reason, risk_level, retry_count, current_stage, state_blob, created_at, updated_at`

func project(p *query.ProjectionMap) *query.ProjectionMap {
	return p.
		Project("document_id", "DocumentID").
		Project("sequence_number", "Sequence").
		Project("owner_id", "OwnerID").
		Project("document_type", "DocumentType").
		Project("status", "Status").
		Project("paused", "Paused").
		Project("pause_reason", "PauseReason").
		Project("risk_level", "RiskLevel").
		Project("retry_count", "RetryCount").
		Project("current_stage", "CurrentStage").
		Project("state_blob", "State").
		Project("created_at", "CreatedAt").
		Project("updated_at", "UpdatedAt")
}

var (
	historyProjection = project(query.NewProjectionMap("public", "checkpoints", "c"))
	latestProjection  = project(query.NewProjectionMap("public", "latest_checkpoints", "l"))
)

var sequenceOrder = query.SortField{Field: "Sequence"}

var updatedOrder = query.SortField{Field: "UpdatedAt"}

func scanCheckpoint(s repository.Scanner) (Checkpoint, error) {
	var (
		c     Checkpoint
		state []byte
	)
	err := s.Scan(
		&c.DocumentID,
		&c.Sequence,
		&c.OwnerID,
		&c.DocumentType,
		&c.Status,
		&c.Paused,
		&c.PauseReason,
		&c.RiskLevel,
		&c.RetryCount,
		&c.CurrentStage,
		&state,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	c.State = state
	return c, err
}
