package checkpoints

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/ledger/pkg/query"
	"github.com/JaimeStill/ledger/pkg/repository"
)

const appendSQL = `
	INSERT INTO checkpoints (` + columns + `)
	SELECT $1::text, $2::bigint, $3::text, $4::text, $5::text, $6::boolean,
		$7::text, $8::text, $9::integer, $10::text, $11::jsonb,
		COALESCE(
			(SELECT created_at FROM checkpoints WHERE document_id = $1::text AND sequence_number = 1),
			$12::timestamptz
		),
		$12::timestamptz
	WHERE COALESCE(
		(SELECT MAX(sequence_number) FROM checkpoints WHERE document_id = $1::text), 0
	) = $2::bigint - 1`

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Postgres-backed Store.
func New(db *sql.DB, logger *slog.Logger) Store {
	return &repo{
		db:     db,
		logger: logger.With("system", "checkpoints"),
	}
}

func (r *repo) Latest(ctx context.Context, documentID string) (Checkpoint, bool, error) {
	q, args := query.NewBuilder(latestProjection).BuildSingle("DocumentID", documentID)

	cp, found, err := repository.QueryOptional(ctx, r.db, q, args, scanCheckpoint)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("latest checkpoint %s: %w", documentID, err)
	}
	return cp, found, nil
}

func (r *repo) Append(ctx context.Context, cp Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	ts := cp.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(
			ctx, tx, appendSQL,
			cp.DocumentID,
			cp.Sequence,
			cp.OwnerID,
			cp.DocumentType,
			cp.Status,
			cp.Paused,
			cp.PauseReason,
			cp.RiskLevel,
			cp.RetryCount,
			cp.CurrentStage,
			string(cp.State),
			ts,
		)
	})

	if err != nil {
		if repository.MapError(err, ErrSequenceConflict, ErrSequenceConflict) == ErrSequenceConflict {
			return fmt.Errorf(
				"%w: document %s sequence %d",
				ErrSequenceConflict, cp.DocumentID, cp.Sequence,
			)
		}
		return fmt.Errorf("append checkpoint %s/%d: %w", cp.DocumentID, cp.Sequence, err)
	}

	r.logger.Debug(
		"checkpoint appended",
		"document_id", cp.DocumentID,
		"sequence", cp.Sequence,
		"stage", cp.CurrentStage,
		"status", cp.Status,
	)
	return nil
}

func (r *repo) History(ctx context.Context, documentID string) ([]Checkpoint, error) {
	q, args := query.
		NewBuilder(historyProjection, sequenceOrder).
		WhereEquals("DocumentID", documentID).
		Build()

	out, err := repository.QueryMany(ctx, r.db, q, args, scanCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("checkpoint history %s: %w", documentID, err)
	}
	return out, nil
}

func (r *repo) Paused(ctx context.Context, ownerID string) ([]Checkpoint, error) {
	var owner *string
	if ownerID != "" {
		owner = &ownerID
	}

	q, args := query.
		NewBuilder(latestProjection, updatedOrder).
		WhereEquals("Paused", true).
		WhereEquals("OwnerID", owner).
		Build()

	out, err := repository.QueryMany(ctx, r.db, q, args, scanCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("paused checkpoints: %w", err)
	}
	return out, nil
}

func (r *repo) Processing(ctx context.Context) ([]Checkpoint, error) {
	q, args := query.
		NewBuilder(latestProjection, updatedOrder).
		WhereEquals("Status", "processing").
		Build()

	out, err := repository.QueryMany(ctx, r.db, q, args, scanCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("processing checkpoints: %w", err)
	}
	return out, nil
}
