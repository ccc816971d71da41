package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Entry is one indexed document.
type Entry struct {
	DocumentID   string
	OwnerID      string
	NaturalKey   string
	DocumentType string
	Content      string
	CostCodes    []string
	Embedding    []float64
	Model        string
	UpdatedAt    time.Time
}

var ErrNotIndexed = errors.New("document not indexed")

// Index persists document embeddings.
type Index interface {
	Upsert(ctx context.Context, e Entry) error
	Get(ctx context.Context, documentID string) (Entry, error)
}

type postgresIndex struct {
	db *sql.DB
}

// NewIndex creates an Index over the document_embeddings table.
func NewIndex(db *sql.DB) Index {
	return &postgresIndex{db: db}
}

const upsertEntry = `
INSERT INTO document_embeddings
  (document_id, owner_id, natural_key, document_type, content, cost_codes, embedding, model, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (document_id) DO UPDATE
SET owner_id = EXCLUDED.owner_id,
    natural_key = EXCLUDED.natural_key,
    document_type = EXCLUDED.document_type,
    content = EXCLUDED.content,
    cost_codes = EXCLUDED.cost_codes,
    embedding = EXCLUDED.embedding,
    model = EXCLUDED.model,
    updated_at = NOW()`

func (p *postgresIndex) Upsert(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx, upsertEntry,
		e.DocumentID,
		e.OwnerID,
		e.NaturalKey,
		e.DocumentType,
		e.Content,
		pq.StringArray(e.CostCodes),
		pq.Float64Array(e.Embedding),
		e.Model,
	)
	if err != nil {
		return fmt.Errorf("upsert embedding %s: %w", e.DocumentID, err)
	}
	return nil
}

const selectEntry = `
SELECT document_id, owner_id, natural_key, document_type, content, cost_codes, embedding, model, updated_at
FROM document_embeddings
WHERE document_id = $1`

func (p *postgresIndex) Get(ctx context.Context, documentID string) (Entry, error) {
	var (
		e     Entry
		codes pq.StringArray
		vec   pq.Float64Array
	)

	err := p.db.QueryRowContext(ctx, selectEntry, documentID).Scan(
		&e.DocumentID, &e.OwnerID, &e.NaturalKey, &e.DocumentType,
		&e.Content, &codes, &vec, &e.Model, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotIndexed
		}
		return Entry{}, fmt.Errorf("get embedding %s: %w", documentID, err)
	}

	e.CostCodes = codes
	e.Embedding = vec
	return e, nil
}
