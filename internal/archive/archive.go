// Package archive keeps a blob copy of each stored document's raw text and
// structured data.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/storage"
)

// Artifact names a file written per document.
type Artifact string

const (
	ArtifactRaw        Artifact = "raw.txt"
	ArtifactStructured Artifact = "structured.json"
)

var ErrUnknownArtifact = errors.New("unknown artifact")

func (a Artifact) contentType() string {
	if a == ArtifactStructured {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// ParseArtifact validates an artifact name taken from a request path.
func ParseArtifact(s string) (Artifact, error) {
	switch a := Artifact(s); a {
	case ArtifactRaw, ArtifactStructured:
		return a, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownArtifact, s)
}

// Key returns the storage key for a document artifact.
func Key(documentID string, a Artifact) string {
	return documentID + "/" + string(a)
}

// Archiver writes document artifacts to blob storage.
type Archiver struct {
	store  storage.System
	logger *slog.Logger
}

// New creates an Archiver over store.
func New(store storage.System, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		logger: logger.With("system", "archive"),
	}
}

// Archive implements workflow.Archiver. Both artifacts are attempted; the
// first failure is returned.
func (a *Archiver) Archive(ctx context.Context, rec workflow.Record) error {
	structured, err := json.MarshalIndent(rec.Invoice, "", "  ")
	if err != nil {
		return fmt.Errorf("encode structured data: %w", err)
	}

	var errs []error
	for art, body := range map[Artifact][]byte{
		ArtifactRaw:        []byte(rec.RawText),
		ArtifactStructured: structured,
	} {
		if err := a.store.Upload(ctx, Key(rec.DocumentID, art), bytes.NewReader(body), art.contentType()); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("archive %s: %w", rec.DocumentID, err)
	}

	a.logger.DebugContext(ctx, "document archived", "document_id", rec.DocumentID)
	return nil
}

// Open returns the stored artifact for documentID.
func (a *Archiver) Open(ctx context.Context, documentID string, art Artifact) (io.ReadCloser, error) {
	return a.store.Download(ctx, Key(documentID, art))
}

// MapHTTPStatus maps archive errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrUnknownArtifact) {
		return http.StatusBadRequest
	}
	return storage.MapHTTPStatus(err)
}
