package checkpoints

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// MemoryStore keeps checkpoints in process memory. It satisfies the same
// sequencing contract as the Postgres store and is used for tests and
// single-process development runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]Checkpoint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]Checkpoint),
	}
}

func (m *MemoryStore) Latest(_ context.Context, documentID string) (Checkpoint, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.docs[documentID]
	if len(history) == 0 {
		return Checkpoint{}, false, nil
	}
	return clone(history[len(history)-1]), true, nil
}

func (m *MemoryStore) Append(_ context.Context, cp Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.docs[cp.DocumentID]
	want := int64(len(history)) + 1
	if cp.Sequence != want {
		return fmt.Errorf(
			"%w: document %s expected sequence %d, got %d",
			ErrSequenceConflict, cp.DocumentID, want, cp.Sequence,
		)
	}

	if len(history) > 0 {
		cp.CreatedAt = history[0].CreatedAt
	}

	m.docs[cp.DocumentID] = append(history, clone(cp))
	return nil
}

func (m *MemoryStore) History(_ context.Context, documentID string) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.docs[documentID]
	out := make([]Checkpoint, len(history))
	for i, cp := range history {
		out[i] = clone(cp)
	}
	return out, nil
}

func (m *MemoryStore) Paused(_ context.Context, ownerID string) ([]Checkpoint, error) {
	return m.latestWhere(func(cp Checkpoint) bool {
		return cp.Paused && (ownerID == "" || cp.OwnerID == ownerID)
	}), nil
}

func (m *MemoryStore) Processing(_ context.Context) ([]Checkpoint, error) {
	return m.latestWhere(func(cp Checkpoint) bool {
		return cp.Status == "processing"
	}), nil
}

func (m *MemoryStore) latestWhere(match func(Checkpoint) bool) []Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Checkpoint, 0)
	for _, history := range m.docs {
		latest := history[len(history)-1]
		if match(latest) {
			out = append(out, clone(latest))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out
}

func clone(cp Checkpoint) Checkpoint {
	cp.State = slices.Clone(cp.State)
	if cp.PauseReason != nil {
		v := *cp.PauseReason
		cp.PauseReason = &v
	}
	if cp.RiskLevel != nil {
		v := *cp.RiskLevel
		cp.RiskLevel = &v
	}
	return cp
}
