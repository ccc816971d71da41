package graph

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/JaimeStill/ledger/internal/documents"
	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/lifecycle"
)

type memoryInvoice struct {
	id         string
	ownerID    string
	contractID string
	amount     float64
	lines      []string
	contractor string
	project    string
}

// Memory is an in-process Store keyed the same way as the Neo4j store.
type Memory struct {
	mu          sync.RWMutex
	invoices    map[string]memoryInvoice
	lineItems   map[string]documents.LineItem
	contractors map[string]bool
	projects    map[string]bool
	contracts   map[string]documents.Contract
}

// NewMemory creates an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{
		invoices:    make(map[string]memoryInvoice),
		lineItems:   make(map[string]documents.LineItem),
		contractors: make(map[string]bool),
		projects:    make(map[string]bool),
		contracts:   make(map[string]documents.Contract),
	}
}

func (m *Memory) LookupContract(_ context.Context, contractID, ownerID string) (*documents.Contract, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[contractKey(ownerID, contractID)]
	if !ok {
		return nil, false, nil
	}
	return cloneContract(c), true, nil
}

func (m *Memory) BilledTotal(_ context.Context, contractID, ownerID, excludeKey string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total float64
	for key, inv := range m.invoices {
		if key == excludeKey || inv.ownerID != ownerID || inv.contractID != contractID {
			continue
		}
		total += inv.amount
	}
	return total, nil
}

func (m *Memory) UpsertDocument(_ context.Context, rec workflow.Record) (string, error) {
	if rec.Invoice == nil {
		return "", ErrNoInvoice
	}
	inv := rec.Invoice

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.invoices[rec.NaturalKey]; ok {
		for _, key := range prev.lines {
			delete(m.lineItems, key)
		}
	}

	entry := memoryInvoice{
		id:         entityID(rec.NaturalKey),
		ownerID:    rec.OwnerID,
		contractID: inv.ContractID,
		amount:     inv.Total(),
		contractor: contractorKey(rec.OwnerID, inv),
	}
	m.contractors[entry.contractor] = true

	if inv.ProjectID != "" {
		entry.project = projectKey(rec.OwnerID, inv.ProjectID)
		m.projects[entry.project] = true
	}

	for i, item := range inv.LineItems {
		key := lineKey(rec.NaturalKey, i, item)
		entry.lines = append(entry.lines, key)
		m.lineItems[key] = item
	}

	m.invoices[rec.NaturalKey] = entry
	return entry.id, nil
}

func (m *Memory) UpsertContract(_ context.Context, c documents.Contract) error {
	if err := validateContract(c); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.contracts[contractKey(c.OwnerID, c.ID)] = *cloneContract(c)
	if c.ContractorID != "" {
		m.contractors[c.OwnerID+"/contractor/"+c.ContractorID] = true
	}
	if c.ProjectID != "" {
		m.projects[projectKey(c.OwnerID, c.ProjectID)] = true
	}
	return nil
}

// Counts returns the number of stored entities by label.
func (m *Memory) Counts() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Counts{
		Invoices:    len(m.invoices),
		LineItems:   len(m.lineItems),
		Contractors: len(m.contractors),
		Projects:    len(m.projects),
		Contracts:   len(m.contracts),
	}
}

func cloneContract(c documents.Contract) *documents.Contract {
	c.UnitPrices = maps.Clone(c.UnitPrices)
	c.ApprovedCostCodes = slices.Clone(c.ApprovedCostCodes)
	return &c
}

type memorySystem struct {
	store  *Memory
	logger *slog.Logger
}

func (s *memorySystem) Store() Store {
	return s.store
}

func (s *memorySystem) Start(_ *lifecycle.Coordinator) error {
	s.logger.Warn("using in-memory graph; stored documents and contracts are lost on exit")
	return nil
}
