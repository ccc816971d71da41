// Package graph stores documents, contracts and their relationships in a
// property graph. Writes are MERGE-based so repeating an upsert yields the
// same entities.
package graph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/JaimeStill/ledger/internal/documents"
	"github.com/JaimeStill/ledger/internal/workflow"
)

// Store is the graph surface used by the workflow and the seeding command.
type Store interface {
	workflow.ContractLookup
	workflow.GraphWriter

	// UpsertContract creates or replaces a contract and links it to its
	// contractor and project.
	UpsertContract(ctx context.Context, c documents.Contract) error
}

// Counts reports how many entities of each label the store holds.
type Counts struct {
	Invoices    int
	LineItems   int
	Contractors int
	Projects    int
	Contracts   int
}

func entityID(naturalKey string) string {
	return documents.EntityID(naturalKey).String()
}

func lineKey(naturalKey string, index int, item documents.LineItem) string {
	if item.ID != "" {
		return naturalKey + "/line/" + item.ID
	}
	return naturalKey + "/line/#" + strconv.Itoa(index)
}

func contractorKey(ownerID string, inv *documents.Invoice) string {
	if inv.ContractorID != "" {
		return ownerID + "/contractor/" + inv.ContractorID
	}
	return ownerID + "/contractor-name/" + inv.ContractorName
}

func contractKey(ownerID, contractID string) string {
	return ownerID + "/contract/" + contractID
}

func projectKey(ownerID, projectID string) string {
	return ownerID + "/project/" + projectID
}

func validateContract(c documents.Contract) error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: id required", ErrInvalidContract)
	case c.OwnerID == "":
		return fmt.Errorf("%w: %s: owner_id required", ErrInvalidContract, c.ID)
	case c.Value < 0:
		return fmt.Errorf("%w: %s: negative value", ErrInvalidContract, c.ID)
	case c.RetentionRate < 0 || c.RetentionRate > 1:
		return fmt.Errorf("%w: %s: retention_rate must be between 0 and 1", ErrInvalidContract, c.ID)
	}
	return nil
}
