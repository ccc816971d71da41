package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/ledger/internal/documents"
)

// ContractFile is the YAML layout read by the seed command.
type ContractFile struct {
	Owner     string               `yaml:"owner_id"`
	Contracts []documents.Contract `yaml:"contracts"`
}

// LoadContracts decodes contracts from r. Contracts without an owner_id
// inherit the file-level owner.
func LoadContracts(r io.Reader) ([]documents.Contract, error) {
	var file ContractFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode contracts: %w", err)
	}

	for i := range file.Contracts {
		if file.Contracts[i].OwnerID == "" {
			file.Contracts[i].OwnerID = file.Owner
		}
		if err := validateContract(file.Contracts[i]); err != nil {
			return nil, fmt.Errorf("contract %d: %w", i, err)
		}
	}
	return file.Contracts, nil
}

// LoadContractsFile opens path and decodes its contracts.
func LoadContractsFile(path string) ([]documents.Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contracts: %w", err)
	}
	defer f.Close()

	return LoadContracts(f)
}

// Seed upserts every contract into store and returns how many were written.
func Seed(ctx context.Context, store Store, contracts []documents.Contract) (int, error) {
	for i, c := range contracts {
		if err := store.UpsertContract(ctx, c); err != nil {
			return i, err
		}
	}
	return len(contracts), nil
}
