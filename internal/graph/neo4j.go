package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/JaimeStill/ledger/internal/documents"
	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/lifecycle"
)

// System owns the graph backend and the store built on it.
type System interface {
	Store() Store
	Start(lc *lifecycle.Coordinator) error
}

type system struct {
	driver  neo4j.DriverWithContext
	store   *neo4jStore
	logger  *slog.Logger
	timeout time.Duration
}

// New creates the configured backend. The Neo4j driver makes no connection
// until Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if cfg.Provider == ProviderMemory {
		return &memorySystem{store: NewMemory(), logger: logger.With("system", "graph")}, nil
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	logger = logger.With("system", "graph")
	return &system{
		driver:  driver,
		store:   &neo4jStore{driver: driver, database: cfg.Database, logger: logger},
		logger:  logger,
		timeout: cfg.ConnectTimeoutDuration(),
	}, nil
}

func (s *system) Store() Store {
	return s.store
}

func (s *system) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting graph driver")

	lc.OnStartup(func() {
		ctx, cancel := context.WithTimeout(lc.Context(), s.timeout)
		defer cancel()

		if err := s.driver.VerifyConnectivity(ctx); err != nil {
			s.logger.Error("graph connectivity check failed", "error", err)
			return
		}
		if err := s.store.ensureConstraints(ctx); err != nil {
			s.logger.Error("graph constraints failed", "error", err)
			return
		}

		s.logger.Info("graph driver connected")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		s.logger.Info("closing graph driver")

		if err := s.driver.Close(context.Background()); err != nil {
			s.logger.Error("graph driver close failed", "error", err)
			return
		}

		s.logger.Info("graph driver closed")
	})

	return nil
}

type neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

var constraints = []string{
	"CREATE CONSTRAINT invoice_key IF NOT EXISTS FOR (i:Invoice) REQUIRE i.key IS UNIQUE",
	"CREATE CONSTRAINT line_item_key IF NOT EXISTS FOR (li:LineItem) REQUIRE li.key IS UNIQUE",
	"CREATE CONSTRAINT contractor_key IF NOT EXISTS FOR (c:Contractor) REQUIRE c.key IS UNIQUE",
	"CREATE CONSTRAINT project_key IF NOT EXISTS FOR (p:Project) REQUIRE p.key IS UNIQUE",
	"CREATE CONSTRAINT contract_key IF NOT EXISTS FOR (con:Contract) REQUIRE con.key IS UNIQUE",
}

func (s *neo4jStore) ensureConstraints(ctx context.Context) error {
	for _, stmt := range constraints {
		if _, err := neo4j.ExecuteQuery(
			ctx, s.driver, stmt, nil,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database),
		); err != nil {
			return fmt.Errorf("apply constraint: %w", err)
		}
	}
	return nil
}

const lookupContractCypher = `
MATCH (con:Contract {key: $key})
RETURN con.contract_id AS contract_id,
       con.owner_id AS owner_id,
       con.contractor_id AS contractor_id,
       con.project_id AS project_id,
       toFloat(con.value) AS value,
       toFloat(con.retention_rate) AS retention_rate,
       con.unit_prices AS unit_prices,
       con.approved_cost_codes AS approved_cost_codes`

func (s *neo4jStore) LookupContract(ctx context.Context, contractID, ownerID string) (*documents.Contract, bool, error) {
	res, err := neo4j.ExecuteQuery(
		ctx, s.driver, lookupContractCypher,
		map[string]any{"key": contractKey(ownerID, contractID)},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("lookup contract %s: %w", contractID, err)
	}
	if len(res.Records) == 0 {
		return nil, false, nil
	}

	c, err := decodeContract(res.Records[0])
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

const billedTotalCypher = `
MATCH (i:Invoice {owner_id: $owner_id, contract_id: $contract_id})
WHERE i.key <> $exclude
RETURN toFloat(coalesce(sum(i.total_amount), 0)) AS billed`

func (s *neo4jStore) BilledTotal(ctx context.Context, contractID, ownerID, excludeKey string) (float64, error) {
	res, err := neo4j.ExecuteQuery(
		ctx, s.driver, billedTotalCypher,
		map[string]any{
			"owner_id":    ownerID,
			"contract_id": contractID,
			"exclude":     excludeKey,
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return 0, fmt.Errorf("billed total %s: %w", contractID, err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}

	billed, _, err := neo4j.GetRecordValue[float64](res.Records[0], "billed")
	if err != nil {
		return 0, fmt.Errorf("%w: billed: %w", ErrDecode, err)
	}
	return billed, nil
}

const upsertInvoiceCypher = `
MERGE (c:Contractor {key: $contractor.key})
  ON CREATE SET c.id = $contractor.id
SET c.owner_id = $owner_id,
    c.contractor_id = $contractor.contractor_id,
    c.name = $contractor.name
MERGE (i:Invoice {key: $key})
  ON CREATE SET i.id = $id, i.created_at = datetime()
SET i += $props, i.updated_at = datetime()
MERGE (c)-[:ISSUED]->(i)
RETURN i.id AS id`

const unlinkInvoiceCypher = `
MATCH (i:Invoice {key: $key})-[r:BILLED_AGAINST|FOR_PROJECT]->()
DELETE r`

const pruneLineItemsCypher = `
MATCH (i:Invoice {key: $key})-[:CONTAINS_ITEM]->(li:LineItem)
WHERE NOT li.key IN $line_keys
DETACH DELETE li`

const upsertLineItemsCypher = `
MATCH (i:Invoice {key: $key})
UNWIND $items AS item
MERGE (li:LineItem {key: item.key})
  ON CREATE SET li.id = item.id
SET li += item.props
MERGE (i)-[:CONTAINS_ITEM]->(li)`

const linkContractCypher = `
MATCH (i:Invoice {key: $key})
MATCH (con:Contract {key: $contract_key})
MERGE (i)-[:BILLED_AGAINST]->(con)`

const linkProjectCypher = `
MATCH (i:Invoice {key: $key})
MERGE (p:Project {key: $project.key})
  ON CREATE SET p.id = $project.id
SET p.owner_id = $owner_id, p.project_id = $project.project_id
MERGE (i)-[:FOR_PROJECT]->(p)`

// UpsertDocument merges the invoice, its contractor, line items, contract
// and project links. Relationships and line items from a previous write of
// the same natural key are replaced, so a corrected document converges.
func (s *neo4jStore) UpsertDocument(ctx context.Context, rec workflow.Record) (string, error) {
	if rec.Invoice == nil {
		return "", ErrNoInvoice
	}

	inv := rec.Invoice
	params := invoiceParams(rec)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	id, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, upsertInvoiceCypher, params)
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		id, _, err := neo4j.GetRecordValue[string](record, "id")
		if err != nil {
			return nil, fmt.Errorf("%w: id: %w", ErrDecode, err)
		}

		steps := []struct {
			cypher string
			run    bool
		}{
			{unlinkInvoiceCypher, true},
			{pruneLineItemsCypher, true},
			{upsertLineItemsCypher, len(inv.LineItems) > 0},
			{linkContractCypher, inv.ContractID != ""},
			{linkProjectCypher, inv.ProjectID != ""},
		}
		for _, step := range steps {
			if !step.run {
				continue
			}
			result, err := tx.Run(ctx, step.cypher, params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("upsert document %s: %w", rec.DocumentID, err)
	}

	s.logger.DebugContext(ctx, "document upserted", "document_id", rec.DocumentID, "key", rec.NaturalKey)
	return id.(string), nil
}

const upsertContractCypher = `
MERGE (con:Contract {key: $key})
  ON CREATE SET con.id = $id
SET con += $props
WITH con
OPTIONAL MATCH (con)-[r:FOR_PROJECT]->()
DELETE r`

const linkContractorCypher = `
MATCH (con:Contract {key: $key})
MERGE (c:Contractor {key: $contractor_key})
  ON CREATE SET c.id = $contractor_id, c.owner_id = $owner_id, c.contractor_id = $contractor
MERGE (c)-[:HAS_CONTRACT]->(con)`

const linkContractProjectCypher = `
MATCH (con:Contract {key: $key})
MERGE (p:Project {key: $project_key})
  ON CREATE SET p.id = $project_id, p.owner_id = $owner_id, p.project_id = $project
MERGE (con)-[:FOR_PROJECT]->(p)`

func (s *neo4jStore) UpsertContract(ctx context.Context, c documents.Contract) error {
	if err := validateContract(c); err != nil {
		return err
	}

	params, err := contractParams(c)
	if err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range []struct {
			cypher string
			run    bool
		}{
			{upsertContractCypher, true},
			{linkContractorCypher, c.ContractorID != ""},
			{linkContractProjectCypher, c.ProjectID != ""},
		} {
			if !stmt.run {
				continue
			}
			result, err := tx.Run(ctx, stmt.cypher, params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("upsert contract %s: %w", c.ID, err)
	}
	return nil
}

func invoiceParams(rec workflow.Record) map[string]any {
	inv := rec.Invoice

	props := map[string]any{
		"owner_id":       rec.OwnerID,
		"document_id":    rec.DocumentID,
		"document_type":  string(rec.DocumentType),
		"invoice_number": inv.InvoiceNumber,
		"invoice_date":   dateValue(inv.InvoiceDate),
		"due_date":       dateValue(inv.DueDate),
		"contract_id":    nullable(inv.ContractID),
		"project_id":     nullable(inv.ProjectID),
		"total_amount":   inv.Total(),
		"retention":      inv.DeclaredRetention(),
		"currency":       nullable(inv.Currency),
	}

	lineKeys := make([]string, 0, len(inv.LineItems))
	items := make([]map[string]any, 0, len(inv.LineItems))
	for i, item := range inv.LineItems {
		key := lineKey(rec.NaturalKey, i, item)
		lineKeys = append(lineKeys, key)
		items = append(items, map[string]any{
			"key": key,
			"id":  entityID(key),
			"props": map[string]any{
				"position":    i,
				"line_id":     item.ID,
				"description": item.Description,
				"quantity":    item.Quantity,
				"unit_price":  item.UnitPrice,
				"line_total":  item.Total,
				"cost_code":   nullable(item.CostCode),
				"owner_id":    rec.OwnerID,
			},
		})
	}

	ckey := contractorKey(rec.OwnerID, inv)
	params := map[string]any{
		"key":          rec.NaturalKey,
		"id":           entityID(rec.NaturalKey),
		"owner_id":     rec.OwnerID,
		"props":        props,
		"line_keys":    lineKeys,
		"items":        items,
		"contract_key": contractKey(rec.OwnerID, inv.ContractID),
		"contractor": map[string]any{
			"key":           ckey,
			"id":            entityID(ckey),
			"contractor_id": nullable(inv.ContractorID),
			"name":          nullable(inv.ContractorName),
		},
	}

	if inv.ProjectID != "" {
		pkey := projectKey(rec.OwnerID, inv.ProjectID)
		params["project"] = map[string]any{
			"key":        pkey,
			"id":         entityID(pkey),
			"project_id": inv.ProjectID,
		}
	}

	return params
}

func contractParams(c documents.Contract) (map[string]any, error) {
	prices, err := json.Marshal(c.UnitPrices)
	if err != nil {
		return nil, fmt.Errorf("%w: unit prices: %w", ErrInvalidContract, err)
	}

	codes := c.ApprovedCostCodes
	if codes == nil {
		codes = []string{}
	}

	key := contractKey(c.OwnerID, c.ID)
	params := map[string]any{
		"key":      key,
		"id":       entityID(key),
		"owner_id": c.OwnerID,
		"props": map[string]any{
			"contract_id":         c.ID,
			"owner_id":            c.OwnerID,
			"contractor_id":       nullable(c.ContractorID),
			"project_id":          nullable(c.ProjectID),
			"value":               c.Value,
			"retention_rate":      c.RetentionRate,
			"unit_prices":         string(prices),
			"approved_cost_codes": codes,
		},
	}

	if c.ContractorID != "" {
		ckey := c.OwnerID + "/contractor/" + c.ContractorID
		params["contractor_key"] = ckey
		params["contractor_id"] = entityID(ckey)
		params["contractor"] = c.ContractorID
	}
	if c.ProjectID != "" {
		pkey := projectKey(c.OwnerID, c.ProjectID)
		params["project_key"] = pkey
		params["project_id"] = entityID(pkey)
		params["project"] = c.ProjectID
	}

	return params, nil
}

func decodeContract(record *neo4j.Record) (*documents.Contract, error) {
	var c documents.Contract
	var err error

	str := func(key string) string {
		if err != nil {
			return ""
		}
		var v string
		v, _, err = neo4j.GetRecordValue[string](record, key)
		return v
	}
	num := func(key string) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, _, err = neo4j.GetRecordValue[float64](record, key)
		return v
	}

	c.ID = str("contract_id")
	c.OwnerID = str("owner_id")
	c.ContractorID = str("contractor_id")
	c.ProjectID = str("project_id")
	c.Value = num("value")
	c.RetentionRate = num("retention_rate")
	prices := str("unit_prices")
	if err != nil {
		return nil, fmt.Errorf("%w: contract: %w", ErrDecode, err)
	}

	if prices != "" {
		if err := json.Unmarshal([]byte(prices), &c.UnitPrices); err != nil {
			return nil, fmt.Errorf("%w: unit_prices: %w", ErrDecode, err)
		}
	}

	codes, _, err := neo4j.GetRecordValue[[]any](record, "approved_cost_codes")
	if err != nil {
		return nil, fmt.Errorf("%w: approved_cost_codes: %w", ErrDecode, err)
	}
	for _, code := range codes {
		s, ok := code.(string)
		if !ok {
			return nil, fmt.Errorf("%w: approved_cost_codes: %T", ErrDecode, code)
		}
		c.ApprovedCostCodes = append(c.ApprovedCostCodes, s)
	}

	return &c, nil
}

func dateValue(d *documents.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
