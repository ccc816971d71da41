package anomaly

import (
	"fmt"
	"math"
	"strings"

	"github.com/JaimeStill/ledger/internal/documents"
)

// AuditOptions are the tolerances applied by contract compliance checks.
// Rates are fractions: 0.05 means five percent.
type AuditOptions struct {
	RetentionTolerance float64 `toml:"retention_tolerance"`
	PriceTolerance     float64 `toml:"price_tolerance"`
	PriceHigh          float64 `toml:"price_high"`
	BillingCapCritical float64 `toml:"billing_cap_critical"`
}

// DefaultAuditOptions returns the standard contract tolerances.
func DefaultAuditOptions() AuditOptions {
	return AuditOptions{
		RetentionTolerance: 0.01,
		PriceTolerance:     0.05,
		PriceHigh:          0.10,
		BillingCapCritical: 0.10,
	}
}

// MissingContract is the finding for an invoice that names no contract.
func MissingContract() []Anomaly {
	return []Anomaly{Compliance(
		CodeMissingContract, SeverityHigh, "contract_id",
		"invoice has no associated contract for compliance validation",
	)}
}

// ContractNotFound is the single finding emitted when the governing contract
// cannot be resolved. Compliance stops there.
func ContractNotFound(contractID string) []Anomaly {
	return []Anomaly{Compliance(
		CodeContractNotFound, SeverityCritical, "contract_id",
		fmt.Sprintf("contract %s not found", contractID),
	)}
}

// Audit checks inv against the contract terms. priorBilled is the amount
// already billed against the contract by other invoices. Every check runs and
// all findings are returned together.
func Audit(inv *documents.Invoice, contract *documents.Contract, priorBilled float64, opts AuditOptions) []Anomaly {
	if inv == nil || contract == nil {
		return nil
	}

	var out []Anomaly
	out = append(out, retention(inv, contract, opts)...)
	out = append(out, unitPrices(inv, contract, opts)...)
	out = append(out, billingCap(inv, contract, priorBilled, opts)...)
	out = append(out, scope(inv, contract)...)
	return out
}

func retention(inv *documents.Invoice, contract *documents.Contract, opts AuditOptions) []Anomaly {
	if contract.RetentionRate <= 0 || inv.Total() == 0 {
		return nil
	}

	declared := inv.DeclaredRetention()
	declaredRate := declared / inv.Total()
	deviation := math.Abs(declaredRate - contract.RetentionRate)

	if deviation <= opts.RetentionTolerance+1e-9 {
		return nil
	}

	return []Anomaly{Compliance(
		CodeRetentionMismatch, SeverityHigh, "retention_amount",
		fmt.Sprintf(
			"declared retention %.2f (%.2f%%) deviates from contract rate %.2f%% by %.2f points",
			declared, declaredRate*100, contract.RetentionRate*100, deviation*100,
		),
	)}
}

func unitPrices(inv *documents.Invoice, contract *documents.Contract, opts AuditOptions) []Anomaly {
	if len(contract.UnitPrices) == 0 {
		return nil
	}

	var out []Anomaly
	for i, item := range inv.LineItems {
		scheduled, ok := contract.UnitPrices[item.CostCode]
		if !ok || scheduled <= 0 {
			continue
		}

		over := (item.UnitPrice - scheduled) / scheduled
		var sev Severity
		switch {
		case over > opts.PriceHigh+1e-9:
			sev = SeverityHigh
		case over > opts.PriceTolerance+1e-9:
			sev = SeverityMedium
		default:
			continue
		}

		out = append(out, Compliance(
			CodeUnitPriceExceeds, sev,
			fmt.Sprintf("line_items.%d.unit_price", i),
			fmt.Sprintf(
				"unit price %.2f for %s exceeds scheduled %.2f by %.1f%%",
				item.UnitPrice, item.CostCode, scheduled, over*100,
			),
		))
	}
	return out
}

func billingCap(inv *documents.Invoice, contract *documents.Contract, priorBilled float64, opts AuditOptions) []Anomaly {
	if contract.Value <= 0 {
		return nil
	}

	total := priorBilled + inv.Total()
	if total <= contract.Value+AmountTolerance {
		return nil
	}

	over := (total - contract.Value) / contract.Value
	sev := SeverityHigh
	if over > opts.BillingCapCritical+1e-9 {
		sev = SeverityCritical
	}

	return []Anomaly{Compliance(
		CodeBillingCapExceeded, sev, "total_amount",
		fmt.Sprintf(
			"cumulative billing %.2f exceeds contract value %.2f by %.1f%%",
			total, contract.Value, over*100,
		),
	)}
}

func scope(inv *documents.Invoice, contract *documents.Contract) []Anomaly {
	if len(contract.ApprovedCostCodes) == 0 {
		return nil
	}

	approved := make(map[string]bool, len(contract.ApprovedCostCodes))
	for _, code := range contract.ApprovedCostCodes {
		approved[strings.TrimSpace(code)] = true
	}

	var out []Anomaly
	for _, code := range inv.CostCodes() {
		if approved[code] {
			continue
		}
		out = append(out, Compliance(
			CodeCostCodeOutOfScope, SeverityHigh, "line_items.cost_code",
			fmt.Sprintf("cost code %s is not approved under contract %s", code, contract.ID),
		))
	}
	return out
}
