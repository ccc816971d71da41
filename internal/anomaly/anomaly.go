// Package anomaly holds the deterministic quality and compliance rules applied
// to structured documents, and the classifier that folds their findings into a
// single risk level. Nothing in this package performs I/O.
package anomaly

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind separates quality findings from contract findings.
type Kind string

const (
	KindValidation Kind = "validation"
	KindCompliance Kind = "compliance"
)

// Severity is the weight of a single anomaly. Level shares the same scale.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank orders severities; unknown values rank zero.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the four severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Stable anomaly codes.
const (
	CodeStructuredDataMissing = "structured_data_missing"
	CodeMissingField          = "missing_field"
	CodeMissingLineItems      = "missing_line_items"
	CodeFutureDate            = "future_date"
	CodeInvalidDueDate        = "invalid_due_date"
	CodeInvalidInvoiceNumber  = "invalid_invoice_number"
	CodeLineItemMathMismatch  = "line_item_math_mismatch"
	CodeTotalMismatch         = "total_mismatch"
	CodeSemanticMismatch      = "semantic_mismatch"

	CodeMissingContract    = "missing_contract"
	CodeContractNotFound   = "contract_not_found"
	CodeRetentionMismatch  = "retention_mismatch"
	CodeUnitPriceExceeds   = "unit_price_exceeds_contract"
	CodeBillingCapExceeded = "billing_cap_exceeded"
	CodeCostCodeOutOfScope = "cost_code_out_of_scope"
)

// Anomaly is an immutable finding against structured data.
// FieldPath points into the structured record when the finding is field specific.
type Anomaly struct {
	Kind      Kind     `json:"kind"`
	Code      string   `json:"code"`
	Severity  Severity `json:"severity"`
	Detail    string   `json:"detail"`
	FieldPath string   `json:"field_path,omitempty"`
}

func (a Anomaly) String() string {
	if a.FieldPath != "" {
		return fmt.Sprintf("[%s/%s] %s (%s): %s", a.Kind, a.Severity, a.Code, a.FieldPath, a.Detail)
	}
	return fmt.Sprintf("[%s/%s] %s: %s", a.Kind, a.Severity, a.Code, a.Detail)
}

// Validation builds a validation anomaly.
func Validation(code string, sev Severity, field, detail string) Anomaly {
	return Anomaly{Kind: KindValidation, Code: code, Severity: sev, Detail: detail, FieldPath: field}
}

// Compliance builds a compliance anomaly.
func Compliance(code string, sev Severity, field, detail string) Anomaly {
	return Anomaly{Kind: KindCompliance, Code: code, Severity: sev, Detail: detail, FieldPath: field}
}

// Count returns the number of anomalies with severity sev.
func Count(list []Anomaly, sev Severity) int {
	n := 0
	for _, a := range list {
		if a.Severity == sev {
			n++
		}
	}
	return n
}

// Summary renders the anomalies one per line, suitable for feedback and audit notes.
func Summary(list []Anomaly) string {
	if len(list) == 0 {
		return "no anomalies"
	}
	lines := make([]string, len(list))
	for i, a := range list {
		lines[i] = a.String()
	}
	return strings.Join(lines, "\n")
}

// MarshalList encodes anomalies for audit records; an empty list encodes as [].
func MarshalList(list []Anomaly) string {
	if list == nil {
		list = []Anomaly{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}
