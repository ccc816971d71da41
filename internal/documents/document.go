// Package documents defines the structured financial records that flow through
// the ingestion workflow: invoices and their line items, and the contracts
// they are audited against.
package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of financial document being ingested.
type Type string

const (
	TypeInvoice  Type = "invoice"
	TypeContract Type = "contract"
	TypeBudget   Type = "budget"
)

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	switch t {
	case TypeInvoice, TypeContract, TypeBudget:
		return true
	}
	return false
}

// ParseType converts s into a Type, defaulting to invoice when s is empty.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeInvoice, nil
	}
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidType, s)
	}
	return t, nil
}

// DateLayout is the wire format for calendar dates.
const DateLayout = time.DateOnly

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			d.Time = t.UTC().Truncate(24 * time.Hour)
			return nil
		}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LineItem is a single billed line of an invoice.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"line_total"`
	CostCode    string  `json:"cost_code"`
}

// Invoice is the structured record produced by extraction.
// Amount and Retention are nil when the invoice does not state them, which
// keeps an absent total distinct from a stated zero.
type Invoice struct {
	InvoiceNumber  string     `json:"invoice_number"`
	InvoiceDate    *Date      `json:"invoice_date,omitempty"`
	DueDate        *Date      `json:"due_date,omitempty"`
	ContractorID   string     `json:"contractor_id"`
	ContractorName string     `json:"contractor_name,omitempty"`
	ContractID     string     `json:"contract_id,omitempty"`
	ProjectID      string     `json:"project_id,omitempty"`
	Amount         *float64   `json:"total_amount"`
	Retention      *float64   `json:"retention_amount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	LineItems      []LineItem `json:"line_items"`
}

// Money returns a pointer to v for the optional amount fields.
func Money(v float64) *float64 {
	return &v
}

// Total is the stated invoice total, or zero when none was stated.
func (inv *Invoice) Total() float64 {
	if inv.Amount == nil {
		return 0
	}
	return *inv.Amount
}

// DeclaredRetention returns the explicit retention amount, falling back to the
// sum of line items whose description names retention.
func (inv *Invoice) DeclaredRetention() float64 {
	if inv.Retention != nil {
		return *inv.Retention
	}
	var total float64
	for _, item := range inv.LineItems {
		if strings.Contains(strings.ToLower(item.Description), "retention") {
			total += item.Total
		}
	}
	return total
}

// CostCodes returns the distinct cost codes in line-item order.
func (inv *Invoice) CostCodes() []string {
	seen := make(map[string]bool, len(inv.LineItems))
	codes := make([]string, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		if item.CostCode == "" || seen[item.CostCode] {
			continue
		}
		seen[item.CostCode] = true
		codes = append(codes, item.CostCode)
	}
	return codes
}

// Clone returns a deep copy of the invoice.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	if inv.InvoiceDate != nil {
		d := *inv.InvoiceDate
		c.InvoiceDate = &d
	}
	if inv.DueDate != nil {
		d := *inv.DueDate
		c.DueDate = &d
	}
	if inv.Amount != nil {
		c.Amount = Money(*inv.Amount)
	}
	if inv.Retention != nil {
		c.Retention = Money(*inv.Retention)
	}
	c.LineItems = append([]LineItem(nil), inv.LineItems...)
	return &c
}

// Contract holds the terms an invoice is audited against.
// UnitPrices maps cost code to the scheduled unit price.
type Contract struct {
	ID                string             `json:"id" yaml:"id"`
	OwnerID           string             `json:"owner_id" yaml:"owner_id"`
	ContractorID      string             `json:"contractor_id" yaml:"contractor_id"`
	ProjectID         string             `json:"project_id" yaml:"project_id"`
	Value             float64            `json:"value" yaml:"value"`
	RetentionRate     float64            `json:"retention_rate" yaml:"retention_rate"`
	UnitPrices        map[string]float64 `json:"unit_prices" yaml:"unit_prices"`
	ApprovedCostCodes []string           `json:"approved_cost_codes" yaml:"approved_cost_codes"`
}

var naturalKeySpace = uuid.MustParse("5b0c7c6e-9a0f-4c55-8f3e-6f1d2b7a9e41")

// NaturalKey derives the idempotency key for a stored document. Invoices are
// keyed by owner and invoice number; documents without a number fall back to
// their document id.
func NaturalKey(ownerID, documentID string, inv *Invoice) string {
	if inv != nil && strings.TrimSpace(inv.InvoiceNumber) != "" {
		return fmt.Sprintf("%s/invoice/%s", ownerID, strings.TrimSpace(inv.InvoiceNumber))
	}
	return fmt.Sprintf("%s/document/%s", ownerID, documentID)
}

// EntityID returns a stable UUID for a natural key so repeated writes target
// the same graph entity.
func EntityID(naturalKey string) uuid.UUID {
	return uuid.NewSHA1(naturalKeySpace, []byte(naturalKey))
}
