package anomaly

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/JaimeStill/ledger/internal/documents"
)

// AmountTolerance is the rounding allowance, in currency units, for arithmetic checks.
const AmountTolerance = 0.01

var invoiceNumberPattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

// Validate runs the quality checks over inv. It never fails: a nil invoice is
// itself reported as a high-severity anomaly. now bounds the future-date check;
// a zero now skips it.
func Validate(inv *documents.Invoice, now time.Time) []Anomaly {
	if inv == nil {
		return []Anomaly{
			Validation(CodeStructuredDataMissing, SeverityHigh, "", "no structured data was extracted"),
		}
	}

	var out []Anomaly
	out = append(out, requiredFields(inv)...)
	out = append(out, dates(inv, now)...)
	out = append(out, invoiceNumber(inv)...)
	out = append(out, lineItemMath(inv)...)
	out = append(out, totalReconciliation(inv)...)
	return out
}

func requiredFields(inv *documents.Invoice) []Anomaly {
	var out []Anomaly

	missing := func(field string) {
		out = append(out, Validation(
			CodeMissingField, SeverityHigh, field,
			fmt.Sprintf("required field %q is missing or empty", field),
		))
	}

	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		missing("invoice_number")
	}
	if inv.InvoiceDate == nil || inv.InvoiceDate.IsZero() {
		missing("invoice_date")
	}
	if strings.TrimSpace(inv.ContractorID) == "" && strings.TrimSpace(inv.ContractorName) == "" {
		missing("contractor_id")
	}
	if inv.Amount == nil {
		missing("total_amount")
	}
	if len(inv.LineItems) == 0 {
		out = append(out, Validation(
			CodeMissingLineItems, SeverityHigh, "line_items",
			"invoice has no line items",
		))
	}

	return out
}

// MissingRequired reports which required invoice fields are absent.
func MissingRequired(inv *documents.Invoice) []string {
	if inv == nil {
		return []string{"invoice_number", "invoice_date", "contractor_id", "total_amount", "line_items"}
	}
	var fields []string
	for _, a := range requiredFields(inv) {
		fields = append(fields, a.FieldPath)
	}
	return fields
}

// RequiredFieldCount is the number of fields MissingRequired inspects.
const RequiredFieldCount = 5

func dates(inv *documents.Invoice, now time.Time) []Anomaly {
	if inv.InvoiceDate == nil || inv.InvoiceDate.IsZero() {
		return nil
	}

	var out []Anomaly

	if !now.IsZero() {
		today := now.UTC().Truncate(24 * time.Hour)
		if inv.InvoiceDate.After(today) {
			out = append(out, Validation(
				CodeFutureDate, SeverityMedium, "invoice_date",
				fmt.Sprintf("invoice date %s is in the future", inv.InvoiceDate),
			))
		}
	}

	if inv.DueDate != nil && !inv.DueDate.IsZero() && inv.DueDate.Before(inv.InvoiceDate.Time) {
		out = append(out, Validation(
			CodeInvalidDueDate, SeverityMedium, "due_date",
			fmt.Sprintf("due date %s is before invoice date %s", inv.DueDate, inv.InvoiceDate),
		))
	}

	return out
}

func invoiceNumber(inv *documents.Invoice) []Anomaly {
	n := strings.TrimSpace(inv.InvoiceNumber)
	if n == "" || invoiceNumberPattern.MatchString(n) {
		return nil
	}
	return []Anomaly{Validation(
		CodeInvalidInvoiceNumber, SeverityLow, "invoice_number",
		fmt.Sprintf("invoice number %q contains invalid characters", n),
	)}
}

func lineItemMath(inv *documents.Invoice) []Anomaly {
	var out []Anomaly
	for i, item := range inv.LineItems {
		expected := item.Quantity * item.UnitPrice
		if exceeds(expected, item.Total, AmountTolerance) {
			out = append(out, Validation(
				CodeLineItemMathMismatch, SeverityHigh,
				fmt.Sprintf("line_items.%d.line_total", i),
				fmt.Sprintf("%g x %.2f = %.2f, line total states %.2f", item.Quantity, item.UnitPrice, expected, item.Total),
			))
		}
	}
	return out
}

func totalReconciliation(inv *documents.Invoice) []Anomaly {
	if len(inv.LineItems) == 0 || inv.Amount == nil {
		return nil
	}

	var sum float64
	for _, item := range inv.LineItems {
		sum += item.Total
	}

	if !exceeds(sum, *inv.Amount, AmountTolerance) {
		return nil
	}
	return []Anomaly{Validation(
		CodeTotalMismatch, SeverityHigh, "total_amount",
		fmt.Sprintf("line totals sum to %.2f, invoice total states %.2f", sum, *inv.Amount),
	)}
}

// exceeds compares with a small epsilon so values exactly at the tolerance pass.
func exceeds(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance+1e-9
}
