package anomaly_test

import (
	"testing"
	"time"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/documents"
)

var now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func validInvoice() *documents.Invoice {
	date := documents.NewDate(2026, time.February, 10)
	due := documents.NewDate(2026, time.March, 12)
	return &documents.Invoice{
		InvoiceNumber: "INV-2026-001",
		InvoiceDate:   &date,
		DueDate:       &due,
		ContractorID:  "CTR-1",
		ContractID:    "CON-1",
		Amount:        documents.Money(50.00),
		LineItems: []documents.LineItem{
			{ID: "1", Description: "Concrete", Quantity: 10, UnitPrice: 5.00, Total: 50.00, CostCode: "03-300"},
		},
	}
}

func codes(list []anomaly.Anomaly) map[string]anomaly.Severity {
	out := make(map[string]anomaly.Severity, len(list))
	for _, a := range list {
		out[a.Code] = a.Severity
	}
	return out
}

func TestValidateClean(t *testing.T) {
	got := anomaly.Validate(validInvoice(), now)
	if len(got) != 0 {
		t.Fatalf("Validate() = %v, want none", got)
	}
	if level := anomaly.Classify(got); level != anomaly.LevelLow {
		t.Errorf("Classify() = %s, want low", level)
	}
}

func TestValidateNilInvoice(t *testing.T) {
	got := anomaly.Validate(nil, now)
	if len(got) != 1 || got[0].Code != anomaly.CodeStructuredDataMissing {
		t.Fatalf("Validate(nil) = %v", got)
	}
	if got[0].Severity != anomaly.SeverityHigh {
		t.Errorf("severity = %s, want high", got[0].Severity)
	}
}

func TestValidateZeroTotalIsPresent(t *testing.T) {
	inv := validInvoice()
	inv.Amount = documents.Money(0)
	inv.LineItems = []documents.LineItem{
		{ID: "1", Description: "Credited concrete", Quantity: 10, UnitPrice: 0, Total: 0, CostCode: "03-300"},
	}

	got := codes(anomaly.Validate(inv, now))
	if _, ok := got[anomaly.CodeMissingField]; ok {
		t.Errorf("Validate() codes = %v, zero total reported missing", got)
	}
	if _, ok := got[anomaly.CodeTotalMismatch]; ok {
		t.Errorf("Validate() codes = %v, zero total reported mismatched", got)
	}
	if missing := anomaly.MissingRequired(inv); len(missing) != 0 {
		t.Errorf("MissingRequired() = %v, want none", missing)
	}
}

func TestValidateChecks(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*documents.Invoice)
		wantCode string
		wantSev  anomaly.Severity
	}{
		{
			name:     "line math mismatch",
			mutate:   func(inv *documents.Invoice) { inv.LineItems[0].Total = 45.00; inv.Amount = documents.Money(45.00) },
			wantCode: anomaly.CodeLineItemMathMismatch,
			wantSev:  anomaly.SeverityHigh,
		},
		{
			name:     "total mismatch",
			mutate:   func(inv *documents.Invoice) { inv.Amount = documents.Money(60.00) },
			wantCode: anomaly.CodeTotalMismatch,
			wantSev:  anomaly.SeverityHigh,
		},
		{
			name: "due before invoice date",
			mutate: func(inv *documents.Invoice) {
				d := documents.NewDate(2026, time.January, 1)
				inv.DueDate = &d
			},
			wantCode: anomaly.CodeInvalidDueDate,
			wantSev:  anomaly.SeverityMedium,
		},
		{
			name: "future invoice date",
			mutate: func(inv *documents.Invoice) {
				d := documents.NewDate(2026, time.April, 1)
				inv.InvoiceDate = &d
				inv.DueDate = nil
			},
			wantCode: anomaly.CodeFutureDate,
			wantSev:  anomaly.SeverityMedium,
		},
		{
			name:     "missing invoice number",
			mutate:   func(inv *documents.Invoice) { inv.InvoiceNumber = "  " },
			wantCode: anomaly.CodeMissingField,
			wantSev:  anomaly.SeverityHigh,
		},
		{
			name:     "invoice number format",
			mutate:   func(inv *documents.Invoice) { inv.InvoiceNumber = "inv#42" },
			wantCode: anomaly.CodeInvalidInvoiceNumber,
			wantSev:  anomaly.SeverityLow,
		},
		{
			name:     "missing total",
			mutate:   func(inv *documents.Invoice) { inv.Amount = nil },
			wantCode: anomaly.CodeMissingField,
			wantSev:  anomaly.SeverityHigh,
		},
		{
			name:     "no line items",
			mutate:   func(inv *documents.Invoice) { inv.LineItems = nil },
			wantCode: anomaly.CodeMissingLineItems,
			wantSev:  anomaly.SeverityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(inv)

			got := codes(anomaly.Validate(inv, now))
			sev, ok := got[tt.wantCode]
			if !ok {
				t.Fatalf("Validate() codes = %v, want %s", got, tt.wantCode)
			}
			if sev != tt.wantSev {
				t.Errorf("%s severity = %s, want %s", tt.wantCode, sev, tt.wantSev)
			}
		})
	}
}

func TestValidateWithinTolerance(t *testing.T) {
	inv := validInvoice()
	inv.LineItems[0].Total = 50.01
	inv.Amount = documents.Money(50.01)

	if got := anomaly.Validate(inv, now); len(got) != 0 {
		t.Errorf("Validate() = %v, want none at tolerance boundary", got)
	}
}

func TestMissingRequired(t *testing.T) {
	if got := anomaly.MissingRequired(validInvoice()); len(got) != 0 {
		t.Errorf("MissingRequired(valid) = %v", got)
	}
	if got := anomaly.MissingRequired(nil); len(got) != anomaly.RequiredFieldCount {
		t.Errorf("MissingRequired(nil) = %v, want %d fields", got, anomaly.RequiredFieldCount)
	}

	inv := validInvoice()
	inv.ContractorID = ""
	inv.LineItems = nil
	if got := anomaly.MissingRequired(inv); len(got) != 2 {
		t.Errorf("MissingRequired() = %v, want 2 fields", got)
	}
}
