package quarantine

import (
	"net/url"

	"github.com/JaimeStill/ledger/pkg/query"
	"github.com/JaimeStill/ledger/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "quarantine_entries", "q").
	Project("document_id", "DocumentID").
	Project("owner_id", "OwnerID").
	Project("document_type", "DocumentType").
	Project("pause_reason", "PauseReason").
	Project("risk_level", "RiskLevel").
	Project("quarantined_from", "QuarantinedFrom").
	Project("retry_count", "RetryCount").
	Project("sequence_number", "Sequence").
	Project("quarantined_at", "QuarantinedAt")

var defaultSort = query.SortField{Field: "QuarantinedAt"}

// Filters narrows the review queue. Nil fields are ignored.
type Filters struct {
	OwnerID      *string `json:"owner_id,omitempty"`
	RiskLevel    *string `json:"risk_level,omitempty"`
	PauseReason  *string `json:"pause_reason,omitempty"`
	DocumentType *string `json:"document_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("OwnerID", f.OwnerID).
		WhereEquals("RiskLevel", f.RiskLevel).
		WhereEquals("PauseReason", f.PauseReason).
		WhereEquals("DocumentType", f.DocumentType)
}

// Match reports whether e satisfies every set filter.
func (f Filters) Match(e Entry) bool {
	eq := func(want *string, got string) bool {
		return want == nil || *want == got
	}
	risk := ""
	if e.RiskLevel != nil {
		risk = *e.RiskLevel
	}
	return eq(f.OwnerID, e.OwnerID) &&
		eq(f.RiskLevel, risk) &&
		eq(f.PauseReason, e.PauseReason) &&
		eq(f.DocumentType, e.DocumentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("owner_id"); v != "" {
		f.OwnerID = &v
	}
	if v := values.Get("risk_level"); v != "" {
		f.RiskLevel = &v
	}
	if v := values.Get("pause_reason"); v != "" {
		f.PauseReason = &v
	}
	if v := values.Get("document_type"); v != "" {
		f.DocumentType = &v
	}

	return f
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var e Entry
	err := s.Scan(
		&e.DocumentID,
		&e.OwnerID,
		&e.DocumentType,
		&e.PauseReason,
		&e.RiskLevel,
		&e.QuarantinedFrom,
		&e.RetryCount,
		&e.Sequence,
		&e.QuarantinedAt,
	)
	return e, err
}
