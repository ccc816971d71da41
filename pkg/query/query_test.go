package query_test

import (
	"reflect"
	"testing"

	"github.com/JaimeStill/ledger/pkg/query"
)

func projection() *query.ProjectionMap {
	return query.
		NewProjectionMap("public", "quarantine_entries", "q").
		Project("document_id", "DocumentID").
		Project("owner_id", "OwnerID").
		Project("quarantined_at", "QuarantinedAt")
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		input string
		want  []query.SortField
	}{
		{"", nil},
		{"OwnerID", []query.SortField{{Field: "OwnerID"}}},
		{"OwnerID, -QuarantinedAt,", []query.SortField{
			{Field: "OwnerID"},
			{Field: "QuarantinedAt", Descending: true},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := query.ParseSortFields(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSortFields(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	owner := "owner-1"
	var missing *string

	tests := []struct {
		name     string
		build    func() (string, []any)
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "plain",
			build: func() (string, []any) {
				return query.NewBuilder(projection()).Build()
			},
			wantSQL: "SELECT q.document_id, q.owner_id, q.quarantined_at FROM public.quarantine_entries q",
		},
		{
			name: "conditions skip nil and deref pointers",
			build: func() (string, []any) {
				return query.NewBuilder(projection()).
					WhereEquals("OwnerID", &owner).
					WhereEquals("DocumentID", missing).
					WhereEquals("DocumentID", "doc-1").
					Build()
			},
			wantSQL:  "SELECT q.document_id, q.owner_id, q.quarantined_at FROM public.quarantine_entries q WHERE q.owner_id = $1 AND q.document_id = $2",
			wantArgs: []any{"owner-1", "doc-1"},
		},
		{
			name: "default sort",
			build: func() (string, []any) {
				return query.NewBuilder(projection(), query.SortField{Field: "QuarantinedAt"}).Build()
			},
			wantSQL: "SELECT q.document_id, q.owner_id, q.quarantined_at FROM public.quarantine_entries q ORDER BY q.quarantined_at ASC",
		},
		{
			name: "unknown sort fields dropped",
			build: func() (string, []any) {
				return query.NewBuilder(projection(), query.SortField{Field: "QuarantinedAt"}).
					OrderByFields(query.ParseSortFields("-OwnerID,x;DROP TABLE checkpoints")).
					Build()
			},
			wantSQL: "SELECT q.document_id, q.owner_id, q.quarantined_at FROM public.quarantine_entries q ORDER BY q.owner_id DESC",
		},
		{
			name: "only unknown sort falls back to default",
			build: func() (string, []any) {
				return query.NewBuilder(projection(), query.SortField{Field: "QuarantinedAt"}).
					OrderByFields([]query.SortField{{Field: "nope"}}).
					Build()
			},
			wantSQL: "SELECT q.document_id, q.owner_id, q.quarantined_at FROM public.quarantine_entries q ORDER BY q.quarantined_at ASC",
		},
		{
			name: "count",
			build: func() (string, []any) {
				return query.NewBuilder(projection()).WhereEquals("OwnerID", owner).BuildCount()
			},
			wantSQL:  "SELECT COUNT(*) FROM public.quarantine_entries q WHERE q.owner_id = $1",
			wantArgs: []any{"owner-1"},
		},
		{
			name: "page",
			build: func() (string, []any) {
				return query.NewBuilder(projection()).BuildPage(3, 20)
			},
			wantSQL: "SELECT q.document_id, q.owner_id, q.quarantined_at FROM public.quarantine_entries q LIMIT 20 OFFSET 40",
		},
		{
			name: "single",
			build: func() (string, []any) {
				return query.NewBuilder(projection()).WhereEquals("OwnerID", owner).BuildSingle("DocumentID", "doc-1")
			},
			wantSQL:  "SELECT q.document_id, q.owner_id, q.quarantined_at FROM public.quarantine_entries q WHERE q.document_id = $1",
			wantArgs: []any{"doc-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.build()
			if sql != tt.wantSQL {
				t.Errorf("sql:\n got  %s\n want %s", sql, tt.wantSQL)
			}
			if len(args) != len(tt.wantArgs) || (len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestProjectionColumn(t *testing.T) {
	p := projection()

	if !p.Has("OwnerID") || p.Has("owner_id") {
		t.Error("Has() should match field names only")
	}
	if got := p.Column("Unmapped"); got != "Unmapped" {
		t.Errorf("Column(Unmapped) = %s", got)
	}
}
