package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term over a projected field.
type SortField struct {
	Field      string
	Descending bool
}

type condition struct {
	column string
	op     string
	arg    any
}

// Builder assembles a SELECT over a ProjectionMap. Conditions are ANDed and
// numbered $1..$n in the order they were added.
type Builder struct {
	projection  *ProjectionMap
	conditions  []condition
	sort        []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder. defaultSort applies when OrderByFields
// leaves no usable field.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// ParseSortFields parses "a,-b" into ascending a then descending b.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// WhereEquals adds column = value. Nil values, including typed nil
// pointers, are skipped so optional filters can be chained.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	v, ok := deref(value)
	if !ok {
		return b
	}
	b.conditions = append(b.conditions, condition{
		column: b.projection.Column(field),
		op:     "=",
		arg:    v,
	})
	return b
}

// OrderByFields sets the sort order. Fields that are not projected are
// dropped so caller input never reaches the SQL text.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = b.sort[:0]
	for _, f := range fields {
		if b.projection.Has(f.Field) {
			b.sort = append(b.sort, f)
		}
	}
	return b
}

// Build returns the SELECT with conditions and ordering.
func (b *Builder) Build() (string, []any) {
	where, args := b.where()
	return "SELECT " + b.projection.Columns() +
		" FROM " + b.projection.Table() +
		where + b.orderBy(), args
}

// BuildCount returns SELECT COUNT(*) with the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return "SELECT COUNT(*) FROM " + b.projection.Table() + where, args
}

// BuildPage returns Build limited to one 1-based page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql, args := b.Build()
	offset := max(page-1, 0) * pageSize
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, pageSize, offset), args
}

// BuildSingle selects the row whose field equals id, ignoring other
// conditions.
func (b *Builder) BuildSingle(field string, id any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.Table(),
		b.projection.Column(field),
	)
	return sql, []any{id}
}

func (b *Builder) where() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, len(b.conditions))
	args := make([]any, len(b.conditions))
	for i, c := range b.conditions {
		clauses[i] = c.column + " " + c.op + " $" + strconv.Itoa(i+1)
		args[i] = c.arg
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (b *Builder) orderBy() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}
	if len(fields) == 0 {
		return ""
	}

	terms := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		terms[i] = b.projection.Column(f.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func deref(value any) (any, bool) {
	if value == nil {
		return nil, false
	}
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		return v.Elem().Interface(), true
	}
	return value, true
}
