package pagination

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/JaimeStill/ledger/pkg/query"
)

// SortFields decodes from either "field,-other" or a JSON array of
// query.SortField objects.
type SortFields []query.SortField

func (s *SortFields) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*s = query.ParseSortFields(raw)
		return nil
	}

	var fields []query.SortField
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = fields
	return nil
}

// PageRequest selects a 1-based page.
type PageRequest struct {
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Sort     SortFields `json:"sort,omitempty"`
}

// Normalize clamps the request to cfg. A zero MaxSortFields leaves the
// sort list as given.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)

	switch {
	case r.PageSize < 1:
		r.PageSize = cfg.DefaultPageSize
	case r.PageSize > cfg.MaxPageSize:
		r.PageSize = cfg.MaxPageSize
	}

	if n := cfg.MaxSortFields; n > 0 && len(r.Sort) > n {
		r.Sort = r.Sort[:n]
	}
}

func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery reads page, page_size and sort from values.
// Values that do not parse fall back to the configured defaults.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	req := PageRequest{
		Page:     atoi(values.Get("page")),
		PageSize: atoi(values.Get("page_size")),
		Sort:     query.ParseSortFields(values.Get("sort")),
	}
	req.Normalize(cfg)
	return req
}

// PageResult is one page of T plus the counts a client needs to walk
// the rest.
type PageResult[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// NewPageResult never returns a nil Data slice and reports at least one page.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	if data == nil {
		data = []T{}
	}

	pages := 1
	if total > 0 && pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}

	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
		HasMore:    page < pages,
	}
}

// Paginate slices an in-memory result set.
func Paginate[T any](items []T, req PageRequest) PageResult[T] {
	start := min(req.Offset(), len(items))
	end := min(start+req.PageSize, len(items))
	return NewPageResult(items[start:end], len(items), req.Page, req.PageSize)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
