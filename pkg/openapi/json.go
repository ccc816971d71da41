package openapi

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const (
	schemaPrefix   = "#/components/schemas/"
	responsePrefix = "#/components/responses/"
)

// MarshalJSON serializes the spec to indented JSON. It fails when any
// $ref names a component the spec does not define.
func MarshalJSON(spec *Spec) ([]byte, error) {
	if missing := spec.unresolved(); len(missing) > 0 {
		return nil, fmt.Errorf("unresolved references: %s", strings.Join(missing, ", "))
	}
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *Spec) unresolved() []string {
	seen := make(map[string]bool)
	var missing []string

	check := func(ref string) {
		if ref == "" || seen[ref] {
			return
		}
		seen[ref] = true

		var ok bool
		switch {
		case s.Components == nil:
		case strings.HasPrefix(ref, schemaPrefix):
			_, ok = s.Components.Schemas[strings.TrimPrefix(ref, schemaPrefix)]
		case strings.HasPrefix(ref, responsePrefix):
			_, ok = s.Components.Responses[strings.TrimPrefix(ref, responsePrefix)]
		}
		if !ok {
			missing = append(missing, ref)
		}
	}

	var walk func(*Schema)
	walk = func(sc *Schema) {
		if sc == nil {
			return
		}
		check(sc.Ref)
		walk(sc.Items)
		walk(sc.AdditionalProperties)
		for _, p := range sc.Properties {
			walk(p)
		}
	}

	response := func(r *Response) {
		if r == nil {
			return
		}
		check(r.Ref)
		for _, mt := range r.Content {
			walk(mt.Schema)
		}
	}

	for _, item := range s.Paths {
		for _, op := range []*Operation{item.Get, item.Post, item.Put, item.Delete} {
			if op == nil {
				continue
			}
			for _, p := range op.Parameters {
				walk(p.Schema)
			}
			if op.RequestBody != nil {
				for _, mt := range op.RequestBody.Content {
					walk(mt.Schema)
				}
			}
			for _, r := range op.Responses {
				response(r)
			}
		}
	}

	if s.Components != nil {
		for _, sc := range s.Components.Schemas {
			walk(sc)
		}
		for _, r := range s.Components.Responses {
			response(r)
		}
	}

	slices.Sort(missing)
	return missing
}
