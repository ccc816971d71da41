package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Corrections are field-level overrides supplied by a reviewer. Keys are JSON
// field paths into the invoice; nested line item fields use dotted indices,
// e.g. "line_items.0.unit_price".
type Corrections map[string]any

// ApplyCorrections returns a copy of inv with every override applied.
// A nil invoice is treated as empty so a reviewer can supply the whole record.
func ApplyCorrections(inv *Invoice, corrections Corrections) (*Invoice, error) {
	base := inv
	if base == nil {
		base = &Invoice{}
	}

	data, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCorrection, err)
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCorrection, err)
	}

	for path, value := range corrections {
		segments := strings.Split(path, ".")
		updated, err := setPath(tree, segments, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCorrection, path, err)
		}
		tree = updated.(map[string]any)
	}

	merged, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCorrection, err)
	}

	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()

	var out Invoice
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCorrection, err)
	}
	return &out, nil
}

func setPath(node any, segments []string, value any) (any, error) {
	if len(segments) == 0 {
		return value, nil
	}

	head := segments[0]

	switch n := node.(type) {
	case map[string]any:
		if n == nil {
			n = map[string]any{}
		}
		child, err := setPath(n[head], segments[1:], value)
		if err != nil {
			return nil, err
		}
		n[head] = child
		return n, nil
	case []any:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx > len(n) {
			return nil, fmt.Errorf("index %q out of range", head)
		}
		if idx == len(n) {
			n = append(n, map[string]any{})
		}
		child, err := setPath(n[idx], segments[1:], value)
		if err != nil {
			return nil, err
		}
		n[idx] = child
		return n, nil
	case nil:
		if _, err := strconv.Atoi(head); err == nil {
			return setPath([]any{}, segments, value)
		}
		return setPath(map[string]any{}, segments, value)
	default:
		return nil, fmt.Errorf("cannot descend into %T at %q", node, head)
	}
}
