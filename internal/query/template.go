package query

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// fieldTemplate matches operands that refer to a routing-form response field,
// e.g. "{field:location}".
var fieldTemplate = regexp.MustCompile(`^\{field:([^}]+)\}$`)

// FieldLookup returns the response value of a form field. Multi-valued
// fields return more than one string.
type FieldLookup func(fieldID string) ([]string, bool)

// ResolveFieldTemplates returns a copy of n where every "{field:<id>}" operand
// is replaced by the response value of that field. Unknown fields resolve to
// an empty operand so the rule cannot match by accident.
func ResolveFieldTemplates(n Node, lookup FieldLookup) Node {
	switch v := n.(type) {
	case *Group:
		if v == nil {
			return v
		}
		out := &Group{ID: v.ID, Conjunction: v.Conjunction, Not: v.Not, Children: make([]Node, len(v.Children))}
		for i, c := range v.Children {
			out.Children[i] = ResolveFieldTemplates(c, lookup)
		}
		return out
	case *Rule:
		if v == nil {
			return v
		}
		cp := *v
		cp.Value = resolveValue(v.Value, lookup)
		return &cp
	}
	return n
}

func resolveValue(v any, lookup FieldLookup) any {
	switch val := v.(type) {
	case string:
		m := fieldTemplate.FindStringSubmatch(strings.TrimSpace(val))
		if m == nil {
			return val
		}
		got, ok := lookup(m[1])
		if !ok || len(got) == 0 {
			return ""
		}
		if len(got) == 1 {
			return got[0]
		}
		out := make([]any, len(got))
		for i, s := range got {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			resolved := resolveValue(item, lookup)
			// A multi-valued field expands in place inside a list operand.
			if list, ok := resolved.([]any); ok {
				if _, wasString := item.(string); wasString {
					out = append(out, list...)
					continue
				}
			}
			out = append(out, resolved)
		}
		return out
	}
	return v
}

// Fingerprint returns a stable hash of the tree's canonical JSON form, used to
// correlate evaluations of the same query in logs.
func Fingerprint(n Node) uint64 {
	if n == nil {
		return 0
	}
	b, err := json.Marshal(n)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}
