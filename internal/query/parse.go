package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	nodeTypeGroup = "group"
	nodeTypeRule  = "rule"
)

// wireNode is the external JSON shape of a node. Groups carry children either
// as an array (children) or as an object keyed by node id (children1).
type wireNode struct {
	ID         string                     `json:"id,omitempty"`
	Type       string                     `json:"type"`
	Children   []json.RawMessage          `json:"children,omitempty"`
	Children1  map[string]json.RawMessage `json:"children1,omitempty"`
	Properties json.RawMessage            `json:"properties,omitempty"`
}

type wireGroupProps struct {
	Conjunction string `json:"conjunction,omitempty"`
	Not         bool   `json:"not,omitempty"`
}

type wireRuleProps struct {
	Field     string          `json:"field"`
	Operator  string          `json:"operator"`
	Value     any             `json:"value"`
	ValueType json.RawMessage `json:"valueType,omitempty"`
}

// Parse decodes a serialized query tree. Empty input, "null" and "{}" decode
// to an empty group.
func Parse(data []byte) (Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &Group{Conjunction: And}, nil
	}
	return parseNode(trimmed, 0)
}

// MustParse is Parse for tests and fixtures; it panics on error.
func MustParse(s string) Node {
	n, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return n
}

func parseNode(data []byte, depth int) (Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrInvalidNode, MaxDepth)
	}

	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}

	switch strings.ToLower(w.Type) {
	case nodeTypeRule:
		return parseRule(w)
	case nodeTypeGroup, "":
		if w.Type == "" && len(w.Properties) > 0 && looksLikeRule(w.Properties) {
			return nil, fmt.Errorf("%w: node %q has rule properties but no type", ErrUnknownNodeType, w.ID)
		}
		return parseGroup(w, depth)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, w.Type)
	}
}

func parseGroup(w wireNode, depth int) (*Group, error) {
	g := &Group{ID: w.ID, Conjunction: And}

	if len(w.Properties) > 0 {
		var props wireGroupProps
		if err := json.Unmarshal(w.Properties, &props); err != nil {
			return nil, fmt.Errorf("%w: group %q properties: %v", ErrInvalidNode, w.ID, err)
		}
		if props.Conjunction != "" {
			c := Conjunction(strings.ToUpper(props.Conjunction))
			if c != And && c != Or {
				return nil, fmt.Errorf("%w: group %q conjunction %q", ErrInvalidNode, w.ID, props.Conjunction)
			}
			g.Conjunction = c
		}
		g.Not = props.Not
	}

	raw := w.Children
	var keys []string
	if len(raw) == 0 && len(w.Children1) > 0 {
		// children1 is an object; order children by key so parsing is deterministic.
		keys = make([]string, 0, len(w.Children1))
		for k := range w.Children1 {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			raw = append(raw, w.Children1[k])
		}
	}

	g.Children = make([]Node, 0, len(raw))
	for i, c := range raw {
		child, err := parseNode(c, depth+1)
		if err != nil {
			return nil, err
		}
		if keys != nil {
			setMissingID(child, keys[i])
		}
		g.Children = append(g.Children, child)
	}
	return g, nil
}

// setMissingID names a children1 entry after its key.
func setMissingID(n Node, id string) {
	switch v := n.(type) {
	case *Group:
		if v.ID == "" {
			v.ID = id
		}
	case *Rule:
		if v.ID == "" {
			v.ID = id
		}
	}
}

func parseRule(w wireNode) (*Rule, error) {
	r := &Rule{ID: w.ID}
	if len(w.Properties) == 0 {
		return r, nil
	}

	var props wireRuleProps
	dec := json.NewDecoder(bytes.NewReader(w.Properties))
	dec.UseNumber()
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("%w: rule %q properties: %v", ErrInvalidNode, w.ID, err)
	}

	vt, err := decodeValueType(props.ValueType)
	if err != nil {
		return nil, fmt.Errorf("%w: rule %q valueType: %v", ErrInvalidNode, w.ID, err)
	}

	r.Field = props.Field
	r.Operator = Operator(props.Operator)
	r.Value = props.Value
	r.ValueType = vt
	return r, nil
}

// decodeValueType accepts either a single token or the builder's list form,
// in which case the first token is used.
func decodeValueType(raw json.RawMessage) (ValueType, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return ValueType(single), nil
	}
	var list []*string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", err
	}
	for _, v := range list {
		if v != nil && *v != "" {
			return ValueType(*v), nil
		}
	}
	return "", nil
}

func looksLikeRule(props json.RawMessage) bool {
	var probe struct {
		Field *string `json:"field"`
	}
	return json.Unmarshal(props, &probe) == nil && probe.Field != nil
}

// MarshalJSON writes the group in the external array form.
func (g *Group) MarshalJSON() ([]byte, error) {
	props := wireGroupProps{Conjunction: string(g.Conjunction), Not: g.Not}
	children := g.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(struct {
		ID         string         `json:"id,omitempty"`
		Type       string         `json:"type"`
		Properties wireGroupProps `json:"properties"`
		Children   []Node         `json:"children"`
	}{g.ID, nodeTypeGroup, props, children})
}

// MarshalJSON writes the rule in the external form.
func (r *Rule) MarshalJSON() ([]byte, error) {
	var vt []string
	if r.ValueType != "" {
		vt = []string{string(r.ValueType)}
	}
	return json.Marshal(struct {
		ID         string `json:"id,omitempty"`
		Type       string `json:"type"`
		Properties struct {
			Field     string   `json:"field"`
			Operator  string   `json:"operator"`
			Value     any      `json:"value"`
			ValueType []string `json:"valueType,omitempty"`
		} `json:"properties"`
	}{
		ID:   r.ID,
		Type: nodeTypeRule,
		Properties: struct {
			Field     string   `json:"field"`
			Operator  string   `json:"operator"`
			Value     any      `json:"value"`
			ValueType []string `json:"valueType,omitempty"`
		}{r.Field, string(r.Operator), r.Value, vt},
	})
}
