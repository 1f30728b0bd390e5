package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/query"
)

// valueTypeFor maps a rule's declared value type to the attribute type it
// must be evaluated against.
var valueTypeFor = map[query.ValueType]attribute.Type{
	query.ValueSelect:      attribute.TypeSingleSelect,
	query.ValueMultiselect: attribute.TypeMultiSelect,
	query.ValueText:        attribute.TypeText,
	query.ValueNumber:      attribute.TypeNumber,
}

// Compile binds a query tree to a catalog, converting every operand into its
// typed form. Rules that cannot be bound are kept with a fixed outcome
// (see RuleError) and reported in Program.Errors; they never fail the tree.
//
// Incomplete rules and groups left without children are pruned. A tree that
// prunes down to nothing matches every member.
func Compile(root query.Node, catalog attribute.Catalog) *Program {
	p := &Program{fingerprint: query.Fingerprint(root)}
	c := &compiler{catalog: catalog, program: p}
	if n := c.node(root); n != nil {
		p.root = n
	}
	return p
}

type compiler struct {
	catalog attribute.Catalog
	program *Program
}

func (c *compiler) node(n query.Node) *cnode {
	switch v := n.(type) {
	case *query.Group:
		return c.group(v)
	case *query.Rule:
		return c.rule(v)
	}
	return nil
}

func (c *compiler) group(g *query.Group) *cnode {
	if g == nil {
		return nil
	}
	out := &cnode{kind: kindGroup, or: g.Conjunction == query.Or, not: g.Not}
	for _, child := range g.Children {
		if cn := c.node(child); cn != nil {
			out.children = append(out.children, cn)
		}
	}
	if len(out.children) == 0 {
		return nil
	}
	return out
}

func (c *compiler) rule(r *query.Rule) *cnode {
	if r == nil {
		return nil
	}
	if r.Incomplete() {
		c.fail(r, ErrIncompleteRule)
		return nil
	}

	attr, ok := c.catalog.Lookup(r.Field)
	if !ok {
		return c.fixed(r, ErrUnknownAttribute)
	}
	if r.ValueType != "" {
		want, known := valueTypeFor[r.ValueType]
		if !known || want != attr.Type {
			return c.fixed(r, fmt.Errorf("%w: valueType %q, attribute %q is %s", ErrValueTypeMismatch, r.ValueType, attr.Slug, attr.Type))
		}
	}
	entry, ok := lookupOperator(attr.Type, r.Operator)
	if !ok {
		return c.fixed(r, fmt.Errorf("%w: %q on %s", ErrOperatorNotSupported, r.Operator, attr.Type))
	}
	operand, err := buildOperand(entry.shape, attr, r.Value)
	if err != nil {
		return c.fixed(r, err)
	}

	return &cnode{
		kind:    kindRule,
		ruleID:  r.ID,
		field:   r.Field,
		entry:   entry,
		operand: operand,
	}
}

// fixed records err and returns a rule whose outcome is what the absence
// policy gives its operator: true for negative operators, false otherwise.
func (c *compiler) fixed(r *query.Rule, err error) *cnode {
	c.fail(r, err)
	return &cnode{
		kind:   kindFixed,
		ruleID: r.ID,
		field:  r.Field,
		result: IsNegative(r.Operator),
	}
}

func (c *compiler) fail(r *query.Rule, err error) {
	c.program.Errors = append(c.program.Errors, &RuleError{
		RuleID:   r.ID,
		Field:    r.Field,
		Operator: r.Operator,
		Err:      err,
	})
}

func buildOperand(shape operandShape, attr attribute.Attribute, raw any) (Operand, error) {
	var op Operand
	switch shape {
	case shapeNone:
		return op, nil

	case shapeScalar:
		items := flatten(raw)
		if len(items) != 1 {
			return op, fmt.Errorf("%w: expected a single value, got %d", ErrOperandShape, len(items))
		}
		if attr.Type == attribute.TypeNumber {
			n, ok := toFloat64(items[0])
			if !ok {
				return op, fmt.Errorf("%w: %v is not a number", ErrOperandShape, items[0])
			}
			op.Number = n
			return op, nil
		}
		s, ok := toString(items[0])
		if !ok {
			return op, fmt.Errorf("%w: %v is not a string", ErrOperandShape, items[0])
		}
		op.Text = resolveOption(attr, s)
		return op, nil

	case shapeList:
		items := flatten(raw)
		if len(items) == 0 {
			return op, fmt.Errorf("%w: expected a list of values", ErrOperandShape)
		}
		op.set = make(map[string]struct{}, len(items))
		for _, item := range items {
			s, ok := toString(item)
			if !ok {
				return op, fmt.Errorf("%w: %v is not a string", ErrOperandShape, item)
			}
			id := resolveOption(attr, s)
			if _, dup := op.set[id]; dup {
				continue
			}
			op.set[id] = struct{}{}
			op.List = append(op.List, id)
		}
		return op, nil

	case shapePair:
		items := flatten(raw)
		if len(items) != 2 {
			return op, fmt.Errorf("%w: expected [low, high], got %d values", ErrOperandShape, len(items))
		}
		low, okLow := toFloat64(items[0])
		high, okHigh := toFloat64(items[1])
		if !okLow || !okHigh {
			return op, fmt.Errorf("%w: range bounds must be numbers", ErrOperandShape)
		}
		op.Low, op.High = low, high
		return op, nil
	}
	return op, fmt.Errorf("%w: unknown operand shape", ErrOperandShape)
}

// resolveOption maps a select operand to an option id. Operands may name the
// id itself or, as written by hand or substituted from a form response, the
// option's value. Anything else is kept verbatim and simply matches nothing.
func resolveOption(attr attribute.Attribute, s string) string {
	if !attr.Type.IsSelect() {
		return s
	}
	if _, ok := attr.OptionByID(s); ok {
		return s
	}
	if o, ok := attr.OptionByValue(s); ok {
		return o.ID
	}
	return s
}

// flatten unwraps the builder's list encodings ([x], [[a, b]]) into a flat
// list of non-null items.
func flatten(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, flatten(item)...)
		}
		return out
	case []string:
		out := make([]any, 0, len(val))
		for _, s := range val {
			out = append(out, s)
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []any{val}
	default:
		return []any{val}
	}
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	default:
		return "", false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseNumber(strings.TrimSpace(n))
	default:
		return 0, false
	}
}
