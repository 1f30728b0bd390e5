package query

import (
	"errors"
	"fmt"
)

// MaxDepth bounds group nesting.
const MaxDepth = 32

// Sentinel errors returned by Parse and Validate.
var (
	ErrInvalidNode     = errors.New("invalid query node")
	ErrUnknownNodeType = errors.New("unknown node type")
	ErrInvalidOperator = errors.New("invalid operator")
	ErrInvalidValue    = errors.New("invalid value")
)

// knownOperators is the set of all recognised operator tokens.
var knownOperators = map[Operator]struct{}{
	OpSelectEquals:       {},
	OpSelectNotEquals:    {},
	OpSelectAnyIn:        {},
	OpSelectNotAnyIn:     {},
	OpMultiselectSomeIn:  {},
	OpMultiselectNotSome: {},
	OpMultiselectEquals:  {},
	OpMultiselectNotEq:   {},
	OpEqual:              {},
	OpNotEqual:           {},
	OpLess:               {},
	OpLessOrEqual:        {},
	OpGreater:            {},
	OpGreaterOrEqual:     {},
	OpBetween:            {},
	OpNotBetween:         {},
	OpLike:               {},
	OpNotLike:            {},
	OpStartsWith:         {},
	OpEndsWith:           {},
	OpIsEmpty:            {},
	OpIsNotEmpty:         {},
}

// KnownOperator reports whether op is a recognised token.
func KnownOperator(op Operator) bool {
	_, ok := knownOperators[op]
	return ok
}

var knownValueTypes = map[ValueType]struct{}{
	ValueSelect:      {},
	ValueMultiselect: {},
	ValueText:        {},
	ValueNumber:      {},
}

// Validate performs strict structural validation of a tree and returns the
// first problem found. It never mutates n.
//
// Validate is stricter than evaluation: the engine tolerates bad rules (they
// evaluate under the absence policy), while Validate is meant for surfacing
// problems to administrators.
func Validate(n Node) error {
	return validateNode(n, 0, "root")
}

func validateNode(n Node, depth int, path string) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: %s nests deeper than %d", ErrInvalidNode, path, MaxDepth)
	}
	switch v := n.(type) {
	case *Group:
		if v == nil {
			return nil
		}
		if v.Conjunction != "" && v.Conjunction != And && v.Conjunction != Or {
			return fmt.Errorf("%w: %s conjunction %q", ErrInvalidNode, path, v.Conjunction)
		}
		for i, c := range v.Children {
			if err := validateNode(c, depth+1, fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case *Rule:
		return validateRule(v, path)
	case nil:
		return fmt.Errorf("%w: %s is nil", ErrInvalidNode, path)
	default:
		return fmt.Errorf("%w: %s has type %T", ErrUnknownNodeType, path, n)
	}
}

func validateRule(r *Rule, path string) error {
	if r.Field == "" {
		return fmt.Errorf("%w: %s field must not be empty", ErrInvalidNode, path)
	}
	if !KnownOperator(r.Operator) {
		return fmt.Errorf("%w: %s operator %q is not supported", ErrInvalidOperator, path, r.Operator)
	}
	if r.ValueType != "" {
		if _, ok := knownValueTypes[r.ValueType]; !ok {
			return fmt.Errorf("%w: %s valueType %q is not supported", ErrInvalidValue, path, r.ValueType)
		}
	}
	if r.Operator == OpIsEmpty || r.Operator == OpIsNotEmpty {
		return nil
	}
	if isNullValue(r.Value) {
		return fmt.Errorf("%w: %s operator %q requires a value", ErrInvalidValue, path, r.Operator)
	}
	return nil
}

// isNullValue reports whether v carries no operand at all, including the
// builder's placeholder lists such as [null] and [[]].
func isNullValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		for _, item := range val {
			if !isNullValue(item) {
				return false
			}
		}
		return true
	}
	return false
}
