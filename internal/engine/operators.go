package engine

import (
	"strconv"
	"strings"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/query"
)

// operandShape is the form an operator expects its operand in.
type operandShape int

const (
	shapeNone operandShape = iota
	shapeScalar
	shapeList
	shapePair
)

// checkFunc tests a member's present values against a compiled operand. It is
// always the positive form of the predicate; negative operators invert it.
type checkFunc func(values []string, operand Operand) bool

// operatorEntry is one cell of the (attribute type, operator) matrix.
//
// negative marks operators that hold vacuously for members without a value:
// a member with nothing assigned cannot hold the forbidden value.
type operatorEntry struct {
	shape    operandShape
	negative bool
	check    checkFunc
}

type opKey struct {
	typ attribute.Type
	op  query.Operator
}

var operatorTable = map[opKey]operatorEntry{
	{attribute.TypeSingleSelect, query.OpSelectEquals}:    {shape: shapeScalar, check: anyEquals},
	{attribute.TypeSingleSelect, query.OpSelectNotEquals}: {shape: shapeScalar, negative: true, check: anyEquals},
	{attribute.TypeSingleSelect, query.OpSelectAnyIn}:     {shape: shapeList, check: intersects},
	{attribute.TypeSingleSelect, query.OpSelectNotAnyIn}:  {shape: shapeList, negative: true, check: intersects},
	{attribute.TypeSingleSelect, query.OpIsEmpty}:         {shape: shapeNone, negative: true, check: hasValue},
	{attribute.TypeSingleSelect, query.OpIsNotEmpty}:      {shape: shapeNone, check: hasValue},

	{attribute.TypeMultiSelect, query.OpMultiselectSomeIn}:  {shape: shapeList, check: intersects},
	{attribute.TypeMultiSelect, query.OpMultiselectNotSome}: {shape: shapeList, negative: true, check: intersects},
	{attribute.TypeMultiSelect, query.OpMultiselectEquals}:  {shape: shapeList, check: setEquals},
	{attribute.TypeMultiSelect, query.OpMultiselectNotEq}:   {shape: shapeList, negative: true, check: setEquals},
	{attribute.TypeMultiSelect, query.OpIsEmpty}:            {shape: shapeNone, negative: true, check: hasValue},
	{attribute.TypeMultiSelect, query.OpIsNotEmpty}:         {shape: shapeNone, check: hasValue},

	{attribute.TypeText, query.OpEqual}:      {shape: shapeScalar, check: anyEquals},
	{attribute.TypeText, query.OpNotEqual}:   {shape: shapeScalar, negative: true, check: anyEquals},
	{attribute.TypeText, query.OpLike}:       {shape: shapeScalar, check: textContains},
	{attribute.TypeText, query.OpNotLike}:    {shape: shapeScalar, negative: true, check: textContains},
	{attribute.TypeText, query.OpStartsWith}: {shape: shapeScalar, check: textHasPrefix},
	{attribute.TypeText, query.OpEndsWith}:   {shape: shapeScalar, check: textHasSuffix},
	{attribute.TypeText, query.OpIsEmpty}:    {shape: shapeNone, negative: true, check: hasValue},
	{attribute.TypeText, query.OpIsNotEmpty}: {shape: shapeNone, check: hasValue},

	{attribute.TypeNumber, query.OpEqual}:          {shape: shapeScalar, check: numberCompare(func(a, b float64) bool { return a == b })},
	{attribute.TypeNumber, query.OpNotEqual}:       {shape: shapeScalar, negative: true, check: numberCompare(func(a, b float64) bool { return a == b })},
	{attribute.TypeNumber, query.OpLess}:           {shape: shapeScalar, check: numberCompare(func(a, b float64) bool { return a < b })},
	{attribute.TypeNumber, query.OpLessOrEqual}:    {shape: shapeScalar, check: numberCompare(func(a, b float64) bool { return a <= b })},
	{attribute.TypeNumber, query.OpGreater}:        {shape: shapeScalar, check: numberCompare(func(a, b float64) bool { return a > b })},
	{attribute.TypeNumber, query.OpGreaterOrEqual}: {shape: shapeScalar, check: numberCompare(func(a, b float64) bool { return a >= b })},
	{attribute.TypeNumber, query.OpBetween}:        {shape: shapePair, check: numberBetween},
	{attribute.TypeNumber, query.OpNotBetween}:     {shape: shapePair, negative: true, check: numberBetween},
	{attribute.TypeNumber, query.OpIsEmpty}:        {shape: shapeNone, negative: true, check: hasValue},
	{attribute.TypeNumber, query.OpIsNotEmpty}:     {shape: shapeNone, check: hasValue},
}

// negativeOperators classifies tokens independently of attribute type, for
// rules that cannot be bound to a table entry.
var negativeOperators = map[query.Operator]struct{}{
	query.OpSelectNotEquals:    {},
	query.OpSelectNotAnyIn:     {},
	query.OpMultiselectNotSome: {},
	query.OpMultiselectNotEq:   {},
	query.OpNotEqual:           {},
	query.OpNotBetween:         {},
	query.OpNotLike:            {},
	query.OpIsEmpty:            {},
}

func lookupOperator(typ attribute.Type, op query.Operator) (operatorEntry, bool) {
	e, ok := operatorTable[opKey{typ, op}]
	return e, ok
}

// IsNegative reports whether op holds for members with no assigned value.
func IsNegative(op query.Operator) bool {
	_, ok := negativeOperators[op]
	return ok
}

// SupportsOperator reports whether op is valid for attributes of type typ.
func SupportsOperator(typ attribute.Type, op query.Operator) bool {
	_, ok := lookupOperator(typ, op)
	return ok
}

// apply evaluates the entry against one snapshot. Absent and Empty snapshots
// never reach check: negative operators hold, positive ones fail.
func (e operatorEntry) apply(snap attribute.ValueSnapshot, operand Operand) bool {
	if snap.State != attribute.Present || len(snap.Values) == 0 {
		return e.negative
	}
	matched := e.check(snap.Values, operand)
	if e.negative {
		return !matched
	}
	return matched
}

func anyEquals(values []string, operand Operand) bool {
	for _, v := range values {
		if v == operand.Text {
			return true
		}
	}
	return false
}

func intersects(values []string, operand Operand) bool {
	for _, v := range values {
		if _, ok := operand.set[v]; ok {
			return true
		}
	}
	return false
}

// setEquals compares as sets: order and duplicates are ignored.
func setEquals(values []string, operand Operand) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := operand.set[v]; !ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return len(seen) == len(operand.set)
}

// hasValue relies on attribute.Snapshot having dropped blank values.
func hasValue(values []string, _ Operand) bool {
	return len(values) > 0
}

func textContains(values []string, operand Operand) bool {
	for _, v := range values {
		if strings.Contains(v, operand.Text) {
			return true
		}
	}
	return false
}

func textHasPrefix(values []string, operand Operand) bool {
	for _, v := range values {
		if strings.HasPrefix(v, operand.Text) {
			return true
		}
	}
	return false
}

func textHasSuffix(values []string, operand Operand) bool {
	for _, v := range values {
		if strings.HasSuffix(v, operand.Text) {
			return true
		}
	}
	return false
}

func numberCompare(cmp func(a, b float64) bool) checkFunc {
	return func(values []string, operand Operand) bool {
		for _, v := range values {
			n, ok := parseNumber(v)
			if ok && cmp(n, operand.Number) {
				return true
			}
		}
		return false
	}
}

// numberBetween is inclusive on both ends.
func numberBetween(values []string, operand Operand) bool {
	for _, v := range values {
		n, ok := parseNumber(v)
		if ok && operand.Low <= n && n <= operand.High {
			return true
		}
	}
	return false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

