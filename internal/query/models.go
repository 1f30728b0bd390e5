// Package query models the attribute predicate language: a recursive tree of
// groups and rules, serialized as JSON by the query builder UI.
//
// A Node is either a *Group or a *Rule. The tree carries no executable
// behavior; evaluation lives in package engine.
package query

// Operator is a rule operator token as written by the query builder.
type Operator string

// Supported operator tokens.
const (
	OpSelectEquals       Operator = "select_equals"
	OpSelectNotEquals    Operator = "select_not_equals"
	OpSelectAnyIn        Operator = "select_any_in"
	OpSelectNotAnyIn     Operator = "select_not_any_in"
	OpMultiselectSomeIn  Operator = "multiselect_some_in"
	OpMultiselectNotSome Operator = "multiselect_not_some_in"
	OpMultiselectEquals  Operator = "multiselect_equals"
	OpMultiselectNotEq   Operator = "multiselect_not_equals"
	OpEqual              Operator = "equal"
	OpNotEqual           Operator = "not_equal"
	OpLess               Operator = "less"
	OpLessOrEqual        Operator = "less_or_equal"
	OpGreater            Operator = "greater"
	OpGreaterOrEqual     Operator = "greater_or_equal"
	OpBetween            Operator = "between"
	OpNotBetween         Operator = "not_between"
	OpLike               Operator = "like"
	OpNotLike            Operator = "not_like"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
)

// ValueType declares how a rule's operand is meant to be interpreted.
type ValueType string

const (
	ValueSelect      ValueType = "select"
	ValueMultiselect ValueType = "multiselect"
	ValueText        ValueType = "text"
	ValueNumber      ValueType = "number"
)

// Conjunction combines the children of a Group.
type Conjunction string

const (
	And Conjunction = "AND"
	Or  Conjunction = "OR"
)

// Node is a Group or a Rule.
type Node interface {
	node()
}

// Group reduces its children with Conjunction. A group without children
// places no constraint. Not inverts the reduced value of a non-empty group.
type Group struct {
	ID          string
	Conjunction Conjunction
	Not         bool
	Children    []Node
}

// Rule compares the attribute named by Field with Value using Operator.
// Value keeps the operand exactly as decoded (scalar, list or pair); numbers
// decoded from JSON are json.Number.
type Rule struct {
	ID        string
	Field     string
	Operator  Operator
	Value     any
	ValueType ValueType
}

func (*Group) node() {}
func (*Rule) node()  {}

// Empty reports whether the group has no children.
func (g *Group) Empty() bool {
	return g == nil || len(g.Children) == 0
}

// Incomplete reports whether the rule is missing its field or operator, as
// the builder emits while a rule is being edited.
func (r *Rule) Incomplete() bool {
	return r.Field == "" || r.Operator == ""
}

// Walk calls fn for every rule in the tree, depth first, in child order.
func Walk(n Node, fn func(*Rule)) {
	switch v := n.(type) {
	case *Group:
		if v == nil {
			return
		}
		for _, c := range v.Children {
			Walk(c, fn)
		}
	case *Rule:
		if v != nil {
			fn(v)
		}
	}
}

// Fields returns the distinct attribute ids referenced by the trees.
func Fields(nodes ...Node) []string {
	seen := map[string]struct{}{}
	var fields []string
	for _, n := range nodes {
		Walk(n, func(r *Rule) {
			if r.Field == "" {
				return
			}
			if _, ok := seen[r.Field]; ok {
				return
			}
			seen[r.Field] = struct{}{}
			fields = append(fields, r.Field)
		})
	}
	return fields
}

// CountRules returns the number of complete rules in the tree.
func CountRules(n Node) int {
	count := 0
	Walk(n, func(r *Rule) {
		if !r.Incomplete() {
			count++
		}
	})
	return count
}
