// Package engine evaluates attribute query trees against member attribute
// snapshots.
//
// Compile binds a query.Node to an attribute catalog once; the resulting
// Program is immutable and can be matched against any number of members from
// any number of goroutines.
package engine

import (
	"github.com/TimurManjosov/hostmatch/internal/attribute"
)

type nodeKind int

const (
	kindGroup nodeKind = iota
	kindRule
	kindFixed
)

// cnode is a compiled query node.
type cnode struct {
	kind nodeKind

	// group
	or       bool
	not      bool
	children []*cnode

	// rule
	ruleID  string
	field   string
	entry   operatorEntry
	operand Operand

	// fixed rule outcome for rules that could not be bound
	result bool
}

// Program is a compiled query tree.
type Program struct {
	root        *cnode
	fingerprint uint64

	// Errors lists the rules that could not be bound to the catalog.
	Errors []*RuleError
}

// Fingerprint identifies the source tree; see query.Fingerprint.
func (p *Program) Fingerprint() uint64 {
	return p.fingerprint
}

// Unconstrained reports whether the program matches every member.
func (p *Program) Unconstrained() bool {
	return p == nil || p.root == nil
}

// Fields returns the attribute ids the program reads.
func (p *Program) Fields() []string {
	if p == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var fields []string
	var walk func(n *cnode)
	walk = func(n *cnode) {
		if n == nil {
			return
		}
		if n.kind == kindRule {
			if _, ok := seen[n.field]; !ok {
				seen[n.field] = struct{}{}
				fields = append(fields, n.field)
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(p.root)
	return fields
}

// Match reports whether one member's values satisfy the program.
// It reads values only and holds no state between calls.
func (p *Program) Match(values attribute.MemberValues) bool {
	if p.Unconstrained() {
		return true
	}
	return evalNode(p.root, values)
}

func evalNode(n *cnode, values attribute.MemberValues) bool {
	switch n.kind {
	case kindFixed:
		return n.result
	case kindRule:
		return n.entry.apply(values.Resolve(n.field), n.operand)
	}

	var result bool
	if n.or {
		result = false
		for _, c := range n.children {
			if evalNode(c, values) {
				result = true
				break
			}
		}
	} else {
		result = true
		for _, c := range n.children {
			if !evalNode(c, values) {
				result = false
				break
			}
		}
	}
	if n.not {
		return !result
	}
	return result
}
