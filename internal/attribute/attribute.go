// Package attribute defines the team attribute catalog and per-member
// attribute assignments consumed by the matching engine.
//
// Everything in this package is read-only data: the engine never mutates a
// catalog or an assignment set while evaluating a query.
package attribute

import (
	"context"
	"strings"
)

// Type is the declared type of an attribute.
type Type string

const (
	TypeSingleSelect Type = "SINGLE_SELECT"
	TypeMultiSelect  Type = "MULTI_SELECT"
	TypeText         Type = "TEXT"
	TypeNumber       Type = "NUMBER"
)

// Valid reports whether t is one of the supported attribute types.
func (t Type) Valid() bool {
	switch t {
	case TypeSingleSelect, TypeMultiSelect, TypeText, TypeNumber:
		return true
	}
	return false
}

// IsSelect reports whether values of this type are option ids.
func (t Type) IsSelect() bool {
	return t == TypeSingleSelect || t == TypeMultiSelect
}

// Option is one selectable value of a SINGLE_SELECT or MULTI_SELECT attribute.
type Option struct {
	ID    string `json:"id" yaml:"id"`
	Value string `json:"value" yaml:"value"`
}

// Attribute is a typed, team-scoped custom field assignable to members.
type Attribute struct {
	ID      string   `json:"id" yaml:"id"`
	Slug    string   `json:"slug" yaml:"slug"`
	Name    string   `json:"name" yaml:"name"`
	Type    Type     `json:"type" yaml:"type"`
	Options []Option `json:"options,omitempty" yaml:"options,omitempty"`
}

// OptionByID returns the option with the given id.
func (a Attribute) OptionByID(id string) (Option, bool) {
	for _, o := range a.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// OptionByValue returns the first option whose value matches v, ignoring case.
func (a Attribute) OptionByValue(v string) (Option, bool) {
	needle := strings.ToLower(strings.TrimSpace(v))
	for _, o := range a.Options {
		if strings.ToLower(o.Value) == needle {
			return o, true
		}
	}
	return Option{}, false
}

// Catalog indexes attributes by id for a single evaluation.
type Catalog map[string]Attribute

// NewCatalog builds a Catalog from a list of attributes.
func NewCatalog(attrs []Attribute) Catalog {
	c := make(Catalog, len(attrs))
	for _, a := range attrs {
		c[a.ID] = a
	}
	return c
}

// Lookup returns the attribute with the given id.
func (c Catalog) Lookup(id string) (Attribute, bool) {
	a, ok := c[id]
	return a, ok
}

// Scope identifies where attributes are looked up. Attributes live at the
// organization level, so OrgID is nil for teams outside an organization.
type Scope struct {
	TeamID int64  `json:"teamId"`
	OrgID  *int64 `json:"orgId,omitempty"`
}

// HasOrg reports whether organization scope data is available.
func (s Scope) HasOrg() bool {
	return s.OrgID != nil
}

// Source is the external collaborator that supplies catalog data.
// Implementations must be safe for concurrent use and side-effect free.
type Source interface {
	// Attributes returns the attribute catalog visible to the scope.
	Attributes(ctx context.Context, scope Scope) ([]Attribute, error)

	// Members returns the member ids of the team, in a stable order.
	Members(ctx context.Context, scope Scope) ([]int64, error)

	// Assignments fetches, in one batch, the values assigned to the given
	// members for the given attributes.
	Assignments(ctx context.Context, scope Scope, memberIDs []int64, attributeIDs []string) (Assignments, error)
}
