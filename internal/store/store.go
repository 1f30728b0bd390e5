package store

import (
	"context"
	"errors"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
)

// ErrNotFound is returned when a team or organization is unknown.
var ErrNotFound = errors.New("not found")

// Store is a read-only attribute catalog. Implementations must be
// thread-safe and support concurrent access.
type Store interface {
	attribute.Source

	// TeamScope returns the scope of a team, filling in its organization
	// when it has one. Returns ErrNotFound for unknown teams.
	TeamScope(ctx context.Context, teamID int64) (attribute.Scope, error)

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// Team is a team and its members, in booking order.
type Team struct {
	ID      int64   `yaml:"id" json:"id"`
	OrgID   *int64  `yaml:"orgId,omitempty" json:"orgId,omitempty"`
	Members []int64 `yaml:"members" json:"members"`
}

// Organization owns an attribute catalog and the members' assignments.
type Organization struct {
	ID          int64                 `yaml:"id" json:"id"`
	Attributes  []attribute.Attribute `yaml:"attributes" json:"attributes"`
	Assignments []MemberAssignment    `yaml:"assignments" json:"assignments"`
}

// MemberAssignment lists one member's values keyed by attribute id. An empty
// list records the attribute as assigned with no value.
type MemberAssignment struct {
	Member int64               `yaml:"member" json:"member"`
	Values map[string][]string `yaml:"values" json:"values"`
}
