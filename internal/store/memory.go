package store

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
)

// noOrg keys the catalog of teams outside any organization.
const noOrg int64 = 0

// MemoryStore is an in-memory implementation of the Store interface.
// It uses maps for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or fixture-driven CLI runs.
type MemoryStore struct {
	mu          sync.RWMutex
	teams       map[int64]Team
	attributes  map[int64][]attribute.Attribute  // org id -> catalog
	assignments map[int64]attribute.Assignments // org id -> member values
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		teams:       make(map[int64]Team),
		attributes:  make(map[int64][]attribute.Attribute),
		assignments: make(map[int64]attribute.Assignments),
	}
}

// Fixture is the YAML document accepted by LoadFixture.
type Fixture struct {
	Organizations []Organization `yaml:"organizations"`
	Teams         []Team         `yaml:"teams"`
}

// LoadFixtureFile reads a YAML fixture from path into a new MemoryStore.
func LoadFixtureFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	m := NewMemoryStore()
	if err := m.LoadFixture(data); err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}
	return m, nil
}

// LoadFixture seeds the store from a YAML document.
func (m *MemoryStore) LoadFixture(data []byte) error {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}
	for _, org := range f.Organizations {
		for _, a := range org.Attributes {
			if !a.Type.Valid() {
				return fmt.Errorf("organization %d: attribute %q has unknown type %q", org.ID, a.ID, a.Type)
			}
		}
		m.PutOrganization(org)
	}
	for _, t := range f.Teams {
		m.PutTeam(t)
	}
	return nil
}

// PutTeam creates or replaces a team.
func (m *MemoryStore) PutTeam(t Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Members = slices.Clone(t.Members)
	m.teams[t.ID] = t
}

// PutOrganization creates or replaces an organization's catalog and
// assignments. Organization id 0 holds the catalog of teams without one.
func (m *MemoryStore) PutOrganization(org Organization) {
	a := attribute.Assignments{}
	for _, ma := range org.Assignments {
		for attrID, values := range ma.Values {
			if len(values) == 0 {
				a.Add(ma.Member, attrID, "")
				continue
			}
			for _, v := range values {
				a.Add(ma.Member, attrID, v)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes[org.ID] = slices.Clone(org.Attributes)
	m.assignments[org.ID] = a
}

// TeamScope returns the scope of a team.
func (m *MemoryStore) TeamScope(ctx context.Context, teamID int64) (attribute.Scope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[teamID]
	if !ok {
		return attribute.Scope{}, fmt.Errorf("team %d: %w", teamID, ErrNotFound)
	}
	return attribute.Scope{TeamID: t.ID, OrgID: t.OrgID}, nil
}

// Attributes returns the catalog of the scope's organization.
func (m *MemoryStore) Attributes(ctx context.Context, scope attribute.Scope) ([]attribute.Attribute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	attrs, ok := m.attributes[orgKey(scope)]
	if !ok {
		if scope.HasOrg() {
			return nil, fmt.Errorf("organization %d: %w", *scope.OrgID, ErrNotFound)
		}
		return []attribute.Attribute{}, nil
	}
	return slices.Clone(attrs), nil
}

// Members returns the team's member ids.
func (m *MemoryStore) Members(ctx context.Context, scope attribute.Scope) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[scope.TeamID]
	if !ok {
		return nil, fmt.Errorf("team %d: %w", scope.TeamID, ErrNotFound)
	}
	return slices.Clone(t.Members), nil
}

// Assignments returns the values of memberIDs for attributeIDs.
func (m *MemoryStore) Assignments(ctx context.Context, scope attribute.Scope, memberIDs []int64, attributeIDs []string) (attribute.Assignments, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.assignments[orgKey(scope)]
	out := make(attribute.Assignments, len(memberIDs))
	for _, id := range memberIDs {
		mv, ok := all[id]
		if !ok {
			continue
		}
		sub := make(attribute.MemberValues, len(attributeIDs))
		for _, attrID := range attributeIDs {
			if snap, ok := mv[attrID]; ok {
				snap.Values = slices.Clone(snap.Values)
				sub[attrID] = snap
			}
		}
		out[id] = sub
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

func orgKey(scope attribute.Scope) int64 {
	if scope.OrgID == nil {
		return noOrg
	}
	return *scope.OrgID
}
