package roundrobin

import (
	"context"
	"slices"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/query"
	"github.com/TimurManjosov/hostmatch/internal/store"
)

func hostIDs(hosts []Host) []int64 {
	ids := make([]int64, len(hosts))
	for i, h := range hosts {
		ids[i] = h.MemberID
	}
	return ids
}

func TestFilter(t *testing.T) {
	hosts := []Host{{MemberID: 1}, {MemberID: 2}, {MemberID: 3, Fixed: true}, {MemberID: 4}}

	tests := []struct {
		name string
		res  *matching.Result
		want []int64
	}{
		{"skipped leaves pool", &matching.Result{Outcome: matching.OutcomeSkipped}, []int64{1, 2, 3, 4}},
		{"unevaluated leaves pool", &matching.Result{Outcome: matching.OutcomeUnevaluated}, []int64{1, 2, 3, 4}},
		{"matched subset keeps fixed", &matching.Result{Outcome: matching.OutcomeMatched, MatchedMemberIDs: []int64{4, 2}}, []int64{2, 3, 4}},
		{"no match keeps only fixed", &matching.Result{Outcome: matching.OutcomeNoMatch, MatchedMemberIDs: []int64{}}, []int64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostIDs(Filter(hosts, tt.res)); !slices.Equal(got, tt.want) {
				t.Errorf("Filter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPickFewestBookings(t *testing.T) {
	hosts := []Host{
		{MemberID: 1, RecentBookings: 4},
		{MemberID: 2, RecentBookings: 1},
		{MemberID: 3, RecentBookings: 0, Fixed: true},
		{MemberID: 4, RecentBookings: 2},
	}
	lead, ok := Pick(hosts, "seed")
	if !ok {
		t.Fatal("Pick() found no candidate")
	}
	if lead.MemberID != 2 {
		t.Errorf("lead = %d, want 2", lead.MemberID)
	}
}

func TestPickTieBreakIsDeterministic(t *testing.T) {
	hosts := []Host{{MemberID: 10}, {MemberID: 11}, {MemberID: 12}, {MemberID: 13}}

	first, ok := Pick(hosts, "event-42")
	if !ok {
		t.Fatal("Pick() found no candidate")
	}
	for i := 0; i < 10; i++ {
		if again, _ := Pick(hosts, "event-42"); again != first {
			t.Fatalf("Pick() = %+v, want %+v", again, first)
		}
	}

	// reversing the pool does not change the winner
	reversed := []Host{hosts[3], hosts[2], hosts[1], hosts[0]}
	if again, _ := Pick(reversed, "event-42"); again != first {
		t.Errorf("Pick(reversed) = %+v, want %+v", again, first)
	}

	// the winner has the lowest hash
	for _, h := range hosts {
		if tieBreak("event-42", first.MemberID) > tieBreak("event-42", h.MemberID) {
			t.Errorf("member %d hashes lower than lead %d", h.MemberID, first.MemberID)
		}
	}
}

func TestPickNoCandidates(t *testing.T) {
	tests := []struct {
		name  string
		hosts []Host
	}{
		{"empty pool", nil},
		{"only fixed hosts", []Host{{MemberID: 1, Fixed: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if lead, ok := Pick(tt.hosts, "s"); ok {
				t.Errorf("Pick() = %+v, want no lead", lead)
			}
		})
	}
}

const fixture = `
organizations:
  - id: 7
    attributes:
      - id: lang
        slug: language
        type: MULTI_SELECT
        options:
          - {id: en, value: English}
          - {id: de, value: German}
    assignments:
      - {member: 1, values: {lang: [en]}}
      - {member: 2, values: {lang: [de]}}
      - {member: 3, values: {lang: [en, de]}}
teams:
  - {id: 10, orgId: 7, members: [1, 2, 3]}
`

func newStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	if err := s.LoadFixture([]byte(fixture)); err != nil {
		t.Fatalf("LoadFixture() error = %v", err)
	}
	return s
}

func TestSelectorSelect(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	scope, err := s.TeamScope(ctx, 10)
	if err != nil {
		t.Fatalf("TeamScope() error = %v", err)
	}

	sel := NewSelector(matching.NewMatcher(s), "default", zerolog.Nop())
	route := matching.Route{
		ID: "segment",
		AttributesQuery: &query.Group{Conjunction: query.And, Children: []query.Node{
			&query.Rule{ID: "r1", Field: "lang", Operator: query.OpMultiselectSomeIn, Value: []any{"German"}},
		}},
	}
	hosts := []Host{{MemberID: 1}, {MemberID: 2, RecentBookings: 3}, {MemberID: 3, RecentBookings: 1}}

	got, err := sel.Select(ctx, scope, route, hosts, "")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !got.Filtered {
		t.Error("Filtered = false")
	}
	if ids := hostIDs(got.Hosts); !slices.Equal(ids, []int64{2, 3}) {
		t.Errorf("hosts = %v, want [2 3]", ids)
	}
	if got.Lead == nil || got.Lead.MemberID != 3 {
		t.Errorf("lead = %+v, want member 3", got.Lead)
	}
	if got.Match.Outcome != matching.OutcomeMatched {
		t.Errorf("Outcome = %s, want matched", got.Match.Outcome)
	}
}

func TestSelectorWithoutOrgScopeKeepsPool(t *testing.T) {
	s := newStore(t)

	sel := NewSelector(matching.NewMatcher(s), "default", zerolog.Nop())
	route := matching.Route{
		AttributesQuery: &query.Group{Conjunction: query.And, Children: []query.Node{
			&query.Rule{ID: "r1", Field: "lang", Operator: query.OpMultiselectSomeIn, Value: []any{"de"}},
		}},
	}
	hosts := []Host{{MemberID: 1}, {MemberID: 2}}

	got, err := sel.Select(context.Background(), attribute.Scope{TeamID: 10}, route, hosts, "seed")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got.Filtered {
		t.Error("Filtered = true for an unevaluated match")
	}
	if got.Match.Outcome != matching.OutcomeUnevaluated {
		t.Errorf("Outcome = %s, want unevaluated", got.Match.Outcome)
	}
	if len(got.Hosts) != 2 {
		t.Errorf("hosts = %v, want the whole pool", hostIDs(got.Hosts))
	}
	if got.Lead == nil {
		t.Error("expected a lead host")
	}
}
