package matching

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/query"
)

type fakeSource struct {
	mu          sync.Mutex
	attrs       []attribute.Attribute
	members     []int64
	assignments attribute.Assignments
	err         error

	assignmentCalls int
	lastFields      []string
}

func (f *fakeSource) Attributes(ctx context.Context, _ attribute.Scope) ([]attribute.Attribute, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.attrs, nil
}

func (f *fakeSource) Members(ctx context.Context, _ attribute.Scope) ([]int64, error) {
	return f.members, nil
}

func (f *fakeSource) Assignments(ctx context.Context, _ attribute.Scope, _ []int64, fields []string) (attribute.Assignments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignmentCalls++
	f.lastFields = fields
	return f.assignments, nil
}

type recordingObserver struct {
	outcomes   []Outcome
	ruleErrors int
}

func (r *recordingObserver) ObserveMatch(o Outcome, _ int, _ time.Duration) {
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingObserver) ObserveRuleErrors(n int) { r.ruleErrors += n }

// team: 1 eng+js, 2 sales, 3 nothing assigned, 4 eng with explicit empty skills
func newTeam() *fakeSource {
	a := attribute.Assignments{}
	a.Add(1, "dept", "opt-eng")
	a.Add(1, "skills", "opt-js")
	a.Add(2, "dept", "opt-sales")
	a.Add(4, "dept", "opt-eng")
	a.Add(4, "skills", "")
	return &fakeSource{
		attrs: []attribute.Attribute{
			{ID: "dept", Slug: "department", Type: attribute.TypeSingleSelect, Options: []attribute.Option{
				{ID: "opt-eng", Value: "Engineering"}, {ID: "opt-sales", Value: "Sales"},
			}},
			{ID: "skills", Slug: "skills", Type: attribute.TypeMultiSelect, Options: []attribute.Option{
				{ID: "opt-js", Value: "JavaScript"}, {ID: "opt-py", Value: "Python"},
			}},
			{ID: "city", Slug: "city", Type: attribute.TypeText},
		},
		members:     []int64{1, 2, 3, 4},
		assignments: a,
	}
}

func ruleNode(field string, op query.Operator, value any) *query.Rule {
	return &query.Rule{ID: field + "-" + string(op), Field: field, Operator: op, Value: value}
}

func group(conj query.Conjunction, children ...query.Node) *query.Group {
	return &query.Group{ID: "g", Conjunction: conj, Children: children}
}

var orgScope = attribute.Scope{TeamID: 10, OrgID: ptr(int64(7))}

func ptr[T any](v T) *T { return &v }

func mustMatch(t *testing.T, m *Matcher, scope attribute.Scope, route Route) *Result {
	t.Helper()
	res, err := m.Match(context.Background(), scope, route)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	return res
}

func TestMatchSkippedWithoutQuery(t *testing.T) {
	res := mustMatch(t, NewMatcher(newTeam()), orgScope, Route{ID: "r"})

	if res.Outcome != OutcomeSkipped {
		t.Errorf("Outcome = %s, want skipped", res.Outcome)
	}
	if res.MatchedMemberIDs != nil {
		t.Errorf("MatchedMemberIDs = %v, want nil", res.MatchedMemberIDs)
	}
	if res.Evaluated() {
		t.Error("skipped result reports Evaluated")
	}
	if res.EvaluationID == "" {
		t.Error("EvaluationID is empty")
	}
}

func TestMatchUnevaluatedWithoutOrg(t *testing.T) {
	src := newTeam()
	action := &FallbackAction{Type: ActionCustomPageMessage, Value: "sorry"}

	res := mustMatch(t, NewMatcher(src), attribute.Scope{TeamID: 10}, Route{
		AttributesQuery: group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-eng")),
		FallbackAction:  action,
	})
	if res.Outcome != OutcomeUnevaluated {
		t.Errorf("Outcome = %s, want unevaluated", res.Outcome)
	}
	// nil, not empty: unevaluated is distinct from "nobody matched"
	if res.MatchedMemberIDs != nil {
		t.Errorf("MatchedMemberIDs = %v, want nil", res.MatchedMemberIDs)
	}
	if res.FallbackAction != action {
		t.Errorf("FallbackAction = %+v, want %+v", res.FallbackAction, action)
	}
	if src.assignmentCalls != 0 {
		t.Errorf("assignments fetched %d times, want 0", src.assignmentCalls)
	}
}

func TestMatchOrgScopeOptional(t *testing.T) {
	res := mustMatch(t, NewMatcher(newTeam(), WithRequireOrgScope(false)), attribute.Scope{TeamID: 10}, Route{
		AttributesQuery: group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-eng")),
	})
	if res.Outcome != OutcomeMatched {
		t.Errorf("Outcome = %s, want matched", res.Outcome)
	}
	if want := []int64{1, 4}; !slices.Equal(res.MatchedMemberIDs, want) {
		t.Errorf("MatchedMemberIDs = %v, want %v", res.MatchedMemberIDs, want)
	}
}

func TestMatchPrimary(t *testing.T) {
	tests := []struct {
		name  string
		query query.Node
		want  []int64
	}{
		{
			name:  "select equals",
			query: group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-eng")),
			want:  []int64{1, 4},
		},
		{
			name:  "select by option value",
			query: group(query.And, ruleNode("dept", query.OpSelectEquals, "sales")),
			want:  []int64{2},
		},
		{
			name:  "negative includes absent",
			query: group(query.And, ruleNode("dept", query.OpSelectNotEquals, "opt-eng")),
			want:  []int64{2, 3},
		},
		{
			name:  "negative multiselect includes empty",
			query: group(query.And, ruleNode("skills", query.OpMultiselectNotSome, []any{"opt-js"})),
			want:  []int64{2, 3, 4},
		},
		{
			name: "or group",
			query: group(query.Or,
				ruleNode("dept", query.OpSelectEquals, "opt-sales"),
				ruleNode("skills", query.OpMultiselectSomeIn, []any{"opt-js"}),
			),
			want: []int64{1, 2},
		},
		{
			name:  "empty group matches everyone",
			query: group(query.And),
			want:  []int64{1, 2, 3, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustMatch(t, NewMatcher(newTeam(), WithWorkers(2)), orgScope, Route{AttributesQuery: tt.query})
			if res.Outcome != OutcomeMatched {
				t.Errorf("Outcome = %s, want matched", res.Outcome)
			}
			if !slices.Equal(res.MatchedMemberIDs, tt.want) {
				t.Errorf("MatchedMemberIDs = %v, want %v", res.MatchedMemberIDs, tt.want)
			}
			if !res.AttributeLogicMatched() {
				t.Error("AttributeLogicMatched() = false")
			}
			if res.CheckedFallback {
				t.Error("CheckedFallback = true on a primary hit")
			}
		})
	}
}

func TestMatchFetchesAssignmentsOnce(t *testing.T) {
	src := newTeam()

	mustMatch(t, NewMatcher(src), orgScope, Route{
		AttributesQuery:         group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-none")),
		FallbackAttributesQuery: group(query.And, ruleNode("skills", query.OpMultiselectSomeIn, []any{"opt-js"})),
	})
	if src.assignmentCalls != 1 {
		t.Errorf("assignments fetched %d times, want 1", src.assignmentCalls)
	}
	got := slices.Clone(src.lastFields)
	slices.Sort(got)
	if want := []string{"dept", "skills"}; !slices.Equal(got, want) {
		t.Errorf("fetched fields = %v, want %v", got, want)
	}
}

func TestMatchFallback(t *testing.T) {
	tests := []struct {
		name          string
		fallback      query.Node
		wantOutcome   Outcome
		wantMatched   []int64
		wantLogicHits bool
	}{
		{"fallback query matches", group(query.And, ruleNode("skills", query.OpMultiselectSomeIn, []any{"opt-js"})), OutcomeFallbackMatched, []int64{1}, true},
		{"fallback query misses", group(query.And, ruleNode("skills", query.OpMultiselectSomeIn, []any{"opt-py"})), OutcomeNoMatch, []int64{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustMatch(t, NewMatcher(newTeam()), orgScope, Route{
				AttributesQuery:         group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-none")),
				FallbackAttributesQuery: tt.fallback,
			})
			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %s, want %s", res.Outcome, tt.wantOutcome)
			}
			if !res.CheckedFallback {
				t.Error("CheckedFallback = false")
			}
			if res.MatchedMemberIDs == nil || !slices.Equal(res.MatchedMemberIDs, tt.wantMatched) {
				t.Errorf("MatchedMemberIDs = %#v, want %v", res.MatchedMemberIDs, tt.wantMatched)
			}
			if res.AttributeLogicMatched() != tt.wantLogicHits {
				t.Errorf("AttributeLogicMatched() = %v, want %v", res.AttributeLogicMatched(), tt.wantLogicHits)
			}
		})
	}
}

func TestMatchFallbackActionWinsOverFallbackQuery(t *testing.T) {
	src := newTeam()
	action := &FallbackAction{Type: ActionExternalRedirectURL, Value: "https://example.com"}

	res := mustMatch(t, NewMatcher(src), orgScope, Route{
		AttributesQuery: group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-none")),
		// would match member 1 if it were evaluated
		FallbackAttributesQuery: group(query.And, ruleNode("skills", query.OpMultiselectSomeIn, []any{"opt-js"})),
		FallbackAction:          action,
	})
	if res.Outcome != OutcomeFallbackAction {
		t.Errorf("Outcome = %s, want fallback_action", res.Outcome)
	}
	if res.CheckedFallback {
		t.Error("fallback query was evaluated")
	}
	if res.FallbackAction != action {
		t.Errorf("FallbackAction = %+v, want %+v", res.FallbackAction, action)
	}
	if len(res.MatchedMemberIDs) != 0 {
		t.Errorf("MatchedMemberIDs = %v, want none", res.MatchedMemberIDs)
	}
	if want := []string{"dept"}; !slices.Equal(src.lastFields, want) {
		t.Errorf("fetched fields = %v, want %v", src.lastFields, want)
	}
}

func TestMatchPrimaryHitIgnoresFallback(t *testing.T) {
	res := mustMatch(t, NewMatcher(newTeam()), orgScope, Route{
		AttributesQuery: group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-sales")),
		FallbackAction:  &FallbackAction{Type: ActionCustomPageMessage, Value: "nope"},
	})
	if res.Outcome != OutcomeMatched {
		t.Errorf("Outcome = %s, want matched", res.Outcome)
	}
	if res.FallbackAction != nil {
		t.Errorf("FallbackAction = %+v, want nil", res.FallbackAction)
	}
}

func TestMatchNoMatchWithoutFallback(t *testing.T) {
	res := mustMatch(t, NewMatcher(newTeam()), orgScope, Route{
		AttributesQuery: group(query.And, ruleNode("city", query.OpEqual, "Berlin")),
	})
	if res.Outcome != OutcomeNoMatch {
		t.Errorf("Outcome = %s, want no_match", res.Outcome)
	}
	if res.CheckedFallback {
		t.Error("CheckedFallback = true without a fallback query")
	}
	if res.MatchedMemberIDs == nil || len(res.MatchedMemberIDs) != 0 {
		t.Errorf("MatchedMemberIDs = %#v, want empty non-nil", res.MatchedMemberIDs)
	}
}

func TestMatchReportsRuleErrors(t *testing.T) {
	obs := &recordingObserver{}

	res := mustMatch(t, NewMatcher(newTeam(), WithObserver(obs)), orgScope, Route{
		AttributesQuery: group(query.Or,
			ruleNode("removed-attr", query.OpSelectEquals, "x"),
			ruleNode("dept", query.OpSelectEquals, "opt-sales"),
		),
	})
	if want := []int64{2}; !slices.Equal(res.MatchedMemberIDs, want) {
		t.Errorf("MatchedMemberIDs = %v, want %v", res.MatchedMemberIDs, want)
	}
	if len(res.RuleErrors) != 1 {
		t.Fatalf("RuleErrors = %v, want 1", res.RuleErrors)
	}
	if res.RuleErrors[0].Field != "removed-attr" {
		t.Errorf("RuleErrors[0].Field = %q", res.RuleErrors[0].Field)
	}
	if obs.ruleErrors != 1 {
		t.Errorf("observed %d rule errors, want 1", obs.ruleErrors)
	}
	if want := []Outcome{OutcomeMatched}; !slices.Equal(obs.outcomes, want) {
		t.Errorf("observed outcomes = %v, want %v", obs.outcomes, want)
	}
}

func TestMatchErrors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	down := newTeam()
	down.err = errors.New("connection refused")

	tests := []struct {
		name     string
		ctx      context.Context
		src      *fakeSource
		wantErrs []error
	}{
		{"catalog unavailable", context.Background(), down, []error{ErrCatalogUnavailable}},
		{"canceled", canceled, newTeam(), []error{ErrAborted, context.Canceled}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewMatcher(tt.src).Match(tt.ctx, orgScope, Route{
				AttributesQuery: group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-eng")),
			})
			if res != nil {
				t.Errorf("expected no partial result, got %+v", res)
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("error = %v, want %v", err, want)
				}
			}
		})
	}
}

func TestMatchLargeTeamKeepsOrder(t *testing.T) {
	src := newTeam()
	src.members = nil
	src.assignments = attribute.Assignments{}
	for id := int64(1); id <= 500; id++ {
		src.members = append(src.members, id)
		if id%3 == 0 {
			src.assignments.Add(id, "dept", "opt-eng")
		}
	}

	res := mustMatch(t, NewMatcher(src, WithWorkers(7)), orgScope, Route{
		AttributesQuery: group(query.And, ruleNode("dept", query.OpSelectEquals, "opt-eng")),
	})
	if len(res.MatchedMemberIDs) != 166 {
		t.Fatalf("matched %d members, want 166", len(res.MatchedMemberIDs))
	}
	for i, id := range res.MatchedMemberIDs {
		if want := int64((i + 1) * 3); id != want {
			t.Fatalf("MatchedMemberIDs[%d] = %d, want %d", i, id, want)
		}
	}
}
