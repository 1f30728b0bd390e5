package matching

import (
	"errors"
	"slices"
	"time"

	"github.com/TimurManjosov/hostmatch/internal/engine"
	"github.com/TimurManjosov/hostmatch/internal/query"
)

var (
	// ErrCatalogUnavailable wraps failures of the attribute source. Callers
	// may retry the whole evaluation.
	ErrCatalogUnavailable = errors.New("attribute catalog unavailable")

	// ErrAborted is returned when the caller's context ends mid-evaluation.
	ErrAborted = errors.New("matching aborted")
)

// ActionType is the kind of a fallback or route action.
type ActionType string

const (
	ActionCustomPageMessage    ActionType = "customPageMessage"
	ActionExternalRedirectURL  ActionType = "externalRedirectUrl"
	ActionEventTypeRedirectURL ActionType = "eventTypeRedirectUrl"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionCustomPageMessage, ActionExternalRedirectURL, ActionEventTypeRedirectURL:
		return true
	}
	return false
}

// FallbackAction is an opaque directive returned to the caller when the
// primary query matches nobody.
type FallbackAction struct {
	Type  ActionType `json:"type" yaml:"type"`
	Value string     `json:"value" yaml:"value"`
}

// Route carries the attribute logic of a routing-form route or of an event
// type's round-robin segment.
//
// When FallbackAction is set it governs the fallback phase and
// FallbackAttributesQuery is never evaluated.
type Route struct {
	ID                      string
	AttributesQuery         query.Node
	FallbackAttributesQuery query.Node
	FallbackAction          *FallbackAction
}

// Outcome classifies how a Result was reached.
type Outcome string

const (
	// OutcomeSkipped: the route has no attribute logic; nothing is filtered.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeUnevaluated: attribute logic exists but the scope lacks the
	// organization data it needs. Distinct from "evaluated, matched nobody".
	OutcomeUnevaluated Outcome = "unevaluated"
	// OutcomeMatched: the primary query matched at least one member.
	OutcomeMatched Outcome = "matched"
	// OutcomeFallbackMatched: the fallback query matched at least one member.
	OutcomeFallbackMatched Outcome = "fallback_matched"
	// OutcomeFallbackAction: nobody matched and the route's action applies.
	OutcomeFallbackAction Outcome = "fallback_action"
	// OutcomeNoMatch: nobody matched and no fallback is available.
	OutcomeNoMatch Outcome = "no_match"
)

// Result is the outcome of one evaluation.
type Result struct {
	EvaluationID string  `json:"evaluationId"`
	Outcome      Outcome `json:"outcome"`

	// MatchedMemberIDs is nil when the query was not evaluated (skipped or
	// unevaluated) and non-nil, possibly empty, otherwise. Order follows the
	// team's member order.
	MatchedMemberIDs []int64 `json:"matchedMemberIds"`

	CheckedFallback bool            `json:"checkedFallback"`
	FallbackAction  *FallbackAction `json:"fallbackAction,omitempty"`

	RuleErrors []*engine.RuleError `json:"ruleErrors,omitempty"`
	Duration   time.Duration       `json:"-"`
}

// Evaluated reports whether the attribute logic ran at all.
func (r *Result) Evaluated() bool {
	return r != nil && r.MatchedMemberIDs != nil
}

// AttributeLogicMatched reports whether some member satisfied the primary or
// fallback query.
func (r *Result) AttributeLogicMatched() bool {
	return r != nil && (r.Outcome == OutcomeMatched || r.Outcome == OutcomeFallbackMatched)
}

// Contains reports whether memberID is in the matched set.
func (r *Result) Contains(memberID int64) bool {
	return r != nil && slices.Contains(r.MatchedMemberIDs, memberID)
}

// Observer receives evaluation measurements.
type Observer interface {
	ObserveMatch(outcome Outcome, members int, d time.Duration)
	ObserveRuleErrors(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveMatch(Outcome, int, time.Duration) {}
func (nopObserver) ObserveRuleErrors(int)                    {}
