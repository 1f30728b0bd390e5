package api

import (
	"bytes"
	"encoding/json"

	"github.com/TimurManjosov/hostmatch/internal/engine"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/query"
	"github.com/TimurManjosov/hostmatch/internal/roundrobin"
	"github.com/TimurManjosov/hostmatch/internal/routing"
)

// ScopeRequest names the team whose members are evaluated. OrgID overrides
// the organization the store knows for the team.
type ScopeRequest struct {
	TeamID int64  `json:"teamId" validate:"required,gt=0"`
	OrgID  *int64 `json:"orgId,omitempty" validate:"omitempty,gt=0"`
}

// RouteRequest is the wire form of matching.Route.
type RouteRequest struct {
	ID                           string                   `json:"id"`
	AttributesQueryValue         json.RawMessage          `json:"attributesQueryValue,omitempty"`
	FallbackAttributesQueryValue json.RawMessage          `json:"fallbackAttributesQueryValue,omitempty"`
	FallbackAction               *matching.FallbackAction `json:"fallbackAction,omitempty"`
}

// MatchRequest is the body of POST /v1/match.
type MatchRequest struct {
	ScopeRequest
	Route RouteRequest `json:"route"`
}

// MatchResponse is the body returned by POST /v1/match.
type MatchResponse struct {
	EvaluationID          string                   `json:"evaluationId"`
	Outcome               matching.Outcome         `json:"outcome"`
	MatchedMemberIDs      []int64                  `json:"matchedMemberIds"`
	AttributeLogicMatched bool                     `json:"attributeLogicMatched"`
	CheckedFallback       bool                     `json:"checkedFallback"`
	FallbackAction        *matching.FallbackAction `json:"fallbackAction,omitempty"`
	RuleErrors            []*engine.RuleError      `json:"ruleErrors"`
}

// NewMatchResponse converts an engine result to its wire form.
func NewMatchResponse(res *matching.Result) MatchResponse {
	errs := res.RuleErrors
	if errs == nil {
		errs = []*engine.RuleError{}
	}
	return MatchResponse{
		EvaluationID:          res.EvaluationID,
		Outcome:               res.Outcome,
		MatchedMemberIDs:      res.MatchedMemberIDs,
		AttributeLogicMatched: res.AttributeLogicMatched(),
		CheckedFallback:       res.CheckedFallback,
		FallbackAction:        res.FallbackAction,
		RuleErrors:            errs,
	}
}

// ValidateQueryRequest is the body of POST /v1/queries/validate.
type ValidateQueryRequest struct {
	ScopeRequest
	Query json.RawMessage `json:"query" validate:"required"`
}

// ValidateQueryResponse reports structural and catalog problems of a query.
type ValidateQueryResponse struct {
	Valid      bool                `json:"valid"`
	Error      string              `json:"error,omitempty"`
	Fields     []string            `json:"fields"`
	RuleCount  int                 `json:"ruleCount"`
	RuleErrors []*engine.RuleError `json:"ruleErrors"`
}

// FilterHostsRequest is the body of POST /v1/hosts/filter.
type FilterHostsRequest struct {
	ScopeRequest
	Route RouteRequest      `json:"route"`
	Hosts []roundrobin.Host `json:"hosts" validate:"required,min=1,dive"`
	Seed  string            `json:"seed,omitempty" validate:"max=200"`
}

// FilterHostsResponse is the body returned by POST /v1/hosts/filter.
type FilterHostsResponse struct {
	Hosts    []roundrobin.Host `json:"hosts"`
	Lead     *roundrobin.Host  `json:"lead"`
	Filtered bool              `json:"filtered"`
	Match    MatchResponse     `json:"match"`
}

// RouteFormRequest is the body of POST /v1/forms/route. TeamID defaults to
// the form's team.
type RouteFormRequest struct {
	TeamID   int64            `json:"teamId,omitempty" validate:"gte=0"`
	OrgID    *int64           `json:"orgId,omitempty" validate:"omitempty,gt=0"`
	Form     *routing.Form    `json:"form" validate:"required"`
	Response routing.Response `json:"response"`
}

// toRoute parses the wire route. Missing or null queries mean "no attribute
// logic" rather than "match everyone".
func (rr RouteRequest) toRoute() (matching.Route, error) {
	primary, err := parseRawQuery(rr.AttributesQueryValue)
	if err != nil {
		return matching.Route{}, err
	}
	fallback, err := parseRawQuery(rr.FallbackAttributesQueryValue)
	if err != nil {
		return matching.Route{}, err
	}
	return matching.Route{
		ID:                      rr.ID,
		AttributesQuery:         primary,
		FallbackAttributesQuery: fallback,
		FallbackAction:          rr.FallbackAction,
	}, nil
}

func parseRawQuery(raw json.RawMessage) (query.Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return query.Parse(trimmed)
}
