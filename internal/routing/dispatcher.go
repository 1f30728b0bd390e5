package routing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/query"
)

// Response maps form field ids to submitted values: a string, a number or a
// list of strings (option ids for select fields).
type Response map[string]any

// Decision is the routing outcome of one submission.
type Decision struct {
	FormID  string `json:"formId"`
	RouteID string `json:"routeId"`
	// FallbackRoute is set when no regular route accepted the response.
	FallbackRoute bool `json:"fallbackRoute"`

	// Action is what the caller should do. It is the route's action, or the
	// route's fallback action when attribute logic matched nobody or could
	// not be evaluated.
	Action             Action `json:"action"`
	UsedFallbackAction bool   `json:"usedFallbackAction"`

	// MemberIDs lists the team members to offer for event type redirects.
	// Nil means no attribute filtering applies.
	MemberIDs             []int64          `json:"memberIds"`
	AttributeLogicMatched bool             `json:"attributeLogicMatched"`
	Match                 *matching.Result `json:"match,omitempty"`

	// ExpressionErrors lists routes skipped because their expression failed.
	ExpressionErrors []string `json:"expressionErrors,omitempty"`
}

// Dispatcher routes submissions. It is safe for concurrent use.
type Dispatcher struct {
	matcher *matching.Matcher
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(m *matching.Matcher, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{matcher: m, log: log}
}

// Route picks the route for resp and evaluates its attribute logic.
//
// Routes are tried in order, fallback routes excluded. A route whose
// expression is broken is skipped and reported in ExpressionErrors. When no
// route accepts the response the form's fallback route is used; without one
// Route returns ErrNoRoute.
func (d *Dispatcher) Route(ctx context.Context, scope attribute.Scope, form *Form, resp Response) (*Decision, error) {
	dec := &Decision{FormID: form.ID}
	data := form.expressionData(resp)

	var chosen *Route
	for i := range form.Routes {
		r := &form.Routes[i]
		if r.IsFallback {
			continue
		}
		ok, err := Evaluate(r.Expression, data)
		if err != nil {
			d.log.Warn().Str("form_id", form.ID).Str("route_id", r.ID).Err(err).Msg("route expression failed")
			dec.ExpressionErrors = append(dec.ExpressionErrors, fmt.Sprintf("route %s: %v", r.ID, err))
			continue
		}
		if ok {
			chosen = r
			break
		}
	}
	if chosen == nil {
		for i := range form.Routes {
			if form.Routes[i].IsFallback {
				chosen = &form.Routes[i]
				dec.FallbackRoute = true
				break
			}
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w: form %q", ErrNoRoute, form.ID)
	}

	dec.RouteID = chosen.ID
	dec.Action = chosen.Action
	if chosen.Action.Type != matching.ActionEventTypeRedirectURL {
		return dec, nil
	}

	route, err := form.matchingRoute(chosen, resp)
	if err != nil {
		return nil, err
	}
	res, err := d.matcher.Match(ctx, scope, route)
	if err != nil {
		return nil, err
	}

	dec.Match = res
	dec.MemberIDs = res.MatchedMemberIDs
	dec.AttributeLogicMatched = res.AttributeLogicMatched()
	if res.FallbackAction != nil &&
		(res.Outcome == matching.OutcomeFallbackAction || res.Outcome == matching.OutcomeUnevaluated) {
		dec.Action = Action(*res.FallbackAction)
		dec.UsedFallbackAction = true
	}

	d.log.Debug().
		Str("form_id", form.ID).
		Str("route_id", chosen.ID).
		Str("outcome", string(res.Outcome)).
		Str("action", string(dec.Action.Type)).
		Msg("form submission routed")
	return dec, nil
}

// matchingRoute builds the attribute route of r with field templates filled
// from resp.
func (f *Form) matchingRoute(r *Route, resp Response) (matching.Route, error) {
	primary, err := parseQuery(r.AttributesQueryValue)
	if err != nil {
		return matching.Route{}, fmt.Errorf("%w: route %q: attributes query: %w", ErrInvalidForm, r.ID, err)
	}
	fallback, err := parseQuery(r.FallbackAttributesQueryValue)
	if err != nil {
		return matching.Route{}, fmt.Errorf("%w: route %q: fallback attributes query: %w", ErrInvalidForm, r.ID, err)
	}

	lookup := f.fieldLookup(resp)
	if primary != nil {
		primary = query.ResolveFieldTemplates(primary, lookup)
	}
	if fallback != nil {
		fallback = query.ResolveFieldTemplates(fallback, lookup)
	}
	return matching.Route{
		ID:                      r.ID,
		AttributesQuery:         primary,
		FallbackAttributesQuery: fallback,
		FallbackAction:          r.FallbackAction,
	}, nil
}

// fieldLookup resolves "{field:<id>}" templates. Select fields answer with the
// chosen options' labels, which attribute operands resolve by option value.
func (f *Form) fieldLookup(resp Response) query.FieldLookup {
	return func(fieldID string) ([]string, bool) {
		v, ok := resp[fieldID]
		if !ok {
			return nil, false
		}
		values := responseStrings(v)
		fld, known := f.Field(fieldID)
		if !known || len(fld.Options) == 0 {
			return values, true
		}
		for i, val := range values {
			for _, o := range fld.Options {
				if o.ID == val {
					values[i] = o.Label
					break
				}
			}
		}
		return values, true
	}
}

// expressionData keys the response by field id and, where set, identifier.
func (f *Form) expressionData(resp Response) map[string]any {
	data := make(map[string]any, len(resp)*2)
	for id, v := range resp {
		data[id] = v
	}
	for _, fld := range f.Fields {
		if fld.Identifier == "" {
			continue
		}
		if v, ok := resp[fld.ID]; ok {
			if _, taken := data[fld.Identifier]; !taken {
				data[fld.Identifier] = v
			}
		}
	}
	return data
}

func responseStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, responseStrings(item)...)
		}
		return out
	case float64:
		return []string{strconv.FormatFloat(val, 'f', -1, 64)}
	case int:
		return []string{strconv.Itoa(val)}
	case int64:
		return []string{strconv.FormatInt(val, 10)}
	case bool:
		return []string{strconv.FormatBool(val)}
	}
	return []string{fmt.Sprint(v)}
}
