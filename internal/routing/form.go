// Package routing dispatches routing-form submissions: it picks the form route
// whose JSON Logic expression accepts the response, runs the route's attribute
// logic and derives the action the caller should take.
package routing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/query"
)

var (
	// ErrInvalidForm is returned for structurally broken forms.
	ErrInvalidForm = errors.New("invalid routing form")

	// ErrNoRoute is returned when no route accepts the response and the form
	// has no fallback route.
	ErrNoRoute = errors.New("no route accepts the response")
)

// Action tells the caller what to do with a submission.
type Action struct {
	Type  matching.ActionType `json:"type" yaml:"type"`
	Value string              `json:"value" yaml:"value"`
}

// FieldOption is a choice of a select form field.
type FieldOption struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Field is a form question.
type Field struct {
	ID         string        `json:"id" yaml:"id"`
	Identifier string        `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	Label      string        `json:"label" yaml:"label"`
	Type       string        `json:"type" yaml:"type"`
	Options    []FieldOption `json:"options,omitempty" yaml:"options,omitempty"`
}

// Route is one destination of a form. Expression is a JSON Logic rule over
// the response; an empty expression accepts every response. A fallback route
// is used only when no other route accepts the response.
//
// The attribute queries and fallback action only apply to
// eventTypeRedirectUrl routes.
type Route struct {
	ID                           string                   `json:"id" yaml:"id"`
	IsFallback                   bool                     `json:"isFallback,omitempty" yaml:"isFallback,omitempty"`
	Expression                   any                      `json:"expression,omitempty" yaml:"expression,omitempty"`
	Action                       Action                   `json:"action" yaml:"action"`
	AttributesQueryValue         any                      `json:"attributesQueryValue,omitempty" yaml:"attributesQueryValue,omitempty"`
	FallbackAttributesQueryValue any                      `json:"fallbackAttributesQueryValue,omitempty" yaml:"fallbackAttributesQueryValue,omitempty"`
	FallbackAction               *matching.FallbackAction `json:"fallbackAction,omitempty" yaml:"fallbackAction,omitempty"`
}

// Form is a routing form owned by a team.
type Form struct {
	ID     string  `json:"id" yaml:"id"`
	TeamID int64   `json:"teamId" yaml:"teamId"`
	Fields []Field `json:"fields" yaml:"fields"`
	Routes []Route `json:"routes" yaml:"routes"`
}

// Field returns the field with the given id.
func (f *Form) Field(id string) (Field, bool) {
	for _, fld := range f.Fields {
		if fld.ID == id {
			return fld, true
		}
	}
	return Field{}, false
}

// Validate checks the form's structure. Route expressions are checked with
// ValidateExpression; attribute queries must parse.
func (f *Form) Validate() error {
	if len(f.Routes) == 0 {
		return fmt.Errorf("%w: form %q has no routes", ErrInvalidForm, f.ID)
	}

	fieldIDs := make(map[string]struct{}, len(f.Fields))
	for _, fld := range f.Fields {
		if fld.ID == "" {
			return fmt.Errorf("%w: field without id", ErrInvalidForm)
		}
		if _, dup := fieldIDs[fld.ID]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidForm, fld.ID)
		}
		fieldIDs[fld.ID] = struct{}{}
	}

	routeIDs := make(map[string]struct{}, len(f.Routes))
	fallbacks := 0
	for _, r := range f.Routes {
		if r.ID == "" {
			return fmt.Errorf("%w: route without id", ErrInvalidForm)
		}
		if _, dup := routeIDs[r.ID]; dup {
			return fmt.Errorf("%w: duplicate route %q", ErrInvalidForm, r.ID)
		}
		routeIDs[r.ID] = struct{}{}
		if r.IsFallback {
			fallbacks++
		}
		if !r.Action.Type.Valid() {
			return fmt.Errorf("%w: route %q: unknown action type %q", ErrInvalidForm, r.ID, r.Action.Type)
		}
		if r.FallbackAction != nil && !r.FallbackAction.Type.Valid() {
			return fmt.Errorf("%w: route %q: unknown fallback action type %q", ErrInvalidForm, r.ID, r.FallbackAction.Type)
		}
		if err := ValidateExpression(r.Expression); err != nil {
			return fmt.Errorf("%w: route %q: %w", ErrInvalidForm, r.ID, err)
		}
		if _, err := parseQuery(r.AttributesQueryValue); err != nil {
			return fmt.Errorf("%w: route %q: attributes query: %w", ErrInvalidForm, r.ID, err)
		}
		if _, err := parseQuery(r.FallbackAttributesQueryValue); err != nil {
			return fmt.Errorf("%w: route %q: fallback attributes query: %w", ErrInvalidForm, r.ID, err)
		}
	}
	if fallbacks > 1 {
		return fmt.Errorf("%w: %d fallback routes, at most one allowed", ErrInvalidForm, fallbacks)
	}
	return nil
}

// parseQuery converts a decoded JSON or YAML value into a query tree. A nil
// value means the route has no attribute logic.
func parseQuery(v any) (query.Node, error) {
	if v == nil {
		return nil, nil
	}
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		b, err := json.Marshal(normalizeYAML(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", query.ErrInvalidNode, err)
		}
		data = b
	}
	return query.Parse(data)
}

// normalizeYAML converts the map[any]any values some YAML decoders produce
// into JSON-encodable maps.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	}
	return v
}
