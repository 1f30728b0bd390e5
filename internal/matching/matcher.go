// Package matching decides which team members satisfy a route's attribute
// logic, running the fallback protocol when the primary query matches nobody.
//
// Evaluation order:
//
//  1. No attribute logic on the route: OutcomeSkipped, nil set.
//  2. Organization scope required but missing: OutcomeUnevaluated, nil set,
//     the route's FallbackAction (if any) is still returned.
//  3. Primary phase: every member is evaluated against the primary query.
//  4. Fallback phase, only when the primary set is empty: a configured
//     FallbackAction wins and the fallback query is not evaluated; otherwise
//     the fallback query, if present, is evaluated like the primary one.
package matching

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/engine"
)

const defaultWorkers = 4

// Matcher runs evaluations against an attribute source. It is safe for
// concurrent use.
type Matcher struct {
	source          attribute.Source
	workers         int
	requireOrgScope bool
	log             zerolog.Logger
	observer        Observer
	newID           func() string
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWorkers bounds the goroutines used to evaluate members.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithRequireOrgScope controls whether evaluation needs an organization id.
func WithRequireOrgScope(required bool) Option {
	return func(m *Matcher) { m.requireOrgScope = required }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Matcher) { m.log = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(m *Matcher) {
		if o != nil {
			m.observer = o
		}
	}
}

// NewMatcher creates a Matcher reading from src.
func NewMatcher(src attribute.Source, opts ...Option) *Matcher {
	m := &Matcher{
		source:          src,
		workers:         defaultWorkers,
		requireOrgScope: true,
		log:             zerolog.Nop(),
		observer:        nopObserver{},
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match evaluates route against the members of scope.TeamID.
//
// Errors are ErrCatalogUnavailable (the source failed) or ErrAborted (ctx
// ended); in both cases no partial result is returned.
func (m *Matcher) Match(ctx context.Context, scope attribute.Scope, route Route) (*Result, error) {
	start := time.Now()
	res := &Result{EvaluationID: m.newID()}
	log := m.log.With().
		Str("evaluation_id", res.EvaluationID).
		Str("route_id", route.ID).
		Int64("team_id", scope.TeamID).
		Logger()

	res, err := m.match(ctx, log, scope, route, res)
	if err != nil {
		log.Error().Err(err).Msg("attribute matching failed")
		return nil, err
	}

	res.Duration = time.Since(start)
	m.observer.ObserveMatch(res.Outcome, len(res.MatchedMemberIDs), res.Duration)
	log.Debug().
		Str("outcome", string(res.Outcome)).
		Int("matched", len(res.MatchedMemberIDs)).
		Bool("checked_fallback", res.CheckedFallback).
		Dur("duration", res.Duration).
		Msg("attribute matching done")
	return res, nil
}

func (m *Matcher) match(ctx context.Context, log zerolog.Logger, scope attribute.Scope, route Route, res *Result) (*Result, error) {
	if route.AttributesQuery == nil {
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	if m.requireOrgScope && !scope.HasOrg() {
		log.Warn().Msg("attribute routing configured but organization scope is missing")
		res.Outcome = OutcomeUnevaluated
		res.FallbackAction = route.FallbackAction
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	attrs, err := m.source.Attributes(ctx, scope)
	if err != nil {
		return nil, m.sourceError(ctx, "load attributes", err)
	}
	catalog := attribute.NewCatalog(attrs)

	primary := engine.Compile(route.AttributesQuery, catalog)
	var fallback *engine.Program
	if route.FallbackAction == nil && route.FallbackAttributesQuery != nil {
		fallback = engine.Compile(route.FallbackAttributesQuery, catalog)
	}
	res.RuleErrors = append(res.RuleErrors, primary.Errors...)
	if fallback != nil {
		res.RuleErrors = append(res.RuleErrors, fallback.Errors...)
	}
	if len(res.RuleErrors) > 0 {
		m.observer.ObserveRuleErrors(len(res.RuleErrors))
		for _, re := range res.RuleErrors {
			log.Warn().
				Str("rule_id", re.RuleID).
				Str("field", re.Field).
				Str("operator", string(re.Operator)).
				Err(re.Err).
				Msg("rule configuration error")
		}
	}

	members, err := m.source.Members(ctx, scope)
	if err != nil {
		return nil, m.sourceError(ctx, "load members", err)
	}

	fields := mergeFields(primary.Fields(), fallback.Fields())
	assignments := attribute.Assignments{}
	if len(fields) > 0 && len(members) > 0 {
		assignments, err = m.source.Assignments(ctx, scope, members, fields)
		if err != nil {
			return nil, m.sourceError(ctx, "load assignments", err)
		}
	}

	log.Debug().
		Str("query", strconv.FormatUint(primary.Fingerprint(), 16)).
		Int("members", len(members)).
		Strs("fields", fields).
		Msg("evaluating primary query")

	matched, err := m.evaluate(ctx, primary, members, assignments)
	if err != nil {
		return nil, err
	}
	res.MatchedMemberIDs = matched
	if len(matched) > 0 {
		res.Outcome = OutcomeMatched
		return res, nil
	}

	if route.FallbackAction != nil {
		res.Outcome = OutcomeFallbackAction
		res.FallbackAction = route.FallbackAction
		return res, nil
	}

	if fallback == nil {
		res.Outcome = OutcomeNoMatch
		return res, nil
	}

	res.CheckedFallback = true
	matched, err = m.evaluate(ctx, fallback, members, assignments)
	if err != nil {
		return nil, err
	}
	res.MatchedMemberIDs = matched
	if len(matched) > 0 {
		res.Outcome = OutcomeFallbackMatched
	} else {
		res.Outcome = OutcomeNoMatch
	}
	return res, nil
}

// evaluate runs p over members in bounded parallel chunks. The returned slice
// is never nil and keeps member order.
func (m *Matcher) evaluate(ctx context.Context, p *engine.Program, members []int64, a attribute.Assignments) ([]int64, error) {
	if p.Unconstrained() {
		out := make([]int64, len(members))
		copy(out, members)
		return out, nil
	}

	hits := make([]bool, len(members))
	chunk := (len(members) + m.workers - 1) / m.workers
	if chunk < 1 {
		chunk = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for start := 0; start < len(members); start += chunk {
		start := start
		end := min(start+chunk, len(members))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				hits[i] = p.Match(a.Member(members[i]))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	out := make([]int64, 0, len(members))
	for i, hit := range hits {
		if hit {
			out = append(out, members[i])
		}
	}
	return out, nil
}

func (m *Matcher) sourceError(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrAborted, step, ctxErr)
	}
	return fmt.Errorf("%w: %s: %w", ErrCatalogUnavailable, step, err)
}

func mergeFields(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, f := range list {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
