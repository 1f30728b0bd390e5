// Package roundrobin narrows a round-robin event type's host pool to the
// members selected by its attribute segment and picks the lead host.
package roundrobin

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/matching"
)

// Host is a candidate host of a round-robin event type.
//
// Fixed hosts attend every booking; they are never filtered by attributes and
// never compete for lead.
type Host struct {
	MemberID       int64 `json:"memberId" yaml:"memberId" validate:"required"`
	RecentBookings int   `json:"recentBookings" yaml:"recentBookings" validate:"gte=0"`
	Fixed          bool  `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// Selection is the outcome of Select.
type Selection struct {
	// Hosts is the filtered pool in its original order.
	Hosts []Host `json:"hosts"`
	// Lead is the round-robin host to book, nil when none is available.
	Lead *Host `json:"lead"`
	// Filtered reports whether the attribute segment restricted the pool.
	Filtered bool             `json:"filtered"`
	Match    *matching.Result `json:"match"`
}

// Filter keeps the hosts in the matched set, plus every fixed host. A result
// that did not evaluate the segment (skipped or unevaluated) leaves the pool
// untouched.
func Filter(hosts []Host, res *matching.Result) []Host {
	if !res.Evaluated() {
		return append([]Host(nil), hosts...)
	}
	matched := make(map[int64]struct{}, len(res.MatchedMemberIDs))
	for _, id := range res.MatchedMemberIDs {
		matched[id] = struct{}{}
	}
	out := make([]Host, 0, len(hosts))
	for _, h := range hosts {
		if _, ok := matched[h.MemberID]; ok || h.Fixed {
			out = append(out, h)
		}
	}
	return out
}

// Pick returns the non-fixed host with the fewest recent bookings. Ties go to
// the lowest hash of seed and member id, so the same seed always picks the
// same host while different seeds spread ties across members.
func Pick(hosts []Host, seed string) (Host, bool) {
	var (
		best     Host
		bestHash uint64
		found    bool
	)
	for _, h := range hosts {
		if h.Fixed {
			continue
		}
		hash := tieBreak(seed, h.MemberID)
		if !found ||
			h.RecentBookings < best.RecentBookings ||
			(h.RecentBookings == best.RecentBookings && hash < bestHash) {
			best, bestHash, found = h, hash, true
		}
	}
	return best, found
}

func tieBreak(seed string, memberID int64) uint64 {
	return xxhash.Sum64String(seed + ":" + strconv.FormatInt(memberID, 10))
}

// Selector runs a segment through a matching.Matcher and selects hosts.
type Selector struct {
	matcher *matching.Matcher
	seed    string
	log     zerolog.Logger
}

// NewSelector creates a Selector. defaultSeed is used when Select is called
// without one.
func NewSelector(m *matching.Matcher, defaultSeed string, log zerolog.Logger) *Selector {
	return &Selector{matcher: m, seed: defaultSeed, log: log}
}

// Select filters hosts by the segment in route and picks the lead.
func (s *Selector) Select(ctx context.Context, scope attribute.Scope, route matching.Route, hosts []Host, seed string) (*Selection, error) {
	res, err := s.matcher.Match(ctx, scope, route)
	if err != nil {
		return nil, err
	}
	if seed == "" {
		seed = s.seed
	}

	sel := &Selection{
		Hosts:    Filter(hosts, res),
		Filtered: res.Evaluated(),
		Match:    res,
	}
	if lead, ok := Pick(sel.Hosts, seed); ok {
		sel.Lead = &lead
	}

	ev := s.log.Debug().
		Str("evaluation_id", res.EvaluationID).
		Int("candidates", len(hosts)).
		Int("eligible", len(sel.Hosts))
	if sel.Lead != nil {
		ev = ev.Int64("lead", sel.Lead.MemberID)
	}
	ev.Msg("round-robin hosts selected")
	return sel, nil
}
