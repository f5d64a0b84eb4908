package matcher

import (
	"fmt"
	"sort"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
)

// Policy controls how a short list of exact matches is handled.
type Policy struct {
	// Backfill tops up a short list with the nearest energy levels by adjacency.
	// When false only exact matches are returned, even if fewer than requested.
	Backfill bool `koanf:"backfill"`
}

func DefaultPolicy() Policy {
	return Policy{Backfill: false}
}

type Match struct {
	scoring.Scored
	// Distance is 0 for exact matches and the adjacency steps otherwise.
	Distance int
}

func (m Match) Exact() bool { return m.Distance == 0 }

type Matcher struct {
	policy Policy
	engine *scoring.Engine
}

func New(p Policy, engine *scoring.Engine) *Matcher {
	return &Matcher{policy: p, engine: engine}
}

// Match returns up to limit open insights for the requested level. Exact matches come
// first, ranked by score; backfilled matches follow ordered by distance then score.
// Insights that were never analyzed carry no energy level and are skipped.
func (m *Matcher) Match(level model.EnergyLevel, limit int, items []model.Insight, now time.Time) ([]Match, error) {
	if !level.IsValid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidEnergy, level)
	}

	candidates := make([]model.Insight, 0, len(items))
	for _, item := range items {
		if item.Completed || !item.EnergyLevel.IsValid() {
			continue
		}
		candidates = append(candidates, item)
	}

	scored := m.engine.ScoreAll(candidates, now)
	exact := make([]Match, 0)
	nearby := make([]Match, 0)
	for _, s := range scored {
		d := level.Distance(s.Insight.EnergyLevel)
		if d == 0 {
			exact = append(exact, Match{Scored: s})
			continue
		}
		nearby = append(nearby, Match{Scored: s, Distance: d})
	}
	rank(exact)

	out := exact
	if limit > 0 && len(out) >= limit {
		return out[:limit], nil
	}
	if !m.policy.Backfill {
		return out, nil
	}

	rank(nearby)
	for _, n := range nearby {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, n)
	}
	return out, nil
}

func rank(items []Match) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Result.Score != b.Result.Score {
			return a.Result.Score > b.Result.Score
		}
		if !a.Insight.FirstSeenAt.Equal(b.Insight.FirstSeenAt) {
			return a.Insight.FirstSeenAt.Before(b.Insight.FirstSeenAt)
		}
		return a.Insight.ExternalTaskID < b.Insight.ExternalTaskID
	})
}
