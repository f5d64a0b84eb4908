package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

// Input holds the signals that feed one score.
type Input struct {
	DueAt *time.Time
	// Important overrides the priority mapping when set.
	Important        *bool
	SourcePriority   int
	EstimatedMinutes int
	FirstSeenAt      time.Time
}

type Result struct {
	Urgent      bool
	Important   bool
	Quadrant    model.Quadrant
	Score       float64
	Explanation string
}

// Engine is a pure function of its policy and the supplied clock reading.
type Engine struct {
	policy Policy
}

func NewEngine(p Policy) *Engine {
	return &Engine{policy: p}
}

// IsUrgent is true for past due dates, due dates falling on now's calendar day, and
// due dates inside the lookahead window. No due date is never urgent.
func (e *Engine) IsUrgent(due *time.Time, now time.Time) bool {
	if due == nil {
		return false
	}
	if !due.After(now) {
		return true
	}
	local := due.In(now.Location())
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return true
	}
	return due.Sub(now) <= e.policy.UrgentWithin
}

// IsImportant maps TickTick priority to importance: medium and high are important,
// low is not, and no priority falls back to Policy.DefaultImportant.
func (e *Engine) IsImportant(in Input) bool {
	if in.Important != nil {
		return *in.Important
	}
	switch {
	case in.SourcePriority >= e.policy.ImportantMinPriority:
		return true
	case in.SourcePriority > model.SourcePriorityNone:
		return false
	default:
		return e.policy.DefaultImportant
	}
}

func Classify(urgent, important bool) model.Quadrant {
	switch {
	case urgent && important:
		return model.QuadrantDo
	case important:
		return model.QuadrantSchedule
	case urgent:
		return model.QuadrantDelegate
	default:
		return model.QuadrantDrop
	}
}

func (e *Engine) base(q model.Quadrant) float64 {
	switch q {
	case model.QuadrantDo:
		return e.policy.BaseQ1
	case model.QuadrantSchedule:
		return e.policy.BaseQ2
	case model.QuadrantDelegate:
		return e.policy.BaseQ3
	default:
		return e.policy.BaseQ4
	}
}

func (e *Engine) Score(in Input, now time.Time) Result {
	urgent := e.IsUrgent(in.DueAt, now)
	important := e.IsImportant(in)
	quadrant := Classify(urgent, important)

	score := e.base(quadrant)
	parts := []string{fmt.Sprintf("base(%s)=%.0f", quadrant, score)}

	if in.DueAt != nil {
		switch {
		case in.DueAt.Before(now):
			score += e.policy.OverdueBonus
			parts = append(parts, fmt.Sprintf("overdue=+%.0f", e.policy.OverdueBonus))
		case in.DueAt.Sub(now) <= e.policy.UrgentWithin:
			score += e.policy.DueSoonBonus
			parts = append(parts, fmt.Sprintf("due_soon=+%.0f", e.policy.DueSoonBonus))
		}
	}

	if penalty := e.stalePenalty(in.FirstSeenAt, now); penalty > 0 {
		score -= penalty
		parts = append(parts, fmt.Sprintf("stale=-%.0f", penalty))
	}

	if in.EstimatedMinutes > 0 && in.EstimatedMinutes <= e.policy.QuickWinMinutes {
		score += e.policy.QuickWinBonus
		parts = append(parts, fmt.Sprintf("quick_win=+%.0f", e.policy.QuickWinBonus))
	}

	score = math.Round(clamp(score, MinScore, MaxScore)*100) / 100
	return Result{
		Urgent:      urgent,
		Important:   important,
		Quadrant:    quadrant,
		Score:       score,
		Explanation: strings.Join(parts, " "),
	}
}

// stalePenalty charges per whole day open beyond StaleAfter, capped.
func (e *Engine) stalePenalty(firstSeen, now time.Time) float64 {
	if firstSeen.IsZero() {
		return 0
	}
	over := now.Sub(firstSeen) - e.policy.StaleAfter
	if over <= 0 {
		return 0
	}
	days := math.Floor(over.Hours() / 24)
	return math.Min(days*e.policy.StalePenaltyPerDay, e.policy.StalePenaltyCap)
}

func InputFor(in model.Insight) Input {
	return Input{
		DueAt:            in.DueAt,
		SourcePriority:   in.SourcePriority,
		EstimatedMinutes: in.EstimatedMinutes,
		FirstSeenAt:      in.FirstSeenAt,
	}
}

// Apply stamps the quadrant and score computed at now onto the insight.
func (e *Engine) Apply(in model.Insight, now time.Time) model.Insight {
	res := e.Score(InputFor(in), now)
	in.Quadrant = res.Quadrant
	in.PriorityScore = res.Score
	return in
}

type Scored struct {
	Insight model.Insight
	Result  Result
}

func (e *Engine) ScoreAll(items []model.Insight, now time.Time) []Scored {
	out := make([]Scored, 0, len(items))
	for _, item := range items {
		res := e.Score(InputFor(item), now)
		item.Quadrant = res.Quadrant
		item.PriorityScore = res.Score
		out = append(out, Scored{Insight: item, Result: res})
	}
	return out
}

// Less orders by quadrant, then score descending, then older first_seen_at, then id.
func Less(a, b Scored) bool {
	if qa, qb := a.Result.Quadrant.Order(), b.Result.Quadrant.Order(); qa != qb {
		return qa < qb
	}
	if a.Result.Score != b.Result.Score {
		return a.Result.Score > b.Result.Score
	}
	if !a.Insight.FirstSeenAt.Equal(b.Insight.FirstSeenAt) {
		return a.Insight.FirstSeenAt.Before(b.Insight.FirstSeenAt)
	}
	return a.Insight.ExternalTaskID < b.Insight.ExternalTaskID
}

func Sort(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool { return Less(items[i], items[j]) })
}

// Top returns up to limit open insights in priority order. limit <= 0 returns all.
func (e *Engine) Top(items []model.Insight, now time.Time, limit int) []Scored {
	open := make([]model.Insight, 0, len(items))
	for _, item := range items {
		if !item.Completed {
			open = append(open, item)
		}
	}
	scored := e.ScoreAll(open, now)
	Sort(scored)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
