package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

var testNow = time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	v := testNow.Add(d)
	return &v
}

func boolPtr(v bool) *bool { return &v }

func TestDefaultPolicyPinnedValues(t *testing.T) {
	p := DefaultPolicy()
	if p.BaseQ1 != 70 || p.BaseQ2 != 50 || p.BaseQ3 != 30 || p.BaseQ4 != 10 {
		t.Fatalf("unexpected quadrant bases: %+v", p)
	}
	if p.OverdueBonus != 20 || p.DueSoonBonus != 10 {
		t.Fatalf("unexpected due bonuses: %+v", p)
	}
	if p.StaleAfter != 72*time.Hour || p.StalePenaltyPerDay != 1 || p.StalePenaltyCap != 10 {
		t.Fatalf("unexpected stale penalty table: %+v", p)
	}
	if p.QuickWinMinutes != 15 || p.QuickWinBonus != 5 {
		t.Fatalf("unexpected quick win table: %+v", p)
	}
	if p.UrgentWithin != 24*time.Hour || !p.DefaultImportant || p.ImportantMinPriority != 3 {
		t.Fatalf("unexpected urgency/importance defaults: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestPolicyValidateRejectsInvertedTable(t *testing.T) {
	p := DefaultPolicy()
	p.BaseQ4 = 90
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for Q4 base above Q3")
	}
	p = DefaultPolicy()
	p.DueSoonBonus = p.OverdueBonus + 1
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for due-soon bonus above overdue bonus")
	}
}

func TestUrgency(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	cases := []struct {
		name string
		due  *time.Time
		want bool
	}{
		{"no due date", nil, false},
		{"overdue by a week", at(-7 * 24 * time.Hour), true},
		{"overdue by a minute", at(-time.Minute), true},
		{"later today", at(6 * time.Hour), true},
		{"within 24h", at(23 * time.Hour), true},
		{"exactly 24h", at(24 * time.Hour), true},
		{"beyond window", at(25 * time.Hour), false},
		{"next week", at(7 * 24 * time.Hour), false},
	}
	for _, tc := range cases {
		if got := e.IsUrgent(tc.due, testNow); got != tc.want {
			t.Fatalf("%s: IsUrgent = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPastDueIsAlwaysUrgent(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		due := at(-time.Duration(r.Int63n(int64(365*24*time.Hour))) - time.Second)
		res := e.Score(Input{DueAt: due, SourcePriority: []int{0, 1, 3, 5}[i%4]}, testNow)
		if !res.Urgent {
			t.Fatalf("past due %s not urgent", due)
		}
		if res.Quadrant != model.QuadrantDo && res.Quadrant != model.QuadrantDelegate {
			t.Fatalf("past due landed in %s", res.Quadrant)
		}
	}
}

func TestNoDueDateIsNeverUrgent(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	for _, p := range []int{0, 1, 3, 5} {
		res := e.Score(Input{SourcePriority: p}, testNow)
		if res.Urgent {
			t.Fatalf("priority %d without due date marked urgent", p)
		}
		if res.Quadrant != model.QuadrantSchedule && res.Quadrant != model.QuadrantDrop {
			t.Fatalf("priority %d without due date landed in %s", p, res.Quadrant)
		}
	}
}

func TestImportancePolicy(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	cases := []struct {
		name string
		in   Input
		want bool
	}{
		{"no signal defaults to important", Input{SourcePriority: model.SourcePriorityNone}, true},
		{"low priority", Input{SourcePriority: model.SourcePriorityLow}, false},
		{"medium priority", Input{SourcePriority: model.SourcePriorityMedium}, true},
		{"high priority", Input{SourcePriority: model.SourcePriorityHigh}, true},
		{"explicit override", Input{SourcePriority: model.SourcePriorityHigh, Important: boolPtr(false)}, false},
	}
	for _, tc := range cases {
		if got := e.IsImportant(tc.in); got != tc.want {
			t.Fatalf("%s: IsImportant = %v, want %v", tc.name, got, tc.want)
		}
	}

	p := DefaultPolicy()
	p.DefaultImportant = false
	strict := NewEngine(p)
	if strict.IsImportant(Input{}) {
		t.Fatal("expected no-signal task to be unimportant when default is disabled")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		urgent, important bool
		want              model.Quadrant
	}{
		{true, true, model.QuadrantDo},
		{false, true, model.QuadrantSchedule},
		{true, false, model.QuadrantDelegate},
		{false, false, model.QuadrantDrop},
	}
	for _, tc := range cases {
		if got := Classify(tc.urgent, tc.important); got != tc.want {
			t.Fatalf("Classify(%v,%v) = %s, want %s", tc.urgent, tc.important, got, tc.want)
		}
	}
}

func TestScoreAdjustments(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	fresh := testNow.Add(-time.Hour)
	cases := []struct {
		name string
		in   Input
		want float64
	}{
		{"q2 baseline", Input{FirstSeenAt: fresh, EstimatedMinutes: 60}, 50},
		{"q4 baseline", Input{SourcePriority: 1, FirstSeenAt: fresh, EstimatedMinutes: 60}, 10},
		{"overdue q1", Input{DueAt: at(-time.Hour), FirstSeenAt: fresh, EstimatedMinutes: 60}, 90},
		{"due soon q1", Input{DueAt: at(3 * time.Hour), FirstSeenAt: fresh, EstimatedMinutes: 60}, 80},
		{"overdue q3", Input{DueAt: at(-time.Hour), SourcePriority: 1, FirstSeenAt: fresh, EstimatedMinutes: 60}, 50},
		{"quick win", Input{FirstSeenAt: fresh, EstimatedMinutes: 15}, 55},
		{"just over quick win", Input{FirstSeenAt: fresh, EstimatedMinutes: 16}, 50},
		{"stale by one day past threshold", Input{FirstSeenAt: testNow.Add(-4 * 24 * time.Hour), EstimatedMinutes: 60}, 49},
		{"stale under a whole day past threshold", Input{FirstSeenAt: testNow.Add(-(3*24 + 20) * time.Hour), EstimatedMinutes: 60}, 50},
		{"stale penalty capped", Input{FirstSeenAt: testNow.Add(-60 * 24 * time.Hour), EstimatedMinutes: 60}, 40},
		{"overdue quick win", Input{DueAt: at(-time.Hour), FirstSeenAt: fresh, EstimatedMinutes: 5}, 95},
	}
	for _, tc := range cases {
		res := e.Score(tc.in, testNow)
		if res.Score != tc.want {
			t.Fatalf("%s: score = %.2f, want %.2f (%s)", tc.name, res.Score, tc.want, res.Explanation)
		}
	}
}

func TestScoreClampsToRange(t *testing.T) {
	p := DefaultPolicy()
	p.BaseQ1 = 95
	p.BaseQ4 = 0
	p.StalePenaltyCap = 50
	e := NewEngine(p)

	hi := e.Score(Input{DueAt: at(-time.Hour), EstimatedMinutes: 5, FirstSeenAt: testNow}, testNow)
	if hi.Score != MaxScore {
		t.Fatalf("expected clamp to %v, got %v", MaxScore, hi.Score)
	}
	lo := e.Score(Input{SourcePriority: 1, FirstSeenAt: testNow.Add(-30 * 24 * time.Hour), EstimatedMinutes: 60}, testNow)
	if lo.Score != MinScore {
		t.Fatalf("expected clamp to %v, got %v", MinScore, lo.Score)
	}
}

func TestSortIsTotalAndDeterministic(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	seen := testNow.Add(-time.Hour)
	older := testNow.Add(-2 * time.Hour)
	items := []model.Insight{
		{ExternalTaskID: "d", SourcePriority: 1, FirstSeenAt: seen, EstimatedMinutes: 60},
		{ExternalTaskID: "b", FirstSeenAt: seen, EstimatedMinutes: 60},
		{ExternalTaskID: "a", FirstSeenAt: seen, EstimatedMinutes: 60},
		{ExternalTaskID: "c", FirstSeenAt: older, EstimatedMinutes: 60},
		{ExternalTaskID: "e", DueAt: at(-time.Hour), FirstSeenAt: seen, EstimatedMinutes: 60},
		{ExternalTaskID: "f", FirstSeenAt: seen, EstimatedMinutes: 10},
	}
	want := []string{"e", "f", "c", "a", "b", "d"}

	r := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		shuffled := append([]model.Insight(nil), items...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := e.Top(shuffled, testNow, 0)
		for i, id := range want {
			if got[i].Insight.ExternalTaskID != id {
				t.Fatalf("round %d position %d: got %s want %s", round, i, got[i].Insight.ExternalTaskID, id)
			}
		}
	}
}

func TestTopSkipsCompletedAndLimits(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	items := []model.Insight{
		{ExternalTaskID: "done", Completed: true, DueAt: at(-time.Hour), FirstSeenAt: testNow, EstimatedMinutes: 30},
		{ExternalTaskID: "x", FirstSeenAt: testNow, EstimatedMinutes: 30},
		{ExternalTaskID: "y", FirstSeenAt: testNow, EstimatedMinutes: 30},
	}
	got := e.Top(items, testNow, 1)
	if len(got) != 1 || got[0].Insight.ExternalTaskID != "x" {
		t.Fatalf("unexpected top: %#v", got)
	}
}

func TestApplyStampsScore(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	in := model.Insight{ExternalTaskID: "T1", DueAt: at(2 * time.Hour), SourcePriority: 5, FirstSeenAt: testNow, EstimatedMinutes: 30}
	out := e.Apply(in, testNow)
	if out.Quadrant != model.QuadrantDo || out.PriorityScore != 80 {
		t.Fatalf("unexpected applied score: %s %.2f", out.Quadrant, out.PriorityScore)
	}
}
