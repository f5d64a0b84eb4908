package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/taskpilot/internal/analyzer"
	"github.com/sandeepkv93/taskpilot/internal/links"
	"github.com/sandeepkv93/taskpilot/internal/matcher"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/nudge"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
	"github.com/sandeepkv93/taskpilot/internal/storage"
)

var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu          sync.Mutex
	items       []model.Insight
	completeErr error
	syncErr     error
	completed   []string
	upstream    []bool
	refreshes   []bool
}

func newFakeBackend() *fakeBackend {
	mk := func(id, title string, q model.Quadrant, score float64, e model.EnergyLevel, age time.Duration) model.Insight {
		return model.Insight{
			ExternalTaskID: id, Title: title, Quadrant: q, PriorityScore: score, EnergyLevel: e,
			EstimatedMinutes: 30, FirstSeenAt: testNow.Add(-age),
		}
	}
	return &fakeBackend{items: []model.Insight{
		mk("t1", "Ship release", model.QuadrantDo, 90, model.EnergyHigh, time.Hour),
		mk("t2", "Plan roadmap", model.QuadrantSchedule, 60, model.EnergyMedium, 2*time.Hour),
		mk("t3", "Clear inbox", model.QuadrantDrop, 20, model.EnergyLow, 100*time.Hour),
	}}
}

func (f *fakeBackend) Now() time.Time                { return testNow }
func (f *fakeBackend) StaleThreshold() time.Duration { return 72 * time.Hour }

func (f *fakeBackend) Top(_ context.Context, limit int) ([]scoring.Scored, error) {
	out := make([]scoring.Scored, 0, limit)
	for _, in := range f.items {
		if len(out) == limit {
			break
		}
		out = append(out, scoring.Scored{Insight: in, Result: scoring.Result{Quadrant: in.Quadrant, Score: in.PriorityScore}})
	}
	return out, nil
}

func (f *fakeBackend) MatchEnergy(_ context.Context, level model.EnergyLevel, limit int) ([]matcher.Match, error) {
	var out []matcher.Match
	for _, in := range f.items {
		if in.EnergyLevel == level && len(out) < limit {
			out = append(out, matcher.Match{Scored: scoring.Scored{Insight: in, Result: scoring.Result{Score: in.PriorityScore}}})
		}
	}
	return out, nil
}

func (f *fakeBackend) Stale(context.Context) ([]staleness.Stale, error) {
	var out []staleness.Stale
	for _, in := range f.items {
		if age := testNow.Sub(in.FirstSeenAt); age > 72*time.Hour {
			out = append(out, staleness.Stale{Insight: in, OpenFor: age})
		}
	}
	return out, nil
}

func (f *fakeBackend) OpenTasks(context.Context) ([]model.Insight, error) {
	var out []model.Insight
	for _, in := range f.items {
		if testNow.Sub(in.FirstSeenAt) <= 72*time.Hour {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeBackend) Insight(_ context.Context, id string) (model.Insight, error) {
	for _, in := range f.items {
		if in.ExternalTaskID == id {
			return in, nil
		}
	}
	return model.Insight{}, storage.ErrNotFound
}

func (f *fakeBackend) ResolveLink(_ context.Context, id string) links.Link {
	return links.Link{TaskID: id, URL: links.Build(links.DefaultWebURL, id, ""), Source: links.SourceNone}
}

func (f *fakeBackend) MarkComplete(_ context.Context, id string, upstream bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	f.upstream = append(f.upstream, upstream)
	return f.completeErr
}

func (f *fakeBackend) Unstuck(_ context.Context, id string, refresh bool) (model.Unstuck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, refresh)
	for _, in := range f.items {
		if in.ExternalTaskID != id {
			continue
		}
		if testNow.Sub(in.FirstSeenAt) <= 72*time.Hour {
			return model.Unstuck{}, fmt.Errorf("%w: %s", service.ErrNotStale, id)
		}
		return model.Unstuck{TinyFirstStep: "Archive one newsletter", Blockers: []string{"too many senders"}, DaysOpen: 4}, nil
	}
	return model.Unstuck{}, storage.ErrNotFound
}

func (f *fakeBackend) Sync(context.Context) (service.SyncReport, error) {
	if f.syncErr != nil {
		return service.SyncReport{}, f.syncErr
	}
	return service.SyncReport{Listed: 3, Refreshed: 1, Analysis: analyzer.Report{Total: 2, Succeeded: 2}}, nil
}

func newTestModel(t *testing.T, opts ...Option) (Model, *fakeBackend) {
	t.Helper()
	b := newFakeBackend()
	return New(b, DefaultConfig(), opts...), b
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", updated)
	}
	return next, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = step(t, m, m.loadPriorityCmd(3)())
	m, _ = step(t, m, m.loadStaleCmd()())
	return m
}

func TestNewModelDefaults(t *testing.T) {
	m, _ := newTestModel(t)
	if m.Pane != PanePriority {
		t.Fatalf("expected default pane %q, got %q", PanePriority, m.Pane)
	}
	if m.Energy != model.EnergyMedium {
		t.Fatalf("expected medium energy, got %q", m.Energy)
	}
	if m.cfg.TopLimit != service.DefaultTopLimit || m.cfg.EnergyLimit != service.DefaultEnergyLimit {
		t.Fatalf("unexpected limits %+v", m.cfg)
	}
	if m.SelectedTaskID() != "" {
		t.Fatalf("expected no selection before data loads")
	}
}

func TestKeysSwitchPanes(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(t, m, runes("2"))
	if m.Pane != PaneEnergy {
		t.Fatalf("expected energy pane, got %q", m.Pane)
	}
	m, _ = step(t, m, runes("3"))
	if m.Pane != PaneStale {
		t.Fatalf("expected stale pane, got %q", m.Pane)
	}
	m, _ = step(t, m, SwitchPaneMsg{Pane: Pane("Nope")})
	if m.Pane != PaneStale {
		t.Fatalf("unknown pane should be ignored, got %q", m.Pane)
	}
}

func TestLoadedPrioritiesDriveSelection(t *testing.T) {
	m, _ := newTestModel(t)
	m = loaded(t, m)
	require.Len(t, m.Priority, 3)
	require.Equal(t, "t1", m.SelectedTaskID())

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "t2", m.SelectedTaskID())

	m, _ = step(t, m, runes("3"))
	require.Equal(t, "t3", m.SelectedTaskID(), "stale pane lists only the old task")
}

func TestCycleEnergyLoadsMatches(t *testing.T) {
	m, _ := newTestModel(t)
	m, cmd := step(t, m, runes("e"))
	require.Equal(t, PaneEnergy, m.Pane)
	require.Equal(t, model.EnergyHigh, m.Energy)
	require.NotNil(t, cmd)

	m, _ = step(t, m, cmd())
	require.Len(t, m.Matches, 1)
	require.Equal(t, "t1", m.SelectedTaskID())
}

func TestPaletteRunsTopCommand(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(t, m, runes("/"))
	if !m.Palette.Active {
		t.Fatal("expected palette active")
	}
	m, _ = step(t, m, runes("top 2"))
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Palette.Active {
		t.Fatal("palette should close after enter")
	}
	require.NotNil(t, cmd)

	m, _ = step(t, m, cmd())
	require.Len(t, m.Priority, 2)
	require.Equal(t, "top 2 task(s)", m.Status.Text)
	require.False(t, m.Status.IsError)
}

func TestPaletteParseError(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(t, m, runes("/"))
	m, _ = step(t, m, runes("energy sleepy"))
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("expected no command for a parse error")
	}
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "invalid_argument") {
		t.Fatalf("unexpected status %+v", m.Status)
	}
}

func TestPaletteEscCloses(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(t, m, runes("/"))
	m, _ = step(t, m, runes("sta"))
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.Palette.Active || m.Palette.Input != "" {
		t.Fatalf("expected closed palette, got %+v", m.Palette)
	}
}

func TestPaletteShowLoadsDetail(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(t, m, runes("/"))
	m, _ = step(t, m, runes("show t2"))
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = step(t, m, cmd())
	require.NotNil(t, m.Detail)
	require.Equal(t, "Plan roadmap", m.Detail.Title)
	require.Equal(t, links.SourceNone, m.DetailLink.Source)

	m, _ = step(t, m, runes("/"))
	m, _ = step(t, m, runes("show missing"))
	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = step(t, m, cmd())
	require.True(t, m.Status.IsError)
}

func TestCompleteSelectedTask(t *testing.T) {
	nudges := nudge.NewEngine(4)
	m, b := newTestModel(t, WithNudges(nudges))
	m = loaded(t, m)
	require.NoError(t, nudges.Schedule(nudge.Nudge{TaskID: "t1", Kind: nudge.KindStale, TriggerAt: testNow.Add(time.Hour)}))

	m, cmd := step(t, m, runes("c"))
	require.NotNil(t, cmd)
	m, refresh := step(t, m, cmd())
	require.NotNil(t, refresh)
	require.Equal(t, []string{"t1"}, b.completed)
	require.Equal(t, []bool{false}, b.upstream)
	require.Equal(t, "completed t1", m.Status.Text)
	require.Equal(t, 0, nudges.Pending())
}

func TestCompleteUpstreamFailureKeepsLocalCompletion(t *testing.T) {
	m, b := newTestModel(t)
	m = loaded(t, m)
	b.completeErr = fmt.Errorf("%w: boom", service.ErrUpstream)

	m, cmd := step(t, m, runes("C"))
	m, _ = step(t, m, cmd())
	require.Equal(t, []bool{true}, b.upstream)
	require.True(t, m.Status.IsError)
	require.Contains(t, m.Status.Text, "completed t1 locally")
}

func TestCompleteLocalFailure(t *testing.T) {
	m, b := newTestModel(t)
	m = loaded(t, m)
	b.completeErr = storage.ErrNotFound

	m, cmd := step(t, m, runes("c"))
	msg := cmd()
	if _, ok := msg.(AppErrorMsg); !ok {
		t.Fatalf("expected AppErrorMsg, got %T", msg)
	}
	m, _ = step(t, m, msg)
	require.ErrorIs(t, m.LastError, storage.ErrNotFound)
}

func TestCompleteWithoutSelection(t *testing.T) {
	m, b := newTestModel(t)
	m, cmd := step(t, m, runes("c"))
	require.Nil(t, cmd)
	require.True(t, m.Status.IsError)
	require.Empty(t, b.completed)
}

func TestSyncFlow(t *testing.T) {
	m, b := newTestModel(t)
	m, cmd := step(t, m, runes("s"))
	require.True(t, m.Sync.Running)
	require.NotNil(t, cmd)

	m, refresh := step(t, m, m.syncCmd()())
	require.False(t, m.Sync.Running)
	require.NotNil(t, m.Sync.Last)
	require.Equal(t, testNow, m.Sync.At)
	require.Equal(t, "sync complete: 3 listed, 2 analyzed, 0 failed", m.Status.Text)
	require.NotNil(t, refresh)

	b.syncErr = errors.New("ticktick down")
	m, _ = step(t, m, m.syncCmd()())
	require.True(t, m.Status.IsError)
	require.ErrorContains(t, m.LastError, "ticktick down")
}

func TestUnstuckKeyOnStalePane(t *testing.T) {
	m, b := newTestModel(t)
	m = loaded(t, m)
	m, _ = step(t, m, runes("3"))
	require.Equal(t, "t3", m.SelectedTaskID())

	m, cmd := step(t, m, runes("u"))
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())
	require.Equal(t, []bool{false}, b.refreshes)
	require.NotNil(t, m.Detail)
	require.Equal(t, "t3", m.Detail.ExternalTaskID)
	require.NotNil(t, m.Detail.Unstuck)
	require.Equal(t, "Archive one newsletter", m.Detail.Unstuck.TinyFirstStep)
	require.NotNil(t, m.Stale[0].Insight.Unstuck)
	require.Equal(t, "unstuck help for Clear inbox", m.Status.Text)
}

func TestUnstuckKeyNeedsStaleSelection(t *testing.T) {
	m, b := newTestModel(t)
	m = loaded(t, m)
	m, cmd := step(t, m, runes("u"))
	require.Nil(t, cmd)
	require.True(t, m.Status.IsError)
	require.Empty(t, b.refreshes)
}

func TestPaletteUnstuck(t *testing.T) {
	m, b := newTestModel(t)
	m, _ = step(t, m, runes("/"))
	m, _ = step(t, m, runes("unstuck t3 refresh"))
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = step(t, m, cmd())
	require.Equal(t, []bool{true}, b.refreshes)
	require.NotNil(t, m.Detail)
	require.NotNil(t, m.Detail.Unstuck)
	require.False(t, m.Status.IsError)

	m, _ = step(t, m, runes("/"))
	m, _ = step(t, m, runes("unstuck t1"))
	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = step(t, m, cmd())
	require.True(t, m.Status.IsError)
	require.Contains(t, m.Status.Text, "t1")
}

func TestOpenTasksPlanNudges(t *testing.T) {
	nudges := nudge.NewEngine(4)
	m, _ := newTestModel(t, WithNudges(nudges))
	m, _ = step(t, m, m.loadOpenTasksCmd()())
	// t1 and t2 each get a stale nudge; neither has a due date.
	require.Equal(t, 2, nudges.Pending())

	m, _ = step(t, m, OpenTasksLoadedMsg{Items: m.backend.(*fakeBackend).items[:1]})
	require.Equal(t, 1, nudges.Pending())
}

func TestNudgeMsgNotifies(t *testing.T) {
	m, _ := newTestModel(t)
	m, cmd := step(t, m, NudgeMsg{Nudge: nudge.Nudge{TaskID: "t2", Title: "Plan roadmap", Kind: nudge.KindStale}})
	require.NotNil(t, cmd)
	require.Len(t, m.Notifications, 1)
	require.Equal(t, "Task going stale", m.Notifications[0].Title)
	require.Contains(t, m.Status.Text, "Plan roadmap")
}

func TestDesktopNotifierOnlyWhenEnabled(t *testing.T) {
	rec := &recordingNotifier{}
	b := newFakeBackend()
	cfg := DefaultConfig()
	m := New(b, cfg, WithNotifier(rec))
	m, _ = step(t, m, SetStatusMsg{Text: "hello"})
	require.Empty(t, rec.sent)

	cfg.DesktopNotifications = true
	m = New(b, cfg, WithNotifier(rec))
	_, _ = step(t, m, SetStatusMsg{Text: "hello"})
	require.Len(t, rec.sent, 1)
}

func TestUpdateStatusAndError(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(t, m, AppErrorMsg{Err: errors.New("boom")})
	if m.LastError == nil || !m.Status.IsError || m.Status.Text != "boom" {
		t.Fatalf("unexpected error state: %+v %v", m.Status, m.LastError)
	}
	m, _ = step(t, m, ClearStatusMsg{})
	if m.Status.Text != "" {
		t.Fatalf("expected cleared status, got %+v", m.Status)
	}
}

func TestUpdateQuitKey(t *testing.T) {
	m, _ := newTestModel(t)
	m, cmd := step(t, m, runes("q"))
	if !m.Quitting || cmd == nil {
		t.Fatal("expected quit")
	}
}

func TestViewContainsCoreState(t *testing.T) {
	m, _ := newTestModel(t)
	m = loaded(t, m)
	m.Status = StatusBar{Text: "all good"}
	out := m.View()
	for _, want := range []string{"pane: Priority", "selected: t1", "status: all good", "Ship release"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}
	m, _ = step(t, m, runes("?"))
	if !strings.Contains(m.View(), "/energy low|medium|high [N]") {
		t.Fatalf("expected command help in view")
	}
}

func TestDurationLabel(t *testing.T) {
	require.Equal(t, "5h", durationLabel(5*time.Hour))
	require.Equal(t, "4d 4h", durationLabel(100*time.Hour))
}

type recordingNotifier struct {
	sent []Notification
}

func (r *recordingNotifier) Send(n Notification) error {
	r.sent = append(r.sent, n)
	return nil
}
