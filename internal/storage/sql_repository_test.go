package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

func setupRepo(t *testing.T) *SQLRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "taskpilot-test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	repo, err := NewSQLRepository(db, DialectSQLite)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func sampleInsight(id string, at time.Time) model.Insight {
	return model.Insight{
		ExternalTaskID:   id,
		ProjectID:        "P1",
		Title:            "Write report",
		Description:      "quarterly numbers",
		EnergyLevel:      model.EnergyMedium,
		EstimatedMinutes: 45,
		PriorityScore:    50,
		Quadrant:         model.QuadrantSchedule,
		SourcePriority:   model.SourcePriorityMedium,
		FirstStep:        "Open last quarter's report",
		Subtasks: []model.Subtask{
			{Title: "Collect numbers", Energy: model.EnergyLow, EstimatedMinutes: 15},
			{Title: "Draft summary", Energy: model.EnergyMedium, EstimatedMinutes: 30},
		},
		FirstSeenAt:   at,
		LastUpdatedAt: at,
	}
}

func TestUpsertInsertsAndReadsBack(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")
	due := parseRFC3339(t, "2026-02-10T09:00:00Z")

	in := sampleInsight("T1", created)
	in.DueAt = &due
	got, err := repo.UpsertInsight(ctx, in)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got.ProjectID != "P1" || got.EnergyLevel != model.EnergyMedium || got.Quadrant != model.QuadrantSchedule {
		t.Fatalf("unexpected insight: %#v", got)
	}
	if got.DueAt == nil || !got.DueAt.Equal(due) {
		t.Fatalf("unexpected due date: %v", got.DueAt)
	}
	if len(got.Subtasks) != 2 || got.Subtasks[1].Title != "Draft summary" {
		t.Fatalf("unexpected subtasks: %#v", got.Subtasks)
	}
	if got.FirstStep != "Open last quarter's report" {
		t.Fatalf("unexpected first step: %q", got.FirstStep)
	}
}

func TestUpsertKeepsFirstSeenAndRefreshesLastUpdated(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	first := parseRFC3339(t, "2026-02-09T12:00:00Z")
	second := parseRFC3339(t, "2026-02-11T08:30:00Z")

	if _, err := repo.UpsertInsight(ctx, sampleInsight("T1", first)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	again := sampleInsight("T1", second)
	got, err := repo.UpsertInsight(ctx, again)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !got.FirstSeenAt.Equal(first) {
		t.Fatalf("first_seen_at changed: got %s want %s", got.FirstSeenAt, first)
	}
	if !got.LastUpdatedAt.Equal(second) {
		t.Fatalf("last_updated_at not refreshed: got %s want %s", got.LastUpdatedAt, second)
	}

	all, err := repo.ListInsights(ctx, InsightListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one row after re-analysis, got %d", len(all))
	}
}

func TestUpsertNeverClearsStoredProjectID(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := parseRFC3339(t, "2026-02-09T12:00:00Z")

	if _, err := repo.UpsertInsight(ctx, sampleInsight("T1", now)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	withoutProject := sampleInsight("T1", now.Add(time.Hour))
	withoutProject.ProjectID = ""
	got, err := repo.UpsertInsight(ctx, withoutProject)
	if err != nil {
		t.Fatalf("upsert without project: %v", err)
	}
	if got.ProjectID != "P1" {
		t.Fatalf("stored project id overwritten: %q", got.ProjectID)
	}

	moved := sampleInsight("T1", now.Add(2*time.Hour))
	moved.ProjectID = "P9"
	got, err = repo.UpsertInsight(ctx, moved)
	if err != nil {
		t.Fatalf("upsert with fresh project: %v", err)
	}
	if got.ProjectID != "P9" {
		t.Fatalf("fresh project id not stored: %q", got.ProjectID)
	}
}

func TestUpsertRejectsInvalidInsight(t *testing.T) {
	repo := setupRepo(t)
	in := sampleInsight("T1", parseRFC3339(t, "2026-02-09T12:00:00Z"))
	in.EnergyLevel = "extreme"
	if _, err := repo.UpsertInsight(context.Background(), in); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSetProjectIDAndMarkCompleted(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := parseRFC3339(t, "2026-02-09T12:00:00Z")
	in := sampleInsight("T1", now)
	in.ProjectID = ""
	if _, err := repo.UpsertInsight(ctx, in); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := repo.SetProjectID(ctx, "T1", "P2"); err != nil {
		t.Fatalf("set project: %v", err)
	}
	if err := repo.SetProjectID(ctx, "T1", " "); err == nil {
		t.Fatal("expected error for empty project id")
	}
	if err := repo.SetProjectID(ctx, "missing", "P2"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}

	done := now.Add(time.Hour)
	if err := repo.MarkCompleted(ctx, "T1", done); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := repo.MarkCompleted(ctx, "T1", done); err != nil {
		t.Fatalf("mark completed twice: %v", err)
	}
	got, err := repo.GetInsight(ctx, "T1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Completed || got.ProjectID != "P2" || !got.FirstSeenAt.Equal(now) {
		t.Fatalf("unexpected insight after completion: %#v", got)
	}

	if err := repo.MarkCompleted(ctx, "missing", done); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if _, err := repo.GetInsight(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestListInsightsOpenOnlyAndPagination(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := parseRFC3339(t, "2026-02-09T12:00:00Z")
	for i := 0; i < 4; i++ {
		if _, err := repo.UpsertInsight(ctx, sampleInsight(fmt.Sprintf("T%d", i), base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	if err := repo.MarkCompleted(ctx, "T1", base.Add(5*time.Hour)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	open, err := repo.ListInsights(ctx, InsightListFilter{OpenOnly: true})
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 3 || open[0].ExternalTaskID != "T0" || open[1].ExternalTaskID != "T2" {
		t.Fatalf("unexpected open list: %#v", open)
	}

	page, err := repo.ListInsights(ctx, InsightListFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].ExternalTaskID != "T1" {
		t.Fatalf("unexpected page: %#v", page)
	}
}

func TestConcurrentUpsertsOnDistinctIDs(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := parseRFC3339(t, "2026-02-09T12:00:00Z")

	const workers = 5
	const perWorker = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				if _, err := repo.UpsertInsight(ctx, sampleInsight(id, now)); err != nil {
					t.Errorf("upsert %s: %v", id, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	all, err := repo.ListInsights(ctx, InsightListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != workers*perWorker {
		t.Fatalf("expected %d rows, got %d", workers*perWorker, len(all))
	}
}

func TestRebindForPostgres(t *testing.T) {
	repo := &SQLRepository{dialect: DialectPostgres}
	got := repo.rebind("UPDATE t SET a = ?, b = ? WHERE id = ?")
	if got != "UPDATE t SET a = $1, b = $2 WHERE id = $3" {
		t.Fatalf("unexpected rebind: %q", got)
	}
	sqlite := &SQLRepository{dialect: DialectSQLite}
	if out := sqlite.rebind("a = ?"); out != "a = ?" {
		t.Fatalf("sqlite query should be unchanged: %q", out)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestOpenSQLiteAppliesMigrations(t *testing.T) {
	repo, err := Open("sqlite3", filepath.Join(t.TempDir(), "open.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()
	items, err := repo.ListInsights(context.Background(), InsightListFilter{OpenOnly: true})
	if err != nil {
		t.Fatalf("list after open: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty store, got %d", len(items))
	}
}

func TestListInsightsOrdersSubSecondTimestamps(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	whole := parseRFC3339(t, "2026-02-09T12:00:00Z")
	half := whole.Add(500 * time.Millisecond)

	if _, err := repo.UpsertInsight(ctx, sampleInsight("later", half)); err != nil {
		t.Fatalf("seed later: %v", err)
	}
	if _, err := repo.UpsertInsight(ctx, sampleInsight("earlier", whole)); err != nil {
		t.Fatalf("seed earlier: %v", err)
	}

	items, err := repo.ListInsights(ctx, InsightListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ExternalTaskID != "earlier" || items[1].ExternalTaskID != "later" {
		t.Fatalf("expected first_seen_at order, got %s then %s", items[0].ExternalTaskID, items[1].ExternalTaskID)
	}
	if !items[1].FirstSeenAt.Equal(half) {
		t.Fatalf("fractional seconds lost: %s", items[1].FirstSeenAt)
	}
}

func TestReadsLegacyTimestampLayout(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	if _, err := repo.UpsertInsight(ctx, sampleInsight("T1", parseRFC3339(t, "2026-02-09T12:00:00Z"))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.DB().Exec(`UPDATE task_insights SET first_seen_at = ?, last_updated_at = ? WHERE external_task_id = 'T1'`,
		"2026-02-09T12:00:00.5Z", "2026-02-09T12:00:01Z"); err != nil {
		t.Fatalf("rewrite timestamps: %v", err)
	}
	got, err := repo.GetInsight(ctx, "T1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if want := parseRFC3339(t, "2026-02-09T12:00:00Z").Add(500 * time.Millisecond); !got.FirstSeenAt.Equal(want) {
		t.Fatalf("unexpected first_seen_at: %s", got.FirstSeenAt)
	}
}

func TestGuidanceSurvivesReanalysis(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := parseRFC3339(t, "2026-02-09T12:00:00Z")
	if _, err := repo.UpsertInsight(ctx, sampleInsight("T1", now)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	help := model.Unstuck{
		Blockers:      []string{"Unclear where to start"},
		TinyFirstStep: "Open the doc",
		DaysOpen:      4,
		GeneratedAt:   now.Add(time.Hour),
	}
	if err := repo.SetUnstuck(ctx, "T1", help); err != nil {
		t.Fatalf("set unstuck: %v", err)
	}
	if err := repo.SetClarifyingQuestions(ctx, "T1", []string{"What does done look like?"}, now); err != nil {
		t.Fatalf("set questions: %v", err)
	}
	if err := repo.SetClarifyingAnswers(ctx, "T1", map[string]string{"What does done look like?": "Sent to Sam"}, now); err != nil {
		t.Fatalf("set answers: %v", err)
	}

	got, err := repo.UpsertInsight(ctx, sampleInsight("T1", now.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("re-analysis: %v", err)
	}
	if got.Unstuck == nil || got.Unstuck.TinyFirstStep != "Open the doc" || got.Unstuck.DaysOpen != 4 {
		t.Fatalf("unstuck help lost: %#v", got.Unstuck)
	}
	if got.Clarification == nil || len(got.Clarification.Questions) != 1 || got.Clarification.Answered() != 1 {
		t.Fatalf("clarification lost: %#v", got.Clarification)
	}

	listed, err := repo.ListInsights(ctx, InsightListFilter{OpenOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Unstuck == nil {
		t.Fatalf("listing must carry guidance: %#v", listed)
	}
}

func TestGuidanceRequiresInsight(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	if err := repo.SetUnstuck(ctx, "ghost", model.Unstuck{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetClarifyingQuestions(ctx, "ghost", []string{"q"}, time.Now()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := repo.UpsertInsight(ctx, sampleInsight("T1", parseRFC3339(t, "2026-02-09T12:00:00Z"))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := repo.GetInsight(ctx, "T1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Unstuck != nil || got.Clarification != nil {
		t.Fatalf("expected no guidance yet: %#v", got)
	}
}

func TestEnergyLogsFilterNewestFirst(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	monday := parseRFC3339(t, "2026-02-09T09:00:00Z")
	logs := []model.EnergyLog{
		{ID: "a", Level: model.EnergyHigh, DayPart: model.DayPartMorning, Weekday: time.Monday, LoggedAt: monday},
		{ID: "b", Level: model.EnergyLow, Focus: model.FocusScattered, DayPart: model.DayPartEvening, Weekday: time.Monday, LoggedAt: monday.Add(10 * time.Hour)},
		{ID: "c", Level: model.EnergyMedium, DayPart: model.DayPartMorning, Weekday: time.Tuesday, LoggedAt: monday.Add(24 * time.Hour)},
	}
	for _, l := range logs {
		if err := repo.AddEnergyLog(ctx, l); err != nil {
			t.Fatalf("add %s: %v", l.ID, err)
		}
	}
	if err := repo.AddEnergyLog(ctx, model.EnergyLog{ID: "bad", Level: "sleepy", LoggedAt: monday}); err == nil {
		t.Fatal("expected invalid level to be rejected")
	}

	all, err := repo.ListEnergyLogs(ctx, EnergyLogFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %#v", all)
	}
	if all[1].Focus != model.FocusScattered || all[1].Weekday != time.Monday {
		t.Fatalf("fields not read back: %#v", all[1])
	}

	mon := time.Monday
	slot, err := repo.ListEnergyLogs(ctx, EnergyLogFilter{DayPart: model.DayPartMorning, Weekday: &mon})
	if err != nil {
		t.Fatalf("list slot: %v", err)
	}
	if len(slot) != 1 || slot[0].ID != "a" {
		t.Fatalf("unexpected slot: %#v", slot)
	}

	recent, err := repo.ListEnergyLogs(ctx, EnergyLogFilter{Since: monday.Add(time.Hour), Limit: 1})
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "c" {
		t.Fatalf("unexpected recent: %#v", recent)
	}
}
