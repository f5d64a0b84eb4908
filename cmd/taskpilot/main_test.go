package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/storage"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TASKPILOT_CONFIG", "")
	t.Setenv("TASKPILOT_DATABASE_DSN", filepath.Join(t.TempDir(), "taskpilot.db"))
	t.Setenv("TASKPILOT_LOG_LEVEL", "error")
	t.Setenv("TASKPILOT_TICKTICK_ACCESS_TOKEN", "")
	t.Setenv("TASKPILOT_OPENROUTER_API_KEY", "")
	t.Setenv("TICKTICK_ACCESS_TOKEN", "")
	t.Setenv("OPENROUTER_API_KEY", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "dashboard", "sync", "analyze", "top", "energy", "stale", "unstuck", "vague", "clarify", "daily", "log-energy", "energy-patterns", "link", "done", "backfill", "migrate"} {
		if !names[want] {
			t.Fatalf("command %q not registered", want)
		}
	}
}

func TestTopOnEmptyStore(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "top", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, "QUADRANT")

	out, err = run(t, "stale", "--json")
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(out))
}

func TestEnergyLogAndSuggestion(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "log-energy", "high", "--focus", "sharp")
	require.NoError(t, err)
	require.Contains(t, out, "logged high energy")

	_, err = run(t, "log-energy", "high", "--focus", "dazed")
	require.ErrorIs(t, err, model.ErrInvalidFocus)

	out, err = run(t, "energy")
	require.NoError(t, err)
	require.Contains(t, out, "suggested energy")

	out, err = run(t, "energy-patterns", "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"samples": 1`)
}

func TestDailyOnEmptyStore(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "daily")
	require.NoError(t, err)
	require.Contains(t, out, "top priorities")
	require.Contains(t, out, "0 open task(s)")
}

func TestUnstuckUnknownTask(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "unstuck", "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = run(t, "clarify", "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestParseAnswers(t *testing.T) {
	qs := []string{"What is done?", "Who is it for?"}
	got, err := parseAnswers([]string{"2=the team", "1= a memo"}, qs)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"What is done?": " a memo", "Who is it for?": "the team"}, got)

	_, err = parseAnswers([]string{"3=x"}, qs)
	require.Error(t, err)
	_, err = parseAnswers([]string{"nothing"}, qs)
	require.Error(t, err)
}

func TestEnergyRejectsUnknownLevel(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "energy", "sleepy")
	require.Error(t, err)
}

func TestLinkWithoutProjectDegrades(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "link", "abc")
	require.NoError(t, err)
	require.Contains(t, out, "(none)")
}

func TestDoneUnknownTask(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "done", "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSyncWithoutTickTick(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "sync")
	require.ErrorIs(t, err, service.ErrNoSource)

	_, err = run(t, "analyze", "abc")
	require.ErrorContains(t, err, "ticktick.access_token")
}

func TestMigrateDirections(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "migrate", "up")
	require.NoError(t, err)
	require.Contains(t, out, "migrations up applied")

	_, err = run(t, "migrate", "down")
	require.NoError(t, err)

	_, err = run(t, "migrate", "sideways")
	require.Error(t, err)
}
