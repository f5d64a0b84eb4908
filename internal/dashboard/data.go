package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/nudge"
	"github.com/sandeepkv93/taskpilot/internal/service"
)

func (m Model) refreshCmd() tea.Cmd {
	return tea.Batch(
		m.loadPriorityCmd(m.cfg.TopLimit),
		m.loadEnergyCmd(m.Energy, m.cfg.EnergyLimit),
		m.loadStaleCmd(),
		m.loadOpenTasksCmd(),
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.cfg.RefreshInterval, func(time.Time) tea.Msg { return RefreshTickMsg{} })
}

func (m Model) loadPriorityCmd(limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callContext()
		defer cancel()
		items, err := m.backend.Top(ctx, limit)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("load priorities: %w", err)}
		}
		return PriorityLoadedMsg{Items: items}
	}
}

func (m Model) loadEnergyCmd(level model.EnergyLevel, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callContext()
		defer cancel()
		items, err := m.backend.MatchEnergy(ctx, level, limit)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("match %s energy: %w", level, err)}
		}
		return EnergyLoadedMsg{Level: level, Items: items}
	}
}

func (m Model) loadStaleCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callContext()
		defer cancel()
		items, err := m.backend.Stale(ctx)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("load stale tasks: %w", err)}
		}
		return StaleLoadedMsg{Items: items}
	}
}

func (m Model) loadOpenTasksCmd() tea.Cmd {
	if m.nudges == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := m.callContext()
		defer cancel()
		items, err := m.backend.OpenTasks(ctx)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("plan nudges: %w", err)}
		}
		return OpenTasksLoadedMsg{Items: items}
	}
}

func (m Model) loadDetailCmd(taskID string) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.fetchDetail(taskID)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		return msg
	}
}

func (m Model) fetchDetail(taskID string) (DetailLoadedMsg, error) {
	ctx, cancel := m.callContext()
	defer cancel()
	in, err := m.backend.Insight(ctx, taskID)
	if err != nil {
		return DetailLoadedMsg{}, fmt.Errorf("load task %s: %w", taskID, err)
	}
	return DetailLoadedMsg{Insight: in, Link: m.backend.ResolveLink(ctx, taskID)}, nil
}

func (m Model) unstuckCmd(taskID string, refresh bool) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.unstuck(taskID, refresh)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		return msg
	}
}

// unstuck is not bounded by the call timeout; generating help waits on the
// reasoning service.
func (m Model) unstuck(taskID string, refresh bool) (UnstuckLoadedMsg, error) {
	help, err := m.backend.Unstuck(context.Background(), taskID, refresh)
	if err != nil {
		return UnstuckLoadedMsg{}, fmt.Errorf("unstuck %s: %w", taskID, err)
	}
	detail, err := m.fetchDetail(taskID)
	if err != nil {
		return UnstuckLoadedMsg{}, err
	}
	detail.Insight.Unstuck = &help
	return UnstuckLoadedMsg{Detail: detail}, nil
}

func (m Model) completeCmd(taskID string, upstream bool) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.complete(taskID, upstream)
		if err != nil {
			return AppErrorMsg{Err: err}
		}
		return msg
	}
}

// complete only fails when the local completion fails.
func (m Model) complete(taskID string, upstream bool) (CompletedMsg, error) {
	ctx, cancel := m.callContext()
	defer cancel()
	err := m.backend.MarkComplete(ctx, taskID, upstream)
	switch {
	case err == nil:
		return CompletedMsg{TaskID: taskID, Upstream: upstream}, nil
	case errors.Is(err, service.ErrUpstream):
		return CompletedMsg{TaskID: taskID, Upstream: upstream, Err: err}, nil
	default:
		return CompletedMsg{}, fmt.Errorf("complete %s: %w", taskID, err)
	}
}

// syncCmd is not bounded by the call timeout; the analyzer's batch timeout
// limits the slow part.
func (m Model) syncCmd() tea.Cmd {
	return func() tea.Msg {
		report, err := m.backend.Sync(context.Background())
		return SyncDoneMsg{Report: report, Err: err}
	}
}

func waitForNudgeCmd(ch <-chan nudge.Nudge) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NudgeMsg{Nudge: n}
	}
}

func (m *Model) planNudges(items []model.Insight) {
	if m.nudges == nil {
		return
	}
	keep := make(map[string]bool, len(items))
	for _, item := range items {
		keep[item.ExternalTaskID] = true
	}
	dropped := m.nudges.Retain(keep)
	plan := nudge.Plan(items, m.backend.StaleThreshold(), m.backend.Now())
	scheduled, err := nudge.Reschedule(m.nudges, plan)
	if err != nil {
		m.logger.Warn("nudge scheduling stopped", zap.Error(err))
	}
	m.logger.Debug("nudges planned", zap.Int("scheduled", scheduled), zap.Int("dropped", dropped))
}
