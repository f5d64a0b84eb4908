package dashboard

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskpilot/internal/commands"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	default:
		if msg.Type == tea.KeyRunes {
			m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
			m.Palette.Input = m.commandInput.Value()
			return m, nil
		}
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		m.Palette.Input = m.commandInput.Value()
		return m, cmd
	}
}

func (m *Model) closePalette() {
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

// executePaletteCommand parses in place and runs the command off the UI loop.
func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	run := m.runCommandCmd(cmd)
	if cmd.Type == commands.TypeSync {
		if m.Sync.Running {
			m.Status = StatusBar{Text: "sync already running"}
			return m, nil
		}
		m.Sync.Running = true
		return m, tea.Batch(run, m.syncSpinner.Tick)
	}
	return m, run
}

func (m Model) runCommandCmd(cmd commands.Command) tea.Cmd {
	return func() tea.Msg {
		var follow tea.Msg
		res, err := commands.Execute(context.Background(), cmd, m.commandHandlers(&follow))
		return CommandDoneMsg{Message: res.Message, Err: err, Follow: follow}
	}
}

func (m Model) commandHandlers(follow *tea.Msg) commands.Handlers {
	return commands.Handlers{
		Top: func(ctx context.Context, a commands.TopArgs) (commands.Result, error) {
			limit := a.Limit
			if limit == 0 {
				limit = m.cfg.TopLimit
			}
			ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
			defer cancel()
			items, err := m.backend.Top(ctx, limit)
			if err != nil {
				return commands.Result{}, err
			}
			*follow = PriorityLoadedMsg{Items: items}
			return commands.Result{Message: fmt.Sprintf("top %d task(s)", len(items))}, nil
		},
		Energy: func(ctx context.Context, a commands.EnergyArgs) (commands.Result, error) {
			limit := a.Limit
			if limit == 0 {
				limit = m.cfg.EnergyLimit
			}
			ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
			defer cancel()
			items, err := m.backend.MatchEnergy(ctx, a.Level, limit)
			if err != nil {
				return commands.Result{}, err
			}
			*follow = EnergyLoadedMsg{Level: a.Level, Items: items}
			return commands.Result{Message: fmt.Sprintf("%d task(s) for %s energy", len(items), a.Level)}, nil
		},
		Stale: func(ctx context.Context) (commands.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
			defer cancel()
			items, err := m.backend.Stale(ctx)
			if err != nil {
				return commands.Result{}, err
			}
			*follow = StaleLoadedMsg{Items: items}
			return commands.Result{Message: fmt.Sprintf("%d stale task(s)", len(items))}, nil
		},
		Done: func(_ context.Context, a commands.DoneArgs) (commands.Result, error) {
			done, err := m.complete(a.TaskID, a.Upstream)
			if err != nil {
				return commands.Result{}, err
			}
			*follow = done
			return commands.Result{Message: completedText(done)}, nil
		},
		Link: func(ctx context.Context, a commands.LinkArgs) (commands.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
			defer cancel()
			link := m.backend.ResolveLink(ctx, a.TaskID)
			return commands.Result{Message: fmt.Sprintf("%s (%s)", link.URL, link.Source)}, nil
		},
		Show: func(_ context.Context, a commands.ShowArgs) (commands.Result, error) {
			detail, err := m.fetchDetail(a.TaskID)
			if err != nil {
				return commands.Result{}, err
			}
			*follow = detail
			return commands.Result{Message: "showing " + detail.Insight.Title}, nil
		},
		Unstuck: func(_ context.Context, a commands.UnstuckArgs) (commands.Result, error) {
			loaded, err := m.unstuck(a.TaskID, a.Refresh)
			if err != nil {
				return commands.Result{}, err
			}
			*follow = loaded
			return commands.Result{Message: "unstuck help for " + loaded.Detail.Insight.Title}, nil
		},
		Sync: func(ctx context.Context) (commands.Result, error) {
			report, err := m.backend.Sync(ctx)
			*follow = SyncDoneMsg{Report: report, Err: err}
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: syncText(report)}, nil
		},
	}
}

func completedText(c CompletedMsg) string {
	switch {
	case c.Err != nil:
		return fmt.Sprintf("completed %s locally; ticktick update failed: %v", c.TaskID, c.Err)
	case c.Upstream:
		return fmt.Sprintf("completed %s here and in ticktick", c.TaskID)
	default:
		return fmt.Sprintf("completed %s", c.TaskID)
	}
}
