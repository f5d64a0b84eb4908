package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/views"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refreshCmd(), m.tickCmd()}
	if m.nudges != nil {
		cmds = append(cmds, waitForNudgeCmd(m.nudges.C()))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.syncTable()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.Palette.Active {
			if key.Matches(typed, m.Keys.Help) {
				m.HelpVisible = !m.HelpVisible
				return m, nil
			}
			return m.handlePaletteKey(typed)
		}
		return m.handleKey(typed)
	case spinner.TickMsg:
		if m.Sync.Running {
			var cmd tea.Cmd
			m.syncSpinner, cmd = m.syncSpinner.Update(typed)
			return m, cmd
		}
	case SwitchPaneMsg:
		if isKnownPane(typed.Pane) {
			m.Pane = typed.Pane
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		m.notify("Status", typed.Text, levelFromError(typed.IsError))
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.notify("Error", typed.Err.Error(), "error")
			m.logger.Warn("dashboard action failed", zap.Error(typed.Err))
		}
		return m, nil
	case PriorityLoadedMsg:
		m.Priority = typed.Items
		return m, nil
	case EnergyLoadedMsg:
		m.Energy = typed.Level
		m.Matches = typed.Items
		return m, nil
	case StaleLoadedMsg:
		m.Stale = typed.Items
		return m, nil
	case OpenTasksLoadedMsg:
		m.planNudges(typed.Items)
		return m, nil
	case DetailLoadedMsg:
		in := typed.Insight
		m.Detail = &in
		m.DetailLink = typed.Link
		return m, nil
	case UnstuckLoadedMsg:
		in := typed.Detail.Insight
		m.Detail = &in
		m.DetailLink = typed.Detail.Link
		for i := range m.Stale {
			if m.Stale[i].Insight.ExternalTaskID == in.ExternalTaskID {
				m.Stale[i].Insight.Unstuck = in.Unstuck
			}
		}
		m.Status = StatusBar{Text: "unstuck help for " + in.Title}
		return m, nil
	case CompletedMsg:
		if m.nudges != nil {
			m.nudges.Cancel(typed.TaskID)
		}
		if m.Detail != nil && m.Detail.ExternalTaskID == typed.TaskID {
			m.Detail = nil
		}
		m.Status = StatusBar{Text: completedText(typed), IsError: typed.Err != nil}
		m.notify("Completed", m.Status.Text, levelFromError(m.Status.IsError))
		return m, m.refreshCmd()
	case SyncDoneMsg:
		m.Sync.Running = false
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: "sync failed: " + typed.Err.Error(), IsError: true}
			m.notify("Sync", m.Status.Text, "error")
			return m, nil
		}
		report := typed.Report
		m.Sync.Last = &report
		m.Sync.At = m.backend.Now()
		m.Status = StatusBar{Text: syncText(report), IsError: report.Analysis.Failed > 0 || report.Analysis.TimedOut}
		m.notify("Sync", m.Status.Text, levelFromError(m.Status.IsError))
		return m, m.refreshCmd()
	case CommandDoneMsg:
		var follow tea.Cmd
		if typed.Follow != nil {
			m, follow = m.update(typed.Follow)
		}
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.notify("Command Failed", typed.Err.Error(), "error")
		} else if typed.Message != "" && !setsOwnStatus(typed.Follow) {
			m.Status = StatusBar{Text: typed.Message}
			m.notify("Command", typed.Message, "info")
		}
		return m, follow
	case RefreshTickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())
	case NudgeMsg:
		title, body := nudgeText(typed.Nudge)
		m.notify(title, body, "warn")
		m.Status = StatusBar{Text: body}
		var next tea.Cmd
		if m.nudges != nil {
			next = waitForNudgeCmd(m.nudges.C())
		}
		return m, tea.Batch(m.loadStaleCmd(), next)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Palette):
		m.Palette.Active = true
		m.Palette.Input = ""
		m.commandInput.SetValue("")
		m.commandInput.Focus()
		m.Status = StatusBar{Text: "command palette active"}
		return m, nil
	case key.Matches(msg, m.Keys.Help):
		m.HelpVisible = !m.HelpVisible
		return m, nil
	case key.Matches(msg, m.Keys.Priority):
		m.Pane = PanePriority
		return m, nil
	case key.Matches(msg, m.Keys.Energy):
		m.Pane = PaneEnergy
		return m, nil
	case key.Matches(msg, m.Keys.Stale):
		m.Pane = PaneStale
		return m, nil
	case key.Matches(msg, m.Keys.CycleEnergy):
		m.Pane = PaneEnergy
		m.Energy = nextEnergy(m.Energy)
		return m, m.loadEnergyCmd(m.Energy, m.cfg.EnergyLimit)
	case key.Matches(msg, m.Keys.Refresh):
		m.Status = StatusBar{Text: "refreshing"}
		return m, m.refreshCmd()
	case key.Matches(msg, m.Keys.Sync):
		if m.Sync.Running {
			return m, nil
		}
		m.Sync.Running = true
		m.Status = StatusBar{Text: "sync started"}
		return m, tea.Batch(m.syncCmd(), m.syncSpinner.Tick)
	case key.Matches(msg, m.Keys.Detail):
		if id := m.SelectedTaskID(); id != "" {
			return m, m.loadDetailCmd(id)
		}
		return m, nil
	case key.Matches(msg, m.Keys.Unstuck):
		id := m.SelectedTaskID()
		if m.Pane != PaneStale || id == "" {
			m.Status = StatusBar{Text: "select a stale task first", IsError: true}
			return m, nil
		}
		m.Status = StatusBar{Text: "asking for unstuck help"}
		return m, m.unstuckCmd(id, false)
	case key.Matches(msg, m.Keys.Complete), key.Matches(msg, m.Keys.CompleteSync):
		id := m.SelectedTaskID()
		if id == "" {
			m.Status = StatusBar{Text: "no task selected", IsError: true}
			return m, nil
		}
		return m, m.completeCmd(id, key.Matches(msg, m.Keys.CompleteSync))
	}

	var cmd tea.Cmd
	m.taskTable, cmd = m.taskTable.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	right := m.renderDetail()
	if palette := views.RenderCommandPalette(m.Palette.Active, m.commandInput.View()); palette != "" {
		right = palette + "\n\n" + right
	}
	if h := m.renderHelpIfVisible(); h != "" {
		right += "\n\n" + h
	}

	var notes []string
	if line := m.renderSyncLine(); line != "" {
		notes = append(notes, line)
	}
	if len(m.Notifications) > 0 {
		n := m.Notifications[len(m.Notifications)-1]
		notes = append(notes, views.RenderNotification(n.Level, n.Body))
	}

	return views.RenderApp(views.AppData{
		Header:       fmt.Sprintf("taskpilot | pane: %s | energy: %s | selected: %s", m.Pane, m.Energy, m.SelectedTaskID()),
		LeftPane:     m.renderPane(),
		RightPane:    right,
		StatusLine:   status,
		StatusError:  m.Status.IsError,
		Notification: strings.Join(notes, "\n"),
		Footer:       m.helpModel.ShortHelpView(m.Keys.ShortHelp()),
	})
}

func (m Model) renderSyncLine() string {
	d := views.SyncData{Running: m.Sync.Running, Spinner: m.syncSpinner.View(), At: m.Sync.At}
	if r := m.Sync.Last; r != nil {
		d.Listed = r.Listed
		d.Refreshed = r.Refreshed
		d.Completed = r.Completed
		d.Analyzed = r.Analysis.Succeeded
		d.Failed = r.Analysis.Failed
		d.TimedOut = r.Analysis.TimedOut
	}
	return views.RenderSyncLine(d)
}

func syncText(r service.SyncReport) string {
	text := fmt.Sprintf("sync complete: %d listed, %d analyzed, %d failed", r.Listed, r.Analysis.Succeeded, r.Analysis.Failed)
	if r.Analysis.TimedOut {
		text += ", batch timed out"
	}
	return text
}

func setsOwnStatus(msg tea.Msg) bool {
	switch msg.(type) {
	case CompletedMsg, SyncDoneMsg, UnstuckLoadedMsg:
		return true
	default:
		return false
	}
}

func nextEnergy(level model.EnergyLevel) model.EnergyLevel {
	switch level {
	case model.EnergyLow:
		return model.EnergyMedium
	case model.EnergyMedium:
		return model.EnergyHigh
	default:
		return model.EnergyLow
	}
}

func isKnownPane(p Pane) bool {
	switch p {
	case PanePriority, PaneEnergy, PaneStale:
		return true
	default:
		return false
	}
}

// durationLabel renders an open-for duration as days and hours.
func durationLabel(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	if days == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dd %dh", days, hours)
}
