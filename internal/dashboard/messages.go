package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskpilot/internal/links"
	"github.com/sandeepkv93/taskpilot/internal/matcher"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/nudge"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
)

type SwitchPaneMsg struct {
	Pane Pane
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

type PriorityLoadedMsg struct {
	Items []scoring.Scored
}

type EnergyLoadedMsg struct {
	Level model.EnergyLevel
	Items []matcher.Match
}

type StaleLoadedMsg struct {
	Items []staleness.Stale
}

type OpenTasksLoadedMsg struct {
	Items []model.Insight
}

type DetailLoadedMsg struct {
	Insight model.Insight
	Link    links.Link
}

// UnstuckLoadedMsg carries a stale task's detail with its unstuck help attached.
type UnstuckLoadedMsg struct {
	Detail DetailLoadedMsg
}

type CompletedMsg struct {
	TaskID   string
	Upstream bool
	// Err is set when the TickTick update failed after the local completion.
	Err error
}

type SyncDoneMsg struct {
	Report service.SyncReport
	Err    error
}

type RefreshTickMsg struct{}

type NudgeMsg struct {
	Nudge nudge.Nudge
}

// CommandDoneMsg carries a palette command's outcome and the data it loaded.
type CommandDoneMsg struct {
	Message string
	Err     error
	Follow  tea.Msg
}
