// Package dashboard is the terminal UI: priority, energy and stale panes over
// the task service, a slash-command palette and nudge notifications.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"go.uber.org/zap"

	"github.com/sandeepkv93/taskpilot/internal/links"
	"github.com/sandeepkv93/taskpilot/internal/matcher"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/nudge"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
)

// Backend is the slice of the task service the dashboard reads and drives.
type Backend interface {
	Now() time.Time
	StaleThreshold() time.Duration
	Top(ctx context.Context, limit int) ([]scoring.Scored, error)
	MatchEnergy(ctx context.Context, level model.EnergyLevel, limit int) ([]matcher.Match, error)
	Stale(ctx context.Context) ([]staleness.Stale, error)
	OpenTasks(ctx context.Context) ([]model.Insight, error)
	Insight(ctx context.Context, taskID string) (model.Insight, error)
	ResolveLink(ctx context.Context, taskID string) links.Link
	MarkComplete(ctx context.Context, taskID string, upstream bool) error
	Unstuck(ctx context.Context, taskID string, refresh bool) (model.Unstuck, error)
	Sync(ctx context.Context) (service.SyncReport, error)
}

var _ Backend = (*service.Service)(nil)

type Pane string

const (
	PanePriority Pane = "Priority"
	PaneEnergy   Pane = "Energy"
	PaneStale    Pane = "Stale"
)

type StatusBar struct {
	Text    string
	IsError bool
}

type PaletteState struct {
	Active bool
	Input  string
}

type SyncState struct {
	Running bool
	Last    *service.SyncReport
	At      time.Time
}

type Config struct {
	RefreshInterval      time.Duration `koanf:"refresh_interval"`
	NudgeBuffer          int           `koanf:"nudge_buffer"`
	DesktopNotifications bool          `koanf:"desktop_notifications"`
	CallTimeout          time.Duration `koanf:"call_timeout"`
	TopLimit             int           `koanf:"top_limit"`
	EnergyLimit          int           `koanf:"energy_limit"`
}

func DefaultConfig() Config {
	return Config{
		RefreshInterval: time.Minute,
		NudgeBuffer:     64,
		CallTimeout:     10 * time.Second,
		TopLimit:        service.DefaultTopLimit,
		EnergyLimit:     service.DefaultEnergyLimit,
	}
}

type Model struct {
	Pane          Pane
	Energy        model.EnergyLevel
	Priority      []scoring.Scored
	Matches       []matcher.Match
	Stale         []staleness.Stale
	Detail        *model.Insight
	DetailLink    links.Link
	Palette       PaletteState
	Sync          SyncState
	HelpVisible   bool
	Notifications []Notification
	Status        StatusBar
	Keys          KeyMap
	Quitting      bool
	LastError     error

	cfg      Config
	backend  Backend
	nudges   *nudge.Engine
	notifier DesktopNotifier
	logger   *zap.Logger

	rowIDs       []string
	tablePane    Pane
	taskTable    table.Model
	commandInput textinput.Model
	syncSpinner  spinner.Model
	helpModel    help.Model
}

type Option func(*Model)

func WithNudges(engine *nudge.Engine) Option {
	return func(m *Model) { m.nudges = engine }
}

func WithNotifier(n DesktopNotifier) Option {
	return func(m *Model) {
		if n != nil {
			m.notifier = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func New(backend Backend, cfg Config, opts ...Option) Model {
	def := DefaultConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.TopLimit <= 0 {
		cfg.TopLimit = def.TopLimit
	}
	if cfg.EnergyLimit <= 0 {
		cfg.EnergyLimit = def.EnergyLimit
	}
	m := Model{
		Pane:     PanePriority,
		Energy:   model.EnergyMedium,
		Keys:     DefaultKeyMap(),
		cfg:      cfg,
		backend:  backend,
		notifier: NoopDesktopNotifier{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.initBubbleComponents()
	m.syncTable()
	return m
}

func (m *Model) initBubbleComponents() {
	m.taskTable = table.New(table.WithFocused(true), table.WithHeight(12))

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48

	m.syncSpinner = spinner.New()
	m.syncSpinner.Spinner = spinner.Dot

	m.helpModel = help.New()
}

// SelectedTaskID is the task under the table cursor, if any.
func (m Model) SelectedTaskID() string {
	i := m.taskTable.Cursor()
	if i < 0 || i >= len(m.rowIDs) {
		return ""
	}
	return m.rowIDs[i]
}

func (m Model) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.CallTimeout)
}
