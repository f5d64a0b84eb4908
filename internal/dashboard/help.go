package dashboard

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/taskpilot/internal/commands"
	"github.com/sandeepkv93/taskpilot/internal/views"
)

type KeyMap struct {
	Priority     key.Binding
	Energy       key.Binding
	Stale        key.Binding
	CycleEnergy  key.Binding
	Detail       key.Binding
	Complete     key.Binding
	CompleteSync key.Binding
	Unstuck      key.Binding
	Sync         key.Binding
	Refresh      key.Binding
	Palette      key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Priority:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "priority")),
		Energy:       key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "energy")),
		Stale:        key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "stale")),
		CycleEnergy:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "cycle energy")),
		Detail:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "breakdown")),
		Complete:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
		CompleteSync: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "complete + ticktick")),
		Unstuck:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unstuck help")),
		Sync:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync")),
		Refresh:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Palette:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Priority, k.Energy, k.Stale, k.Palette, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Priority, k.Energy, k.Stale, k.CycleEnergy},
		{k.Detail, k.Complete, k.CompleteSync, k.Unstuck},
		{k.Sync, k.Refresh, k.Palette, k.Help, k.Quit},
	}
}

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	var bindings []string
	for _, group := range m.Keys.FullHelp() {
		for _, b := range group {
			h := b.Help()
			bindings = append(bindings, fmt.Sprintf("- %s: %s", h.Key, h.Desc))
		}
	}
	var cmds []string
	for _, name := range commands.Names() {
		cmds = append(cmds, "- /"+commands.Usage(name))
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Pane:     string(m.Pane),
		Bindings: bindings,
		Commands: cmds,
		HelpView: m.helpModel.View(m.Keys),
	})
}
