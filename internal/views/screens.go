package views

import (
	"fmt"
	"strings"
	"time"
)

type PaneData struct {
	Title     string
	Subtitle  string
	TableView string
	Empty     bool
	EmptyText string
}

func RenderPane(data PaneData) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(data.Title))
	if data.Subtitle != "" {
		b.WriteString(" " + dimStyle.Render(data.Subtitle))
	}
	b.WriteString("\n")
	if data.Empty {
		text := data.EmptyText
		if text == "" {
			text = "(nothing here)"
		}
		b.WriteString(dimStyle.Render(text))
		return b.String()
	}
	b.WriteString(data.TableView)
	return b.String()
}

type SubtaskData struct {
	Title   string
	Energy  string
	Minutes int
}

type UnstuckData struct {
	DaysOpen      int
	TinyStep      string
	Blockers      []string
	Questions     []string
	Reframe       string
	Encouragement string
}

type DetailData struct {
	ID            string
	Title         string
	Description   string
	QuadrantLabel string
	Score         float64
	Explanation   string
	Energy        string
	Minutes       int
	DueAt         *time.Time
	FirstSeenAt   time.Time
	FirstStep     string
	Subtasks      []SubtaskData
	Unstuck       *UnstuckData
	LinkURL       string
	LinkSource    string
}

// DetailMarkdown builds the breakdown document shown beside the task tables.
func DetailMarkdown(d DetailData) string {
	if strings.TrimSpace(d.ID) == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", d.Title)
	fmt.Fprintf(&b, "**%s** · score %.1f · %s energy · ~%dm\n\n", d.QuadrantLabel, d.Score, d.Energy, d.Minutes)
	if d.DueAt != nil {
		fmt.Fprintf(&b, "Due %s\n\n", d.DueAt.Local().Format("Mon Jan 2 15:04"))
	}
	if d.Explanation != "" {
		fmt.Fprintf(&b, "_%s_\n\n", d.Explanation)
	}
	if d.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", d.Description)
	}
	if d.FirstStep != "" {
		fmt.Fprintf(&b, "**First step:** %s\n\n", d.FirstStep)
	}
	if len(d.Subtasks) > 0 {
		b.WriteString("### Subtasks\n\n")
		for _, st := range d.Subtasks {
			fmt.Fprintf(&b, "- %s (%s, %dm)\n", st.Title, st.Energy, st.Minutes)
		}
		b.WriteString("\n")
	}
	if u := d.Unstuck; u != nil {
		writeUnstuck(&b, *u)
	}
	if d.LinkURL != "" {
		fmt.Fprintf(&b, "[Open in TickTick](%s) _(%s)_\n", d.LinkURL, d.LinkSource)
	}
	return b.String()
}

func writeUnstuck(b *strings.Builder, u UnstuckData) {
	fmt.Fprintf(b, "### Stuck for %d day(s)\n\n", u.DaysOpen)
	if u.TinyStep != "" {
		fmt.Fprintf(b, "**Tiny step:** %s\n\n", u.TinyStep)
	}
	if len(u.Blockers) > 0 {
		b.WriteString("Likely blockers:\n\n")
		for _, s := range u.Blockers {
			fmt.Fprintf(b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(u.Questions) > 0 {
		b.WriteString("Ask yourself:\n\n")
		for _, q := range u.Questions {
			fmt.Fprintf(b, "- %s\n", q)
		}
		b.WriteString("\n")
	}
	if u.Reframe != "" {
		fmt.Fprintf(b, "_%s_\n\n", u.Reframe)
	}
	if u.Encouragement != "" {
		fmt.Fprintf(b, "%s\n\n", u.Encouragement)
	}
}

func RenderDetail(d DetailData) string {
	md := DetailMarkdown(d)
	if md == "" {
		return "detail:\n(no selection)"
	}
	return RenderMarkdown(md)
}

func RenderCommandPalette(active bool, inputView string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: %s", inputView)
}

func RenderNotification(level string, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("notification: [%s] %s", strings.ToUpper(level), body)
}

type SyncData struct {
	Running   bool
	Spinner   string
	Listed    int
	Refreshed int
	Completed int
	Analyzed  int
	Failed    int
	TimedOut  bool
	At        time.Time
}

func RenderSyncLine(d SyncData) string {
	if d.Running {
		return "sync: " + d.Spinner + " running"
	}
	if d.At.IsZero() {
		return ""
	}
	line := fmt.Sprintf("last sync %s: listed %d, refreshed %d, completed %d, analyzed %d, failed %d",
		d.At.Local().Format("15:04:05"), d.Listed, d.Refreshed, d.Completed, d.Analyzed, d.Failed)
	if d.TimedOut {
		line += " (batch timed out)"
	}
	return line
}

type HelpPanelData struct {
	Pane     string
	Bindings []string
	Commands []string
	HelpView string
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help (%s):\n%s\ncommands:\n%s\n%s",
		strings.ToLower(data.Pane),
		strings.Join(data.Bindings, "\n"),
		strings.Join(data.Commands, "\n"),
		data.HelpView,
	)
}
