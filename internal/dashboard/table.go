package dashboard

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/views"
)

func priorityColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Quadrant", Width: 9},
		{Title: "Score", Width: 6},
		{Title: "Energy", Width: 7},
		{Title: "Est", Width: 5},
		{Title: "Title", Width: 28},
	}
}

func energyColumns() []table.Column {
	return []table.Column{
		{Title: "Fit", Width: 6},
		{Title: "Energy", Width: 7},
		{Title: "Score", Width: 6},
		{Title: "Est", Width: 5},
		{Title: "Title", Width: 36},
	}
}

func staleColumns() []table.Column {
	return []table.Column{
		{Title: "Open", Width: 8},
		{Title: "Since", Width: 12},
		{Title: "Quadrant", Width: 9},
		{Title: "Title", Width: 28},
		{Title: "Tiny step", Width: 24},
	}
}

// syncTable rebuilds the table for the current pane and keeps the cursor in range.
func (m *Model) syncTable() {
	var cols []table.Column
	var rows []table.Row
	var ids []string

	switch m.Pane {
	case PaneEnergy:
		cols = energyColumns()
		for _, match := range m.Matches {
			in := match.Insight
			fit := "exact"
			if !match.Exact() {
				fit = "±" + strconv.Itoa(match.Distance)
			}
			rows = append(rows, table.Row{fit, string(in.EnergyLevel), score(match.Result.Score), minutes(in), in.Title})
			ids = append(ids, in.ExternalTaskID)
		}
	case PaneStale:
		cols = staleColumns()
		for _, st := range m.Stale {
			in := st.Insight
			tiny := ""
			if in.Unstuck != nil {
				tiny = in.Unstuck.TinyFirstStep
			}
			rows = append(rows, table.Row{durationLabel(st.OpenFor), in.FirstSeenAt.Local().Format("Jan 2 15:04"), string(in.Quadrant), in.Title, tiny})
			ids = append(ids, in.ExternalTaskID)
		}
	default:
		cols = priorityColumns()
		for i, sc := range m.Priority {
			in := sc.Insight
			rows = append(rows, table.Row{strconv.Itoa(i + 1), string(sc.Result.Quadrant), score(sc.Result.Score), string(in.EnergyLevel), minutes(in), in.Title})
			ids = append(ids, in.ExternalTaskID)
		}
	}

	if m.tablePane != m.Pane || len(m.taskTable.Columns()) == 0 {
		// Clear rows first so the renderer never sees more columns than cells.
		m.taskTable.SetRows(nil)
		m.taskTable.SetColumns(cols)
		m.tablePane = m.Pane
	}
	m.taskTable.SetRows(rows)
	if c := m.taskTable.Cursor(); c >= len(rows) {
		m.taskTable.SetCursor(max(len(rows)-1, 0))
	}
	m.rowIDs = ids
}

func (m Model) renderPane() string {
	data := views.PaneData{
		Title:     string(m.Pane),
		TableView: m.taskTable.View(),
		Empty:     len(m.rowIDs) == 0,
	}
	switch m.Pane {
	case PaneEnergy:
		data.Subtitle = fmt.Sprintf("%s energy", m.Energy)
		data.EmptyText = "no open tasks match this energy level"
	case PaneStale:
		data.Subtitle = fmt.Sprintf("open longer than %s", durationLabel(m.backend.StaleThreshold()))
		data.Subtitle += " · u for unstuck help"
		data.EmptyText = "nothing stale"
	default:
		data.Subtitle = "highest score first"
		data.EmptyText = "no open tasks; press s to sync"
	}
	return views.RenderPane(data)
}

func (m Model) renderDetail() string {
	if m.Detail == nil {
		return views.RenderDetail(views.DetailData{})
	}
	in := m.Detail
	var unstuck *views.UnstuckData
	if u := in.Unstuck; u != nil {
		unstuck = &views.UnstuckData{
			DaysOpen:      u.DaysOpen,
			TinyStep:      u.TinyFirstStep,
			Blockers:      u.Blockers,
			Questions:     u.Questions,
			Reframe:       u.Reframe,
			Encouragement: u.Encouragement,
		}
	}
	subtasks := make([]views.SubtaskData, 0, len(in.Subtasks))
	for _, st := range in.Subtasks {
		subtasks = append(subtasks, views.SubtaskData{Title: st.Title, Energy: string(st.Energy), Minutes: st.EstimatedMinutes})
	}
	return views.RenderDetail(views.DetailData{
		ID:            in.ExternalTaskID,
		Title:         in.Title,
		Description:   in.Description,
		QuadrantLabel: in.Quadrant.Label(),
		Score:         in.PriorityScore,
		Energy:        string(in.EnergyLevel),
		Minutes:       in.EstimatedMinutes,
		DueAt:         in.DueAt,
		FirstSeenAt:   in.FirstSeenAt,
		FirstStep:     in.FirstStep,
		Subtasks:      subtasks,
		Unstuck:       unstuck,
		LinkURL:       m.DetailLink.URL,
		LinkSource:    string(m.DetailLink.Source),
	})
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func minutes(in model.Insight) string {
	return strconv.Itoa(in.EstimatedMinutes) + "m"
}
