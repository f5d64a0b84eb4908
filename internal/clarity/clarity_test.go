package clarity

import (
	"testing"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssess(t *testing.T) {
	d := New(DefaultPolicy())
	tests := []struct {
		name        string
		title       string
		description string
		want        []Reason
	}{
		{"clear", "Email the Q3 report to finance", "attach the spreadsheet", nil},
		{"short title", "Taxes", "gather receipts", []Reason{ReasonShortTitle}},
		{"no description", "Email the Q3 report to finance", " ", []Reason{ReasonNoDescription}},
		{"keyword", "Look into the flaky deploy job", "ci only", []Reason{ReasonVagueKeyword}},
		{"keyword ignores case and punctuation", "Migrate billing: RESEARCH options", "x", []Reason{ReasonVagueKeyword}},
		{"keyword needs whole words", "Replant the tomatoes in the garden", "x", nil},
		{"everything", "Plan trip", "", []Reason{ReasonShortTitle, ReasonNoDescription, ReasonVagueKeyword}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Assess(tt.title, tt.description)
			assert.Equal(t, tt.want, got.Reasons)
			assert.Equal(t, len(tt.want) > 0, got.Vague)
		})
	}
}

func TestPolicyKnobs(t *testing.T) {
	d := New(Policy{MaxTitleWords: 0, RequireDescription: false})
	assert.False(t, d.Assess("Plan", "").Vague)
	require.Error(t, Policy{MaxTitleWords: -1}.Validate())
	require.NoError(t, DefaultPolicy().Validate())
}

func TestDetectOrdersAndSkips(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []model.Insight{
		{ExternalTaskID: "one-reason", Title: "Email the Q3 report to finance", FirstSeenAt: base},
		{ExternalTaskID: "three", Title: "Plan trip", FirstSeenAt: base.Add(time.Hour)},
		{ExternalTaskID: "older-one", Title: "Call the bank about fees", FirstSeenAt: base.Add(-time.Hour)},
		{ExternalTaskID: "done", Title: "Plan", Completed: true},
		{ExternalTaskID: "clear", Title: "Email the Q3 report to finance", Description: "attach it"},
		{
			ExternalTaskID: "answered",
			Title:          "Plan party",
			Clarification: &model.Clarification{
				Questions: []string{"When?"},
				Answers:   map[string]string{"When?": "Saturday"},
			},
		},
		{
			ExternalTaskID: "half-answered",
			Title:          "Plan party",
			FirstSeenAt:    base.Add(2 * time.Hour),
			Clarification: &model.Clarification{
				Questions: []string{"When?", "Who?"},
				Answers:   map[string]string{"When?": "Saturday"},
			},
		},
	}

	got := New(DefaultPolicy()).Detect(items)
	ids := make([]string, 0, len(got))
	for _, v := range got {
		ids = append(ids, v.Insight.ExternalTaskID)
	}
	assert.Equal(t, []string{"three", "half-answered", "older-one", "one-reason"}, ids)
}
