// Package clarity flags open tasks whose wording is too thin to act on.
package clarity

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

const DefaultMaxTitleWords = 3

type Reason string

const (
	ReasonShortTitle    Reason = "short_title"
	ReasonNoDescription Reason = "no_description"
	ReasonVagueKeyword  Reason = "vague_keyword"
)

type Policy struct {
	// MaxTitleWords flags titles with this many words or fewer. Zero disables the check.
	MaxTitleWords      int      `koanf:"max_title_words"`
	RequireDescription bool     `koanf:"require_description"`
	Keywords           []string `koanf:"keywords"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxTitleWords:      DefaultMaxTitleWords,
		RequireDescription: true,
		Keywords:           []string{"research", "plan", "think about", "look into"},
	}
}

func (p Policy) Validate() error {
	if p.MaxTitleWords < 0 {
		return errors.New("clarity: max title words must not be negative")
	}
	return nil
}

type Assessment struct {
	Vague   bool     `json:"is_vague"`
	Reasons []Reason `json:"reasons,omitempty"`
}

type Vague struct {
	Insight model.Insight
	Reasons []Reason
}

type Detector struct {
	policy   Policy
	keywords []string
}

func New(p Policy) *Detector {
	d := &Detector{policy: p}
	for _, kw := range p.Keywords {
		if kw = normalize(kw); kw != "" {
			d.keywords = append(d.keywords, kw)
		}
	}
	return d
}

// Assess reports why a title and description read as vague. Keywords match
// whole words at any position, case-insensitively.
func (d *Detector) Assess(title, description string) Assessment {
	var reasons []Reason
	words := strings.Fields(title)
	if d.policy.MaxTitleWords > 0 && len(words) <= d.policy.MaxTitleWords {
		reasons = append(reasons, ReasonShortTitle)
	}
	if d.policy.RequireDescription && strings.TrimSpace(description) == "" {
		reasons = append(reasons, ReasonNoDescription)
	}
	padded := " " + normalize(title) + " "
	for _, kw := range d.keywords {
		if strings.Contains(padded, " "+kw+" ") {
			reasons = append(reasons, ReasonVagueKeyword)
			break
		}
	}
	return Assessment{Vague: len(reasons) > 0, Reasons: reasons}
}

// Detect returns the open vague tasks, most reasons first, then oldest first.
// Tasks whose clarifying questions are all answered are left out.
func (d *Detector) Detect(items []model.Insight) []Vague {
	out := make([]Vague, 0)
	for _, item := range items {
		if item.Completed || answered(item.Clarification) {
			continue
		}
		if a := d.Assess(item.Title, item.Description); a.Vague {
			out = append(out, Vague{Insight: item, Reasons: a.Reasons})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if len(a.Reasons) != len(b.Reasons) {
			return len(a.Reasons) > len(b.Reasons)
		}
		if !a.Insight.FirstSeenAt.Equal(b.Insight.FirstSeenAt) {
			return a.Insight.FirstSeenAt.Before(b.Insight.FirstSeenAt)
		}
		return a.Insight.ExternalTaskID < b.Insight.ExternalTaskID
	})
	return out
}

func answered(c *model.Clarification) bool {
	return c != nil && len(c.Questions) > 0 && c.Answered() == len(c.Questions)
}

func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
