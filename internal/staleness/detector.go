package staleness

import (
	"errors"
	"sort"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

const DefaultThreshold = 72 * time.Hour

type Policy struct {
	Threshold time.Duration `koanf:"threshold"`
}

func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold}
}

func (p Policy) Validate() error {
	if p.Threshold <= 0 {
		return errors.New("staleness: threshold must be positive")
	}
	return nil
}

type Stale struct {
	Insight model.Insight
	OpenFor time.Duration
}

// Days is the number of whole days the task has been open.
func (s Stale) Days() int {
	return int(s.OpenFor / (24 * time.Hour))
}

// Detector flags open tasks first seen longer ago than the threshold. It never
// mutates the insights it inspects.
type Detector struct {
	policy Policy
}

func New(p Policy) *Detector {
	return &Detector{policy: p}
}

func (d *Detector) Threshold() time.Duration {
	return d.policy.Threshold
}

func (d *Detector) IsStale(in model.Insight, now time.Time) bool {
	if in.Completed || in.FirstSeenAt.IsZero() {
		return false
	}
	return now.Sub(in.FirstSeenAt) > d.policy.Threshold
}

// StaleAt is the first instant strictly past firstSeen+threshold, the first
// at which IsStale turns true.
func StaleAt(firstSeen time.Time, threshold time.Duration) time.Time {
	return firstSeen.Add(threshold).Add(time.Nanosecond)
}

// Detect returns the stale subset, longest-open first.
func (d *Detector) Detect(items []model.Insight, now time.Time) []Stale {
	out := make([]Stale, 0)
	for _, item := range items {
		if !d.IsStale(item, now) {
			continue
		}
		out = append(out, Stale{Insight: item, OpenFor: now.Sub(item.FirstSeenAt)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OpenFor != out[j].OpenFor {
			return out[i].OpenFor > out[j].OpenFor
		}
		return out[i].Insight.ExternalTaskID < out[j].Insight.ExternalTaskID
	})
	return out
}
