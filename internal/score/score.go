// Package score turns suspicious events and typing patterns into a session
// integrity score, and classifies how deliberated a single quiz response
// appears. The score is the only number shown to guardians, so every path
// through this package clamps to [0,100].
package score

import (
	"integrityd/internal/detect"
	"integrityd/internal/typing"
)

// StartingScore is the integrity score every session begins with.
const StartingScore = 100

// Penalties maps event severity to score deductions.
type Penalties struct {
	Low    int `toml:"low" json:"low" yaml:"low"`
	Medium int `toml:"medium" json:"medium" yaml:"medium"`
	High   int `toml:"high" json:"high" yaml:"high"`
}

// DefaultPenalties returns the calibrated severity deductions.
func DefaultPenalties() Penalties {
	return Penalties{Low: 5, Medium: 15, High: 30}
}

// Natural-pattern bonus parameters. A pattern qualifies as natural when its
// speed sits in a plausible human band and its timing shows organic jitter.
const (
	NaturalMinSpeed    = 5
	NaturalMaxSpeed    = 60
	NaturalMinVariance = 50.0

	BonusPerPattern    = 2
	BonusPatternCap    = 5
)

// Scorer applies penalties and bonuses. It holds no per-session state.
type Scorer struct {
	penalties Penalties
}

// New returns a Scorer with the given penalty table. Zero-value penalties
// fall back to the defaults.
func New(p Penalties) *Scorer {
	if p == (Penalties{}) {
		p = DefaultPenalties()
	}
	return &Scorer{penalties: p}
}

// Penalty returns the deduction for a severity. Unknown severities deduct
// the medium penalty rather than nothing, so a malformed event can never
// silently inflate a score.
func (s *Scorer) Penalty(sev detect.Severity) int {
	switch sev {
	case detect.SeverityLow:
		return s.penalties.Low
	case detect.SeverityMedium:
		return s.penalties.Medium
	case detect.SeverityHigh:
		return s.penalties.High
	default:
		return s.penalties.Medium
	}
}

// Apply updates a running score with one event, clamping at zero. Events
// already marked as false positives leave the score untouched.
func (s *Scorer) Apply(current int, ev detect.Event) int {
	if ev.FalsePositive {
		return current
	}
	next := current - s.Penalty(ev.Severity)
	if next < 0 {
		return 0
	}
	return next
}

// Finalize recomputes the score from scratch over the full event log and
// pattern history. It deliberately ignores any running total so that
// incremental drift or replayed events can never double-count: the event
// log is the source of truth.
func (s *Scorer) Finalize(events []detect.Event, patterns []typing.Pattern) int {
	score := StartingScore
	for _, ev := range events {
		if ev.FalsePositive {
			continue
		}
		score -= s.Penalty(ev.Severity)
	}

	natural := 0
	for _, p := range patterns {
		if isNatural(p) {
			natural++
		}
	}
	if natural > BonusPatternCap {
		natural = BonusPatternCap
	}
	score += natural * BonusPerPattern

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func isNatural(p typing.Pattern) bool {
	return p.AverageSpeed > NaturalMinSpeed &&
		p.AverageSpeed < NaturalMaxSpeed &&
		typing.Variance(p.KeystrokeIntervals) > NaturalMinVariance
}

// Confidence classifies how deliberated a single answer appears. It shapes
// feedback tone only and never contributes to the integrity score.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Response-confidence parameters.
const (
	RushedTimeSec       = 15.0
	DeliberateTimeSec   = 60.0
	ThinkingPauseMs     = 3000.0
	DeliberateRevisions = 3
)

// ClassifyConfidence derives a response's confidence from how long it took,
// how often it was revised, and whether the student stopped to think.
func ClassifyConfidence(timeSpentSec float64, revisions int, intervals []float64) Confidence {
	paused := typing.HasPauseOver(intervals, ThinkingPauseMs)

	if timeSpentSec < RushedTimeSec && revisions == 0 && !paused {
		return ConfidenceLow
	}
	if paused || revisions > DeliberateRevisions || timeSpentSec > DeliberateTimeSec {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}
