// Package detect implements the stateless rule engine that flags suspicious
// interaction patterns during a learning activity. Rules are calibrated per
// grade so that slow or uneven typing from younger students is never treated
// as an anomaly.
package detect

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"integrityd/internal/typing"
)

// EventType categorizes the kind of suspicious activity detected.
type EventType string

const (
	EventRapidPaste   EventType = "rapid_paste"
	EventUnusualSpeed EventType = "unusual_speed"
	EventPatternBreak EventType = "pattern_break"
	EventTimeGap      EventType = "time_gap"

	// EventMassDelete is reserved. No shipped rule emits it; removing the
	// constant would break persisted sessions that may carry it.
	EventMassDelete EventType = "mass_delete"
)

// Severity indicates how strongly an event should weigh on the score.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Event is a flagged timing, paste, or inactivity anomaly.
// FalsePositive is the only field mutated after creation, via the
// guardian-facing correction hook.
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Type          EventType `json:"type"`
	Severity      Severity  `json:"severity"`
	Description   string    `json:"description"`
	Context       string    `json:"context"`
	FalsePositive bool      `json:"false_positive"`
}

// GradeThresholds holds the expected typing-speed bounds for one grade.
type GradeThresholds struct {
	// MinWPM is the lower bound of expected speed. Informational; typing
	// below it is never flagged on its own.
	MinWPM int `toml:"min_wpm" json:"min_wpm" yaml:"min_wpm"`

	// MaxWPM is the upper bound of expected speed.
	MaxWPM int `toml:"max_wpm" json:"max_wpm" yaml:"max_wpm"`

	// NormalPauseMs is the expected thinking-pause length. Carried for
	// threshold tuning; no shipped rule reads it.
	NormalPauseMs float64 `toml:"normal_pause_ms" json:"normal_pause_ms" yaml:"normal_pause_ms"`
}

// DefaultGrade is used when a session's grade is outside the calibrated range.
const DefaultGrade = 4

// DefaultGradeThresholds returns the calibrated per-grade speed bounds.
// Bounds are monotonic by grade: older students are expected to type faster.
func DefaultGradeThresholds() map[int]GradeThresholds {
	return map[int]GradeThresholds{
		3: {MinWPM: 5, MaxWPM: 25, NormalPauseMs: 5000},
		4: {MinWPM: 8, MaxWPM: 35, NormalPauseMs: 4000},
		5: {MinWPM: 12, MaxWPM: 45, NormalPauseMs: 3000},
		6: {MinWPM: 15, MaxWPM: 55, NormalPauseMs: 2500},
	}
}

// Rule tunables. The ratios are relative to the per-grade MaxWPM so a single
// threshold table calibrates every rule.
const (
	// UnusualSpeedRatio flags speeds above MaxWPM * ratio.
	UnusualSpeedRatio = 1.5

	// SuddenShiftRatio flags speed swings above MaxWPM * ratio across the
	// last three patterns.
	SuddenShiftRatio = 0.8

	// LowVarianceThreshold flags metronomic timing typical of scripted
	// input when combined with LowVarianceMinSpeed.
	LowVarianceThreshold = 10.0
	LowVarianceMinSpeed  = 20

	// Paste thresholds.
	PasteMinLength     = 50
	PasteHighLength    = 200
	PasteFastMs        = 2000.0

	// Inactivity-gap thresholds.
	GapMediumMs = 300000.0 // 5 minutes
	GapHighMs   = 900000.0 // 15 minutes
)

// Detector evaluates patterns and raw events against grade-calibrated
// thresholds. It holds no per-session state.
type Detector struct {
	grades map[int]GradeThresholds
}

// New returns a Detector using the given grade-threshold table. A nil table
// falls back to the calibrated defaults.
func New(grades map[int]GradeThresholds) *Detector {
	if grades == nil {
		grades = DefaultGradeThresholds()
	}
	return &Detector{grades: grades}
}

// Thresholds returns the row for the given grade, falling back to the
// DefaultGrade row for grades outside the calibrated range.
func (d *Detector) Thresholds(grade int) GradeThresholds {
	if t, ok := d.grades[grade]; ok {
		return t
	}
	return d.grades[DefaultGrade]
}

// CheckPattern evaluates a freshly analyzed pattern. history is the session's
// full ordered pattern sequence including the new pattern as its last element.
func (d *Detector) CheckPattern(history []typing.Pattern, grade int, at time.Time) []Event {
	if len(history) == 0 {
		return nil
	}
	t := d.Thresholds(grade)
	current := history[len(history)-1]

	var events []Event

	if float64(current.AverageSpeed) > float64(t.MaxWPM)*UnusualSpeedRatio {
		events = append(events, newEvent(at, EventUnusualSpeed, SeverityHigh,
			fmt.Sprintf("Typing speed of %d WPM is far above the expected range for grade %d", current.AverageSpeed, grade),
			fmt.Sprintf("expected at most %d WPM", t.MaxWPM)))
	}

	if typing.Variance(current.KeystrokeIntervals) < LowVarianceThreshold && current.AverageSpeed > LowVarianceMinSpeed {
		events = append(events, newEvent(at, EventPatternBreak, SeverityMedium,
			"Keystroke timing is unusually uniform for sustained typing",
			fmt.Sprintf("interval variance below %.0f at %d WPM", LowVarianceThreshold, current.AverageSpeed)))
	}

	if len(history) >= 3 {
		window := history[len(history)-3:]
		shift := window[2].AverageSpeed - window[0].AverageSpeed
		if shift < 0 {
			shift = -shift
		}
		if float64(shift) > float64(t.MaxWPM)*SuddenShiftRatio {
			events = append(events, newEvent(at, EventPatternBreak, SeverityMedium,
				fmt.Sprintf("Typing speed shifted by %d WPM between recent windows", shift),
				fmt.Sprintf("from %d to %d WPM", window[0].AverageSpeed, window[2].AverageSpeed)))
		}
	}

	return events
}

// CheckPaste evaluates a paste event. Returns nil when the paste is within
// normal bounds (short snippets or slow deliberate pastes are fine).
func (d *Detector) CheckPaste(pastedLength int, elapsedMs float64, at time.Time) *Event {
	if pastedLength <= PasteMinLength || elapsedMs >= PasteFastMs {
		return nil
	}
	severity := SeverityMedium
	if pastedLength > PasteHighLength {
		severity = SeverityHigh
	}
	ev := newEvent(at, EventRapidPaste, severity,
		fmt.Sprintf("A block of %d characters appeared in %.0f ms", pastedLength, elapsedMs),
		fmt.Sprintf("paste length %d", pastedLength))
	return &ev
}

// CheckGap evaluates an inactivity gap. Gaps below GapMediumMs are normal
// thinking time and produce no event.
func (d *Detector) CheckGap(gapMs float64, at time.Time) *Event {
	if gapMs <= GapMediumMs {
		return nil
	}
	severity := SeverityMedium
	if gapMs > GapHighMs {
		severity = SeverityHigh
	}
	ev := newEvent(at, EventTimeGap, severity,
		fmt.Sprintf("No activity for %.1f minutes during a timed activity", gapMs/60000),
		fmt.Sprintf("gap of %.0f ms", gapMs))
	return &ev
}

func newEvent(at time.Time, typ EventType, sev Severity, description, context string) Event {
	return Event{
		ID:          uuid.NewString(),
		Timestamp:   at,
		Type:        typ,
		Severity:    sev,
		Description: description,
		Context:     context,
	}
}
