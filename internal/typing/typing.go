// Package typing provides pure statistics over keystroke-interval windows.
package typing

import (
	"math"
	"time"
)

// PauseThresholdMs is the interval length above which a gap between two
// keystrokes counts as a pause rather than normal cadence.
const PauseThresholdMs = 1000.0

// WordLengthChars approximates the average word length used to convert
// keystroke rate into words per minute. The resulting speed is a deliberate
// approximation, not true WPM; the detection thresholds are calibrated
// against this exact formula.
const WordLengthChars = 5.0

// Pattern is a windowed statistical snapshot of keystroke cadence.
// A Pattern is immutable once built.
type Pattern struct {
	// KeystrokeIntervals are inter-keystroke gaps in milliseconds.
	KeystrokeIntervals []float64 `json:"keystroke_intervals"`

	// AverageSpeed is the approximate typing speed in words per minute,
	// derived from the interval mean. Always computed, never set directly.
	AverageSpeed int `json:"average_speed"`

	// PausePattern holds the intervals that exceeded PauseThresholdMs.
	PausePattern []float64 `json:"pause_pattern"`

	// BackspaceFrequency is the number of corrections observed over the
	// window. Supplied by the caller, not derived here.
	BackspaceFrequency int `json:"backspace_frequency"`

	Timestamp time.Time `json:"timestamp"`
}

// Analyze builds a Pattern from a window of keystroke intervals.
// The interval slice is copied so the caller may keep reusing its buffer.
func Analyze(intervals []float64, backspaces int, at time.Time) Pattern {
	window := make([]float64, len(intervals))
	copy(window, intervals)

	var pauses []float64
	for _, iv := range window {
		if iv > PauseThresholdMs {
			pauses = append(pauses, iv)
		}
	}

	return Pattern{
		KeystrokeIntervals: window,
		AverageSpeed:       AverageSpeed(window),
		PausePattern:       pauses,
		BackspaceFrequency: backspaces,
		Timestamp:          at,
	}
}

// AverageSpeed converts an interval window to approximate words per minute.
// Formula: round(60000 / (mean(intervals) * WordLengthChars)).
func AverageSpeed(intervals []float64) int {
	m := Mean(intervals)
	if m <= 0 {
		return 0
	}
	return int(math.Round(60000 / (m * WordLengthChars)))
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance (mean of squared deviations).
// Slices with fewer than two elements have zero variance.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

// HasPauseOver reports whether any interval exceeds the given threshold in
// milliseconds.
func HasPauseOver(intervals []float64, thresholdMs float64) bool {
	for _, iv := range intervals {
		if iv > thresholdMs {
			return true
		}
	}
	return false
}
