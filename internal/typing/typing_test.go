package typing

import (
	"math"
	"testing"
	"time"
)

func approxEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{
			name:     "empty slice",
			values:   []float64{},
			expected: 0,
		},
		{
			name:     "single value",
			values:   []float64{250},
			expected: 250,
		},
		{
			name:     "uniform values",
			values:   []float64{100, 100, 100},
			expected: 100,
		},
		{
			name:     "mixed values",
			values:   []float64{100, 200, 300},
			expected: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Mean(tt.values)
			if !approxEqual(result, tt.expected, 0.0001) {
				t.Errorf("Mean(%v) = %v, want %v", tt.values, result, tt.expected)
			}
		})
	}
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{
			name:     "empty slice",
			values:   []float64{},
			expected: 0,
		},
		{
			name:     "single value",
			values:   []float64{42},
			expected: 0,
		},
		{
			name:     "constant sequence",
			values:   []float64{5, 5, 5, 5},
			expected: 0,
		},
		{
			name:     "two values",
			values:   []float64{1, 3},
			expected: 1, // mean 2, deviations +-1
		},
		{
			name:     "population variance not sample",
			values:   []float64{2, 4, 4, 4, 5, 5, 7, 9},
			expected: 4, // classic population variance example
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Variance(tt.values)
			if !approxEqual(result, tt.expected, 0.0001) {
				t.Errorf("Variance(%v) = %v, want %v", tt.values, result, tt.expected)
			}
		})
	}
}

func TestAverageSpeed(t *testing.T) {
	tests := []struct {
		name      string
		intervals []float64
		expected  int
	}{
		{
			name:      "empty window",
			intervals: []float64{},
			expected:  0,
		},
		{
			name:      "slow deliberate typing",
			intervals: []float64{2000, 2000, 2000}, // 60000/(2000*5) = 6
			expected:  6,
		},
		{
			name:      "steady grade-level typing",
			intervals: []float64{400, 400, 400, 400}, // 60000/(400*5) = 30
			expected:  30,
		},
		{
			name:      "very fast input",
			intervals: []float64{50, 50}, // 60000/(50*5) = 240
			expected:  240,
		},
		{
			name:      "rounding applied",
			intervals: []float64{350}, // 60000/1750 = 34.29 -> 34
			expected:  34,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AverageSpeed(tt.intervals)
			if result != tt.expected {
				t.Errorf("AverageSpeed(%v) = %d, want %d", tt.intervals, result, tt.expected)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	now := time.Now()
	intervals := []float64{300, 1500, 400, 2200, 350}

	p := Analyze(intervals, 3, now)

	if len(p.KeystrokeIntervals) != 5 {
		t.Fatalf("expected 5 intervals, got %d", len(p.KeystrokeIntervals))
	}
	if len(p.PausePattern) != 2 {
		t.Errorf("expected 2 pauses over %v ms, got %d", PauseThresholdMs, len(p.PausePattern))
	}
	if p.BackspaceFrequency != 3 {
		t.Errorf("expected backspace frequency 3, got %d", p.BackspaceFrequency)
	}
	if !p.Timestamp.Equal(now) {
		t.Errorf("timestamp not preserved")
	}
	if p.AverageSpeed != AverageSpeed(intervals) {
		t.Errorf("average speed must be derived from intervals")
	}
}

func TestAnalyzeCopiesWindow(t *testing.T) {
	intervals := []float64{100, 200, 300}
	p := Analyze(intervals, 0, time.Now())

	intervals[0] = 99999
	if p.KeystrokeIntervals[0] != 100 {
		t.Error("pattern must not alias the caller's buffer")
	}
}

func TestHasPauseOver(t *testing.T) {
	if HasPauseOver([]float64{100, 200}, 3000) {
		t.Error("no interval exceeds 3000ms")
	}
	if !HasPauseOver([]float64{100, 3500}, 3000) {
		t.Error("3500ms interval should count as a pause over 3000ms")
	}
	if HasPauseOver(nil, 3000) {
		t.Error("empty window has no pauses")
	}
}
