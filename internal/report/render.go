package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"integrityd/internal/detect"
)

// PrintReport writes a formatted guardian report to w.
func PrintReport(w io.Writer, rep *GuardianReport) {
	if rep == nil {
		fmt.Fprintln(w, "No report data available")
		return
	}

	// Header
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "                    LEARNING INTEGRITY REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Student:        %s\n", rep.UserID)
	fmt.Fprintf(w, "Period:         last %d days (%s to %s)\n", rep.PeriodDays,
		rep.PeriodStart.Format("2006-01-02"), rep.PeriodEnd.Format("2006-01-02"))
	fmt.Fprintf(w, "Generated:      %s\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Sessions:       %d\n", rep.TotalSessions)
	fmt.Fprintln(w)

	// Overview
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w, "OVERVIEW")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Average Integrity Score:  %.1f  %s\n",
		rep.AverageScore,
		FormatScoreBar(rep.AverageScore, 20))
	fmt.Fprintf(w, "  -> %s\n\n", interpretAverageScore(rep.AverageScore))

	fmt.Fprintf(w, "Suspicious Events:        %d\n", rep.TotalEvents)
	if rep.TotalEvents > 0 {
		fmt.Fprintf(w, "False Positive Rate:      %s\n", FormatRate(rep.FalsePositiveRate))
		fmt.Fprintf(w, "  -> %s\n", interpretFalsePositiveRate(rep.FalsePositiveRate))
	}
	fmt.Fprintln(w)

	// Event breakdown
	if len(rep.EventBreakdown) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w, "EVENT BREAKDOWN")
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w)

		types := make([]string, 0, len(rep.EventBreakdown))
		for typ := range rep.EventBreakdown {
			types = append(types, string(typ))
		}
		sort.Strings(types)
		for _, typ := range types {
			fmt.Fprintf(w, "  %-16s %d\n", typ, rep.EventBreakdown[detect.EventType(typ)])
		}
		fmt.Fprintln(w)
	}

	// Flagged sessions
	if len(rep.FlaggedSessions) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w, "SESSIONS WORTH A LOOK")
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w)

		for i, s := range rep.FlaggedSessions {
			fmt.Fprintf(w, "%d. %s (%s, %s)\n", i+1, s.Subject, s.Activity,
				s.StartTime.Format("Jan 2 15:04"))
			fmt.Fprintf(w, "   Score: %d   Events: %d\n", s.Score, s.EventCount)
		}
		fmt.Fprintln(w)
	}

	// Recommendations
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "RECOMMENDATIONS:")
	for _, line := range rep.Recommendations {
		fmt.Fprintf(w, "  - %s\n", line)
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

// FormatScoreBar produces an ASCII bar scaled to the 0-100 score range.
func FormatScoreBar(value float64, width int) string {
	if width <= 0 {
		return ""
	}
	normalized := value / 100
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}
	filled := int(normalized * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return "[" + bar + "]"
}

// interpretAverageScore provides human-readable interpretation.
func interpretAverageScore(avg float64) string {
	switch {
	case avg >= 90:
		return "Excellent: Consistent, natural work patterns"
	case avg >= 85:
		return "Good: Healthy activity with minor variations"
	case avg >= 70:
		return "Mixed: Some sessions had unusual activity"
	default:
		return "Needs attention: Frequent unusual activity patterns"
	}
}

// interpretFalsePositiveRate provides human-readable interpretation.
func interpretFalsePositiveRate(rate float64) string {
	switch {
	case rate == 0:
		return "No events have been reviewed and cleared yet"
	case rate < 25:
		return "Most flagged events stood after review"
	case rate < 75:
		return "A fair share of flagged events were cleared on review"
	default:
		return "Nearly all flagged events were cleared; thresholds may be strict for this student"
	}
}
