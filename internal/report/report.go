// Package report builds guardian-facing summaries of recent learning
// sessions. Reports aggregate integrity scores and suspicious events
// over a rolling window; they describe behavior, they never accuse.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"integrityd/internal/detect"
	"integrityd/internal/logging"
	"integrityd/internal/score"
	"integrityd/internal/session"
	"integrityd/internal/store"
)

// Default thresholds for flagging sessions and shaping the
// recommendation text. Configurable via the report config section.
const (
	DefaultWindowDays  = 7
	DefaultFlagScore   = 80
	DefaultReviewScore = 70
	concernScore       = 70
	reviewScore        = 85
)

// SessionSummary is the per-session line item included for any session
// that warranted attention during the window.
type SessionSummary struct {
	SessionID  string    `json:"sessionId"`
	Subject    string    `json:"subject"`
	Activity   string    `json:"activityType"`
	StartTime  time.Time `json:"startTime"`
	Score      int       `json:"integrityScore"`
	EventCount int       `json:"eventCount"`
}

// GuardianReport is the aggregate view handed to a parent or teacher.
// FalsePositiveRate is a percentage (0-100).
type GuardianReport struct {
	UserID            string                   `json:"userId"`
	PeriodDays        int                      `json:"periodDays"`
	PeriodStart       time.Time                `json:"periodStart"`
	PeriodEnd         time.Time                `json:"periodEnd"`
	GeneratedAt       time.Time                `json:"generatedAt"`
	TotalSessions     int                      `json:"totalSessions"`
	AverageScore      float64                  `json:"averageIntegrityScore"`
	TotalEvents       int                      `json:"totalSuspiciousEvents"`
	FalsePositiveRate float64                  `json:"falsePositiveRate"`
	FlaggedSessions   []SessionSummary         `json:"flaggedSessions"`
	EventBreakdown    map[detect.EventType]int `json:"eventBreakdown"`
	Recommendations   []string                 `json:"recommendations"`
}

// Options tunes report generation. Zero values fall back to defaults.
type Options struct {
	FlagScore int
	Logger    *logging.Logger
	Now       func() time.Time
}

// Aggregator reads sealed sessions from the store and rolls them up.
type Aggregator struct {
	gw        store.Gateway
	log       *logging.Logger
	flagScore int
	now       func() time.Time
}

func NewAggregator(gw store.Gateway, opts Options) *Aggregator {
	flagScore := opts.FlagScore
	if flagScore <= 0 {
		flagScore = DefaultFlagScore
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default().WithComponent("report")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{gw: gw, log: log, flagScore: flagScore, now: now}
}

// Generate builds a guardian report for one student over the trailing
// window. Storage failures degrade to an empty, neutral report (no
// sessions, average 100) rather than an error.
func (a *Aggregator) Generate(ctx context.Context, userID string, days int) *GuardianReport {
	if days <= 0 {
		days = DefaultWindowDays
	}
	now := a.now()
	cutoff := now.AddDate(0, 0, -days)
	rep := &GuardianReport{
		UserID:         userID,
		PeriodDays:     days,
		PeriodStart:    cutoff,
		PeriodEnd:      now,
		GeneratedAt:    now,
		AverageScore:   float64(score.StartingScore),
		EventBreakdown: make(map[detect.EventType]int),
	}

	keys, err := a.gw.Keys(ctx, store.NamespaceSessions)
	if err != nil {
		a.log.Error("report generation degraded: session scan failed",
			"user_id", userID, "error", err)
		rep.Recommendations = []string{recommendPositive}
		return rep
	}

	prefix := "session_" + userID + "_"

	scoreSum := 0
	falsePositives := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		s, err := session.Load(ctx, a.gw, key)
		if err != nil {
			a.log.Warn("skipping unreadable session", "key", key, "error", err)
			continue
		}
		// Prefix matching alone can confuse user "u1_2" with user
		// "u1"; the stored record is authoritative.
		if s.UserID != userID || s.StartTime.Before(cutoff) {
			continue
		}

		rep.TotalSessions++
		scoreSum += s.IntegrityScore
		for _, ev := range s.SuspiciousEvents {
			rep.TotalEvents++
			rep.EventBreakdown[ev.Type]++
			if ev.FalsePositive {
				falsePositives++
			}
		}
		if s.IntegrityScore < a.flagScore || len(s.SuspiciousEvents) > 0 {
			rep.FlaggedSessions = append(rep.FlaggedSessions, SessionSummary{
				SessionID:  s.ID,
				Subject:    s.Subject,
				Activity:   string(s.ActivityType),
				StartTime:  s.StartTime,
				Score:      s.IntegrityScore,
				EventCount: len(s.SuspiciousEvents),
			})
		}
	}

	if rep.TotalSessions > 0 {
		rep.AverageScore = float64(scoreSum) / float64(rep.TotalSessions)
	}
	if rep.TotalEvents > 0 {
		rep.FalsePositiveRate = float64(falsePositives) / float64(rep.TotalEvents) * 100
	}
	sort.Slice(rep.FlaggedSessions, func(i, j int) bool {
		return rep.FlaggedSessions[i].StartTime.Before(rep.FlaggedSessions[j].StartTime)
	})
	rep.Recommendations = recommend(rep)
	return rep
}

const (
	recommendConcern  = "Several sessions show unusual activity patterns. Consider sitting with your child during their next few learning sessions to understand how they approach their work."
	recommendReview   = "A few sessions had activity worth a closer look. A casual conversation about how they like to study can go a long way."
	recommendBreaks   = "Long pauses during sessions suggest your child may be stepping away mid-activity. Shorter, more focused sessions with planned breaks often work better."
	recommendPositive = "Learning activity looks healthy. Keep encouraging regular practice."
)

// recommend builds the guardian guidance list. The score bands are
// mutually exclusive; the time-gap line stacks with either, and any
// time_gap event in the window triggers it. An otherwise clean window
// gets the positive line.
func recommend(rep *GuardianReport) []string {
	var out []string
	switch {
	case rep.TotalSessions > 0 && rep.AverageScore < concernScore:
		out = append(out, recommendConcern)
	case rep.TotalSessions > 0 && rep.AverageScore < reviewScore:
		out = append(out, recommendReview)
	}
	if rep.EventBreakdown[detect.EventTimeGap] > 0 {
		out = append(out, recommendBreaks)
	}
	if len(out) == 0 {
		out = append(out, recommendPositive)
	}
	return out
}

// FormatRate renders a percentage rate for display.
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate)
}
