// Package session owns the lifecycle of activity sessions: raw UI events go
// in, analyzed patterns, suspicious events, and a persisted integrity score
// come out.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"integrityd/internal/detect"
	"integrityd/internal/store"
	"integrityd/internal/typing"
)

// ActivityType identifies what kind of work a session covers.
type ActivityType string

const (
	ActivityQuiz      ActivityType = "quiz"
	ActivityWriting   ActivityType = "writing"
	ActivityWorksheet ActivityType = "worksheet"
	ActivityCreative  ActivityType = "creative"
)

// Session is one monitored activity. The ID doubles as the storage key.
type Session struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           *time.Time      `json:"end_time,omitempty"`
	TotalTimeSpentMin int             `json:"total_time_spent_min"`
	Subject           string          `json:"subject"`
	ActivityType      ActivityType    `json:"activity_type"`
	Grade             int             `json:"grade"`
	TypingPatterns    []typing.Pattern `json:"typing_patterns"`
	SuspiciousEvents  []detect.Event  `json:"suspicious_events"`
	IntegrityScore    int             `json:"integrity_score"`
}

// Open reports whether the session has not been sealed yet.
func (s *Session) Open() bool {
	return s.EndTime == nil
}

// LastActivity is the timestamp of the most recent pattern or event, falling
// back to the start time for sessions with no analyzed activity.
func (s *Session) LastActivity() time.Time {
	last := s.StartTime
	for _, p := range s.TypingPatterns {
		if p.Timestamp.After(last) {
			last = p.Timestamp
		}
	}
	for _, e := range s.SuspiciousEvents {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last
}

// Marshal encodes a session for the gateway.
func Marshal(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session %s: %w", s.ID, err)
	}
	return data, nil
}

// Unmarshal decodes a stored session.
func Unmarshal(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// Load fetches and decodes a session by id.
func Load(ctx context.Context, gw store.Gateway, id string) (*Session, error) {
	data, err := gw.Get(ctx, store.NamespaceSessions, id)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Save encodes and persists a session under its id.
func Save(ctx context.Context, gw store.Gateway, s *Session) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	return gw.Set(ctx, store.NamespaceSessions, s.ID, data)
}
