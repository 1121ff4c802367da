// Package quiz manages discrete question/answer session flows: each response
// is analyzed, classified, and answered with age-appropriate feedback while
// the session accumulates an integrity picture of its own.
package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"integrityd/internal/feedback"
	"integrityd/internal/logging"
	"integrityd/internal/score"
	"integrityd/internal/store"
	"integrityd/internal/typing"
)

// Session is one monitored quiz run. The ID doubles as the storage key.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Subject   string     `json:"subject"`
	Grade     int        `json:"grade"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Responses []Response         `json:"responses"`
	Feedback  []feedback.Message `json:"feedback"`

	// OverallScore is correctness, computed by the grading collaborator.
	// Carried here untouched.
	OverallScore int `json:"overall_score"`

	IntegrityScore   int  `json:"integrity_score"`
	FlaggedForReview bool `json:"flagged_for_review"`
}

// Response is a single answered question with its typing evidence.
type Response struct {
	QuestionID    string           `json:"question_id"`
	Answer        string           `json:"answer"`
	TimeSpentSec  float64          `json:"time_spent_sec"`
	TypingPattern typing.Pattern   `json:"typing_pattern"`
	RevisionCount int              `json:"revision_count"`
	Confidence    score.Confidence `json:"confidence"`
}

// ReviewThreshold flags a quiz for guardian review when the integrity score
// finishes below it.
const ReviewThreshold = 70

// Manager owns quiz session lifecycles. Sessions are addressed by id so
// several quizzes may be in flight for different questions tabs; the store
// is the source of truth between calls.
type Manager struct {
	mu sync.Mutex

	gw  store.Gateway
	log *logging.Logger

	reviewThreshold int
	now             func() time.Time
}

// Options tunes a Manager. Zero values fall back to the defaults.
type Options struct {
	ReviewThreshold int
	Logger          *logging.Logger
	Now             func() time.Time
}

// NewManager builds a Manager over the given gateway.
func NewManager(gw store.Gateway, opts Options) *Manager {
	if opts.ReviewThreshold <= 0 {
		opts.ReviewThreshold = ReviewThreshold
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default().WithComponent("quiz")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		gw:              gw,
		log:             opts.Logger,
		reviewThreshold: opts.ReviewThreshold,
		now:             opts.Now,
	}
}

// StartSession opens and persists a new quiz session.
func (m *Manager) StartSession(ctx context.Context, userID, subject string, grade int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now()
	s := &Session{
		ID:             store.QuizKey(userID, start),
		UserID:         userID,
		Subject:        subject,
		Grade:          grade,
		StartTime:      start,
		IntegrityScore: score.StartingScore,
	}

	if err := save(ctx, m.gw, s); err != nil {
		m.log.Error("persist new quiz session", "session_id", s.ID, "error", err)
	}
	return s, nil
}

// RecordResponse builds a response from raw answer telemetry, appends it and
// its generated feedback to the session, persists, and returns only the new
// feedback. An unknown session id yields empty feedback and a log line,
// never an error: the student keeps working either way.
func (m *Manager) RecordResponse(ctx context.Context, sessionID, questionID, answer string, timeSpentSec float64, typingIntervals []float64, revisions int) []feedback.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := load(ctx, m.gw, sessionID)
	if err != nil {
		m.log.Warn("response for unknown quiz session",
			"session_id", sessionID, "question_id", questionID, "error", err)
		return nil
	}

	at := m.now()
	response := Response{
		QuestionID:    questionID,
		Answer:        answer,
		TimeSpentSec:  timeSpentSec,
		TypingPattern: typing.Analyze(typingIntervals, revisions, at),
		RevisionCount: revisions,
		Confidence:    score.ClassifyConfidence(timeSpentSec, revisions, typingIntervals),
	}

	messages := feedback.ForResponse(questionID, answer, timeSpentSec, revisions, response.Confidence, s.Grade)

	s.Responses = append(s.Responses, response)
	s.Feedback = append(s.Feedback, messages...)

	if err := save(ctx, m.gw, s); err != nil {
		m.log.Error("persist quiz response", "session_id", s.ID, "error", err)
	}

	return messages
}

// EndSession seals a quiz session and sets its review flag.
func (m *Manager) EndSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := load(ctx, m.gw, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.Warn("end of unknown quiz session", "session_id", sessionID)
			return nil, nil
		}
		return nil, err
	}
	if s.EndTime != nil {
		return s, nil
	}

	end := m.now()
	s.EndTime = &end
	s.FlaggedForReview = s.IntegrityScore < m.reviewThreshold

	if err := save(ctx, m.gw, s); err != nil {
		m.log.Error("persist ended quiz session", "session_id", s.ID, "error", err)
	}
	return s, nil
}

// SetIntegrityScore records an integrity score computed by the activity
// monitor covering this quiz. Clamped to [0,100].
func (m *Manager) SetIntegrityScore(ctx context.Context, sessionID string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := load(ctx, m.gw, sessionID)
	if err != nil {
		return err
	}
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	s.IntegrityScore = value
	return save(ctx, m.gw, s)
}

func save(ctx context.Context, gw store.Gateway, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal quiz session %s: %w", s.ID, err)
	}
	return gw.Set(ctx, store.NamespaceQuizSessions, s.ID, data)
}

func load(ctx context.Context, gw store.Gateway, id string) (*Session, error) {
	data, err := gw.Get(ctx, store.NamespaceQuizSessions, id)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal quiz session: %w", err)
	}
	return &s, nil
}
