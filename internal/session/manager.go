package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"integrityd/internal/detect"
	"integrityd/internal/logging"
	"integrityd/internal/score"
	"integrityd/internal/store"
	"integrityd/internal/typing"
)

// ErrUnknownSession is returned when a session id is not in the store.
var ErrUnknownSession = errors.New("session: unknown session id")

// Options tunes a Manager. Zero values fall back to the defaults.
type Options struct {
	// BatchSize is the number of intervals that trigger pattern analysis.
	BatchSize int

	// RetainAfterFlush is how many trailing intervals survive a flush.
	RetainAfterFlush int

	// Grade calibrates detection for the student this manager serves.
	Grade int

	// Logger receives degraded-path diagnostics.
	Logger *logging.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager routes raw UI events for one student through analysis, detection,
// and scoring, and persists the resulting session. At most one session is
// open at a time.
//
// The in-memory buffer always updates synchronously; persistence failures
// are logged and absorbed so monitoring never interrupts the activity.
type Manager struct {
	mu sync.Mutex

	gw       store.Gateway
	detector *detect.Detector
	scorer   *score.Scorer
	log      *logging.Logger

	batchSize int
	retain    int
	grade     int
	now       func() time.Time

	current       *Session
	buffer        []float64
	lastKeystroke time.Time
	backspaces    int
}

// NewManager builds a Manager over the given collaborators.
func NewManager(gw store.Gateway, detector *detect.Detector, scorer *score.Scorer, opts Options) *Manager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.RetainAfterFlush < 0 || opts.RetainAfterFlush >= opts.BatchSize {
		opts.RetainAfterFlush = opts.BatchSize / 2
	}
	if opts.Grade == 0 {
		opts.Grade = detect.DefaultGrade
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default().WithComponent("session")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		gw:        gw,
		detector:  detector,
		scorer:    scorer,
		log:       opts.Logger,
		batchSize: opts.BatchSize,
		retain:    opts.RetainAfterFlush,
		grade:     opts.Grade,
		now:       opts.Now,
	}
}

// StartSession opens and persists a new session and makes it current.
// If a session is already open it is closed first, exactly as if
// EndSession had been called; starting a new activity must never discard
// the previous one's evidence.
func (m *Manager) StartSession(ctx context.Context, userID, subject string, activityType ActivityType) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.log.Warn("session already open, closing before starting a new one",
			"session_id", m.current.ID)
		m.endLocked(ctx)
	}

	start := m.now()
	s := &Session{
		ID:             store.SessionKey(userID, start),
		UserID:         userID,
		StartTime:      start,
		Subject:        subject,
		ActivityType:   activityType,
		Grade:          m.grade,
		IntegrityScore: score.StartingScore,
	}

	m.current = s
	m.buffer = m.buffer[:0]
	m.lastKeystroke = time.Time{}
	m.backspaces = 0

	if err := Save(ctx, m.gw, s); err != nil {
		// Monitoring continues in memory; the next flush retries.
		m.log.Error("persist new session", "session_id", s.ID, "error", err)
	}

	return s, nil
}

// EndSession seals the current session: whole-minute duration, a score
// recomputed from the full event log, persistence, and clearing of the
// current pointer. Returns nil when no session is open; a second call is a
// no-op, not an error.
func (m *Manager) EndSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.endLocked(ctx), nil
}

func (m *Manager) endLocked(ctx context.Context) *Session {
	s := m.current
	if s == nil {
		return nil
	}

	end := m.now()
	s.EndTime = &end
	s.TotalTimeSpentMin = int(end.Sub(s.StartTime).Minutes())
	s.IntegrityScore = m.scorer.Finalize(s.SuspiciousEvents, s.TypingPatterns)

	if err := Save(ctx, m.gw, s); err != nil {
		m.log.Error("persist ended session", "session_id", s.ID, "error", err)
	}

	m.current = nil
	m.buffer = m.buffer[:0]
	m.lastKeystroke = time.Time{}
	m.backspaces = 0

	return s
}

// RecordKeystroke appends an inter-keystroke interval to the rolling buffer
// and runs the analysis pipeline whenever a full batch has accumulated.
// Without an open session this is a silent no-op: keystrokes racing a page
// navigation are expected, not errors.
func (m *Manager) RecordKeystroke(ctx context.Context, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	if m.lastKeystroke.IsZero() {
		m.lastKeystroke = at
		return
	}

	interval := float64(at.Sub(m.lastKeystroke).Milliseconds())
	m.lastKeystroke = at
	if interval < 0 {
		// Out-of-order delivery; skip rather than poison the window.
		return
	}
	m.buffer = append(m.buffer, interval)

	if len(m.buffer) >= m.batchSize {
		m.flushLocked(ctx, at)
	}
}

// RecordBackspace counts a correction for the next analyzed window.
func (m *Manager) RecordBackspace() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}
	m.backspaces++
}

// flushLocked analyzes the buffered window, runs detection, updates the
// running score, persists, and retains a small tail of the buffer so
// consecutive windows overlap.
func (m *Manager) flushLocked(ctx context.Context, at time.Time) {
	s := m.current

	pattern := typing.Analyze(m.buffer, m.backspaces, at)
	s.TypingPatterns = append(s.TypingPatterns, pattern)

	events := m.detector.CheckPattern(s.TypingPatterns, s.Grade, at)
	for _, ev := range events {
		s.SuspiciousEvents = append(s.SuspiciousEvents, ev)
		s.IntegrityScore = m.scorer.Apply(s.IntegrityScore, ev)
		m.log.Info("suspicious activity flagged",
			"session_id", s.ID, "type", ev.Type, "severity", ev.Severity)
	}

	tail := m.buffer[len(m.buffer)-m.retain:]
	m.buffer = append(m.buffer[:0], tail...)
	m.backspaces = 0

	if err := Save(ctx, m.gw, s); err != nil {
		m.log.Error("persist session after analysis", "session_id", s.ID, "error", err)
	}
}

// HandlePasteEvent evaluates a paste against the rapid-paste thresholds and
// resets the rolling buffer: cadence measured across a paste is meaningless.
func (m *Manager) HandlePasteEvent(ctx context.Context, pastedLength int, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	// Invalidate the cadence window regardless of whether the paste is
	// flagged; the next keystroke re-baselines the interval clock.
	m.buffer = m.buffer[:0]
	m.lastKeystroke = time.Time{}

	at := m.now()
	if ev := m.detector.CheckPaste(pastedLength, float64(elapsed.Milliseconds()), at); ev != nil {
		s := m.current
		s.SuspiciousEvents = append(s.SuspiciousEvents, *ev)
		s.IntegrityScore = m.scorer.Apply(s.IntegrityScore, *ev)
		m.log.Info("rapid paste flagged",
			"session_id", s.ID, "severity", ev.Severity, "length", pastedLength)

		if err := Save(ctx, m.gw, s); err != nil {
			m.log.Error("persist session after paste", "session_id", s.ID, "error", err)
		}
	}
}

// HandleInactivityGap evaluates an inactivity gap against the time-gap
// thresholds.
func (m *Manager) HandleInactivityGap(ctx context.Context, gap time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	at := m.now()
	if ev := m.detector.CheckGap(float64(gap.Milliseconds()), at); ev != nil {
		s := m.current
		s.SuspiciousEvents = append(s.SuspiciousEvents, *ev)
		s.IntegrityScore = m.scorer.Apply(s.IntegrityScore, *ev)
		m.log.Info("inactivity gap flagged",
			"session_id", s.ID, "severity", ev.Severity, "gap_ms", gap.Milliseconds())

		if err := Save(ctx, m.gw, s); err != nil {
			m.log.Error("persist session after gap", "session_id", s.ID, "error", err)
		}
	}
}

// Current returns the open session, or nil. The returned pointer is the
// live session; callers treat it as read-only.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// MarkFalsePositive sets the false-positive flag on one event of a stored
// session. It never recomputes an already-sealed score; the correction
// influences future Finalize calls and report-level rates only.
func MarkFalsePositive(ctx context.Context, gw store.Gateway, sessionID, eventID string) error {
	s, err := Load(ctx, gw, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownSession
		}
		return err
	}

	for i := range s.SuspiciousEvents {
		if s.SuspiciousEvents[i].ID == eventID {
			s.SuspiciousEvents[i].FalsePositive = true
			return Save(ctx, gw, s)
		}
	}
	return errors.New("session: unknown event id")
}
