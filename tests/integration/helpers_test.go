//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"integrityd/internal/detect"
	"integrityd/internal/score"
	"integrityd/internal/session"
	"integrityd/internal/store"
)

// TestEnv wires a real SQLite store and a session manager with a
// controllable clock, mirroring how the daemon assembles them.
type TestEnv struct {
	t       *testing.T
	Ctx     context.Context
	Store   *store.SQLite
	Manager *session.Manager
	Scorer  *score.Scorer

	clock time.Time
}

func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "integrity.db")
	gw, err := store.OpenSQLite(dbPath)
	AssertNoError(t, err, "open sqlite store")
	t.Cleanup(func() { gw.Close() })

	env := &TestEnv{
		t:      t,
		Ctx:    context.Background(),
		Store:  gw,
		Scorer: score.New(score.DefaultPenalties()),
		clock:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	env.Manager = session.NewManager(gw,
		detect.New(detect.DefaultGradeThresholds()),
		env.Scorer,
		session.Options{
			BatchSize:        20,
			RetainAfterFlush: 10,
			Grade:            4,
			Now:              env.Now,
		})
	return env
}

// Now returns the environment clock, advancing one millisecond per
// call so generated session keys never collide.
func (e *TestEnv) Now() time.Time {
	e.clock = e.clock.Add(time.Millisecond)
	return e.clock
}

// Advance moves the environment clock forward.
func (e *TestEnv) Advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

// Type records n keystrokes spaced intervalMs apart.
func (e *TestEnv) Type(n int, intervalMs float64) {
	for i := 0; i < n; i++ {
		e.Advance(time.Duration(intervalMs * float64(time.Millisecond)))
		e.Manager.RecordKeystroke(e.Ctx, e.clock)
	}
}

// TypeNatural records n keystrokes with child-like variation: a slow
// alternating rhythm that stays within grade-level speed bounds.
func (e *TestEnv) TypeNatural(n int) {
	for i := 0; i < n; i++ {
		interval := 1500.0
		if i%2 == 0 {
			interval = 2600.0
		}
		e.Advance(time.Duration(interval * float64(time.Millisecond)))
		e.Manager.RecordKeystroke(e.Ctx, e.clock)
	}
}

func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error, got nil", msg)
	}
}

func AssertEqual[T comparable](t *testing.T, expected, actual T, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Fatalf("%s: expected true", msg)
	}
}

func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Fatalf("%s: expected false", msg)
	}
}
