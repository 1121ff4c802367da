package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integrityd/internal/score"
	"integrityd/internal/store"
	"integrityd/internal/typing"
)

func patternAt(ts time.Time) typing.Pattern {
	return typing.Pattern{Timestamp: ts}
}

func TestReconcilerSealsStaleOpenSessions(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	stale := &Session{
		ID:        store.SessionKey("u1", base),
		UserID:    "u1",
		StartTime: base,
		Grade:     4,
	}
	require.NoError(t, Save(ctx, gw, stale))

	recent := &Session{
		ID:        store.SessionKey("u1", base.Add(3*time.Hour)),
		UserID:    "u1",
		StartTime: base.Add(3 * time.Hour),
		Grade:     4,
	}
	require.NoError(t, Save(ctx, gw, recent))

	end := base.Add(time.Hour)
	closed := &Session{
		ID:             store.SessionKey("u2", base),
		UserID:         "u2",
		StartTime:      base,
		EndTime:        &end,
		IntegrityScore: 90,
	}
	require.NoError(t, Save(ctx, gw, closed))

	r := NewReconciler(gw, score.New(score.Penalties{}), 2*time.Hour).
		WithClock(func() time.Time { return base.Add(3*time.Hour + 30*time.Minute) })

	sealed, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sealed, "only the stale open session is finalized")

	got, err := Load(ctx, gw, stale.ID)
	require.NoError(t, err)
	assert.False(t, got.Open())
	assert.Equal(t, 100, got.IntegrityScore, "clean stale session finalizes to 100")
	assert.Equal(t, 0, got.TotalTimeSpentMin, "sealed at last activity, which was the start")

	stillOpen, err := Load(ctx, gw, recent.ID)
	require.NoError(t, err)
	assert.True(t, stillOpen.Open(), "recent open sessions are left alone")

	untouched, err := Load(ctx, gw, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, untouched.IntegrityScore)
}

func TestReconcilerUsesLastActivity(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s := &Session{
		ID:        store.SessionKey("u1", base),
		UserID:    "u1",
		StartTime: base,
		Grade:     4,
	}
	// The student typed for 40 minutes before vanishing.
	s.TypingPatterns = append(s.TypingPatterns, patternAt(base.Add(40*time.Minute)))
	require.NoError(t, Save(ctx, gw, s))

	r := NewReconciler(gw, score.New(score.Penalties{}), 2*time.Hour).
		WithClock(func() time.Time { return base.Add(5 * time.Hour) })

	sealed, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sealed)

	got, err := Load(ctx, gw, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndTime)
	assert.Equal(t, 40, got.TotalTimeSpentMin,
		"duration runs to the last observed activity, not to reconciliation time")
}
