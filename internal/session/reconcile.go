package session

import (
	"context"
	"time"

	"integrityd/internal/logging"
	"integrityd/internal/score"
	"integrityd/internal/store"
)

// Reconciler force-finalizes sessions abandoned by abrupt termination (tab
// close, navigation away) so report aggregation only ever sees sealed
// sessions. It is meant to run periodically, before reports are generated.
type Reconciler struct {
	gw         store.Gateway
	scorer     *score.Scorer
	log        *logging.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewReconciler builds a Reconciler. staleAfter is how long a session may
// sit without activity before it is considered abandoned.
func NewReconciler(gw store.Gateway, scorer *score.Scorer, staleAfter time.Duration) *Reconciler {
	return &Reconciler{
		gw:         gw,
		scorer:     scorer,
		log:        logging.Default().WithComponent("reconciler"),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Run scans the session namespace and seals every stale open session,
// returning how many were finalized. Unreadable entries are skipped and
// logged; one corrupt record must not block reconciliation of the rest.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	keys, err := r.gw.Keys(ctx, store.NamespaceSessions)
	if err != nil {
		return 0, err
	}

	now := r.now()
	sealed := 0

	for _, key := range keys {
		s, err := Load(ctx, r.gw, key)
		if err != nil {
			r.log.Warn("skipping unreadable session", "key", key, "error", err)
			continue
		}
		if !s.Open() {
			continue
		}

		last := s.LastActivity()
		if now.Sub(last) < r.staleAfter {
			continue
		}

		// Seal at the last observed activity, not at reconciliation
		// time: the student was gone for the difference.
		end := last
		s.EndTime = &end
		s.TotalTimeSpentMin = int(end.Sub(s.StartTime).Minutes())
		s.IntegrityScore = r.scorer.Finalize(s.SuspiciousEvents, s.TypingPatterns)

		if err := Save(ctx, r.gw, s); err != nil {
			r.log.Error("persist reconciled session", "session_id", s.ID, "error", err)
			continue
		}

		r.log.Info("force-finalized stale session",
			"session_id", s.ID, "last_activity", last)
		sealed++
	}

	return sealed, nil
}
