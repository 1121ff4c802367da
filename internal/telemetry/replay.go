package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"integrityd/internal/detect"
	"integrityd/internal/logging"
	"integrityd/internal/score"
	"integrityd/internal/session"
	"integrityd/internal/store"
)

// Stats summarizes one replay run.
type Stats struct {
	Records  int
	Sessions int
	Events   int
}

// Replayer drives a session manager from recorded telemetry. The
// manager's clock follows the record timestamps, so a replayed stream
// produces the same sessions and scores the live stream would have.
type Replayer struct {
	mgr    *session.Manager
	clock  time.Time
	events int
}

// NewReplayer builds a manager wired to the replay clock. opts.Now is
// ignored; the record timestamps are the clock.
func NewReplayer(gw store.Gateway, det *detect.Detector, sc *score.Scorer, opts session.Options, log *logging.Logger) *Replayer {
	r := &Replayer{clock: time.Now()}
	if log != nil {
		opts.Logger = log
	}
	opts.Now = func() time.Time { return r.clock }
	r.mgr = session.NewManager(gw, det, sc, opts)
	return r
}

// Run consumes the stream to EOF, then seals any session left open.
func (r *Replayer) Run(ctx context.Context, reader *Reader) (Stats, error) {
	var stats Stats
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, err
		}
		if err := r.Apply(ctx, rec); err != nil {
			return stats, err
		}
		stats.Records++
		if rec.Type == TypeSessionStart {
			stats.Sessions++
		}
	}
	if err := r.endSession(ctx); err != nil {
		return stats, err
	}
	stats.Events = r.events
	return stats, nil
}

func (r *Replayer) endSession(ctx context.Context) error {
	s, err := r.mgr.EndSession(ctx)
	if s != nil {
		r.events += len(s.SuspiciousEvents)
	}
	return err
}

// Apply feeds one record into the manager.
func (r *Replayer) Apply(ctx context.Context, rec Record) error {
	r.clock = rec.Time()
	switch rec.Type {
	case TypeSessionStart:
		activity := session.ActivityType(rec.Activity)
		if activity == "" {
			activity = session.ActivityQuiz
		}
		_, err := r.mgr.StartSession(ctx, rec.UserID, rec.Subject, activity)
		return err
	case TypeSessionEnd:
		return r.endSession(ctx)
	case TypeKeystroke:
		r.mgr.RecordKeystroke(ctx, rec.Time())
	case TypeBackspace:
		r.mgr.RecordBackspace()
	case TypePaste:
		r.mgr.HandlePasteEvent(ctx, rec.PastedLength, time.Duration(rec.ElapsedMs*float64(time.Millisecond)))
	case TypeGap:
		r.mgr.HandleInactivityGap(ctx, time.Duration(rec.GapMs*float64(time.Millisecond)))
	default:
		return fmt.Errorf("unknown record type %q", rec.Type)
	}
	return nil
}

// Current exposes the active session, if any, for callers inspecting
// replay progress.
func (r *Replayer) Current() *session.Session {
	return r.mgr.Current()
}
