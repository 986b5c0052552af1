package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
)

// SessionPurger is the slice of SessionStore the janitor needs.
type SessionPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionJanitor periodically deletes expired sessions. Revoked sessions are
// kept until they expire so that a replayed token still finds its row.
type SessionJanitor struct {
	sessions SessionPurger
	interval time.Duration
	now      func() time.Time
	log      logging.Logger
}

func NewSessionJanitor(sessions SessionPurger, interval time.Duration, log logging.Logger) *SessionJanitor {
	return &SessionJanitor{
		sessions: sessions,
		interval: interval,
		now:      time.Now,
		log:      log.With("module", "janitor"),
	}
}

// Run sweeps every interval until ctx is cancelled. A failed sweep is
// logged and retried on the next tick.
func (j *SessionJanitor) Run(ctx context.Context) error {
	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_, _ = j.Sweep(ctx)
		}
	}
}

// Sweep purges sessions that expired before now.
func (j *SessionJanitor) Sweep(ctx context.Context) (int64, error) {
	n, err := j.sessions.PurgeExpired(ctx, j.now())
	if err != nil {
		j.log.Error(ctx, "session purge failed", "error", err)
		return 0, err
	}
	if n > 0 {
		j.log.Info(ctx, "expired sessions purged", "count", n)
	}
	return n, nil
}
