package scheduler

import (
	"context"
	"time"
)

const gcInterval = time.Minute

// Sweeper is implemented by the transmission tracker (and anything else
// that needs periodic time-based GC independent of inbound traffic).
type Sweeper interface {
	Sweep(now time.Time)
}

// GCRunner calls Sweep on every registered Sweeper once a minute, so stale
// pending/confirmed records are reclaimed even during quiet periods
// (spec.md §4.6 cleanup_after).
type GCRunner struct {
	sweepers []Sweeper
	now      func() time.Time
}

func NewGCRunner(sweepers ...Sweeper) *GCRunner {
	return &GCRunner{sweepers: sweepers, now: time.Now}
}

func (g *GCRunner) Run(ctx context.Context) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range g.sweepers {
				s.Sweep(g.now())
			}
		}
	}
}
