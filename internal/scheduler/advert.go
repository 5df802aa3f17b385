package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// AdvertSender broadcasts the bot's own self-advert frame.
type AdvertSender interface {
	SendAdvert(ctx context.Context) error
}

// AdvertRunner re-broadcasts the bot's self-advert every
// advert_interval_hours (spec.md §4.9). A non-positive interval disables it.
type AdvertRunner struct {
	interval time.Duration
	sender   AdvertSender
	log      *slog.Logger
}

func NewAdvertRunner(interval time.Duration, sender AdvertSender, log *slog.Logger) *AdvertRunner {
	if log == nil {
		log = slog.Default()
	}
	return &AdvertRunner{interval: interval, sender: sender, log: log}
}

func (r *AdvertRunner) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.sender.SendAdvert(ctx); err != nil {
				r.log.Warn("self-advert broadcast failed", "error", err)
			}
		}
	}
}
