package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Feed is a plugin-owned polling source (e.g. an RSS/Atom feed plugin) that
// wants to be polled on a shared schedule rather than running its own timer.
type Feed interface {
	Name() string
	Poll(ctx context.Context) error
}

const (
	minFeedPollInterval = time.Minute
	feedPollTimeout     = 2 * time.Minute
)

// FeedPoller polls every registered feed at most once per minute, each on
// its own timeout so one slow feed can't starve the others (spec.md §4.9).
type FeedPoller struct {
	feeds    []Feed
	interval time.Duration
	log      *slog.Logger
}

func NewFeedPoller(feeds []Feed, interval time.Duration, log *slog.Logger) *FeedPoller {
	if log == nil {
		log = slog.Default()
	}
	if interval < minFeedPollInterval {
		interval = minFeedPollInterval
	}
	return &FeedPoller{feeds: feeds, interval: interval, log: log}
}

func (p *FeedPoller) Run(ctx context.Context) {
	if len(p.feeds) == 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *FeedPoller) pollAll(ctx context.Context) {
	for _, f := range p.feeds {
		pollCtx, cancel := context.WithTimeout(ctx, feedPollTimeout)
		if err := f.Poll(pollCtx); err != nil {
			p.log.Warn("feed poll failed", "feed", f.Name(), "error", err)
		}
		cancel()
	}
}
