// Package scheduler drives the bot's time-based background work: fixed
// clock-time scheduled messages, periodic self-adverts, service health
// supervision, feed polling and the channel-operations queue (spec.md §4.9).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ScheduledEntry is one parsed "HHMM = channel:text" row.
type ScheduledEntry struct {
	Hour    int
	Minute  int
	Channel string
	Text    string
}

// ParseScheduledMessages turns the [Scheduled_Messages] map into sorted
// entries, skipping malformed rows rather than failing config load.
func ParseScheduledMessages(raw map[string]string, log *slog.Logger) []ScheduledEntry {
	if log == nil {
		log = slog.Default()
	}
	entries := make([]ScheduledEntry, 0, len(raw))
	for hhmm, value := range raw {
		hour, minute, err := parseHHMM(hhmm)
		if err != nil {
			log.Warn("skipping malformed scheduled message time", "key", hhmm, "error", err)
			continue
		}
		channel, text, ok := strings.Cut(value, ":")
		if !ok {
			log.Warn("skipping malformed scheduled message value, expected channel:text", "key", hhmm)
			continue
		}
		entries = append(entries, ScheduledEntry{Hour: hour, Minute: minute, Channel: strings.TrimSpace(channel), Text: text})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Hour != entries[j].Hour {
			return entries[i].Hour < entries[j].Hour
		}
		return entries[i].Minute < entries[j].Minute
	})
	return entries
}

func parseHHMM(s string) (hour, minute int, err error) {
	if len(s) != 4 {
		return 0, 0, fmt.Errorf("expected HHMM, got %q", s)
	}
	hour, err = strconv.Atoi(s[:2])
	if err != nil {
		return 0, 0, err
	}
	minute, err = strconv.Atoi(s[2:])
	if err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range: %q", s)
	}
	return hour, minute, nil
}

// MessageSender is the outbound surface scheduled messages use.
type MessageSender interface {
	SendChannel(ctx context.Context, channelIndex int, content, commandID string) (bool, error)
}

// ChannelResolver maps a channel name to its device index.
type ChannelResolver interface {
	Resolve(name string) (index int, ok bool)
}

// PlaceholderFormatter renders a scheduled message's text against current
// mesh state at fire time.
type PlaceholderFormatter func(template string) string

const scheduledMessageTimeout = 60 * time.Second

// ScheduledMessageRunner fires each entry once per day at its clock time.
type ScheduledMessageRunner struct {
	entries   []ScheduledEntry
	sender    MessageSender
	channels  ChannelResolver
	format    PlaceholderFormatter
	log       *slog.Logger
	now       func() time.Time
	sleepUntil func(ctx context.Context, until time.Time) bool
}

func NewScheduledMessageRunner(entries []ScheduledEntry, sender MessageSender, channels ChannelResolver, format PlaceholderFormatter, log *slog.Logger) *ScheduledMessageRunner {
	if log == nil {
		log = slog.Default()
	}
	if format == nil {
		format = func(s string) string { return s }
	}
	r := &ScheduledMessageRunner{entries: entries, sender: sender, channels: channels, format: format, log: log, now: time.Now}
	r.sleepUntil = r.defaultSleepUntil
	return r
}

func (r *ScheduledMessageRunner) defaultSleepUntil(ctx context.Context, until time.Time) bool {
	d := until.Sub(r.now())
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Run blocks, firing each due entry once per day, until ctx is cancelled.
func (r *ScheduledMessageRunner) Run(ctx context.Context) {
	if len(r.entries) == 0 {
		return
	}
	for {
		next, entry := r.nextFireTime(r.now())
		if !r.sleepUntil(ctx, next) {
			return
		}
		r.fire(ctx, entry)
	}
}

func (r *ScheduledMessageRunner) nextFireTime(now time.Time) (time.Time, ScheduledEntry) {
	var best time.Time
	var bestEntry ScheduledEntry
	for _, e := range r.entries {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), e.Hour, e.Minute, 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
			bestEntry = e
		}
	}
	return best, bestEntry
}

func (r *ScheduledMessageRunner) fire(ctx context.Context, entry ScheduledEntry) {
	runCtx, cancel := context.WithTimeout(ctx, scheduledMessageTimeout)
	defer cancel()

	index, ok := 0, true
	if r.channels != nil {
		index, ok = r.channels.Resolve(entry.Channel)
		if !ok {
			r.log.Warn("scheduled message references unknown channel", "channel", entry.Channel)
			return
		}
	}
	text := r.format(entry.Text)
	if _, err := r.sender.SendChannel(runCtx, index, text, ""); err != nil {
		r.log.Warn("scheduled message send failed", "channel", entry.Channel, "error", err)
	}
}
