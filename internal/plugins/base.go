package plugins

import (
	"sync"
	"time"

	"meshbot/internal/message"
)

// Base supplies the bookkeeping every Command needs (metadata accessors,
// cooldown tracking, the permissive defaults for can_execute/admin/DM/
// internet) so a concrete plugin only has to implement ShouldExecute,
// Execute, ResponseFormat and HelpText — the Go shape of Python's
// BaseCommand (spec.md §9).
type Base struct {
	CmdName             string
	CmdKeywords         []string
	CmdCategory         string
	CmdDescription      string
	CmdShortDescription string
	CmdUsage            string
	CmdExamples         []string

	Admin      bool
	DMOnly     bool
	Internet   bool
	AllowedChannels []string

	PerUserCooldown time.Duration
	GlobalCooldown  time.Duration
	QueueThreshold  float64

	mu         sync.Mutex
	lastGlobal time.Time
	lastUser   map[string]time.Time
}

func (b *Base) Name() string             { return b.CmdName }
func (b *Base) Keywords() []string       { return b.CmdKeywords }
func (b *Base) Category() string         { return b.CmdCategory }
func (b *Base) Description() string      { return b.CmdDescription }
func (b *Base) ShortDescription() string { return b.CmdShortDescription }
func (b *Base) Usage() string            { return b.CmdUsage }
func (b *Base) Examples() []string       { return b.CmdExamples }

func (b *Base) CanExecute(_ message.MeshMessage) bool { return true }
func (b *Base) RequiresAdminAccess() bool   { return b.Admin }
func (b *Base) RequiresDM() bool            { return b.DMOnly }
func (b *Base) RequiresInternet() bool      { return b.Internet }

func (b *Base) IsChannelAllowed(channel string) bool {
	if len(b.AllowedChannels) == 0 {
		return false
	}
	for _, c := range b.AllowedChannels {
		if c == channel {
			return true
		}
	}
	return false
}

func (b *Base) QueueThresholdSeconds() float64 { return b.QueueThreshold }

// CheckCooldown enforces the per-user cooldown first, then the global one —
// matching spec.md §4.4's "(a) per-user cooldown, (b) global cooldown" gate
// order. isGlobal tells the dispatcher whether the blocking cooldown is the
// global one (eligible for the retry queue) or per-user (never queued).
func (b *Base) CheckCooldown(userID string) (ok bool, remaining time.Duration, isGlobal bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if b.PerUserCooldown > 0 && userID != "" {
		if last, seen := b.lastUser[userID]; seen {
			if elapsed := now.Sub(last); elapsed < b.PerUserCooldown {
				return false, b.PerUserCooldown - elapsed, false
			}
		}
	}
	if b.GlobalCooldown > 0 {
		if elapsed := now.Sub(b.lastGlobal); !b.lastGlobal.IsZero() && elapsed < b.GlobalCooldown {
			return false, b.GlobalCooldown - elapsed, true
		}
	}
	return true, 0, false
}

func (b *Base) RecordExecution(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.lastGlobal = now
	if userID == "" {
		return
	}
	if b.lastUser == nil {
		b.lastUser = make(map[string]time.Time)
	}
	b.lastUser[userID] = now
}
