package dispatch

import (
	"context"
	"sync"
	"time"

	"meshbot/internal/message"
)

// queuedEntry is a command waiting out a global cooldown whose remaining
// time is small enough to be worth an automatic retry (spec.md §4.4.2).
type queuedEntry struct {
	command   Command
	msg       message.MeshMessage
	queuedAt  time.Time
	expiresAt time.Time
}

// recentSelfFireWindow is how recently the same user must NOT have fired this
// command themselves for a queue entry to be created — it stops a user's
// own rapid-fire requests from piling up as queue entries.
const recentSelfFireWindow = 3 * time.Second

// CooldownQueue holds at most one queued entry per (command, user) and
// executes each exactly once its expiry passes, bypassing further cooldown
// checks — queuing is silent, the asker gets no "queued" acknowledgement.
type CooldownQueue struct {
	mu      sync.Mutex
	entries map[string]*queuedEntry
	run     func(ctx context.Context, cmd Command, msg message.MeshMessage)

	activePoll time.Duration
	idlePoll   time.Duration
}

const (
	defaultActivePoll = 100 * time.Millisecond
	defaultIdlePoll   = 500 * time.Millisecond
)

func NewCooldownQueue(run func(ctx context.Context, cmd Command, msg message.MeshMessage)) *CooldownQueue {
	return &CooldownQueue{
		entries:    make(map[string]*queuedEntry),
		run:        run,
		activePoll: defaultActivePoll,
		idlePoll:   defaultIdlePoll,
	}
}

func queueKey(commandName, userID string) string {
	return commandName + "\x00" + userID
}

// TryEnqueue adds a queue entry for (cmd, userID) if one doesn't already
// exist. Returns false when the user already has a pending entry for this
// command — at most one per user per command.
func (q *CooldownQueue) TryEnqueue(cmd Command, msg message.MeshMessage, userID string, remaining time.Duration, now time.Time) bool {
	key := queueKey(cmd.Name(), userID)

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[key]; exists {
		return false
	}
	q.entries[key] = &queuedEntry{command: cmd, msg: msg, queuedAt: now, expiresAt: now.Add(remaining)}
	return true
}

// Run polls ready entries until ctx is cancelled, executing each exactly
// once its expiry passes.
func (q *CooldownQueue) Run(ctx context.Context) {
	poll := q.idlePoll
	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		ready := q.drainReady(time.Now())
		for _, e := range ready {
			if q.run != nil {
				q.run(ctx, e.command, e.msg)
			}
		}

		if len(ready) > 0 {
			poll = q.activePoll
		} else {
			poll = q.idlePoll
		}
		timer.Reset(poll)
	}
}

func (q *CooldownQueue) drainReady(now time.Time) []*queuedEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []*queuedEntry
	for key, e := range q.entries {
		if !now.Before(e.expiresAt) {
			ready = append(ready, e)
			delete(q.entries, key)
		}
	}
	return ready
}

// Len reports the number of still-queued entries, mainly for tests.
func (q *CooldownQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
