// Package dispatch decides which plugin answers a message and drives it
// through should_execute/can_execute/cooldown/admin/internet gates before
// executing and replying (spec.md §4.4).
package dispatch

import (
	"context"
	"time"

	"meshbot/internal/message"
)

// Command is the capability set every plugin implements — the Go
// equivalent of the Python BaseCommand (spec.md §9 "Polymorphism via
// interfaces").
type Command interface {
	Name() string
	Keywords() []string
	Category() string
	Description() string
	ShortDescription() string
	Usage() string
	Examples() []string

	Execute(ctx context.Context, msg message.MeshMessage) (bool, error)
	// ResponseFormat returns a synchronous reply template and true if the
	// plugin wants dispatch to format and send its response; it returns
	// false when the plugin already sent its own reply(ies).
	ResponseFormat(msg message.MeshMessage) (string, bool)

	ShouldExecute(msg message.MeshMessage) bool
	CanExecute(msg message.MeshMessage) bool
	RequiresAdminAccess() bool
	IsChannelAllowed(channel string) bool
	RequiresDM() bool
	RequiresInternet() bool

	// CheckCooldown reports whether userID (empty for channel-wide callers
	// with no individual identity) may run this command now. When ok is
	// false, remaining is how long until the blocking cooldown clears and
	// isGlobal reports whether that blocking cooldown is the global one
	// (as opposed to a per-user cooldown) — only a global cooldown close
	// to expiry is eligible for the cooldown queue.
	CheckCooldown(userID string) (ok bool, remaining time.Duration, isGlobal bool)
	RecordExecution(userID string)
	QueueThresholdSeconds() float64

	HelpText(msg *message.MeshMessage) string
}

// Service is the narrower capability set for background service plugins
// supervised by the scheduler (spec.md §4.9, §9).
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsHealthy() bool
	Name() string
}
