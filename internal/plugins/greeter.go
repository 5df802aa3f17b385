// Package plugins holds the bot's built-in Command implementations (spec.md
// §4.10): ping and the greeter. Each is grounded on the dispatch
// Command/Service interfaces spec.md §9 asks for in place of Python's
// dynamic plugin loader.
package plugins

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"meshbot/internal/message"
)

// GreeterSender is the minimal reply surface the greeter needs.
type GreeterSender interface {
	SendDM(ctx context.Context, recipientName, content, commandID string) (bool, error)
	SendChannel(ctx context.Context, channelIndex int, content, commandID string) (bool, error)
}

// GreeterChannelResolver maps a channel name to a device channel index.
type GreeterChannelResolver interface {
	Resolve(name string) (index int, ok bool)
}

const defaultGreetCooldown = 24 * time.Hour

var humanGreetingWords = []string{"hi", "hello", "hey", "yo", "howdy"}

// Greeter implements message.GreeterObserver: it records the last time each
// sender was seen and, for a sender not seen within the cooldown, sends
// a one-off greeting at once — unless the sender's own message already reads
// like a human greeting (spec.md §4.3 "Greeter interception").
type Greeter struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	pending  map[string]bool

	cooldown time.Duration
	template string
	sender   GreeterSender
	channels GreeterChannelResolver
	log      *slog.Logger
}

func NewGreeter(template string, sender GreeterSender, channels GreeterChannelResolver, log *slog.Logger) *Greeter {
	if log == nil {
		log = slog.Default()
	}
	if template == "" {
		template = "Welcome to the mesh, {sender}!"
	}
	return &Greeter{
		lastSeen: make(map[string]time.Time),
		pending:  make(map[string]bool),
		cooldown: defaultGreetCooldown,
		template: template,
		sender:   sender,
		channels: channels,
		log:      log,
	}
}

func greeterKey(senderID, senderPubkey string) string {
	if senderPubkey != "" {
		return senderPubkey
	}
	return senderID
}

// ObserveSeen records the sighting and, for a sender not seen recently,
// sends a greeting on the same surface the message arrived on — unless the
// message itself already looks like the sender saying hello, in which case
// it's treated as satisfied without a reply.
func (g *Greeter) ObserveSeen(ctx context.Context, senderID, senderPubkey, content string, channel *string, isDM bool, at time.Time) {
	key := greeterKey(senderID, senderPubkey)

	g.mu.Lock()
	last, known := g.lastSeen[key]
	g.lastSeen[key] = at
	dueForGreeting := !known || at.Sub(last) >= g.cooldown
	if looksLikeHumanGreeting(content) {
		dueForGreeting = false
	}
	if dueForGreeting {
		g.pending[key] = true
	}
	g.mu.Unlock()

	if !dueForGreeting || g.sender == nil {
		return
	}
	g.greet(ctx, senderID, key, channel, isDM)
}

func (g *Greeter) greet(ctx context.Context, senderID, key string, channel *string, isDM bool) {
	g.mu.Lock()
	if !g.pending[key] {
		g.mu.Unlock()
		return
	}
	delete(g.pending, key)
	g.mu.Unlock()

	text := strings.ReplaceAll(g.template, "{sender}", senderID)
	var err error
	if isDM {
		_, err = g.sender.SendDM(ctx, senderID, text, "greeter")
	} else {
		index := 0
		if g.channels != nil && channel != nil {
			if i, ok := g.channels.Resolve(*channel); ok {
				index = i
			}
		}
		_, err = g.sender.SendChannel(ctx, index, text, "greeter")
	}
	if err != nil {
		g.log.Warn("greeter send failed", "sender", senderID, "error", err)
	}
}

func looksLikeHumanGreeting(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, w := range humanGreetingWords {
		if lower == w || strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, w+",") {
			return true
		}
	}
	return false
}

var _ message.GreeterObserver = (*Greeter)(nil)
