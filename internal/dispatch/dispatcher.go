package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"meshbot/internal/capture"
	"meshbot/internal/message"
)

// Sender is the gated reply surface the dispatcher calls into; Reply is the
// production implementation.
type Sender interface {
	SendDM(ctx context.Context, recipientName, content, commandID string) (bool, error)
	SendChannel(ctx context.Context, channelIndex int, content, commandID string) (bool, error)
}

// ChannelResolver maps a channel name to the device channel index a Sender
// needs.
type ChannelResolver interface {
	Resolve(name string) (index int, ok bool)
}

// StatsRecorder records every dispatched (or gate-rejected) command attempt.
type StatsRecorder interface {
	RecordCommand(ctx context.Context, commandName, senderID string, isDM, success bool, at time.Time) error
}

// Translator is the localization surface the dispatcher needs: message
// lookup plus the configured help keywords (spec.md §4.4.1).
type Translator interface {
	T(messageID string, data map[string]any) string
	HelpKeywords() []string
}

// Config holds the dispatch-wide settings read from [Bot]/[Channels].
type Config struct {
	// CommandPrefix is required at the start of every command message when
	// non-empty. When empty, a bare leading "!" is still stripped if
	// present, but no prefix is required at all (legacy behavior).
	CommandPrefix string
	// ChannelKeywords, when non-empty, restricts which triggers are honored
	// in channel messages; DMs are never restricted by this list.
	ChannelKeywords []string
	// PlainKeywords maps a bare keyword to a reply template, for commands
	// too simple to need a full Command implementation.
	PlainKeywords map[string]string
	AdminPubkeys  map[string]bool
}

// Dispatcher matches incoming messages to commands and drives each through
// its gate chain before executing and replying (spec.md §4.4).
type Dispatcher struct {
	registry    *Registry
	cfg         Config
	sender      Sender
	channels    ChannelResolver
	stats       StatsRecorder
	capture     capture.Target
	translator  Translator
	internet    *InternetChecker
	queue       *CooldownQueue
	log         *slog.Logger

	mu           sync.Mutex
	lastSelfFire map[string]time.Time

	settleDelay time.Duration
	sleep       func(time.Duration)
	now         func() time.Time
}

func New(registry *Registry, cfg Config, sender Sender, channels ChannelResolver, stats StatsRecorder, captureTarget capture.Target, translator Translator, internet *InternetChecker, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if captureTarget == nil {
		captureTarget = capture.NullTarget{}
	}
	d := &Dispatcher{
		registry:     registry,
		cfg:          cfg,
		sender:       sender,
		channels:     channels,
		stats:        stats,
		capture:      captureTarget,
		translator:   translator,
		internet:     internet,
		log:          log,
		lastSelfFire: make(map[string]time.Time),
		settleDelay:  100 * time.Millisecond,
		sleep:        time.Sleep,
		now:          time.Now,
	}
	d.queue = NewCooldownQueue(func(ctx context.Context, cmd Command, msg message.MeshMessage) {
		d.runGates(ctx, cmd, msg, true)
	})
	return d
}

// RunCooldownQueue blocks, polling queued retries, until ctx is cancelled.
// Run it on its own goroutine from cmd/meshbot's wiring.
func (d *Dispatcher) RunCooldownQueue(ctx context.Context) {
	d.queue.Run(ctx)
}

// Dispatch attempts to match and run a command for msg. It returns false,
// nil when nothing matched (the message wasn't a command at all) so callers
// can fall through to other handling (e.g. a plain greeter reply).
func (d *Dispatcher) Dispatch(ctx context.Context, msg message.MeshMessage) (bool, error) {
	stripped, matched := stripPrefix(msg.Content, d.cfg.CommandPrefix)
	if !matched {
		return false, nil
	}
	msg.Content = stripped
	trimmed := strings.TrimSpace(msg.Content)
	if trimmed == "" {
		return false, nil
	}

	if hk, rest, ok := d.matchHelpKeyword(trimmed); ok {
		d.handleHelp(ctx, msg, hk, rest)
		return true, nil
	}

	if cmd, ok := d.matchCommand(msg); ok {
		if !d.channelScopeAllows(cmd, msg) {
			return false, nil
		}
		return true, d.runGates(ctx, cmd, msg, false)
	}

	return d.tryPlainKeyword(ctx, msg, trimmed), nil
}

// stripPrefix enforces the configured command prefix. When prefix is empty,
// a legacy leading "!" is stripped if present but never required.
func stripPrefix(content, prefix string) (string, bool) {
	if prefix != "" {
		if !strings.HasPrefix(content, prefix) {
			return "", false
		}
		return content[len(prefix):], true
	}
	if strings.HasPrefix(content, "!") {
		return content[1:], true
	}
	return content, true
}

func (d *Dispatcher) matchHelpKeyword(trimmed string) (keyword, rest string, ok bool) {
	keywords := []string{"help"}
	if d.translator != nil {
		if hk := d.translator.HelpKeywords(); len(hk) > 0 {
			keywords = hk
		}
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range keywords {
		if lower == kw {
			return kw, "", true
		}
		if strings.HasPrefix(lower, kw+" ") {
			return kw, strings.TrimSpace(trimmed[len(kw):]), true
		}
	}
	return "", "", false
}

func (d *Dispatcher) handleHelp(ctx context.Context, msg message.MeshMessage, keyword, rest string) {
	var text string
	if rest != "" {
		if cmd, ok := d.registry.ByName(rest); ok {
			text = cmd.HelpText(&msg)
		} else if cmd, ok := d.registry.ByKeyword(rest); ok {
			text = cmd.HelpText(&msg)
		}
	}
	if text == "" {
		text = d.generalHelp()
	}
	_ = d.replyTo(ctx, msg, text, "")
}

func (d *Dispatcher) generalHelp() string {
	var b strings.Builder
	for _, cmd := range d.registry.All() {
		b.WriteString(cmd.ShortDescription())
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// matchCommand tries every registered command's ShouldExecute predicate in
// registration order — the plugin decides whether it wants this message.
func (d *Dispatcher) matchCommand(msg message.MeshMessage) (Command, bool) {
	for _, cmd := range d.registry.All() {
		if cmd.ShouldExecute(msg) {
			return cmd, true
		}
	}
	return nil, false
}

// tryPlainKeyword answers a bare [Keywords] table entry directly, with no
// gate chain — these are too simple to need should_execute/cooldown/admin.
func (d *Dispatcher) tryPlainKeyword(ctx context.Context, msg message.MeshMessage, trimmed string) bool {
	if len(d.cfg.PlainKeywords) == 0 {
		return false
	}
	fields := strings.SplitN(trimmed, " ", 2)
	key := strings.ToLower(fields[0])
	template, ok := d.cfg.PlainKeywords[key]
	if !ok {
		return false
	}
	if !msg.IsDM && len(d.cfg.ChannelKeywords) > 0 && !contains(d.cfg.ChannelKeywords, key) {
		return false
	}
	text := Format(template, FromMessage(msg))
	_ = d.replyTo(ctx, msg, text, "")
	if d.stats != nil {
		_ = d.stats.RecordCommand(ctx, "keyword:"+key, msg.SenderID, msg.IsDM, true, d.now())
	}
	return true
}

func (d *Dispatcher) channelScopeAllows(cmd Command, msg message.MeshMessage) bool {
	if msg.IsDM || msg.Channel == nil {
		return true
	}
	if len(d.cfg.ChannelKeywords) == 0 {
		return true
	}
	for _, kw := range cmd.Keywords() {
		if contains(d.cfg.ChannelKeywords, kw) {
			return true
		}
	}
	return cmd.IsChannelAllowed(*msg.Channel)
}

// runGates drives cmd through the full per-command gate chain in spec
// order: should_execute (already satisfied by the caller) → can_execute →
// cooldown (with queueing) → DM-only → admin ACL → internet-required →
// execute. skipCooldown is set only when called back from the cooldown
// queue, which has already waited out the blocking cooldown.
func (d *Dispatcher) runGates(ctx context.Context, cmd Command, msg message.MeshMessage, skipCooldown bool) error {
	if !cmd.CanExecute(msg) {
		return nil
	}

	userID := msg.SenderID
	if !skipCooldown {
		ok, remaining, isGlobal := cmd.CheckCooldown(userID)
		if !ok {
			if d.maybeQueue(cmd, msg, userID, remaining, isGlobal) {
				return nil
			}
			return d.replyTo(ctx, msg, d.tr("cooldown_active", map[string]any{
				"command": cmd.Name(),
				"seconds": remaining.Seconds(),
			}), "")
		}
	}

	if cmd.RequiresDM() && !msg.IsDM {
		if !d.channelScopeAllows(cmd, msg) {
			return nil
		}
		return d.replyTo(ctx, msg, d.tr("dm_only", nil), "")
	}

	if cmd.RequiresAdminAccess() && !d.isAdmin(msg.SenderPubkey) {
		return d.replyTo(ctx, msg, d.tr("access_denied", nil), "")
	}

	if cmd.RequiresInternet() && d.internet != nil && !d.internet.Reachable(ctx) {
		return d.replyTo(ctx, msg, d.tr("no_internet", nil), "")
	}

	return d.execute(ctx, cmd, msg)
}

// maybeQueue enqueues a retry only when the blocking cooldown is the global
// one, close enough to expiry to be worth waiting out, and the same user
// hasn't already fired this command within recentSelfFireWindow. It
// reports whether the command was queued; callers reply with a cooldown
// message when it wasn't.
func (d *Dispatcher) maybeQueue(cmd Command, msg message.MeshMessage, userID string, remaining time.Duration, isGlobal bool) bool {
	if !isGlobal {
		return false
	}
	threshold := time.Duration(cmd.QueueThresholdSeconds() * float64(time.Second))
	if remaining > threshold {
		return false
	}
	if d.recentlySelfFired(cmd.Name(), userID) {
		return false
	}
	return d.queue.TryEnqueue(cmd, msg, userID, remaining, d.now())
}

func (d *Dispatcher) recentlySelfFired(commandName, userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastSelfFire[queueKey(commandName, userID)]
	if !ok {
		return false
	}
	return d.now().Sub(last) < recentSelfFireWindow
}

func (d *Dispatcher) markSelfFire(commandName, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSelfFire[queueKey(commandName, userID)] = d.now()
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command, msg message.MeshMessage) error {
	d.markSelfFire(cmd.Name(), msg.SenderID)
	if d.sleep != nil {
		d.sleep(d.settleDelay)
	}

	ok, err := cmd.Execute(ctx, msg)
	cmd.RecordExecution(msg.SenderID)

	if template, auto := cmd.ResponseFormat(msg); auto {
		text := Format(template, FromMessage(msg))
		_ = d.replyTo(ctx, msg, text, cmd.Name())
	}

	if d.stats != nil {
		_ = d.stats.RecordCommand(ctx, cmd.Name(), msg.SenderID, msg.IsDM, ok && err == nil, d.now())
	}
	d.capture.CaptureCommand(ctx, msg.SenderID, cmd.Name(), msg.Content, ok && err == nil, cmd.Name())

	return err
}

func (d *Dispatcher) replyTo(ctx context.Context, msg message.MeshMessage, text, commandID string) error {
	if d.sender == nil || text == "" {
		return nil
	}
	if msg.IsDM {
		_, err := d.sender.SendDM(ctx, msg.SenderID, text, commandID)
		return err
	}
	channel := ""
	if msg.Channel != nil {
		channel = *msg.Channel
	}
	index := 0
	if d.channels != nil {
		if i, ok := d.channels.Resolve(channel); ok {
			index = i
		}
	}
	_, err := d.sender.SendChannel(ctx, index, text, commandID)
	return err
}

func (d *Dispatcher) isAdmin(pubkey string) bool {
	return pubkey != "" && d.cfg.AdminPubkeys[pubkey]
}

func (d *Dispatcher) tr(messageID string, data map[string]any) string {
	if d.translator == nil {
		return messageID
	}
	return d.translator.T(messageID, data)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
