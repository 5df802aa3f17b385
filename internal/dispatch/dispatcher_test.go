package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"meshbot/internal/message"
)

// fakeCommand is a minimal Command double for dispatcher tests.
type fakeCommand struct {
	name        string
	keywords    []string
	shouldExec  func(msg message.MeshMessage) bool
	canExec     bool
	cooldownOK  bool
	cooldownRem time.Duration
	cooldownGlobal bool
	requiresDM  bool
	requiresAdmin bool
	requiresNet bool
	queueThresholdSeconds float64
	responseTemplate string
	autoReply   bool

	mu       sync.Mutex
	executed int
	recorded []string
}

func (f *fakeCommand) Name() string        { return f.name }
func (f *fakeCommand) Keywords() []string  { return f.keywords }
func (f *fakeCommand) Category() string    { return "test" }
func (f *fakeCommand) Description() string { return f.name }
func (f *fakeCommand) ShortDescription() string { return f.name }
func (f *fakeCommand) Usage() string       { return f.name }
func (f *fakeCommand) Examples() []string  { return nil }

func (f *fakeCommand) Execute(ctx context.Context, msg message.MeshMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed++
	return true, nil
}

func (f *fakeCommand) ResponseFormat(msg message.MeshMessage) (string, bool) {
	return f.responseTemplate, f.autoReply
}

func (f *fakeCommand) ShouldExecute(msg message.MeshMessage) bool {
	if f.shouldExec != nil {
		return f.shouldExec(msg)
	}
	return false
}
func (f *fakeCommand) CanExecute(msg message.MeshMessage) bool { return f.canExec }
func (f *fakeCommand) RequiresAdminAccess() bool               { return f.requiresAdmin }
func (f *fakeCommand) IsChannelAllowed(channel string) bool    { return false }
func (f *fakeCommand) RequiresDM() bool                        { return f.requiresDM }
func (f *fakeCommand) RequiresInternet() bool                  { return f.requiresNet }

func (f *fakeCommand) CheckCooldown(userID string) (bool, time.Duration, bool) {
	return f.cooldownOK, f.cooldownRem, f.cooldownGlobal
}
func (f *fakeCommand) RecordExecution(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, userID)
}
func (f *fakeCommand) QueueThresholdSeconds() float64 { return f.queueThresholdSeconds }
func (f *fakeCommand) HelpText(msg *message.MeshMessage) string { return "help: " + f.name }

func (f *fakeCommand) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executed
}

type fakeSender struct {
	mu        sync.Mutex
	dmSent    []string
	chanSent  []string
}

func (s *fakeSender) SendDM(ctx context.Context, recipientName, content, commandID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dmSent = append(s.dmSent, content)
	return true, nil
}

func (s *fakeSender) SendChannel(ctx context.Context, channelIndex int, content, commandID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chanSent = append(s.chanSent, content)
	return true, nil
}

func newTestDispatcher(cmd *fakeCommand, cfg Config, sender Sender) *Dispatcher {
	reg := NewRegistry(nil)
	reg.Register(cmd)
	d := New(reg, cfg, sender, nil, nil, nil, nil, nil, nil)
	d.sleep = func(time.Duration) {} // no real sleeping in tests
	return d
}

func TestDispatch_PingDM(t *testing.T) {
	ping := &fakeCommand{
		name:     "ping",
		keywords: []string{"ping"},
		shouldExec: func(msg message.MeshMessage) bool {
			return msg.Content == "ping"
		},
		canExec:    true,
		cooldownOK: true,
	}
	sender := &fakeSender{}
	d := newTestDispatcher(ping, Config{}, sender)

	msg := message.MeshMessage{Content: "ping", SenderID: "alice", IsDM: true}
	handled, err := d.Dispatch(context.Background(), msg)
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if ping.execCount() != 1 {
		t.Fatalf("expected ping to execute once, got %d", ping.execCount())
	}
}

func TestDispatch_PrefixedPingInChannel(t *testing.T) {
	ping := &fakeCommand{
		name:     "ping",
		keywords: []string{"ping"},
		shouldExec: func(msg message.MeshMessage) bool {
			return msg.Content == "ping"
		},
		canExec:    true,
		cooldownOK: true,
	}
	sender := &fakeSender{}
	channel := "general"
	d := newTestDispatcher(ping, Config{CommandPrefix: "!"}, sender)

	msg := message.MeshMessage{Content: "!ping", SenderID: "bob", Channel: &channel}
	handled, err := d.Dispatch(context.Background(), msg)
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if ping.execCount() != 1 {
		t.Fatalf("expected ping to execute once, got %d", ping.execCount())
	}
}

func TestDispatch_MissingRequiredPrefixDoesNotMatch(t *testing.T) {
	ping := &fakeCommand{
		name:       "ping",
		shouldExec: func(msg message.MeshMessage) bool { return true },
		canExec:    true,
		cooldownOK: true,
	}
	d := newTestDispatcher(ping, Config{CommandPrefix: "!"}, &fakeSender{})

	handled, err := d.Dispatch(context.Background(), message.MeshMessage{Content: "ping", SenderID: "bob", IsDM: true})
	if err != nil || handled {
		t.Fatalf("expected no match without required prefix, got handled=%v", handled)
	}
	if ping.execCount() != 0 {
		t.Fatalf("command must not execute without its required prefix")
	}
}

func TestDispatch_CanExecuteFalseSilentlyIgnores(t *testing.T) {
	cmd := &fakeCommand{
		name:       "gated",
		shouldExec: func(msg message.MeshMessage) bool { return true },
		canExec:    false,
	}
	sender := &fakeSender{}
	d := newTestDispatcher(cmd, Config{}, sender)

	handled, err := d.Dispatch(context.Background(), message.MeshMessage{Content: "x", SenderID: "alice", IsDM: true})
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if cmd.execCount() != 0 {
		t.Fatalf("can_execute=false must prevent execution")
	}
	if len(sender.dmSent) != 0 {
		t.Fatalf("can_execute=false must produce no reply")
	}
}

func TestDispatch_RequiresAdminDeniesNonAdmin(t *testing.T) {
	cmd := &fakeCommand{
		name:          "admin-only",
		shouldExec:    func(msg message.MeshMessage) bool { return true },
		canExec:       true,
		cooldownOK:    true,
		requiresAdmin: true,
	}
	sender := &fakeSender{}
	d := newTestDispatcher(cmd, Config{AdminPubkeys: map[string]bool{"adminkey": true}}, sender)

	msg := message.MeshMessage{Content: "x", SenderID: "eve", SenderPubkey: "nope", IsDM: true}
	handled, err := d.Dispatch(context.Background(), msg)
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if cmd.execCount() != 0 {
		t.Fatalf("non-admin must not execute an admin-only command")
	}
	if len(sender.dmSent) != 1 {
		t.Fatalf("expected an access-denied reply, got %d sends", len(sender.dmSent))
	}
}

func TestDispatch_RequiresDMRejectsChannelMessage(t *testing.T) {
	cmd := &fakeCommand{
		name:       "dm-only",
		shouldExec: func(msg message.MeshMessage) bool { return true },
		canExec:    true,
		cooldownOK: true,
		requiresDM: true,
	}
	sender := &fakeSender{}
	channel := "general"
	d := newTestDispatcher(cmd, Config{}, sender)

	msg := message.MeshMessage{Content: "x", SenderID: "alice", Channel: &channel}
	handled, err := d.Dispatch(context.Background(), msg)
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if cmd.execCount() != 0 {
		t.Fatalf("dm-only command must not run from a channel message")
	}
}

func TestDispatch_CooldownQueuesNearExpiryGlobalCooldown(t *testing.T) {
	cmd := &fakeCommand{
		name:                  "slow",
		shouldExec:            func(msg message.MeshMessage) bool { return true },
		canExec:               true,
		cooldownOK:            false,
		cooldownRem:           50 * time.Millisecond,
		cooldownGlobal:        true,
		queueThresholdSeconds: 1,
	}
	d := newTestDispatcher(cmd, Config{}, &fakeSender{})

	msg := message.MeshMessage{Content: "x", SenderID: "alice", IsDM: true}
	handled, err := d.Dispatch(context.Background(), msg)
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if cmd.execCount() != 0 {
		t.Fatalf("queued command must not execute immediately")
	}
	if d.queue.Len() != 1 {
		t.Fatalf("expected one queued retry, got %d", d.queue.Len())
	}
}

func TestDispatch_CooldownFarFromExpiryIsNotQueued(t *testing.T) {
	cmd := &fakeCommand{
		name:                  "slow",
		shouldExec:            func(msg message.MeshMessage) bool { return true },
		canExec:               true,
		cooldownOK:            false,
		cooldownRem:           time.Hour,
		cooldownGlobal:        true,
		queueThresholdSeconds: 1,
	}
	sender := &fakeSender{}
	d := newTestDispatcher(cmd, Config{}, sender)

	_, _ = d.Dispatch(context.Background(), message.MeshMessage{Content: "x", SenderID: "alice", IsDM: true})
	if d.queue.Len() != 0 {
		t.Fatalf("cooldown far from expiry must not be queued")
	}
	if len(sender.dmSent) != 1 {
		t.Fatalf("expected a cooldown reply when not queued, got %v", sender.dmSent)
	}
}

func TestDispatch_PlainKeywordReplies(t *testing.T) {
	sender := &fakeSender{}
	reg := NewRegistry(nil)
	d := New(reg, Config{PlainKeywords: map[string]string{"hello": "hi {sender}"}}, sender, nil, nil, nil, nil, nil, nil)
	d.sleep = func(time.Duration) {}

	msg := message.MeshMessage{Content: "hello", SenderID: "alice", IsDM: true}
	handled, err := d.Dispatch(context.Background(), msg)
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if len(sender.dmSent) != 1 || sender.dmSent[0] != "hi alice" {
		t.Fatalf("unexpected reply: %v", sender.dmSent)
	}
}

func TestDispatch_HelpKeywordShortCircuits(t *testing.T) {
	cmd := &fakeCommand{
		name:       "ping",
		shouldExec: func(msg message.MeshMessage) bool { return true },
		canExec:    true,
		cooldownOK: true,
	}
	sender := &fakeSender{}
	d := newTestDispatcher(cmd, Config{}, sender)

	msg := message.MeshMessage{Content: "help ping", SenderID: "alice", IsDM: true}
	handled, err := d.Dispatch(context.Background(), msg)
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if cmd.execCount() != 0 {
		t.Fatalf("help must short-circuit before matching a command")
	}
	if len(sender.dmSent) != 1 || sender.dmSent[0] != "help: ping" {
		t.Fatalf("unexpected help reply: %v", sender.dmSent)
	}
}
