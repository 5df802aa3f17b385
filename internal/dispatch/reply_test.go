package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"meshbot/internal/tracker"
)

type fakeRadio struct {
	mu          sync.Mutex
	channelSent []string
}

func (f *fakeRadio) SendDM(ctx context.Context, recipientName, content string) error { return nil }

func (f *fakeRadio) SendChannel(ctx context.Context, channelIndex int, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelSent = append(f.channelSent, content)
	return nil
}

func (f *fakeRadio) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channelSent)
}

func newTestReply(radio *fakeRadio, trk *tracker.Tracker, cfg ReplyConfig) *Reply {
	return NewReply(radio, nil, nil, nil, trk, cfg, nil)
}

func TestReply_ChannelRetryResendsWhenUnechoed(t *testing.T) {
	radio := &fakeRadio{}
	trk := tracker.New("bb", nil)
	r := newTestReply(radio, trk, ReplyConfig{
		ChannelRetryEnabled:     true,
		ChannelRetryEchoWindow:  5 * time.Millisecond,
		ChannelRetryMaxAttempts: 2,
	})

	sent, err := r.SendChannel(context.Background(), 1, "hello", "cmd-1")
	if err != nil || !sent {
		t.Fatalf("sent=%v err=%v", sent, err)
	}

	// Nothing ever echoes this send, so every attempt's echo window should
	// elapse and trigger a resend, up to ChannelRetryMaxAttempts.
	waitForCount(t, radio, 3) // original send + 2 resend attempts
}

func TestReply_ChannelRetryStopsOnceEchoed(t *testing.T) {
	radio := &fakeRadio{}
	trk := tracker.New("bb", nil)
	r := newTestReply(radio, trk, ReplyConfig{
		ChannelRetryEnabled:     true,
		ChannelRetryEchoWindow:  50 * time.Millisecond,
		ChannelRetryMaxAttempts: 5,
	})

	sent, err := r.SendChannel(context.Background(), 1, "hello", "cmd-1")
	if err != nil || !sent {
		t.Fatalf("sent=%v err=%v", sent, err)
	}

	// Echo the original send twice, well inside the echo window: once to
	// confirm, once to count as a repeat — spec.md §4.6's channel-retry
	// criterion is repeat_count >= 1.
	trk.Ingest(context.Background(), "hash-1", "aa", false, time.Now())
	trk.Ingest(context.Background(), "hash-1", "cc", false, time.Now())

	time.Sleep(100 * time.Millisecond) // past the echo window, before a resend would fire
	if got := radio.count(); got != 1 {
		t.Fatalf("expected no resend once echoed, got %d sends", got)
	}
}

func TestReply_ChannelRetryDisabledNeverResends(t *testing.T) {
	radio := &fakeRadio{}
	trk := tracker.New("bb", nil)
	r := newTestReply(radio, trk, ReplyConfig{ChannelRetryEnabled: false})

	sent, err := r.SendChannel(context.Background(), 1, "hello", "cmd-1")
	if err != nil || !sent {
		t.Fatalf("sent=%v err=%v", sent, err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := radio.count(); got != 1 {
		t.Fatalf("expected exactly one send with retry disabled, got %d", got)
	}
}

func waitForCount(t *testing.T, radio *fakeRadio, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if radio.count() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected at least %d channel sends, got %d", want, radio.count())
}
