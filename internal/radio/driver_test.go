package radio

import (
	"context"
	"sync"
	"testing"
	"time"

	"meshbot/internal/bus"
)

type fakeTransport struct {
	mu      sync.Mutex
	written [][]byte
}

func (f *fakeTransport) Name() string                             { return "fake" }
func (f *fakeTransport) Connect(context.Context) error             { return nil }
func (f *fakeTransport) Close() error                              { return nil }
func (f *fakeTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (f *fakeTransport) WriteFrame(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, payload)
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][]any
}

func newFakeBus() *fakeBus { return &fakeBus{published: make(map[string][]any)} }

func (b *fakeBus) Publish(topic string, msg any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = append(b.published[topic], msg)
}
func (b *fakeBus) Subscribe(string) bus.Subscription            { return nil }
func (b *fakeBus) Unsubscribe(bus.Subscription, ...string)      {}
func (b *fakeBus) Close()                                       {}

func TestDriver_SendDMEnqueuesAndWritesFrame(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDriver(nil, tr, NewMeshCoreCodec(), newFakeBus(), nil, "bot")
	d.setConnected(true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go d.runOutbox(ctx)

	if err := d.SendDM(ctx, "alice", "hi there"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.written) != 1 {
		t.Fatalf("expected one frame written, got %d", len(tr.written))
	}
	if tr.written[0][0] != cmdSendMsg {
		t.Fatalf("unexpected command byte: %x", tr.written[0][0])
	}
}

func TestDriver_AddChannelRejectsInvalidHexKey(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDriver(nil, tr, NewMeshCoreCodec(), newFakeBus(), nil, "bot")

	if _, err := d.AddChannel(context.Background(), "general", "not-hex"); err == nil {
		t.Fatalf("expected error for invalid hex key")
	}
}

func TestDriver_PublishEventRecordsNewContact(t *testing.T) {
	tr := &fakeTransport{}
	b := newFakeBus()
	d := NewDriver(nil, tr, NewMeshCoreCodec(), b, nil, "bot")

	d.publishEvent(NewContactEvent{PublicKey: "deadbeef", Name: "Alice", Timestamp: time.Now()})

	info, ok, err := d.LookupByName(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || info.PublicKey != "deadbeef" {
		t.Fatalf("expected contact to be recorded, got %+v ok=%v", info, ok)
	}

	if len(b.published[TopicNewContact]) != 1 {
		t.Fatalf("expected new contact event published, got %d", len(b.published[TopicNewContact]))
	}
}
