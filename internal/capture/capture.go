// Package capture defines the hooks the core uses to feed external
// consumers — a web viewer, a map uploader — without ever blocking on their
// reachability (spec.md §6.5).
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StreamType classifies a packet_stream row.
type StreamType string

const (
	StreamPacket  StreamType = "packet"
	StreamCommand StreamType = "command"
	StreamRouting StreamType = "routing"
)

// Target is the synchronous capture surface the core calls into. Every
// method must return quickly: implementations that talk to the network do
// so on a background goroutine and never propagate their own failures back
// to the caller.
type Target interface {
	CaptureCommand(ctx context.Context, senderID, commandName, response string, success bool, commandID string)
	CaptureFullPacketData(ctx context.Context, decoded any)
	CapturePacketRouting(ctx context.Context, routing any)
	SendMeshNodeUpdate(ctx context.Context, node any)
	SendMeshEdgeUpdate(ctx context.Context, edge any)
}

// StreamWriter is the minimal persistence surface a Target needs: append a
// JSON-serialized row to packet_stream.
type StreamWriter interface {
	AppendStreamEntry(ctx context.Context, typ StreamType, payload any, at time.Time) error
}

// NullTarget discards every capture call; used when no capture backend is
// configured.
type NullTarget struct{}

func (NullTarget) CaptureCommand(context.Context, string, string, string, bool, string) {}
func (NullTarget) CaptureFullPacketData(context.Context, any)                           {}
func (NullTarget) CapturePacketRouting(context.Context, any)                            {}
func (NullTarget) SendMeshNodeUpdate(context.Context, any)                              {}
func (NullTarget) SendMeshEdgeUpdate(context.Context, any)                              {}

// StoreTarget is the default capture backend: every call serializes its
// payload to JSON (stringifying anything json can't marshal) and appends a
// packet_stream row by calling its StreamWriter directly, synchronously in
// the caller's goroutine.
type StoreTarget struct {
	store StreamWriter
}

func NewStoreTarget(store StreamWriter) *StoreTarget {
	return &StoreTarget{store: store}
}

func (t *StoreTarget) CaptureCommand(ctx context.Context, senderID, commandName, response string, success bool, commandID string) {
	t.append(ctx, StreamCommand, map[string]any{
		"sender_id":    senderID,
		"command_name": commandName,
		"response":     response,
		"success":      success,
		"command_id":   commandID,
	})
}

func (t *StoreTarget) CaptureFullPacketData(ctx context.Context, decoded any) {
	t.append(ctx, StreamPacket, decoded)
}

func (t *StoreTarget) CapturePacketRouting(ctx context.Context, routing any) {
	t.append(ctx, StreamRouting, routing)
}

func (t *StoreTarget) SendMeshNodeUpdate(ctx context.Context, node any) {
	t.append(ctx, StreamRouting, map[string]any{"node": node})
}

func (t *StoreTarget) SendMeshEdgeUpdate(ctx context.Context, edge any) {
	t.append(ctx, StreamRouting, map[string]any{"edge": edge})
}

func (t *StoreTarget) append(ctx context.Context, typ StreamType, payload any) {
	if t.store == nil {
		return
	}
	_ = t.store.AppendStreamEntry(ctx, typ, stringifyUnmarshalable(payload), time.Now())
}

// stringifyUnmarshalable marshals payload, falling back to fmt.Sprintf for
// values json.Marshal rejects (channels, funcs) so capture never errors out.
func stringifyUnmarshalable(payload any) any {
	if _, err := json.Marshal(payload); err != nil {
		return fmt.Sprintf("%+v", payload)
	}
	return payload
}

// MultiTarget fans a capture call out to every target, best-effort: a
// target's own implementation is responsible for not blocking, so this
// fan-out just iterates in order.
type MultiTarget struct {
	Targets []Target
}

func (m MultiTarget) CaptureCommand(ctx context.Context, senderID, commandName, response string, success bool, commandID string) {
	for _, t := range m.Targets {
		t.CaptureCommand(ctx, senderID, commandName, response, success, commandID)
	}
}

func (m MultiTarget) CaptureFullPacketData(ctx context.Context, decoded any) {
	for _, t := range m.Targets {
		t.CaptureFullPacketData(ctx, decoded)
	}
}

func (m MultiTarget) CapturePacketRouting(ctx context.Context, routing any) {
	for _, t := range m.Targets {
		t.CapturePacketRouting(ctx, routing)
	}
}

func (m MultiTarget) SendMeshNodeUpdate(ctx context.Context, node any) {
	for _, t := range m.Targets {
		t.SendMeshNodeUpdate(ctx, node)
	}
}

func (m MultiTarget) SendMeshEdgeUpdate(ctx context.Context, edge any) {
	for _, t := range m.Targets {
		t.SendMeshEdgeUpdate(ctx, edge)
	}
}
