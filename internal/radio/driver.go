package radio

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"meshbot/internal/bus"
	"meshbot/internal/message"
	"meshbot/internal/protocol"
	"meshbot/internal/rf"
	"meshbot/internal/transport"
)

// sendRequest is one queued outbound frame plus its completion channel — the
// same outbox/result-channel shape the teacher's radio.Service uses to keep
// transport writes single-threaded without blocking callers.
type sendRequest struct {
	encode func() ([]byte, error)
	result chan error
}

const (
	keepAliveInterval = 25 * time.Second
	readFrameTimeout  = 30 * time.Second
	writeFrameTimeout = 8 * time.Second
	maxReconnectWait  = 15 * time.Second
)

// ContactRecord is a minimal snapshot of the device's in-memory contacts
// table — the "mutable contacts table" spec.md §1 lists alongside the event
// bus and command set.
type ContactRecord struct {
	Name      string
	PublicKey string
	OutPath   []byte
}

// Driver runs the companion-radio connection: it owns the Transport, drives
// reconnect/keepalive/read loops, serializes outbound writes through a
// single outbox, and republishes decoded frames as the typed events declared
// in events.go. It implements dispatch.RadioSender, scheduler.AdvertSender
// and scheduler.ChannelApplier so the rest of the bot never touches the
// transport directly.
type Driver struct {
	log       *slog.Logger
	transport transport.Transport
	codec     Codec
	bus       bus.MessageBus
	rfCache   *rf.Cache
	outbox    chan sendRequest

	mu         sync.RWMutex
	contacts   map[string]ContactRecord
	connected  bool
	selfName   string
}

func NewDriver(log *slog.Logger, tr transport.Transport, codec Codec, msgBus bus.MessageBus, rfCache *rf.Cache, selfName string) *Driver {
	if log == nil {
		log = slog.Default()
	}
	if codec == nil {
		codec = NewMeshCoreCodec()
	}
	return &Driver{
		log:       log,
		transport: tr,
		codec:     codec,
		bus:       msgBus,
		rfCache:   rfCache,
		outbox:    make(chan sendRequest, 64),
		contacts:  make(map[string]ContactRecord),
		selfName:  selfName,
	}
}

// Start launches the connector, reader, keepalive and outbox loops. It
// returns immediately; the loops run until ctx is cancelled.
func (d *Driver) Start(ctx context.Context) error {
	go d.runOutbox(ctx)
	go d.runConnector(ctx)
	return nil
}

func (d *Driver) Stop(ctx context.Context) error {
	return d.transport.Close()
}

func (d *Driver) IsHealthy() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *Driver) Name() string { return "radio:" + d.transport.Name() }

func (d *Driver) setConnected(v bool) {
	d.mu.Lock()
	d.connected = v
	d.mu.Unlock()
}

func (d *Driver) publishStatus(state ConnectionState, err error) {
	d.bus.Publish(TopicConnectionState, ConnectionStatus{State: state, Err: err, At: time.Now()})
}

// runConnector reconnects with doubling backoff capped at 15s, matching the
// teacher's connector loop shape.
func (d *Driver) runConnector(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		d.publishStatus(StateConnecting, nil)
		if err := d.transport.Connect(ctx); err != nil {
			d.setConnected(false)
			d.publishStatus(StateReconnecting, err)
			d.log.Error("radio connect failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxReconnectWait)
			continue
		}

		backoff = time.Second
		d.setConnected(true)
		d.publishStatus(StateConnected, nil)

		keepAliveCtx, cancelKeepAlive := context.WithCancel(ctx)
		go d.runKeepAlive(keepAliveCtx)
		readErr := d.runReader(ctx)
		cancelKeepAlive()
		_ = d.transport.Close()

		d.setConnected(false)
		d.publishStatus(StateReconnecting, readErr)
		if !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, maxReconnectWait)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (d *Driver) runReader(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		readCtx, cancel := context.WithTimeout(ctx, readFrameTimeout)
		frame, err := d.transport.ReadFrame(readCtx)
		cancel()
		if err != nil {
			return err
		}

		event, err := d.codec.Decode(frame)
		if err != nil {
			d.log.Warn("radio frame decode failed", "error", err)
			continue
		}
		d.publishEvent(event)
	}
}

func (d *Driver) publishEvent(event any) {
	switch e := event.(type) {
	case ContactMessageEvent:
		d.bus.Publish(TopicContactMessage, e)
	case ChannelMessageEvent:
		d.bus.Publish(TopicChannelMessage, e)
	case RXLogEvent:
		if d.rfCache != nil {
			hash := protocol.ZeroHash
			if decoded, reason := protocol.Decode("", e.PayloadHex); decoded != nil && reason == "" {
				hash = decoded.Hash()
			}
			d.rfCache.Insert(rf.NewEntry(e.PayloadHex, e.PayloadHex, e.PubkeyPrefix, e.SNR, e.RSSI, "", hash, e.Timestamp))
		}
		d.bus.Publish(TopicRXLogData, e)
	case RawDataEvent:
		d.bus.Publish(TopicRawData, e)
	case NewContactEvent:
		d.mu.Lock()
		d.contacts[strings.ToLower(e.Name)] = ContactRecord{Name: e.Name, PublicKey: e.PublicKey}
		d.mu.Unlock()
		d.bus.Publish(TopicNewContact, e)
	default:
		d.log.Warn("radio: unrecognized decoded event type", "type", fmt.Sprintf("%T", event))
	}
}

func (d *Driver) runKeepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := d.codec.EncodeGetTime()
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeFrameTimeout)
			err = d.transport.WriteFrame(writeCtx, payload)
			cancel()
			if err != nil {
				d.log.Debug("radio keepalive write failed", "error", err)
			}
		}
	}
}

func (d *Driver) runOutbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.outbox:
			req.result <- d.handleSend(ctx, req)
			close(req.result)
		}
	}
}

func (d *Driver) handleSend(ctx context.Context, req sendRequest) error {
	payload, err := req.encode()
	if err != nil {
		return fmt.Errorf("encode outgoing command: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeFrameTimeout)
	defer cancel()
	if err := d.transport.WriteFrame(writeCtx, payload); err != nil {
		return fmt.Errorf("write outgoing frame: %w", err)
	}
	return nil
}

func (d *Driver) enqueue(ctx context.Context, encode func() ([]byte, error)) error {
	if !d.IsHealthy() {
		return errNotConnected
	}
	resCh := make(chan error, 1)
	select {
	case d.outbox <- sendRequest{encode: encode, result: resCh}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendDM implements dispatch.RadioSender.
func (d *Driver) SendDM(ctx context.Context, recipientName, content string) error {
	return d.enqueue(ctx, func() ([]byte, error) { return d.codec.EncodeSendMsg(recipientName, content) })
}

// SendChannel implements dispatch.RadioSender.
func (d *Driver) SendChannel(ctx context.Context, channelIndex int, content string) error {
	return d.enqueue(ctx, func() ([]byte, error) { return d.codec.EncodeSendChanMsg(channelIndex, content) })
}

// SendAdvert implements scheduler.AdvertSender.
func (d *Driver) SendAdvert(ctx context.Context) error {
	return d.enqueue(ctx, d.codec.EncodeSendAdvert)
}

// SetTime pushes the bot's clock to the device with the companion set_time
// command (spec.md §1's companion command set).
func (d *Driver) SetTime(ctx context.Context, at time.Time) error {
	return d.enqueue(ctx, func() ([]byte, error) { return d.codec.EncodeSetTime(at) })
}

// SetName renames the bot's own identity on the device.
func (d *Driver) SetName(ctx context.Context, name string) error {
	if err := d.enqueue(ctx, func() ([]byte, error) { return d.codec.EncodeSetName(name) }); err != nil {
		return err
	}
	d.mu.Lock()
	d.selfName = name
	d.mu.Unlock()
	return nil
}

// AddChannel implements scheduler.ChannelApplier: it asks the device to add
// a channel slot, keyed by name and hex-encoded PSK, and returns whatever
// index the queue op was enqueued against. The device assigns real channel
// indexes out of band (over NEW_CONTACT/ack-style events the companion
// firmware emits); until that confirmation lands, index -1 signals
// "accepted, pending".
func (d *Driver) AddChannel(ctx context.Context, name, keyHex string) (int, error) {
	if _, err := hex.DecodeString(keyHex); err != nil {
		return -1, fmt.Errorf("invalid channel key: %w", err)
	}
	if err := d.enqueue(ctx, func() ([]byte, error) { return d.codec.EncodeAddContact(name, keyHex) }); err != nil {
		return -1, err
	}
	return -1, nil
}

// RemoveChannel implements scheduler.ChannelApplier. The companion command
// set (spec.md §1) has no dedicated remove-channel op; removal is modeled as
// renaming the slot to an empty contact, which the firmware treats as
// freeing it.
func (d *Driver) RemoveChannel(ctx context.Context, idx int) error {
	return d.enqueue(ctx, func() ([]byte, error) { return d.codec.EncodeSetName("") })
}

// LookupByName implements message.ContactLookup against the driver's local
// contacts-table mirror.
func (d *Driver) LookupByName(ctx context.Context, name string) (message.ContactInfo, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.contacts[strings.ToLower(name)]
	if !ok {
		return message.ContactInfo{}, false, nil
	}
	return message.ContactInfo{PublicKey: rec.PublicKey, OutPath: rec.OutPath, OutPathLen: len(rec.OutPath)}, true, nil
}

// GetContactByName asks the device directly rather than relying on the
// local mirror — used when a command needs an authoritative answer (e.g.
// resolving a DM target before a send).
func (d *Driver) GetContactByName(ctx context.Context, name string) error {
	return d.enqueue(ctx, func() ([]byte, error) { return d.codec.EncodeGetContactByName(name) })
}

var errNotConnected = errors.New("radio: not connected")
