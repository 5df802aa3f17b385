// Package message turns raw radio events into the dispatcher-facing
// MeshMessage, applying the stale-cache, banned-user, channel and greeter
// filters described in spec.md §4.3.
package message

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"meshbot/internal/protocol"
	"meshbot/internal/rf"
)

// ElapsedStatus is the raw timing fact the handler computes; rendering it as
// "Nms" or a localized "sync your clock" string is the caller's job (it
// needs the translator, which this package deliberately does not import).
type ElapsedStatus struct {
	MillisSinceSend int64
	NeedsClockSync  bool
}

// PathInfo describes how a message's path is known.
type PathInfo struct {
	Hops   int  // 0 = direct, -1 = unknown (255 sentinel)
	Nodes  []string
	Direct bool
	Unknown bool
}

// MeshMessage is the normalized event the dispatcher operates on.
type MeshMessage struct {
	Content      string
	SenderID     string
	SenderPubkey string
	Channel      *string
	IsDM         bool
	Timestamp    time.Time
	SNR          *float64
	RSSI         *int
	Path         PathInfo
	Elapsed      ElapsedStatus
}

func (m MeshMessage) IsChannelMessage() bool { return !m.IsDM }

// ContactInfo is what the device's contact table knows about a peer.
type ContactInfo struct {
	PublicKey  string
	OutPath    []byte
	OutPathLen int // 0 = direct, 1-254 = hop count, 255 = unknown
}

const outPathUnknown = 255

// ContactLookup resolves a sender name to the device's contact record.
type ContactLookup interface {
	LookupByName(ctx context.Context, name string) (ContactInfo, bool, error)
}

// StatsRecorder is the stats tap every message is recorded through, before
// any filter is applied.
type StatsRecorder interface {
	RecordMessage(ctx context.Context, senderID string, isDM bool, channel string, at time.Time) error
}

// GreeterObserver is offered every message unconditionally, before channel
// filtering, so it can record "user was seen" — and optionally greet them —
// even in unmonitored channels. channel is nil for a DM.
type GreeterObserver interface {
	ObserveSeen(ctx context.Context, senderID, senderPubkey, content string, channel *string, isDM bool, at time.Time)
}

// RawEvent is a radio RX event before normalization.
type RawEvent struct {
	Content          string
	SenderName       string
	SenderPubkeyHint string
	Channel          *string
	IsDM             bool
	Timestamp        time.Time
	Decoded          *protocol.Packet // nil for encrypted DMs
	RawHex           string
	PayloadHex       string
}

// Outcome classifies what the handler did with a raw event.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeStaleCacheSkipped
	OutcomeBanned
	OutcomeFilteredChannel
	OutcomeFilteredDM
)

// Config holds the filter settings the handler applies.
type Config struct {
	MonitorChannels       []string
	RespondToDMs          bool
	BannedUserPrefixes    []string
	AllowedChannelsByAll  []string // union of every command's allowed_channels override
	StaleCacheWindow      time.Duration
	StalePlausibleCeiling time.Duration
}

func DefaultConfig() Config {
	return Config{
		StaleCacheWindow:      5 * time.Second,
		StalePlausibleCeiling: time.Hour,
	}
}

// Handler converts RawEvents into MeshMessages.
type Handler struct {
	cfg            Config
	connectionTime time.Time
	contacts       ContactLookup
	rfCache        *rf.Cache
	stats          StatsRecorder
	greeter        GreeterObserver
}

func NewHandler(cfg Config, connectionTime time.Time, contacts ContactLookup, rfCache *rf.Cache, stats StatsRecorder, greeter GreeterObserver) *Handler {
	return &Handler{
		cfg:            cfg,
		connectionTime: connectionTime,
		contacts:       contacts,
		rfCache:        rfCache,
		stats:          stats,
		greeter:        greeter,
	}
}

// Process normalizes a raw event, applying every filter in spec order:
// stale-cache, greeter interception, stats tap, banned-user, channel/DM
// scope. Returns the normalized message (even when filtered, for callers
// that want to know why) and the outcome.
func (h *Handler) Process(ctx context.Context, raw RawEvent, now time.Time) (MeshMessage, Outcome) {
	if h.isStale(raw.Timestamp, now) {
		return MeshMessage{}, OutcomeStaleCacheSkipped
	}

	senderID, content := normalizeSender(raw)
	senderPubkey := h.resolvePubkey(ctx, raw, senderID)

	if h.greeter != nil {
		h.greeter.ObserveSeen(ctx, senderID, senderPubkey, content, raw.Channel, raw.IsDM, now)
	}

	if h.stats != nil {
		channel := ""
		if raw.Channel != nil {
			channel = *raw.Channel
		}
		_ = h.stats.RecordMessage(ctx, senderID, raw.IsDM, channel, now)
	}

	if isBanned(senderID, h.cfg.BannedUserPrefixes) {
		return MeshMessage{}, OutcomeBanned
	}

	msg := MeshMessage{
		Content:      content,
		SenderID:     senderID,
		SenderPubkey: senderPubkey,
		Channel:      raw.Channel,
		IsDM:         raw.IsDM,
		Timestamp:    raw.Timestamp,
		Elapsed:      computeElapsed(raw.Timestamp, now),
	}

	if raw.IsDM {
		h.fillDMPath(ctx, &msg, raw)
		if !h.cfg.RespondToDMs {
			return msg, OutcomeFilteredDM
		}
		return msg, OutcomeProcessed
	}

	h.fillChannelPath(&msg, raw)
	if !h.channelAllowed(*raw.Channel) {
		return msg, OutcomeFilteredChannel
	}
	return msg, OutcomeProcessed
}

// isStale applies the connect-time stale-cache filter: events timestamped
// more than StaleCacheWindow before connection time are drained but not
// processed, unless the timestamp itself looks implausible (then it's safer
// to process than to silently drop).
func (h *Handler) isStale(sent, now time.Time) bool {
	if !isPlausibleTimestamp(sent, now, h.cfg.StalePlausibleCeiling) {
		return false
	}
	return sent.Before(h.connectionTime.Add(-h.cfg.StaleCacheWindow))
}

func isPlausibleTimestamp(sent, now time.Time, ceiling time.Duration) bool {
	if sent.Unix() <= 0 {
		return false
	}
	return sent.Before(now.Add(ceiling))
}

func computeElapsed(sent, now time.Time) ElapsedStatus {
	if !isPlausibleTimestamp(sent, now, time.Hour) {
		return ElapsedStatus{NeedsClockSync: true}
	}
	return ElapsedStatus{MillisSinceSend: now.Sub(sent).Milliseconds()}
}

// normalizeSender splits "SENDER: message" channel text on the first colon,
// and trims trailing whitespace/newlines from the content either way.
func normalizeSender(raw RawEvent) (senderID, content string) {
	content = strings.TrimRight(raw.Content, " \t\r\n")
	if raw.IsDM {
		return raw.SenderName, content
	}
	if idx := strings.IndexByte(content, ':'); idx >= 0 && raw.SenderName == "" {
		return strings.TrimSpace(content[:idx]), strings.TrimSpace(content[idx+1:])
	}
	return raw.SenderName, content
}

func (h *Handler) resolvePubkey(ctx context.Context, raw RawEvent, senderID string) string {
	if raw.SenderPubkeyHint != "" {
		return raw.SenderPubkeyHint
	}
	if h.contacts == nil {
		return ""
	}
	info, ok, err := h.contacts.LookupByName(ctx, senderID)
	if err != nil || !ok {
		return ""
	}
	return info.PublicKey
}

// isBanned reports whether senderID matches one of prefixes at a word
// boundary: an exact match, or a prefix match immediately followed by a
// space or other non-alphanumeric separator. "BadUser" matches "BadUser"
// and "BadUser 🛑" but not "BadUserson" — a plain substring prefix check
// would ban the latter too.
func isBanned(senderID string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" || !strings.HasPrefix(senderID, p) {
			continue
		}
		if len(senderID) == len(p) {
			return true
		}
		next, _ := utf8.DecodeRuneInString(senderID[len(p):])
		if !unicode.IsLetter(next) && !unicode.IsDigit(next) {
			return true
		}
	}
	return false
}

func (h *Handler) channelAllowed(channel string) bool {
	for _, c := range h.cfg.MonitorChannels {
		if c == channel {
			return true
		}
	}
	for _, c := range h.cfg.AllowedChannelsByAll {
		if c == channel {
			return true
		}
	}
	return false
}

// fillDMPath resolves path/SNR/RSSI for an encrypted DM from the device's
// contact table and, failing that, the RF cache by pubkey prefix or most
// recent entry.
func (h *Handler) fillDMPath(ctx context.Context, msg *MeshMessage, raw RawEvent) {
	if h.contacts != nil {
		if info, ok, err := h.contacts.LookupByName(ctx, raw.SenderName); err == nil && ok {
			msg.Path = pathFromOutPath(info.OutPathLen, info.OutPath)
		}
	}
	if h.rfCache == nil {
		return
	}
	pubkeyPrefix := prefixOf(msg.SenderPubkey)
	if e, ok := h.rfCache.Lookup("", pubkeyPrefix, raw.Timestamp); ok {
		snr := e.SNR
		rssi := e.RSSI
		msg.SNR = &snr
		msg.RSSI = &rssi
	}
}

func pathFromOutPath(outPathLen int, outPath []byte) PathInfo {
	switch {
	case outPathLen == 0:
		return PathInfo{Direct: true}
	case outPathLen == outPathUnknown:
		return PathInfo{Unknown: true, Hops: -1}
	default:
		nodes := make([]string, len(outPath))
		for i, b := range outPath {
			nodes[i] = hexByte(b)
		}
		return PathInfo{Hops: outPathLen, Nodes: nodes}
	}
}

// fillChannelPath takes path directly from the decoded packet; TRACE
// packets route through their embedded path_hashes since the bot is the
// destination.
func (h *Handler) fillChannelPath(msg *MeshMessage, raw RawEvent) {
	if raw.Decoded == nil {
		return
	}
	nodes := raw.Decoded.PathNodes
	if raw.Decoded.PayloadType == protocol.PayloadTrace {
		nodes = raw.Decoded.PathHashes
	}
	msg.Path = PathInfo{Hops: len(nodes), Nodes: nodes, Direct: len(nodes) == 0}
}

func prefixOf(s string) string {
	if len(s) < 2 {
		return s
	}
	return strings.ToLower(s[:2])
}

func hexByte(b byte) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}
