// Package radio runs the companion-radio connection: transport I/O,
// MeshCore command/event codec translation, and bus publication of the
// typed events spec.md §1 assumes the driver exposes (CONTACT_MSG_RECV,
// CHANNEL_MSG_RECV, RX_LOG_DATA, RAW_DATA, NEW_CONTACT).
package radio

import (
	"time"

	"meshbot/internal/protocol"
)

// Bus topics, one per event kind plus connection status and raw frame taps.
const (
	TopicContactMessage = "radio.contact_msg_recv"
	TopicChannelMessage = "radio.channel_msg_recv"
	TopicRXLogData      = "radio.rx_log_data"
	TopicRawData         = "radio.raw_data"
	TopicNewContact      = "radio.new_contact"
	TopicConnectionState = "radio.connection_state"
)

// ConnectionState mirrors the teacher's connectors.ConnectionState enum,
// generalized to the three connector kinds this driver supports.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus is published on every state transition.
type ConnectionStatus struct {
	State ConnectionState
	Err   error
	At    time.Time
}

// ContactMessageEvent is an inbound DM.
type ContactMessageEvent struct {
	SenderName string
	Content    string
	Timestamp  time.Time
	Decoded    *protocol.Packet
	RawHex     string
	PayloadHex string
	SNR        float64
	RSSI       int
}

// ChannelMessageEvent is an inbound channel broadcast.
type ChannelMessageEvent struct {
	Channel    string
	Content    string
	Timestamp  time.Time
	Decoded    *protocol.Packet
	RawHex     string
	PayloadHex string
	SNR        float64
	RSSI       int
}

// RXLogEvent is a raw RF observation the firmware surfaces independent of
// any higher-level message (feeds the RF correlator, internal/rf).
type RXLogEvent struct {
	RawHex       string
	PayloadHex   string
	PubkeyPrefix string
	SNR          float64
	RSSI         int
	Timestamp    time.Time
}

// RawDataEvent is an unrecognized or opaque frame, kept for capture/replay.
type RawDataEvent struct {
	RawHex    string
	Timestamp time.Time
}

// NewContactEvent fires when the device's contact table gains an entry —
// typically right after ingesting an advert.
type NewContactEvent struct {
	PublicKey string
	Name      string
	Timestamp time.Time
}
