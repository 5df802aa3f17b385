package radio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"meshbot/internal/protocol"
)

// Command opcodes for the small companion-radio command set spec.md §1
// assumes the driver exposes: send_msg, send_chan_msg, send_advert, get_time,
// set_time, set_name, add_contact, get_contact_by_name.
const (
	cmdSendMsg         byte = 0x01
	cmdSendChanMsg     byte = 0x02
	cmdSendAdvert      byte = 0x03
	cmdGetTime         byte = 0x04
	cmdSetTime         byte = 0x05
	cmdSetName         byte = 0x06
	cmdAddContact      byte = 0x07
	cmdGetContactByName byte = 0x08
)

// Event opcodes tag an inbound frame's kind, mirroring spec.md §1's
// CONTACT_MSG_RECV/CHANNEL_MSG_RECV/RX_LOG_DATA/RAW_DATA/NEW_CONTACT.
const (
	evtContactMsgRecv byte = 0x81
	evtChannelMsgRecv byte = 0x82
	evtRXLogData      byte = 0x83
	evtRawData        byte = 0x84
	evtNewContact     byte = 0x85
)

// Codec translates between the driver's typed commands/events and the raw
// frame payloads carried over transport.Transport (which already handles the
// header+length framing in internal/transport/frame.go). A Codec never does
// I/O itself — same separation of concerns as the teacher's radio.Codec.
type Codec interface {
	EncodeSendMsg(contactName, content string) ([]byte, error)
	EncodeSendChanMsg(channelIdx int, content string) ([]byte, error)
	EncodeSendAdvert() ([]byte, error)
	EncodeGetTime() ([]byte, error)
	EncodeSetTime(at time.Time) ([]byte, error)
	EncodeSetName(name string) ([]byte, error)
	EncodeAddContact(name, publicKeyHex string) ([]byte, error)
	EncodeGetContactByName(name string) ([]byte, error)

	Decode(frame []byte) (any, error)
}

// MeshCoreCodec is the only Codec implementation: a minimal
// tag-byte-plus-length-prefixed-fields wire format for the companion link.
type MeshCoreCodec struct{}

func NewMeshCoreCodec() *MeshCoreCodec { return &MeshCoreCodec{} }

func putString(buf []byte, s string) []byte {
	b := []byte(s)
	lenPrefix := make([]byte, 2)
	binary.BigEndian.PutUint16(lenPrefix, uint16(len(b)))
	buf = append(buf, lenPrefix...)
	return append(buf, b...)
}

func readString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, errors.New("truncated string length")
	}
	n := int(binary.BigEndian.Uint16(buf[:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, errors.New("truncated string body")
	}
	return string(buf[:n]), buf[n:], nil
}

func (c *MeshCoreCodec) EncodeSendMsg(contactName, content string) ([]byte, error) {
	buf := []byte{cmdSendMsg}
	buf = putString(buf, contactName)
	buf = putString(buf, content)
	return buf, nil
}

func (c *MeshCoreCodec) EncodeSendChanMsg(channelIdx int, content string) ([]byte, error) {
	if channelIdx < 0 || channelIdx > 255 {
		return nil, fmt.Errorf("channel index out of range: %d", channelIdx)
	}
	buf := []byte{cmdSendChanMsg, byte(channelIdx)}
	buf = putString(buf, content)
	return buf, nil
}

func (c *MeshCoreCodec) EncodeSendAdvert() ([]byte, error) {
	return []byte{cmdSendAdvert}, nil
}

func (c *MeshCoreCodec) EncodeGetTime() ([]byte, error) {
	return []byte{cmdGetTime}, nil
}

func (c *MeshCoreCodec) EncodeSetTime(at time.Time) ([]byte, error) {
	buf := make([]byte, 5)
	buf[0] = cmdSetTime
	binary.BigEndian.PutUint32(buf[1:], uint32(at.Unix()))
	return buf, nil
}

func (c *MeshCoreCodec) EncodeSetName(name string) ([]byte, error) {
	buf := []byte{cmdSetName}
	buf = putString(buf, name)
	return buf, nil
}

func (c *MeshCoreCodec) EncodeAddContact(name, publicKeyHex string) ([]byte, error) {
	buf := []byte{cmdAddContact}
	buf = putString(buf, name)
	buf = putString(buf, publicKeyHex)
	return buf, nil
}

func (c *MeshCoreCodec) EncodeGetContactByName(name string) ([]byte, error) {
	buf := []byte{cmdGetContactByName}
	buf = putString(buf, name)
	return buf, nil
}

// Decode turns a raw inbound frame into one of the radio package's typed
// events; a frame whose tag this codec doesn't recognize decodes as a
// RawDataEvent. It never panics: an empty frame or a malformed field yields
// an error the caller logs and discards,
// following internal/protocol.Decode's own contract.
func (c *MeshCoreCodec) Decode(frame []byte) (any, error) {
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}
	tag := frame[0]
	body := frame[1:]

	switch tag {
	case evtContactMsgRecv:
		return decodeContactMsg(body)
	case evtChannelMsgRecv:
		return decodeChannelMsg(body)
	case evtRXLogData:
		return decodeRXLog(body)
	case evtNewContact:
		return decodeNewContact(body)
	case evtRawData:
		return RawDataEvent{RawHex: hexUpper(frame), Timestamp: time.Now()}, nil
	default:
		return RawDataEvent{RawHex: hexUpper(frame), Timestamp: time.Now()}, nil
	}
}

func decodeContactMsg(body []byte) (ContactMessageEvent, error) {
	sender, rest, err := readString(body)
	if err != nil {
		return ContactMessageEvent{}, fmt.Errorf("contact msg sender: %w", err)
	}
	payloadHex, rest, err := readString(rest)
	if err != nil {
		return ContactMessageEvent{}, fmt.Errorf("contact msg payload: %w", err)
	}
	snr, rssi := decodeSignalTail(rest)

	decoded, _ := protocol.Decode("", payloadHex)
	content := ""
	if decoded != nil {
		content = string(decoded.Payload)
	}
	return ContactMessageEvent{
		SenderName: sender,
		Content:    content,
		Timestamp:  time.Now(),
		Decoded:    decoded,
		PayloadHex: payloadHex,
		SNR:        snr,
		RSSI:       rssi,
	}, nil
}

func decodeChannelMsg(body []byte) (ChannelMessageEvent, error) {
	channel, rest, err := readString(body)
	if err != nil {
		return ChannelMessageEvent{}, fmt.Errorf("channel msg channel: %w", err)
	}
	payloadHex, rest, err := readString(rest)
	if err != nil {
		return ChannelMessageEvent{}, fmt.Errorf("channel msg payload: %w", err)
	}
	snr, rssi := decodeSignalTail(rest)

	decoded, _ := protocol.Decode("", payloadHex)
	content := ""
	if decoded != nil {
		content = string(decoded.Payload)
	}
	return ChannelMessageEvent{
		Channel:    channel,
		Content:    content,
		Timestamp:  time.Now(),
		Decoded:    decoded,
		PayloadHex: payloadHex,
		SNR:        snr,
		RSSI:       rssi,
	}, nil
}

func decodeRXLog(body []byte) (RXLogEvent, error) {
	prefix, rest, err := readString(body)
	if err != nil {
		return RXLogEvent{}, fmt.Errorf("rx log pubkey prefix: %w", err)
	}
	payloadHex, rest, err := readString(rest)
	if err != nil {
		return RXLogEvent{}, fmt.Errorf("rx log payload: %w", err)
	}
	snr, rssi := decodeSignalTail(rest)
	return RXLogEvent{
		PubkeyPrefix: prefix,
		PayloadHex:   payloadHex,
		SNR:          snr,
		RSSI:         rssi,
		Timestamp:    time.Now(),
	}, nil
}

func decodeNewContact(body []byte) (NewContactEvent, error) {
	pubkey, rest, err := readString(body)
	if err != nil {
		return NewContactEvent{}, fmt.Errorf("new contact pubkey: %w", err)
	}
	name, _, err := readString(rest)
	if err != nil {
		return NewContactEvent{}, fmt.Errorf("new contact name: %w", err)
	}
	return NewContactEvent{PublicKey: pubkey, Name: name, Timestamp: time.Now()}, nil
}

// decodeSignalTail reads an optional trailing (snr int16 quarter-dB, rssi
// int16) pair a firmware may append; missing or short tails decode as zero
// rather than an error, since signal quality is advisory.
func decodeSignalTail(rest []byte) (snr float64, rssi int) {
	if len(rest) < 4 {
		return 0, 0
	}
	snrRaw := int16(binary.BigEndian.Uint16(rest[0:2]))
	rssiRaw := int16(binary.BigEndian.Uint16(rest[2:4]))
	return float64(snrRaw) / 4.0, int(rssiRaw)
}

func hexUpper(b []byte) string {
	const hexDigits = "0123456789ABCDEF"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0F]
	}
	return string(out)
}
