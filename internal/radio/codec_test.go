package radio

import "testing"

func TestMeshCoreCodec_EncodeSendChanMsg(t *testing.T) {
	c := NewMeshCoreCodec()
	buf, err := c.EncodeSendChanMsg(3, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf[0] != cmdSendChanMsg || buf[1] != 3 {
		t.Fatalf("unexpected header: %x", buf[:2])
	}
	text, _, err := readString(buf[2:])
	if err != nil {
		t.Fatalf("unexpected error reading string: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected hello, got %q", text)
	}
}

func TestMeshCoreCodec_EncodeSendChanMsg_RejectsOutOfRangeIndex(t *testing.T) {
	c := NewMeshCoreCodec()
	if _, err := c.EncodeSendChanMsg(300, "hi"); err == nil {
		t.Fatalf("expected error for out-of-range channel index")
	}
}

func TestMeshCoreCodec_DecodeNewContact(t *testing.T) {
	c := NewMeshCoreCodec()
	frame := []byte{evtNewContact}
	frame = putString(frame, "deadbeef")
	frame = putString(frame, "alice")

	event, err := c.Decode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nc, ok := event.(NewContactEvent)
	if !ok {
		t.Fatalf("expected NewContactEvent, got %T", event)
	}
	if nc.PublicKey != "deadbeef" || nc.Name != "alice" {
		t.Fatalf("unexpected contact: %+v", nc)
	}
}

func TestMeshCoreCodec_DecodeContactMsgWithSignalTail(t *testing.T) {
	c := NewMeshCoreCodec()
	frame := []byte{evtContactMsgRecv}
	frame = putString(frame, "bob")
	frame = putString(frame, "")
	frame = append(frame, 0x00, 0x28, 0xFF, 0xCE) // snr=10.0dB (40 quarter-dB), rssi=-50

	event, err := c.Decode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cm, ok := event.(ContactMessageEvent)
	if !ok {
		t.Fatalf("expected ContactMessageEvent, got %T", event)
	}
	if cm.SenderName != "bob" {
		t.Fatalf("unexpected sender: %q", cm.SenderName)
	}
	if cm.SNR != 10.0 {
		t.Fatalf("expected snr 10.0, got %v", cm.SNR)
	}
	if cm.RSSI != -50 {
		t.Fatalf("expected rssi -50, got %v", cm.RSSI)
	}
}

func TestMeshCoreCodec_DecodeUnknownTagFallsBackToRawData(t *testing.T) {
	c := NewMeshCoreCodec()
	event, err := c.Decode([]byte{0xFE, 0x01, 0x02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := event.(RawDataEvent); !ok {
		t.Fatalf("expected RawDataEvent fallback, got %T", event)
	}
}

func TestReadString_TruncatedBody(t *testing.T) {
	buf := []byte{0x00, 0x05, 'h', 'i'}
	if _, _, err := readString(buf); err == nil {
		t.Fatalf("expected error for truncated string body")
	}
}
