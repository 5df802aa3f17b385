package protocol

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"testing"
)

func buildFrame(route RouteType, payloadType PayloadType, path []byte, payload []byte) []byte {
	header := byte(VersionOne)<<6 | byte(payloadType)<<2 | byte(route)
	buf := []byte{header}
	if route.HasTransportCodes() {
		buf = append(buf, 0xAA, 0xBB, 0xCC, 0xDD)
	}
	buf = append(buf, byte(len(path)))
	buf = append(buf, path...)
	buf = append(buf, payload...)
	return buf
}

func TestDecode_FloodTextMessage(t *testing.T) {
	frame := buildFrame(RouteFlood, PayloadTxtMsg, []byte{0x01, 0x02}, []byte("hello"))
	p, reason := Decode(hex.EncodeToString(frame), "")
	if reason != "" {
		t.Fatalf("unexpected decode failure: %s", reason)
	}
	if p.RouteType != RouteFlood || p.PayloadType != PayloadTxtMsg {
		t.Fatalf("unexpected header decode: %+v", p)
	}
	if p.PathKind != PathHistoricalRoute {
		t.Fatalf("flood route should be historical_route, got %s", p.PathKind)
	}
	if string(p.Payload) != "hello" {
		t.Fatalf("payload = %q", p.Payload)
	}
	if len(p.PathNodes) != 2 || p.PathNodes[0] != "01" || p.PathNodes[1] != "02" {
		t.Fatalf("path nodes = %v", p.PathNodes)
	}
}

func TestDecode_DirectRouteIsRoutingInstructions(t *testing.T) {
	frame := buildFrame(RouteDirect, PayloadAck, nil, []byte{0x00})
	p, reason := Decode(hex.EncodeToString(frame), "")
	if reason != "" {
		t.Fatalf("unexpected decode failure: %s", reason)
	}
	if p.PathKind != PathRoutingInstructions {
		t.Fatalf("direct route should be routing_instructions, got %s", p.PathKind)
	}
}

func TestDecode_TransportCodesConsumed(t *testing.T) {
	frame := buildFrame(RouteTransportFlood, PayloadReq, nil, []byte{0x01})
	p, reason := Decode(hex.EncodeToString(frame), "")
	if reason != "" {
		t.Fatalf("unexpected decode failure: %s", reason)
	}
	if !p.HasTransport || len(p.TransportCodes) != 4 {
		t.Fatalf("transport codes not parsed: %+v", p)
	}
}

func TestDecode_PreferPayloadHexOverRawHex(t *testing.T) {
	inner := buildFrame(RouteFlood, PayloadTxtMsg, nil, []byte("inner"))
	outer := buildFrame(RouteDirect, PayloadAck, nil, []byte("outer-wrapper"))

	p, reason := Decode(hex.EncodeToString(outer), hex.EncodeToString(inner))
	if reason != "" {
		t.Fatalf("unexpected decode failure: %s", reason)
	}
	if p.PayloadType != PayloadTxtMsg {
		t.Fatalf("expected stripped inner frame to be preferred, got payload type %d", p.PayloadType)
	}
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	header := byte(1)<<6 | byte(PayloadTxtMsg)<<2 | byte(RouteFlood)
	frame := []byte{header, 0x00}
	_, reason := Decode(hex.EncodeToString(frame), "")
	if reason == "" {
		t.Fatalf("expected rejection for unsupported payload version")
	}
}

func TestDecode_RejectsShortBuffer(t *testing.T) {
	_, reason := Decode("ab", "")
	if reason == "" {
		t.Fatalf("expected rejection for undersized buffer")
	}
}

func TestDecode_RejectsPathLengthOverrun(t *testing.T) {
	header := byte(VersionOne)<<6 | byte(PayloadTxtMsg)<<2 | byte(RouteFlood)
	frame := []byte{header, 0x05, 0x01, 0x02} // path_len=5 but only 2 bytes follow
	_, reason := Decode(hex.EncodeToString(frame), "")
	if reason == "" {
		t.Fatalf("expected rejection for path length overrun")
	}
}

func TestDecode_TraceSNRAndPathHashes(t *testing.T) {
	// path bytes are quarter-dB SNR readings: 40 -> 10.0dB, 250 -> -1.5dB
	path := []byte{40, 250}
	preamble := make([]byte, 9)
	pathHashes := []byte{0x11, 0x22, 0x33}
	payload := append(preamble, pathHashes...)

	frame := buildFrame(RouteFlood, PayloadTrace, path, payload)
	p, reason := Decode(hex.EncodeToString(frame), "")
	if reason != "" {
		t.Fatalf("unexpected decode failure: %s", reason)
	}
	if len(p.SNRReadings) != 2 {
		t.Fatalf("expected 2 SNR readings, got %d", len(p.SNRReadings))
	}
	if p.SNRReadings[0] != 10.0 {
		t.Fatalf("SNR[0] = %v, want 10.0", p.SNRReadings[0])
	}
	if p.SNRReadings[1] != -1.5 {
		t.Fatalf("SNR[1] = %v, want -1.5", p.SNRReadings[1])
	}
	if len(p.PathHashes) != 3 {
		t.Fatalf("expected 3 path hashes, got %d", len(p.PathHashes))
	}
}

func TestPacketHash_StableAcrossIdenticalCanonicalBytes(t *testing.T) {
	h1 := PacketHash(PayloadTxtMsg, "deadbeef")
	h2 := PacketHash(PayloadTxtMsg, "deadbeef")
	if h1 != h2 {
		t.Fatalf("hash not stable: %s vs %s", h1, h2)
	}
	if len(h1) != 16 {
		t.Fatalf("expected 8-byte hex hash, got %d chars", len(h1))
	}
}

func TestPacketHash_EmptyCanonicalBytesYieldZeroHash(t *testing.T) {
	if got := PacketHash(PayloadTxtMsg, ""); got != ZeroHash {
		t.Fatalf("expected zero hash, got %s", got)
	}
}

func buildAdvertPayload(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey, flags AdvertFlags, appData []byte) []byte {
	t.Helper()
	timestamp := make([]byte, 4)
	binary.LittleEndian.PutUint32(timestamp, 1234567890)

	signedBody := append(append([]byte{}, pub...), timestamp...)
	signedBody = append(signedBody, byte(flags))
	signedBody = append(signedBody, appData...)

	sig := ed25519.Sign(priv, signedBody)

	payload := append([]byte{}, pub...)
	payload = append(payload, timestamp...)
	payload = append(payload, sig...)
	payload = append(payload, byte(flags))
	payload = append(payload, appData...)
	return payload
}

func TestDecodeAdvert_NameOnly(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	flags := AdvertFlags(byte(AdvertRepeater) | 0x80) // name bit set
	payload := buildAdvertPayload(t, pub, priv, flags, []byte("node-7\x00\x00"))

	advert, ok := DecodeAdvert(payload)
	if !ok {
		t.Fatalf("expected advert to decode")
	}
	if advert.Type != AdvertRepeater {
		t.Fatalf("advert type = %v", advert.Type)
	}
	if advert.Name != "node-7" {
		t.Fatalf("advert name = %q", advert.Name)
	}
	if !advert.VerifySignature() {
		t.Fatalf("expected valid signature to verify")
	}
}

func TestDecodeAdvert_RejectsShortPayload(t *testing.T) {
	_, ok := DecodeAdvert(make([]byte, 50))
	if ok {
		t.Fatalf("expected short advert payload to be rejected")
	}
}

func TestDecodeAdvert_TruncatedLatLonIsPartial(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	flags := AdvertFlags(byte(AdvertSensor) | 0x10) // lat/lon bit set, but no bytes follow
	payload := buildAdvertPayload(t, pub, priv, flags, nil)

	advert, ok := DecodeAdvert(payload)
	if !ok {
		t.Fatalf("expected partial advert to still decode")
	}
	if !advert.Truncated {
		t.Fatalf("expected Truncated to be set")
	}
}

func TestDecodeAdvert_TamperedSignatureFailsVerification(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	payload := buildAdvertPayload(t, pub, priv, AdvertFlags(AdvertChat), nil)
	payload[40] ^= 0xFF // flip a byte inside the signature

	advert, ok := DecodeAdvert(payload)
	if !ok {
		t.Fatalf("expected advert to decode despite bad signature")
	}
	if advert.VerifySignature() {
		t.Fatalf("expected tampered signature to fail verification")
	}
}
