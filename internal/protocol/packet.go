// Package protocol decodes MeshCore v1 wire frames into structured packets.
// Decoding is purely computational — no I/O, never a fatal error to the
// caller: a malformed frame yields (nil, reason) and the caller logs and
// moves on.
package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// RouteType is the low 2 bits of the header byte.
type RouteType byte

const (
	RouteTransportFlood  RouteType = 0
	RouteFlood           RouteType = 1
	RouteDirect          RouteType = 2
	RouteTransportDirect RouteType = 3
)

// HasTransportCodes reports whether four transport-code bytes follow the
// header for this route type.
func (r RouteType) HasTransportCodes() bool {
	return r == RouteTransportFlood || r == RouteTransportDirect
}

// PayloadVersion is header bits 6-7. Only VersionOne is currently accepted.
type PayloadVersion byte

const VersionOne PayloadVersion = 0

// PayloadType is header bits 2-5.
type PayloadType byte

const (
	PayloadReq       PayloadType = 0
	PayloadResponse  PayloadType = 1
	PayloadTxtMsg    PayloadType = 2
	PayloadAck       PayloadType = 3
	PayloadAdvert    PayloadType = 4
	PayloadGrpTxt    PayloadType = 5
	PayloadGrpData   PayloadType = 6
	PayloadAnonReq   PayloadType = 7
	PayloadPath      PayloadType = 8
	PayloadTrace     PayloadType = 9
	PayloadMultipart PayloadType = 10
	PayloadRawCustom PayloadType = 15
)

// PathKind distinguishes a path still being consumed hop-by-hop from one
// that is a historical record of hops already traversed.
type PathKind string

const (
	PathRoutingInstructions PathKind = "routing_instructions"
	PathHistoricalRoute     PathKind = "historical_route"
)

// KindFor returns the path semantics implied by a route type (spec.md §4.1
// "Direct vs. flood semantics").
func (r RouteType) KindFor() PathKind {
	if r == RouteDirect || r == RouteTransportDirect {
		return PathRoutingInstructions
	}
	return PathHistoricalRoute
}

// SNRReading is one hop's signal quality as recorded in a TRACE packet's
// path bytes, decoded from a signed quarter-dB byte.
type SNRReading float64

// decodeTraceSNR reinterprets a TRACE path byte as a signed quarter-dB value.
func decodeTraceSNR(b byte) SNRReading {
	if b > 127 {
		return SNRReading(float64(int(b)-256) / 4.0)
	}
	return SNRReading(float64(b) / 4.0)
}

// Packet is a fully decoded MeshCore v1 frame.
type Packet struct {
	HeaderByte      byte
	RouteType       RouteType
	PayloadType     PayloadType
	PayloadVersion  PayloadVersion
	HasTransport    bool
	TransportCodes  []byte
	PathLen         int
	PathBytes       []byte
	PathNodes       []string
	PathKind        PathKind
	Payload         []byte
	SNRReadings     []SNRReading
	PathHashes      []string
	RawHex          string
	PayloadHex      string
}

// Hash returns the packet's echo-detection identity: the first 8 bytes of a
// deterministic digest over (payload type, canonical bytes), hex-encoded.
// Two observations of the same logical packet on different paths must hash
// identically.
func (p *Packet) Hash() string {
	canonical := p.PayloadHex
	if canonical == "" {
		canonical = p.RawHex
	}
	return PacketHash(p.PayloadType, canonical)
}

// ZeroHash is returned by PacketHash when no canonical bytes are available;
// it means "unknown/not applicable", never a real collision.
const ZeroHash = "0000000000000000"

// Decode parses a raw hex frame into a Packet. When payloadHex is non-empty
// it is preferred over rawHex as the packet body — some RF drivers deliver
// a stripped inner frame separately from the raw capture. Returns (nil,
// reason) on any malformed input; never panics.
func Decode(rawHex, payloadHex string) (*Packet, string) {
	source := strings.TrimPrefix(strings.TrimSpace(rawHex), "0x")
	canonicalHex := source
	if strings.TrimSpace(payloadHex) != "" {
		canonicalHex = strings.TrimPrefix(strings.TrimSpace(payloadHex), "0x")
		source = canonicalHex
	}

	buf, err := hex.DecodeString(source)
	if err != nil {
		return nil, "invalid hex: " + err.Error()
	}
	if len(buf) < 2 {
		return nil, "frame too short"
	}

	header := buf[0]
	route := RouteType(header & 0x03)
	payloadType := PayloadType((header >> 2) & 0x0F)
	version := PayloadVersion((header >> 6) & 0x03)

	if version != VersionOne {
		return nil, "unsupported payload version"
	}

	offset := 1
	hasTransport := route.HasTransportCodes()
	if hasTransport {
		offset += 4
	}
	if len(buf) < offset+1 {
		return nil, "frame too short for path length"
	}

	var transportCodes []byte
	if hasTransport {
		transportCodes = buf[1:5]
	}

	pathLen := int(buf[offset])
	offset++
	if len(buf) < offset+pathLen {
		return nil, "path length exceeds buffer"
	}
	pathBytes := buf[offset : offset+pathLen]
	offset += pathLen

	payload := buf[offset:]

	expectedSize := 1 + boolToLen(hasTransport, 4) + 1 + pathLen + len(payload)
	if expectedSize != len(buf) {
		return nil, "decoded size mismatch"
	}

	p := &Packet{
		HeaderByte:     header,
		RouteType:      route,
		PayloadType:    payloadType,
		PayloadVersion: version,
		HasTransport:   hasTransport,
		TransportCodes: transportCodes,
		PathLen:        pathLen,
		PathBytes:      pathBytes,
		PathNodes:      pathPrefixes(pathBytes),
		PathKind:       route.KindFor(),
		Payload:        payload,
		RawHex:         rawHex,
		PayloadHex:     payloadHex,
	}

	if payloadType == PayloadTrace {
		p.SNRReadings = make([]SNRReading, len(pathBytes))
		for i, b := range pathBytes {
			p.SNRReadings[i] = decodeTraceSNR(b)
		}
		p.PathHashes = decodeTracePathHashes(payload)
	}

	return p, ""
}

func boolToLen(b bool, n int) int {
	if b {
		return n
	}
	return 0
}

// pathPrefixes renders each path byte as a 2-hex-char node prefix.
func pathPrefixes(path []byte) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	for i, b := range path {
		out[i] = hex.EncodeToString([]byte{b})
	}
	return out
}

// tracePreambleLen is the 4-byte tag + 4-byte auth + 1-byte flags header
// that precedes a TRACE packet's embedded path_hashes.
const tracePreambleLen = 9

func decodeTracePathHashes(payload []byte) []string {
	if len(payload) <= tracePreambleLen {
		return nil
	}
	rest := payload[tracePreambleLen:]
	out := make([]string, len(rest))
	for i, b := range rest {
		out[i] = hex.EncodeToString([]byte{b})
	}
	return out
}

// advertMinPayloadLen is pub_key(32) + timestamp(4) + signature(64) + flags(1).
const advertMinPayloadLen = 101

// AdvertFlags is the first app-data byte of an advert payload.
type AdvertFlags byte

type AdvertType byte

const (
	AdvertChat     AdvertType = 1
	AdvertRepeater AdvertType = 2
	AdvertRoom     AdvertType = 3
	AdvertSensor   AdvertType = 4
)

func (f AdvertFlags) Type() AdvertType { return AdvertType(f & 0x0F) }
func (f AdvertFlags) HasLatLon() bool  { return f&0x10 != 0 }
func (f AdvertFlags) HasFeat1() bool   { return f&0x20 != 0 }
func (f AdvertFlags) HasFeat2() bool   { return f&0x40 != 0 }
func (f AdvertFlags) HasName() bool    { return f&0x80 != 0 }

// Advert is the decoded payload of an ADVERT packet.
type Advert struct {
	PublicKey   []byte
	Timestamp   uint32
	Signature   []byte
	SignedBody  []byte
	Flags       AdvertFlags
	Type        AdvertType
	Latitude    *float64
	Longitude   *float64
	Feat1       *uint16
	Feat2       *uint16
	Name        string
	Truncated   bool
}

// DecodeAdvert parses an ADVERT packet's payload. Parsing is strictly
// bounded: any length mismatch while walking the flag-variable fields stops
// and returns the partial record with Truncated set, never an error — a
// partially-decoded advert is still useful for in-mesh ingestion even if it
// can't be fully trusted (spec.md §3.3, §4.1).
func DecodeAdvert(payload []byte) (*Advert, bool) {
	if len(payload) < advertMinPayloadLen {
		return nil, false
	}

	a := &Advert{
		PublicKey: payload[0:32],
		Timestamp: binary.LittleEndian.Uint32(payload[32:36]),
		Signature: payload[36:100],
	}
	a.SignedBody = append(append([]byte{}, payload[0:36]...), payload[100:]...)

	flags := AdvertFlags(payload[100])
	a.Flags = flags
	a.Type = flags.Type()

	cursor := 101

	if flags.HasLatLon() {
		if len(payload) < cursor+8 {
			a.Truncated = true
			return a, true
		}
		lat := float64(int32(binary.LittleEndian.Uint32(payload[cursor:cursor+4]))) * 1e-6
		lon := float64(int32(binary.LittleEndian.Uint32(payload[cursor+4:cursor+8]))) * 1e-6
		a.Latitude = &lat
		a.Longitude = &lon
		cursor += 8
	}

	if flags.HasFeat1() {
		if len(payload) < cursor+2 {
			a.Truncated = true
			return a, true
		}
		v := binary.LittleEndian.Uint16(payload[cursor : cursor+2])
		a.Feat1 = &v
		cursor += 2
	}

	if flags.HasFeat2() {
		if len(payload) < cursor+2 {
			a.Truncated = true
			return a, true
		}
		v := binary.LittleEndian.Uint16(payload[cursor : cursor+2])
		a.Feat2 = &v
		cursor += 2
	}

	if flags.HasName() {
		name := payload[cursor:]
		a.Name = strings.TrimRight(string(name), "\x00")
	}

	return a, true
}
