package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"meshbot/internal/catalog"
	"meshbot/internal/message"
)

// PlaceholderData is everything a reply template may reference. Fields the
// caller doesn't have get a sensible default ("unknown") rather than left
// blank, per spec.md §4.4 "missing placeholders must be filled with
// sensible defaults".
type PlaceholderData struct {
	Sender              string
	ConnectionInfo       string
	SNR                  *float64
	RSSI                 *int
	Timestamp            string
	Path                 string
	PathDistanceKM       *float64
	FirstLastDistanceKM  *float64
	Phrase               string
	MeshInfo             *catalog.MeshInfo
}

// FromMessage seeds placeholder data from a normalized message.
func FromMessage(msg message.MeshMessage) PlaceholderData {
	data := PlaceholderData{Sender: msg.SenderID}
	data.SNR = msg.SNR
	data.RSSI = msg.RSSI
	data.Timestamp = msg.Timestamp.Format("15:04:05")
	if len(msg.Path.Nodes) > 0 {
		data.Path = strings.Join(msg.Path.Nodes, ",")
	} else if msg.Path.Direct {
		data.Path = "Direct"
	} else if msg.Path.Unknown {
		data.Path = "unknown"
	}
	return data
}

// Format substitutes {placeholder} tokens in template. A formatter error —
// an unknown field reference — must never block send, so any substitution
// failure just leaves the literal token in place.
func Format(template string, data PlaceholderData) string {
	replacer := strings.NewReplacer(
		"{sender}", orUnknown(data.Sender),
		"{connection_info}", orUnknown(data.ConnectionInfo),
		"{snr}", formatFloatPtr(data.SNR),
		"{rssi}", formatIntPtr(data.RSSI),
		"{timestamp}", orUnknown(data.Timestamp),
		"{path}", orUnknown(data.Path),
		"{path_distance}", formatFloatPtr(data.PathDistanceKM),
		"{firstlast_distance}", formatFloatPtr(data.FirstLastDistanceKM),
		"{phrase}", orUnknown(data.Phrase),
	)
	out := replacer.Replace(template)
	return formatMeshInfoPlaceholders(out, data.MeshInfo)
}

func formatMeshInfoPlaceholders(s string, info *catalog.MeshInfo) string {
	if info == nil {
		info = &catalog.MeshInfo{}
	}
	replacer := strings.NewReplacer(
		"{total_contacts}", strconv.Itoa(info.TotalContacts),
		"{total_repeaters}", strconv.Itoa(info.TotalRepeaters),
		"{total_roomservers}", strconv.Itoa(info.TotalRoomServers),
		"{total_sensors}", strconv.Itoa(info.TotalSensors),
		"{active_24h}", strconv.Itoa(info.Active24h),
		"{new_companions_7d}", strconv.Itoa(info.NewCompanions7d),
		"{total_contacts_30d}", strconv.Itoa(info.ActiveContacts30d),
		// legacy aliases
		"{repeaters}", strconv.Itoa(info.TotalRepeaters),
		"{companions}", strconv.Itoa(info.TotalContacts),
	)
	return replacer.Replace(s)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return "unknown"
	}
	return strconv.Itoa(*v)
}
