package bluetoothutil

import (
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// MeshCore's companion BLE transport rides the Nordic UART Service (NUS),
// the de-facto standard GATT profile for byte-stream-over-BLE. RX/TX are
// named from the peripheral's perspective: TX is what the radio sends us.
var (
	meshCoreServiceUUID = MustParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	meshCoreRXUUID      = MustParseUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	meshCoreTXUUID      = MustParseUUID("6e400003-b5a3-f393-e0a9-e50e24dcca9e")
)

func MustParseUUID(raw string) bluetooth.UUID {
	uuid, err := bluetooth.ParseUUID(strings.TrimSpace(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid bluetooth UUID %q: %v", raw, err))
	}
	return uuid
}

func MeshCoreServiceUUID() bluetooth.UUID {
	return meshCoreServiceUUID
}

// MeshCoreRXUUID identifies the characteristic we write frames to (radio's RX).
func MeshCoreRXUUID() bluetooth.UUID {
	return meshCoreRXUUID
}

// MeshCoreTXUUID identifies the characteristic the radio notifies us on (radio's TX).
func MeshCoreTXUUID() bluetooth.UUID {
	return meshCoreTXUUID
}
