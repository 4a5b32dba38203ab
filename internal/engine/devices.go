package engine

import (
	"encoding/hex"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/pcmbridge/internal/errors"
)

// DeviceInfo describes an available playback device.
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// ListPlaybackDevices returns the available playback devices of the
// selected backend.
func ListPlaybackDevices(backend Backend) ([]DeviceInfo, error) {
	mctx, err := acquireContext(backend)
	if err != nil {
		return nil, err
	}
	defer releaseContext()

	infos, err := mctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.New(err).
			Component("engine").
			Category(errors.CategoryResource).
			Context("operation", "enumerate_devices").
			Build()
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodeDeviceID(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

// decodeDeviceID converts malgo's hex-encoded device ID to a readable
// string, falling back to the raw form when it does not decode.
func decodeDeviceID(hexID string) string {
	raw, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	return strings.TrimRight(string(raw), "\x00")
}
