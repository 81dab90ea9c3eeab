package implementation

import (
	"context"
	"fmt"
	"strings"

	hardware_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/hardware"
	interfaces "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Interfaces"
)

// StaticDeviceRepository serves a fixed device list, for local runs and tests.
type StaticDeviceRepository struct {
	devices map[string]hardware_models.Device
}

func NewStaticDeviceRepository(devices []hardware_models.Device) *StaticDeviceRepository {
	m := make(map[string]hardware_models.Device, len(devices))
	for _, d := range devices {
		m[d.DeviceID] = d
	}
	return &StaticDeviceRepository{devices: m}
}

// ParseStaticDevices parses "device_id:owner_id[:name[:location]]" entries.
func ParseStaticDevices(specs []string) ([]hardware_models.Device, error) {
	devices := make([]hardware_models.Device, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 4)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid device entry %q, expected device_id:owner_id[:name[:location]]", spec)
		}
		d := hardware_models.Device{DeviceID: parts[0], OwnerID: parts[1], Name: parts[0], IsActive: true}
		if len(parts) > 2 && parts[2] != "" {
			d.Name = parts[2]
		}
		if len(parts) > 3 {
			d.Location = parts[3]
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (r *StaticDeviceRepository) GetDevice(_ context.Context, deviceID string) (*hardware_models.Device, error) {
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrDeviceNotFound, deviceID)
	}
	return &d, nil
}

func (r *StaticDeviceRepository) Ping(context.Context) error {
	return nil
}
