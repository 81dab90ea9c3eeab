package interfaces

import (
	"context"
	"errors"

	hardware_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/hardware"
)

// ErrDeviceNotFound is returned by DeviceRepository.GetDevice for unknown ids.
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository is a read-only view of the external device registry.
type DeviceRepository interface {
	GetDevice(ctx context.Context, deviceID string) (*hardware_models.Device, error)
	Ping(ctx context.Context) error
}
