// Package access holds the device ownership guard shared by the query and
// forecast paths.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
	hardware_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/hardware"
	interfaces "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Interfaces"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrForbidden      = errors.New("access to device denied")
)

// DeviceResolver resolves a device for a principal, enforcing ownership.
type DeviceResolver interface {
	Resolve(ctx context.Context, deviceID string, principal auth_models.Principal) (*hardware_models.Device, error)
}

type cachedDevice struct {
	device    hardware_models.Device
	fetchedAt time.Time
}

// Resolver looks devices up in the registry and keeps recently used records
// in an LRU for ttl. The ownership decision is made on every call.
type Resolver struct {
	devices interfaces.DeviceRepository
	cache   *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

// NewResolver creates a resolver. A cacheSize or ttl of zero disables caching.
func NewResolver(devices interfaces.DeviceRepository, cacheSize int, ttl time.Duration) (*Resolver, error) {
	r := &Resolver{devices: devices, ttl: ttl, now: time.Now}
	if cacheSize > 0 && ttl > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create device cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

func (r *Resolver) Resolve(ctx context.Context, deviceID string, principal auth_models.Principal) (*hardware_models.Device, error) {
	device, err := r.lookup(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if !principal.IsAdmin() && device.OwnerID != principal.UserID {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, deviceID)
	}
	return device, nil
}

func (r *Resolver) lookup(ctx context.Context, deviceID string) (*hardware_models.Device, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(deviceID); ok {
			entry := v.(cachedDevice)
			if r.now().Sub(entry.fetchedAt) < r.ttl {
				d := entry.device
				return &d, nil
			}
			r.cache.Remove(deviceID)
		}
	}

	device, err := r.devices.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, interfaces.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		return nil, fmt.Errorf("device lookup failed: %w", err)
	}

	if r.cache != nil {
		r.cache.Add(deviceID, cachedDevice{device: *device, fetchedAt: r.now()})
	}
	return device, nil
}
