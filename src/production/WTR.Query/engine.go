// Package query serves device-scoped "latest" and "range" reads.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	access "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Access"
	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
	interfaces "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Interfaces"
)

var ErrMissingDeviceID = errors.New("device_id is required")

// NoDataMessage marks a latest reading for a device that has not reported.
const NoDataMessage = "No data available yet"

// DefaultWindow is used for unknown window names.
const DefaultWindow = "1h"

var windows = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// Windows returns the accepted window names, shortest first.
func Windows() []string {
	return []string{"1h", "6h", "24h", "7d"}
}

// ResolveWindow maps a window name to its duration, falling back to 1h.
func ResolveWindow(name string) (string, time.Duration) {
	if d, ok := windows[name]; ok {
		return name, d
	}
	return DefaultWindow, windows[DefaultWindow]
}

type Engine struct {
	store    interfaces.TelemetryRepository
	resolver access.DeviceResolver
	now      func() time.Time
}

func NewEngine(store interfaces.TelemetryRepository, resolver access.DeviceResolver) *Engine {
	return &Engine{store: store, resolver: resolver, now: time.Now}
}

func (e *Engine) GetLatest(ctx context.Context, deviceID string, principal auth_models.Principal) (*wtrmodels.LatestReading, error) {
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}
	device, err := e.resolver.Resolve(ctx, deviceID, principal)
	if err != nil {
		return nil, err
	}

	point, err := e.store.Latest(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest point: %w", err)
	}
	if point == nil {
		r := wtrmodels.EmptyReading(deviceID)
		return latestFrom(r, device.Name, nil, NoDataMessage), nil
	}

	r := point.Reading()
	ts := r.Timestamp
	return latestFrom(r, device.Name, &ts, ""), nil
}

func (e *Engine) GetRange(ctx context.Context, deviceID string, principal auth_models.Principal, window string) (*wtrmodels.RangeResult, error) {
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}
	device, err := e.resolver.Resolve(ctx, deviceID, principal)
	if err != nil {
		return nil, err
	}

	name, d := ResolveWindow(window)
	points, err := e.store.Range(ctx, deviceID, e.now().UTC().Add(-d), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read range: %w", err)
	}

	data := make([]wtrmodels.Reading, len(points))
	for i, p := range points {
		data[i] = p.Reading()
	}
	return &wtrmodels.RangeResult{
		DeviceID:   deviceID,
		DeviceName: device.Name,
		Range:      name,
		Count:      len(data),
		Data:       data,
	}, nil
}

func latestFrom(r wtrmodels.Reading, name string, ts *time.Time, msg string) *wtrmodels.LatestReading {
	return &wtrmodels.LatestReading{
		DeviceID:    r.DeviceID,
		DeviceName:  name,
		Timestamp:   ts,
		Voltage:     r.Voltage,
		Current:     r.Current,
		Power:       r.Power,
		PowerFactor: r.PowerFactor,
		Frequency:   r.Frequency,
		Energy:      r.Energy,
		Message:     msg,
	}
}
