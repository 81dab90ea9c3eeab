package implementation

import (
	"context"
	"sort"
	"sync"
	"time"

	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
)

// MemoryTelemetryRepository keeps each device's series sorted by timestamp.
// Points are copied in and out so callers can never mutate stored data.
type MemoryTelemetryRepository struct {
	mu     sync.RWMutex
	series map[string][]wtrmodels.TelemetryPoint
}

func NewMemoryTelemetryRepository() *MemoryTelemetryRepository {
	return &MemoryTelemetryRepository{series: make(map[string][]wtrmodels.TelemetryPoint)}
}

func (r *MemoryTelemetryRepository) Insert(_ context.Context, point wtrmodels.TelemetryPoint) error {
	point = clonePoint(point)

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.series[point.DeviceID]
	// equal timestamps keep insertion order
	idx := sort.Search(len(s), func(i int) bool { return s[i].Timestamp.After(point.Timestamp) })
	s = append(s, wtrmodels.TelemetryPoint{})
	copy(s[idx+1:], s[idx:])
	s[idx] = point
	r.series[point.DeviceID] = s
	return nil
}

func (r *MemoryTelemetryRepository) Latest(_ context.Context, deviceID string) (*wtrmodels.TelemetryPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.series[deviceID]
	if len(s) == 0 {
		return nil, nil
	}
	latest := clonePoint(s[len(s)-1])
	return &latest, nil
}

func (r *MemoryTelemetryRepository) Range(_ context.Context, deviceID string, start time.Time, end *time.Time) ([]wtrmodels.TelemetryPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.series[deviceID]
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Timestamp.Before(start) })
	hi := len(s)
	if end != nil {
		hi = sort.Search(len(s), func(i int) bool { return !s[i].Timestamp.Before(*end) })
	}

	points := make([]wtrmodels.TelemetryPoint, 0, max(hi-lo, 0))
	for i := lo; i < hi; i++ {
		points = append(points, clonePoint(s[i]))
	}
	return points, nil
}

func (r *MemoryTelemetryRepository) Ping(context.Context) error {
	return nil
}

// Count returns the number of stored points across all devices.
func (r *MemoryTelemetryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.series {
		n += len(s)
	}
	return n
}

func clonePoint(p wtrmodels.TelemetryPoint) wtrmodels.TelemetryPoint {
	out := p
	out.Voltage = cloneFloat(p.Voltage)
	out.Current = cloneFloat(p.Current)
	out.Power = cloneFloat(p.Power)
	out.PowerFactor = cloneFloat(p.PowerFactor)
	out.Frequency = cloneFloat(p.Frequency)
	out.Energy = cloneFloat(p.Energy)
	if p.Extra != nil {
		out.Extra = make(map[string]interface{}, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
