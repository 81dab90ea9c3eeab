package interfaces

import (
	"context"
	"time"

	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
)

// TelemetryRepository is the append-only time-series store. Only the
// ingestion gateway calls Insert; query and forecast paths only read.
type TelemetryRepository interface {
	// Insert appends one point. It fails only when storage is unavailable.
	Insert(ctx context.Context, point wtrmodels.TelemetryPoint) error

	// Latest returns the point with the greatest timestamp, or nil when the
	// device has no points.
	Latest(ctx context.Context, deviceID string) (*wtrmodels.TelemetryPoint, error)

	// Range returns points with start <= timestamp (and timestamp < end when
	// end is non-nil), ascending by timestamp.
	Range(ctx context.Context, deviceID string, start time.Time, end *time.Time) ([]wtrmodels.TelemetryPoint, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
