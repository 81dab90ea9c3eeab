package implementation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	hardware_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/hardware"
	interfaces "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Interfaces"
)

// PostgresDeviceRepository reads the registry's devices table. Writes belong
// to the registry service.
type PostgresDeviceRepository struct {
	db *sql.DB
}

func NewPostgresDeviceRepository(db *sql.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

func (r *PostgresDeviceRepository) GetDevice(ctx context.Context, deviceID string) (*hardware_models.Device, error) {
	query := `SELECT device_id, name, COALESCE(location, ''), owner_id, is_active FROM devices WHERE device_id = $1`

	var device hardware_models.Device
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&device.DeviceID, &device.Name, &device.Location, &device.OwnerID, &device.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrDeviceNotFound, deviceID)
		}
		return nil, err
	}

	return &device, nil
}

func (r *PostgresDeviceRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return r.db.PingContext(ctx)
}
