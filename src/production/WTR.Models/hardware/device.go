package hardware_models

// Device is a registry entry owning a telemetry stream. The registry itself
// is managed by another service; this side only reads it.
type Device struct {
	DeviceID string `json:"device_id" db:"device_id"`
	Name     string `json:"name" db:"name"`
	Location string `json:"location" db:"location"`
	OwnerID  string `json:"owner_id" db:"owner_id"`
	IsActive bool   `json:"is_active" db:"is_active"`
}
