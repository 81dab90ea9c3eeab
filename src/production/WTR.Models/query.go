package wtrmodels

import "time"

// LatestReading is the "latest value" answer. Timestamp is nil and Message
// set when the device has not reported yet.
type LatestReading struct {
	DeviceID    string     `json:"device_id"`
	DeviceName  string     `json:"device_name"`
	Timestamp   *time.Time `json:"timestamp"`
	Voltage     float64    `json:"voltage"`
	Current     float64    `json:"current"`
	Power       float64    `json:"power"`
	PowerFactor float64    `json:"pf"`
	Frequency   float64    `json:"frequency"`
	Energy      float64    `json:"energy"`
	Message     string     `json:"message,omitempty"`
}

// RangeResult is the "historical range" answer, ascending by timestamp.
type RangeResult struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Range      string    `json:"range"`
	Count      int       `json:"count"`
	Data       []Reading `json:"data"`
}
