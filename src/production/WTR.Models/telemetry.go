package wtrmodels

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Payload keys understood by the store. Everything else is passed through.
const (
	FieldDeviceID    = "device_id"
	FieldTimestamp   = "timestamp"
	FieldVoltage     = "voltage"
	FieldCurrent     = "current"
	FieldPower       = "power"
	FieldPowerFactor = "pf"
	FieldFrequency   = "frequency"
	FieldEnergy      = "energy"

	// accepted on ingest, stored as FieldPowerFactor
	fieldPowerFactorAlias = "power_factor"
)

// Neutral values used when a measurement is absent on read.
const (
	DefaultPowerFactor = 1.0
	DefaultFrequency   = 50.0
)

// TelemetryPoint is one stored sensor reading. Measurements a device did not
// send stay nil; Extra holds every other payload field unchanged.
type TelemetryPoint struct {
	DeviceID    string                 `json:"device_id"`
	Timestamp   time.Time              `json:"timestamp"`
	Voltage     *float64               `json:"voltage,omitempty"`
	Current     *float64               `json:"current,omitempty"`
	Power       *float64               `json:"power,omitempty"`
	PowerFactor *float64               `json:"pf,omitempty"`
	Frequency   *float64               `json:"frequency,omitempty"`
	Energy      *float64               `json:"energy,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// Reading is the read-side view of a point with every measurement defaulted.
type Reading struct {
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Voltage     float64   `json:"voltage"`
	Current     float64   `json:"current"`
	Power       float64   `json:"power"`
	PowerFactor float64   `json:"pf"`
	Frequency   float64   `json:"frequency"`
	Energy      float64   `json:"energy"`
}

// Reading returns the point with absent measurements replaced by their
// neutral values.
func (p TelemetryPoint) Reading() Reading {
	return Reading{
		DeviceID:    p.DeviceID,
		Timestamp:   p.Timestamp,
		Voltage:     valueOr(p.Voltage, 0),
		Current:     valueOr(p.Current, 0),
		Power:       valueOr(p.Power, 0),
		PowerFactor: valueOr(p.PowerFactor, DefaultPowerFactor),
		Frequency:   valueOr(p.Frequency, DefaultFrequency),
		Energy:      valueOr(p.Energy, 0),
	}
}

// EmptyReading is the zero-valued reading reported before a device has data.
func EmptyReading(deviceID string) Reading {
	return TelemetryPoint{DeviceID: deviceID}.Reading()
}

// PointFromPayload builds a point from a decoded device payload. The device
// clock is never trusted: receivedAt always becomes the timestamp. The
// returned point has an empty DeviceID when the payload carries none.
func PointFromPayload(payload map[string]interface{}, receivedAt time.Time) TelemetryPoint {
	point := TelemetryPoint{Timestamp: receivedAt}
	var aliasPF *float64

	for key, raw := range payload {
		switch key {
		case FieldDeviceID:
			point.DeviceID = deviceIDString(raw)
		case FieldTimestamp:
			// replaced by receivedAt
		case FieldVoltage:
			point.Voltage = point.setNumeric(key, raw)
		case FieldCurrent:
			point.Current = point.setNumeric(key, raw)
		case FieldPower:
			point.Power = point.setNumeric(key, raw)
		case FieldPowerFactor:
			point.PowerFactor = point.setNumeric(key, raw)
		case fieldPowerFactorAlias:
			aliasPF = point.setNumeric(key, raw)
		case FieldFrequency:
			point.Frequency = point.setNumeric(key, raw)
		case FieldEnergy:
			point.Energy = point.setNumeric(key, raw)
		default:
			point.addExtra(key, raw)
		}
	}
	if point.PowerFactor == nil {
		point.PowerFactor = aliasPF
	}

	return point
}

// deviceIDString accepts string and numeric ids. Integral numbers are
// rendered without a fraction.
func deviceIDString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case int, int32, int64, float32, float64:
		f, ok := ToFloat(v)
		if !ok {
			return ""
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return ""
	}
}

// setNumeric converts raw to a measurement. Values that are not numeric are
// kept verbatim in Extra and reported as absent.
func (p *TelemetryPoint) setNumeric(key string, raw interface{}) *float64 {
	if raw == nil {
		return nil
	}
	if v, ok := ToFloat(raw); ok {
		return &v
	}
	p.addExtra(key, raw)
	return nil
}

func (p *TelemetryPoint) addExtra(key string, raw interface{}) {
	if p.Extra == nil {
		p.Extra = make(map[string]interface{})
	}
	p.Extra[key] = raw
}

// ToFloat converts the numeric representations produced by JSON and BSON
// decoders, and numeric strings, into a finite float64.
func ToFloat(raw interface{}) (float64, bool) {
	f, ok := toFloat(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
