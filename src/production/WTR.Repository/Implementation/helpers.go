package implementation

import (
	"fmt"
	"time"

	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toDocument flattens a point into the stored document shape: passthrough
// fields at top level next to the measurements the device actually sent.
func toDocument(p wtrmodels.TelemetryPoint) bson.M {
	doc := bson.M{}
	for k, v := range p.Extra {
		doc[k] = v
	}
	doc[wtrmodels.FieldDeviceID] = p.DeviceID
	doc[wtrmodels.FieldTimestamp] = p.Timestamp

	setIfPresent(doc, wtrmodels.FieldVoltage, p.Voltage)
	setIfPresent(doc, wtrmodels.FieldCurrent, p.Current)
	setIfPresent(doc, wtrmodels.FieldPower, p.Power)
	setIfPresent(doc, wtrmodels.FieldPowerFactor, p.PowerFactor)
	setIfPresent(doc, wtrmodels.FieldFrequency, p.Frequency)
	setIfPresent(doc, wtrmodels.FieldEnergy, p.Energy)
	return doc
}

func fromDocument(doc bson.M) (wtrmodels.TelemetryPoint, error) {
	ts, err := documentTime(doc[wtrmodels.FieldTimestamp])
	if err != nil {
		return wtrmodels.TelemetryPoint{}, err
	}

	fields := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		fields[k] = normalizeValue(v)
	}
	return wtrmodels.PointFromPayload(fields, ts), nil
}

func documentTime(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case primitive.DateTime:
		return v.Time().UTC(), nil
	case time.Time:
		return v.UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("document has no timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

// normalizeValue turns nested BSON containers back into plain Go maps and
// slices so passthrough fields serialize the way they arrived.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, inner := range t {
			out[k] = normalizeValue(inner)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, inner := range t {
			out[i] = normalizeValue(inner)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

func setIfPresent(doc bson.M, key string, v *float64) {
	if v != nil {
		doc[key] = *v
	}
}
