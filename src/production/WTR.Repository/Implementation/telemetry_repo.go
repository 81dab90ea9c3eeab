package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoTelemetryRepository struct {
	coll *mongo.Collection
}

func NewMongoTelemetryRepository(coll *mongo.Collection) *MongoTelemetryRepository {
	return &MongoTelemetryRepository{coll: coll}
}

// EnsureIndexes creates the (device_id, timestamp) compound index that both
// Latest and Range rely on, plus the single-field ones.
func (r *MongoTelemetryRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: wtrmodels.FieldDeviceID, Value: 1}}},
		{Keys: bson.D{{Key: wtrmodels.FieldDeviceID, Value: 1}, {Key: wtrmodels.FieldTimestamp, Value: -1}}},
		{Keys: bson.D{{Key: wtrmodels.FieldTimestamp, Value: -1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoTelemetryRepository) Insert(ctx context.Context, point wtrmodels.TelemetryPoint) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, toDocument(point))
	return err
}

func (r *MongoTelemetryRepository) Latest(ctx context.Context, deviceID string) (*wtrmodels.TelemetryPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: wtrmodels.FieldTimestamp, Value: -1}})
	var doc bson.M
	err := r.coll.FindOne(ctx, bson.M{wtrmodels.FieldDeviceID: deviceID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	point, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}
	return &point, nil
}

func (r *MongoTelemetryRepository) Range(ctx context.Context, deviceID string, start time.Time, end *time.Time) ([]wtrmodels.TelemetryPoint, error) {
	window := bson.M{"$gte": start}
	if end != nil {
		window["$lt"] = *end
	}
	filter := bson.M{
		wtrmodels.FieldDeviceID:  deviceID,
		wtrmodels.FieldTimestamp: window,
	}
	opts := options.Find().SetSort(bson.D{{Key: wtrmodels.FieldTimestamp, Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	points := make([]wtrmodels.TelemetryPoint, 0)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		point, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	return points, cursor.Err()
}

func (r *MongoTelemetryRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}
