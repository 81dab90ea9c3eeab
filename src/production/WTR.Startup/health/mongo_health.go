package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	config "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectMongoWithTimeout connects to the telemetry store and verifies the
// connection with a ping against the primary.
func ConnectMongoWithTimeout(cfg config.StoreConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.MongoURI)
	clientOptions.SetServerSelectionTimeout(30 * time.Second)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
	clientOptions.SetSocketTimeout(30 * time.Second)
	clientOptions.SetAppName("wattara")

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB at %s: %w", redactURI(cfg.MongoURI), err)
	}

	return client, nil
}

// GetCollection returns the configured telemetry collection.
func GetCollection(client *mongo.Client, cfg config.StoreConfig) *mongo.Collection {
	return client.Database(cfg.Database).Collection(cfg.Collection)
}

// redactURI drops credentials from a connection string for logging.
func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
