// Command startup prepares the telemetry store and checks the device
// registry before the services are rolled out. It exits non-zero when a
// dependency is unreachable.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	container "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Container"
)

func main() {
	// Connects the store, creates its indexes and opens the registry
	ctr, err := container.NewApiContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, healthy := ctr.HealthCheck(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)

	if !healthy {
		logger.Warn("Dependencies are not ready")
		ctr.Shutdown(context.Background())
		os.Exit(1)
	}
	logger.Info("Telemetry store and device registry ready")
}
