package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	container "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Container"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewIngestorContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	logger.Logger.Info().Str("transport", config.Transport).Msg("Starting Ingestor Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway := ctr.GetGateway()
	done := make(chan error, 1)
	go func() {
		done <- gateway.Run(ctx)
	}()

	srv := &http.Server{
		Addr:         ":" + config.Server.Port,
		Handler:      healthMux(ctr),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}
	go func() {
		logger.Info("Health server starting on port " + config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start health server")
		}
	}()

	logger.Info("Ingestor running... press Ctrl+C to stop")

	// Wait for shutdown signal or a fatal transport error
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	stopped := false
	select {
	case <-sig:
	case err := <-done:
		stopped = true
		if err != nil {
			logger.ErrorWithError(err, "Ingestion gateway stopped")
		}
	}

	logger.Info("Shutting down...")
	cancel()

	// the store is closed by the container, so the gateway must be done with it
	if !stopped && !waitForGateway(done, 15*time.Second) {
		logger.Warn("Ingestion gateway did not stop in time")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Health server forced to shutdown")
	}
}

// waitForGateway reports whether the gateway loop returned within timeout.
func waitForGateway(done <-chan error, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// healthMux serves /health (transport state and store reachability) and
// /metrics.
func healthMux(ctr *container.IngestorContainer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status, healthy := ctr.HealthCheck(ctx)
		status["transport"] = ctr.GetGateway().State().String()

		w.Header().Set("Content-Type", "application/json")
		if healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(ctr.GetGatherer(), promhttp.HandlerOpts{}))
	return mux
}
