package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/controllers"
	jwt "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/implementation/jwt"
	"gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/middleware"
	container "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Container"
	forecast "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Forecast"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting API Service")

	config := ctr.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Forecast workers
	pool := ctr.GetForecastPool()
	pool.Start(ctx)
	defer pool.Stop()

	if config.Forecast.Schedule != "" {
		scheduler, err := forecast.NewScheduler(
			config.Forecast.Schedule,
			config.Forecast.ScheduledDevices,
			config.Forecast.DefaultAlgorithm,
			config.Forecast.DefaultMeterType,
			pool,
			logger,
			ctr.GetMetrics(),
		)
		if err != nil {
			logger.FatalWithError(err, "Failed to create forecast scheduler")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	jwtService := jwt.NewService(config.Auth.JWTSecretKey, config.Auth.JWTIssuer)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, middleware.DefaultConfig())

	rateLimiter, err := middleware.NewRateLimiter(config.Forecast.RateLimit, config.Forecast.RateBurst, 4096)
	if err != nil {
		logger.FatalWithError(err, "Failed to create rate limiter")
	}

	// Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics(ctr.GetMetrics()))
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	telemetryController := controllers.NewTelemetryController(ctr.GetQueryEngine(), logger, authMiddleware)
	forecastController := controllers.NewForecastController(
		pool,
		controllers.ForecastDefaults{
			Algorithm: config.Forecast.DefaultAlgorithm,
			MeterType: config.Forecast.DefaultMeterType,
		},
		logger,
		authMiddleware,
		rateLimiter,
	)
	healthController := controllers.NewHealthController(ctr.GetHealthChecker(), ctr.GetGatherer())

	telemetryController.RegisterRoutes(router)
	forecastController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
