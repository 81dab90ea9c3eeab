package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	access "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Access"
	"gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/health"
	config "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Config"
	forecast "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Forecast"
	ingestor "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Ingestor"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	metrics "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Metrics"
	query "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Query"
	implementation "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Interfaces"
	startup "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Startup/health"
)

const registryConnectTimeout = 20 * time.Second

// Container holds what both services share: logging, metrics, health checks
// and the cleanup stack.
type Container struct {
	logger        *logger.Logger
	registry      *prometheus.Registry
	metrics       *metrics.Metrics
	healthChecker *health.HealthChecker

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions
	cleanupFuncs []func() error
}

// ApiContainer manages dependencies for the API service
type ApiContainer struct {
	*Container
	config *config.Config

	store    interfaces.TelemetryRepository
	devices  interfaces.DeviceRepository
	resolver *access.Resolver
	query    *query.Engine
	forecast *forecast.Engine
	pool     *forecast.Pool
}

// IngestorContainer manages dependencies for the ingestion service
type IngestorContainer struct {
	*Container
	config *config.IngestorConfig

	store   interfaces.TelemetryRepository
	gateway *ingestor.Gateway
}

func newContainer(log *logger.Logger) *Container {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Container{
		logger:        log,
		registry:      reg,
		metrics:       metrics.New(reg),
		healthChecker: health.NewHealthChecker(),
	}
}

// NewApiContainer loads the API configuration and builds every dependency of
// the query and forecast endpoints.
func NewApiContainer() (*ApiContainer, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}
	log := logger.NewLogger(&cfg.Logging).WithService("api")

	c := &ApiContainer{Container: newContainer(log), config: cfg}
	if err := c.build(); err != nil {
		_ = c.Shutdown(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *ApiContainer) build() error {
	store, err := c.openStore(c.config.Store)
	if err != nil {
		return err
	}
	c.store = store

	devices, err := c.openRegistry()
	if err != nil {
		return err
	}
	c.devices = devices
	c.healthChecker.Register("registry", devices.Ping)

	resolver, err := access.NewResolver(devices, c.config.Registry.CacheSize, c.config.Registry.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to create device resolver: %w", err)
	}
	c.resolver = resolver

	c.query = query.NewEngine(store, resolver)
	c.forecast = forecast.NewEngine(store, resolver, c.logger, c.metrics)
	c.pool = forecast.NewPool(c.forecast, c.config.Forecast.Workers, c.config.Forecast.QueueSize,
		c.config.Forecast.JobTTL, c.logger, c.metrics)
	return nil
}

func (c *ApiContainer) openRegistry() (interfaces.DeviceRepository, error) {
	if c.config.Registry.Backend == "static" {
		devices, err := implementation.ParseStaticDevices(c.config.Registry.StaticDevices)
		if err != nil {
			return nil, fmt.Errorf("invalid STATIC_DEVICES: %w", err)
		}
		c.logger.Logger.Info().Int("devices", len(devices)).Msg("Using static device registry")
		return implementation.NewStaticDeviceRepository(devices), nil
	}

	db, err := startup.ConnectPostgresWithTimeout(c.config, registryConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device registry: %w", err)
	}
	c.AddCleanupFunc(db.Close)
	return implementation.NewPostgresDeviceRepository(db), nil
}

// NewIngestorContainer loads the ingestion configuration and builds the
// gateway with the configured transport.
func NewIngestorContainer() (*IngestorContainer, error) {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}
	log := logger.NewLogger(&cfg.Logging).WithService("ingestor")

	c := &IngestorContainer{Container: newContainer(log), config: cfg}
	if err := c.build(); err != nil {
		_ = c.Shutdown(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *IngestorContainer) build() error {
	store, err := c.openStore(c.config.Store)
	if err != nil {
		return err
	}
	c.store = store

	var source ingestor.Source
	switch c.config.Transport {
	case "kafka":
		source = ingestor.NewKafkaSource(c.config.Kafka, c.logger)
	default:
		source = ingestor.NewMQTTSource(c.config.MQTT, c.config.GetMQTTBrokerURL(), c.logger)
	}

	c.gateway = ingestor.NewGateway(source, store, c.logger, c.metrics, c.config.QueueSize)
	if err := c.metrics.RegisterIngestState(func() float64 { return float64(c.gateway.State()) }); err != nil {
		return fmt.Errorf("failed to register ingest state gauge: %w", err)
	}
	c.healthChecker.Register(source.Name(), func(context.Context) error {
		if st := c.gateway.State(); st != ingestor.StateSubscribed {
			return fmt.Errorf("transport %s", st)
		}
		return nil
	})
	return nil
}

// openStore connects the telemetry store and registers its health check.
func (c *Container) openStore(cfg config.StoreConfig) (interfaces.TelemetryRepository, error) {
	var store interfaces.TelemetryRepository
	if cfg.Backend == "memory" {
		c.logger.Warn("Using in-memory telemetry store; data is lost on restart")
		store = implementation.NewMemoryTelemetryRepository()
	} else {
		client, err := startup.ConnectMongoWithTimeout(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to telemetry store: %w", err)
		}
		c.AddCleanupFunc(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})

		repo := implementation.NewMongoTelemetryRepository(startup.GetCollection(client, cfg))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		defer cancel()
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create telemetry indexes: %w", err)
		}
		store = repo
	}

	c.healthChecker.Register("store", store.Ping)
	return store, nil
}

// GetConfig returns the configuration
func (c *ApiContainer) GetConfig() *config.Config {
	return c.config
}

// GetConfig returns the ingestor configuration
func (c *IngestorContainer) GetConfig() *config.IngestorConfig {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetMetrics returns the service collectors
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// GetGatherer returns the registry served on /metrics
func (c *Container) GetGatherer() prometheus.Gatherer {
	return c.registry
}

// GetHealthChecker returns the health checker
func (c *Container) GetHealthChecker() *health.HealthChecker {
	return c.healthChecker
}

// GetStore returns the telemetry store
func (c *ApiContainer) GetStore() interfaces.TelemetryRepository {
	return c.store
}

// GetQueryEngine returns the monitoring query engine
func (c *ApiContainer) GetQueryEngine() *query.Engine {
	return c.query
}

// GetForecastEngine returns the forecast engine
func (c *ApiContainer) GetForecastEngine() *forecast.Engine {
	return c.forecast
}

// GetForecastPool returns the forecast worker pool. Callers start and stop it.
func (c *ApiContainer) GetForecastPool() *forecast.Pool {
	return c.pool
}

// GetGateway returns the ingestion gateway
func (c *IngestorContainer) GetGateway() *ingestor.Gateway {
	return c.gateway
}

// HealthCheck performs a comprehensive health check
func (c *Container) HealthCheck(ctx context.Context) (map[string]interface{}, bool) {
	return c.healthChecker.GetHealthStatus(ctx)
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	// Execute cleanup functions in reverse order
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}
