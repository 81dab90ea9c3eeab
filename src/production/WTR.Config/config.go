package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the API service configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Time-series store configuration
	Store StoreConfig `json:"store"`

	// Device registry configuration
	Registry RegistryConfig `json:"registry"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// Forecast configuration
	Forecast ForecastConfig `json:"forecast"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// StoreConfig selects and configures the telemetry store
type StoreConfig struct {
	Backend        string        `json:"backend"` // mongo or memory
	MongoURI       string        `json:"mongo_uri"`
	Database       string        `json:"database"`
	Collection     string        `json:"collection"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// RegistryConfig holds the device registry connection. Backend "postgres"
// reads the devices table, "static" serves StaticDevices (id:owner:name,...).
type RegistryConfig struct {
	Backend       string        `json:"backend"`
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	User          string        `json:"user"`
	Password      string        `json:"password"`
	DBName        string        `json:"db_name"`
	SSLMode       string        `json:"ssl_mode"`
	MaxConns      int           `json:"max_conns"`
	MinConns      int           `json:"min_conns"`
	CacheSize     int           `json:"cache_size"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	StaticDevices []string      `json:"static_devices"`
}

// AuthConfig holds token validation configuration. Tokens are issued
// elsewhere; this service only verifies them.
type AuthConfig struct {
	JWTSecretKey string `json:"jwt_secret_key"`
	JWTIssuer    string `json:"jwt_issuer"`
}

// ForecastConfig holds forecasting worker and scheduling configuration
type ForecastConfig struct {
	Workers          int           `json:"workers"`
	QueueSize        int           `json:"queue_size"`
	JobTTL           time.Duration `json:"job_ttl"`
	RateLimit        float64       `json:"rate_limit"`
	RateBurst        int           `json:"rate_burst"`
	Schedule         string        `json:"schedule"`
	ScheduledDevices []string      `json:"scheduled_devices"`
	DefaultAlgorithm string        `json:"default_algorithm"`
	DefaultMeterType string        `json:"default_meter_type"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	QoS         int           `json:"qos"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// KafkaConfig holds Kafka consumer configuration
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	GroupID string   `json:"group_id"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// IngestorConfig holds configuration for the telemetry ingestor service
type IngestorConfig struct {
	Server    ServerConfig  `json:"server"`
	Transport string        `json:"transport"` // mqtt or kafka
	MQTT      MQTTConfig    `json:"mqtt"`
	Kafka     KafkaConfig   `json:"kafka"`
	Store     StoreConfig   `json:"store"`
	Logging   LoggingConfig `json:"logging"`
	QueueSize int           `json:"queue_size"`
}

// LoadIngestorConfig loads configuration for the ingestor service
func LoadIngestorConfig() (*IngestorConfig, error) {
	loadDotEnv()

	config := &IngestorConfig{
		Server: ServerConfig{
			Port:         getEnv("INGESTOR_PORT", "9003"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Transport: strings.ToLower(getEnv("TRANSPORT", "mqtt")),
		MQTT: MQTTConfig{
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			Topic:       getEnv("MQTT_TOPIC", "iot/lab/pzem004t"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "wattara-ingestor"),
			SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
			QoS:         getInt("MQTT_QOS", 0),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 60*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "pzem004t"),
			GroupID: getEnv("KAFKA_GROUP_ID", "wattara-ingestor"),
		},
		Store:     loadStoreConfig(),
		Logging:   loadLoggingConfig(),
		QueueSize: getInt("INGEST_QUEUE_SIZE", 4096),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the ingestor configuration
func (c *IngestorConfig) Validate() error {
	switch c.Transport {
	case "mqtt":
		if c.MQTT.Topic == "" {
			return fmt.Errorf("MQTT_TOPIC is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC is required")
		}
	default:
		return fmt.Errorf("unsupported TRANSPORT %q (expected mqtt or kafka)", c.Transport)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("INGEST_QUEUE_SIZE must be positive")
	}
	return c.Store.Validate()
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *IngestorConfig) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// LoadApiConfig loads configuration for the API service
func LoadApiConfig() (*Config, error) {
	loadDotEnv()

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8000"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Store: loadStoreConfig(),
		Registry: RegistryConfig{
			Backend:       strings.ToLower(getEnv("REGISTRY_BACKEND", "postgres")),
			Host:          getEnv("POSTGRES_HOST", "localhost"),
			Port:          getInt("POSTGRES_PORT", 5432),
			User:          getEnv("POSTGRES_USER", ""),
			Password:      getEnv("POSTGRES_PASSWORD", ""),
			DBName:        getEnv("POSTGRES_DB", "wattara"),
			SSLMode:       getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:      getInt("POSTGRES_MAX_CONNS", 25),
			MinConns:      getInt("POSTGRES_MIN_CONNS", 5),
			CacheSize:     getInt("DEVICE_CACHE_SIZE", 1024),
			CacheTTL:      getDuration("DEVICE_CACHE_TTL", 30*time.Second),
			StaticDevices: getStringSlice("STATIC_DEVICES", nil),
		},
		Auth: AuthConfig{
			JWTSecretKey: getEnv("JWT_SECRET_KEY", "change-this-secret-in-production"),
			JWTIssuer:    getEnv("JWT_ISSUER", "wattara-auth-service"),
		},
		Forecast: ForecastConfig{
			Workers:          getInt("FORECAST_WORKERS", 2),
			QueueSize:        getInt("FORECAST_QUEUE_SIZE", 32),
			JobTTL:           getDuration("FORECAST_JOB_TTL", 15*time.Minute),
			RateLimit:        getFloat("FORECAST_RATE_LIMIT", 2),
			RateBurst:        getInt("FORECAST_RATE_BURST", 5),
			Schedule:         getEnv("FORECAST_SCHEDULE", ""),
			ScheduledDevices: getStringSlice("FORECAST_DEVICES", nil),
			DefaultAlgorithm: getEnv("FORECAST_DEFAULT_ALGO", "rf"),
			DefaultMeterType: getEnv("FORECAST_DEFAULT_METER", "900VA"),
		},
		Logging: loadLoggingConfig(),
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	switch c.Registry.Backend {
	case "postgres":
		if c.Registry.User == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.Registry.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required")
		}
	case "static":
	default:
		return fmt.Errorf("unsupported REGISTRY_BACKEND %q (expected postgres or static)", c.Registry.Backend)
	}
	if c.Auth.JWTSecretKey == "change-this-secret-in-production" {
		log.Println("WARNING: Using default JWT secret key. Change JWT_SECRET_KEY in production!")
	}
	if c.Forecast.Workers <= 0 {
		return fmt.Errorf("FORECAST_WORKERS must be positive")
	}
	if c.Forecast.QueueSize <= 0 {
		return fmt.Errorf("FORECAST_QUEUE_SIZE must be positive")
	}
	if c.Forecast.RateLimit <= 0 || c.Forecast.RateBurst <= 0 {
		return fmt.Errorf("FORECAST_RATE_LIMIT and FORECAST_RATE_BURST must be positive")
	}
	if c.Forecast.Schedule != "" && len(c.Forecast.ScheduledDevices) == 0 {
		return fmt.Errorf("FORECAST_DEVICES is required when FORECAST_SCHEDULE is set")
	}
	return nil
}

// Validate validates the store configuration
func (s StoreConfig) Validate() error {
	switch s.Backend {
	case "mongo":
		if s.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q (expected mongo or memory)", s.Backend)
	}
	return nil
}

// GetDatabaseDSN returns the device registry connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Registry.Host, c.Registry.Port, c.Registry.User, c.Registry.Password, c.Registry.DBName, c.Registry.SSLMode)
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:        strings.ToLower(getEnv("STORE_BACKEND", "mongo")),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017/"),
		Database:       getEnv("DB_NAME", "iot_db"),
		Collection:     getEnv("COLL_NAME", "pzem_data1"),
		ConnectTimeout: getDuration("MONGODB_CONNECT_TIMEOUT", 20*time.Second),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "text"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: getBool("LOG_ENABLE_CALLER", false),
	}
}

func loadDotEnv() {
	// A missing .env is fine: variables may be set directly
	_ = godotenv.Load()
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return floatValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
