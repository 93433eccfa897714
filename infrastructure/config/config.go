package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	domainconfig "github.com/nicobenz/flowpertoire/domain/config"
	"github.com/nicobenz/flowpertoire/domain/projection"
)

// Environment names
const (
	Development = "development"
	Staging     = "staging"
	Production  = "production"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Events        EventsConfig        `yaml:"events"`
	Layout        ports.Tuning        `yaml:"layout"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	Observability ObservabilityConfig `yaml:"observability"`
	Cache         CacheConfig         `yaml:"cache"`
	Theme         projection.Theme    `yaml:"theme"`

	// Lambda configuration
	IsLambda           bool   `yaml:"-"`
	LambdaFunctionName string `yaml:"-"`

	Domain *domainconfig.DomainConfig `yaml:"-"`

	// LoadedFrom lists the sources applied, lowest priority first
	LoadedFrom []string `yaml:"-"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EnableCORS      bool          `yaml:"enable_cors"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	// AllowUserHeader lets X-User-ID select the user, for development
	AllowUserHeader bool `yaml:"allow_user_header"`
	// RateLimitPerMinute caps requests per client IP; zero disables it
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// StorageConfig selects and configures the forest store
type StorageConfig struct {
	Driver           string        `yaml:"driver"`
	SQLitePath       string        `yaml:"sqlite_path"`
	DynamoDBTable    string        `yaml:"dynamodb_table"`
	ConnectionsTable string        `yaml:"connections_table"`
	ConnectionsIndex string        `yaml:"connections_index"`
	AWSRegion        string        `yaml:"aws_region"`
	CircuitBreaker   bool          `yaml:"circuit_breaker"`
	DistributedLock  bool          `yaml:"distributed_lock"`
	LockLease        time.Duration `yaml:"lock_lease"`
	LockWait         time.Duration `yaml:"lock_wait"`
}

// EventsConfig configures event fan-out beyond the process
type EventsConfig struct {
	EventBridgeEnabled bool   `yaml:"eventbridge_enabled"`
	EventBusName       string `yaml:"event_bus_name"`
}

// WebSocketConfig configures live sessions
type WebSocketConfig struct {
	Enabled          bool          `yaml:"enabled"`
	PositionsPerSec  float64       `yaml:"positions_per_sec"`
	SendBuffer       int           `yaml:"send_buffer"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
	ManagementAPIURL string        `yaml:"management_api_url"` // host/stage override for cmd/ws-notify
}

// ObservabilityConfig configures metrics and tracing
type ObservabilityConfig struct {
	EnableMetrics       bool    `yaml:"enable_metrics"`
	TracingBackend      string  `yaml:"tracing_backend"`
	OTLPEndpoint        string  `yaml:"otlp_endpoint"`
	TraceSampleRate     float64 `yaml:"trace_sample_rate"`
	CloudWatchNamespace string  `yaml:"cloudwatch_namespace"`
}

// CacheConfig configures the query cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Defaults returns the configuration before any source is applied
func Defaults() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Server: ServerConfig{
			Address:            ":8080",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			EnableCORS:         true,
			AllowedOrigins:     []string{"*"},
			AllowUserHeader:    true,
			RateLimitPerMinute: 600,
		},
		Storage: StorageConfig{
			Driver:           DriverMemory,
			SQLitePath:       "flowpertoire.db",
			DynamoDBTable:    "flowpertoire",
			ConnectionsTable: "flowpertoire-connections",
			ConnectionsIndex: "GSI1",
			AWSRegion:        "us-west-2",
			CircuitBreaker:   true,
			LockLease:        10 * time.Second,
			LockWait:         3 * time.Second,
		},
		Events: EventsConfig{
			EventBusName: "flowpertoire-events",
		},
		Layout: ports.DefaultTuning(),
		WebSocket: WebSocketConfig{
			Enabled:         true,
			PositionsPerSec: 20,
			SendBuffer:      256,
			PingInterval:    30 * time.Second,
			MaxMessageSize:  4096,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:       true,
			TracingBackend:      "none",
			TraceSampleRate:     1,
			CloudWatchNamespace: "Flowpertoire",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Theme: projection.DefaultTheme(),
	}
}

// LoadConfig loads configuration from defaults and environment variables
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	applyEnv(cfg)
	cfg.finish()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables, which win over every file.
// ENVIRONMENT itself is resolved by the caller.
func applyEnv(c *Config) {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.EnableCORS = getEnvBool("ENABLE_CORS", c.Server.EnableCORS)
	c.Server.AllowUserHeader = getEnvBool("ALLOW_USER_HEADER", c.Server.AllowUserHeader)
	c.Server.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.Server.RateLimitPerMinute)

	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.Storage.DynamoDBTable))
	c.Storage.ConnectionsTable = getEnv("CONNECTIONS_TABLE", c.Storage.ConnectionsTable)
	c.Storage.AWSRegion = getEnv("AWS_REGION", c.Storage.AWSRegion)
	c.Storage.DistributedLock = getEnvBool("DISTRIBUTED_LOCK", c.Storage.DistributedLock)

	c.Events.EventBridgeEnabled = getEnvBool("ENABLE_EVENTBRIDGE", c.Events.EventBridgeEnabled)
	c.Events.EventBusName = getEnv("EVENT_BUS_NAME", c.Events.EventBusName)

	c.WebSocket.ManagementAPIURL = getEnv("WEBSOCKET_ENDPOINT", c.WebSocket.ManagementAPIURL)

	c.Observability.EnableMetrics = getEnvBool("ENABLE_METRICS", c.Observability.EnableMetrics)
	c.Observability.TracingBackend = getEnv("TRACING_BACKEND", c.Observability.TracingBackend)
	c.Observability.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Observability.OTLPEndpoint)

	c.Cache.Enabled = getEnvBool("ENABLE_CACHE", c.Cache.Enabled)
	c.Cache.TTL = time.Duration(getEnvInt("CACHE_TTL_SECONDS", int(c.Cache.TTL/time.Second))) * time.Second

	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", "")
	c.IsLambda = getEnvBool("IS_LAMBDA", c.LambdaFunctionName != "")
}

// finish derives the values that depend on the environment
func (c *Config) finish() {
	c.Domain = domainconfig.LoadDomainConfig(c.Environment)
	if c.IsProduction() {
		c.Server.AllowUserHeader = false
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute cannot be negative")
	}

	switch c.Storage.Driver {
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("storage driver %q is not allowed in production", DriverMemory)
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverDynamoDB:
		if c.Storage.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Events.EventBridgeEnabled && c.Events.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when EventBridge is enabled")
	}

	switch c.Observability.TracingBackend {
	case "", "none", "xray":
	case "otlp":
		if c.Observability.OTLPEndpoint == "" {
			return fmt.Errorf("an OTLP endpoint is required for the otlp tracing backend")
		}
	default:
		return fmt.Errorf("unknown tracing backend %q", c.Observability.TracingBackend)
	}

	if c.Layout.TickInterval <= 0 {
		return fmt.Errorf("layout tick_interval must be positive")
	}
	if c.WebSocket.PositionsPerSec <= 0 {
		return fmt.Errorf("websocket positions_per_sec must be positive")
	}
	if c.Domain != nil {
		if err := c.Domain.Validate(); err != nil {
			return fmt.Errorf("domain limits: %w", err)
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
