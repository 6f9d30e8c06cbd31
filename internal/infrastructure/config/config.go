package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	MailTransportLog = "log"
	MailTransportS3  = "s3"
)

// Config is the full process configuration. Keys are the lower_snake
// mapstructure names joined by dots, e.g. saga.sweep_interval, and each one
// can be overridden by SHOPKIT_<SECTION>_<KEY>.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Event     EventConfig     `mapstructure:"event"`
	Saga      SagaConfig      `mapstructure:"saga"`
	Mail      MailConfig      `mapstructure:"mail"`
	Storage   StorageConfig   `mapstructure:"storage"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	Output     string `mapstructure:"output"` // stdout, stderr or a file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"` // sqlite only; ":memory:" works
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// EventConfig drives the outbox relay, consumer dedup and the Kafka bridge
type EventConfig struct {
	ProcessorEnabled bool          `mapstructure:"processor_enabled"`
	BatchSize        int           `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	// Pending rows younger than GracePeriod are left to the in-process dispatch.
	GracePeriod       time.Duration `mapstructure:"grace_period"`
	MaxRetries        int           `mapstructure:"max_retries"`
	CleanupEnabled    bool          `mapstructure:"cleanup_enabled"`
	CleanupRetention  time.Duration `mapstructure:"cleanup_retention"`
	IdempotencyStore  string        `mapstructure:"idempotency_store"` // memory or redis
	IdempotencyTTL    time.Duration `mapstructure:"idempotency_ttl"`
	KafkaEnabled      bool          `mapstructure:"kafka_enabled"`
	KafkaBrokers      []string      `mapstructure:"kafka_brokers"`
	KafkaTopic        string        `mapstructure:"kafka_topic"`
	KafkaEventSource  string        `mapstructure:"kafka_event_source"`
	KafkaWriteTimeout time.Duration `mapstructure:"kafka_write_timeout"`
}

type SagaConfig struct {
	SweepEnabled  bool          `mapstructure:"sweep_enabled"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
	MaxRetries    int           `mapstructure:"max_retries"`   // compare-and-swap attempts per event
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"` // base delay between attempts
}

type MailConfig struct {
	Transport string  `mapstructure:"transport"`
	From      string  `mapstructure:"from"`
	Rate      float64 `mapstructure:"rate"` // messages per second
	Burst     int     `mapstructure:"burst"`
}

// StorageConfig points at an S3-compatible bucket. Empty credentials fall
// back to the AWS default chain.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // OTLP gRPC, host:port
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // leaks bind values into spans
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	ProfilingEndpoint string        `mapstructure:"profiling_endpoint"`
}

// defaults lists every key Load knows about. AutomaticEnv only reaches keys
// viper has seen, so zero values are registered too.
var defaults = map[string]any{
	"app.name": "shopkit-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             DriverPostgres,
	"database.path":               "shopkit.db",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "shopkit",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":        "info",
	"log.format":       "console",
	"log.output":       "stdout",
	"log.max_size_mb":  100,
	"log.max_backups":  5,
	"log.max_age_days": 28,
	"log.compress":     false,

	"event.processor_enabled":   true,
	"event.batch_size":          100,
	"event.poll_interval":       5 * time.Second,
	"event.grace_period":        30 * time.Second,
	"event.max_retries":         5,
	"event.cleanup_enabled":     true,
	"event.cleanup_retention":   7 * 24 * time.Hour,
	"event.idempotency_store":   "memory",
	"event.idempotency_ttl":     24 * time.Hour,
	"event.kafka_enabled":       false,
	"event.kafka_brokers":       []string{},
	"event.kafka_topic":         "shopkit.events",
	"event.kafka_event_source":  "/shopkit/backend",
	"event.kafka_write_timeout": 10 * time.Second,

	"saga.sweep_enabled":  true,
	"saga.sweep_interval": time.Minute,
	"saga.sweep_batch":    100,
	"saga.max_retries":    5,
	"saga.retry_backoff":  20 * time.Millisecond,

	"mail.transport": MailTransportLog,
	"mail.from":      "no-reply@shopkit.local",
	"mail.rate":      10.0,
	"mail.burst":     20,

	"storage.endpoint":          "",
	"storage.region":            "us-east-1",
	"storage.bucket":            "",
	"storage.prefix":            "outgoing/",
	"storage.access_key_id":     "",
	"storage.secret_access_key": "",
	"storage.use_path_style":    false,

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     time.Minute,
	"http.max_header_bytes": 1 << 20,
	"http.shutdown_timeout": 30 * time.Second,
	"http.trusted_proxies":  []string{},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "shopkit-backend",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.profiling_enabled":       false,
	"telemetry.profiling_endpoint":      "http://localhost:4040",
}

// Load reads config.toml from the working directory or /app when present,
// then applies SHOPKIT_* environment overrides on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var missing viper.ConfigFileNotFoundError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHOPKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.Driver != DriverPostgres && db.Driver != DriverSQLite:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, db.Driver)
	case db.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	}

	if s := c.Event.IdempotencyStore; s != "memory" && s != "redis" {
		return fmt.Errorf("event.idempotency_store must be memory or redis, got %q", s)
	}
	if c.Event.KafkaEnabled && len(c.Event.KafkaBrokers) == 0 {
		return errors.New("event.kafka_brokers is required when event.kafka_enabled is set")
	}
	if c.Saga.MaxRetries < 1 {
		return errors.New("saga.max_retries must be at least 1")
	}

	switch c.Mail.Transport {
	case MailTransportLog:
	case MailTransportS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required when mail.transport is s3")
		}
	default:
		return fmt.Errorf("mail.transport must be %q or %q, got %q", MailTransportLog, MailTransportS3, c.Mail.Transport)
	}

	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be within [0, 1], got %g", r)
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateProduction() error {
	switch {
	case c.Database.Driver == DriverSQLite:
		return errors.New("database.driver sqlite is not supported in production")
	case c.Database.Password == "":
		return errors.New("database.password is required in production")
	case c.Database.SSLMode == "disable":
		return errors.New("database.sslmode must not be disable in production")
	case c.Telemetry.DBLogFullSQL:
		return errors.New("telemetry.db_log_full_sql must be off in production")
	}
	return nil
}

// DSN is the sqlite file path, or a postgres URL with user and password
// escaped.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
