package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

// EnvPrefix prefixes environment overrides, e.g. PV_DATABASE_HOST.
const EnvPrefix = "PV"

// Config holds all configuration for our application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Meteomatics MeteomaticsConfig `mapstructure:"meteomatics"`
	Fronius     FroniusConfig     `mapstructure:"fronius"`
	Model       ModelConfig       `mapstructure:"model"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	PV          PVConfig          `mapstructure:"pv"`
}

type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	GRPCPort       int     `mapstructure:"grpc_port"`
	HTTPPort       int     `mapstructure:"http_port"`
	MetricsPath    string  `mapstructure:"metrics_path"`
	CacheSize      int     `mapstructure:"cache_size"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Driver            string `mapstructure:"driver"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	PoolSize          int    `mapstructure:"pool_size"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

// DSN returns a connection URL accepted by both the postgres and pgx
// drivers.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	if d.ConnectionTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprint(d.ConnectionTimeout))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MeteomaticsConfig struct {
	BaseURL    string             `mapstructure:"base_url"`
	Username   string             `mapstructure:"username"`
	Password   string             `mapstructure:"password"`
	Timezone   string             `mapstructure:"timezone"`
	Parameters []string           `mapstructure:"parameters"`
	Locations  []weather.Location `mapstructure:"locations"`
	RateLimit  float64            `mapstructure:"rate_limit"`
	Timeout    time.Duration      `mapstructure:"timeout"`
}

type FroniusConfig struct {
	Address       string        `mapstructure:"address"`
	Channels      []string      `mapstructure:"channels"`
	MaxQueryDays  int           `mapstructure:"max_query_days"`
	BootstrapDays int           `mapstructure:"bootstrap_days"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ModelConfig struct {
	RegistryURL string        `mapstructure:"registry_url"`
	ServingURL  string        `mapstructure:"serving_url"`
	Name        string        `mapstructure:"name"`
	Alias       string        `mapstructure:"alias"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig enables prediction events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// SchedulerConfig holds cron specs. An empty spec disables the job.
type SchedulerConfig struct {
	Weather        string        `mapstructure:"weather"`
	Energy         string        `mapstructure:"energy"`
	Model          string        `mapstructure:"model"`
	EnergyLookback time.Duration `mapstructure:"energy_lookback"`
}

type PVConfig struct {
	ID string `mapstructure:"id"`
}

// Load reads configuration from file and environment variables. ${VAR}
// references in the file are expanded first, then PV_ prefixed variables
// override individual keys.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// First unmarshal into a map to handle type conversions
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	data, err = yaml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}

	expandedData := os.ExpandEnv(string(data))

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(strings.NewReader(expandedData)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "lru", "redis":
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	if c.Fronius.MaxQueryDays <= 0 {
		return fmt.Errorf("invalid fronius max_query_days: %d", c.Fronius.MaxQueryDays)
	}
	return nil
}

// Location returns the timezone forecasts are requested in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Meteomatics.Timezone)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("server.cache_size", 1000)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "pvforecast")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.pool_size", 2)
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("meteomatics.base_url", "https://api.meteomatics.com")
	v.SetDefault("meteomatics.username", "")
	v.SetDefault("meteomatics.password", "")
	v.SetDefault("meteomatics.timezone", "Europe/Zurich")
	v.SetDefault("meteomatics.parameters", weather.DefaultParameters)
	v.SetDefault("meteomatics.rate_limit", 0)
	v.SetDefault("meteomatics.timeout", "10s")

	v.SetDefault("fronius.address", "")
	v.SetDefault("fronius.channels", []string{})
	v.SetDefault("fronius.max_query_days", 16)
	v.SetDefault("fronius.bootstrap_days", 0)
	v.SetDefault("fronius.timeout", "30s")

	v.SetDefault("model.registry_url", "http://localhost:5000")
	v.SetDefault("model.serving_url", "http://localhost:5001")
	v.SetDefault("model.name", "pv_model")
	v.SetDefault("model.alias", "production")
	v.SetDefault("model.timeout", "30s")

	v.SetDefault("cache.backend", "lru")
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "pv-predictions")

	v.SetDefault("scheduler.weather", "5 * * * *")
	v.SetDefault("scheduler.energy", "*/15 * * * *")
	v.SetDefault("scheduler.model", "30 2 * * *")
	v.SetDefault("scheduler.energy_lookback", "24h")

	v.SetDefault("pv.id", "1")
}
