package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	Port        = "server.port"
	Environment = "server.environment"

	StorageBackend = "storage.backend"

	RedisURL      = "redis.url"
	RedisPassword = "redis.password"
	RedisDB       = "redis.db"

	PubNubPublishKey   = "pubnub.publish_key"
	PubNubSubscribeKey = "pubnub.subscribe_key"
	PubNubSecretKey    = "pubnub.secret_key"
	PubNubUserID       = "pubnub.user_id"

	CheckInGrace = "ledger.checkin_grace"
	ApplyRetries = "ledger.apply_retries"

	CurrencySymbol   = "payload.currency_symbol"
	CurrencyDecimals = "payload.currency_decimals"
	Timezone         = "payload.timezone"

	ScanRateLimit  = "security.scan_rate_limit"
	ScanRateWindow = "security.scan_rate_window"

	EnableMetrics = "monitoring.enable_metrics"
	MetricsPort   = "monitoring.metrics_port"

	LogLevel  = "log.level"
	LogFormat = "log.format"
)

const (
	BackendMemory     = "memory"
	BackendRedis      = "redis"
	BackendPocketBase = "pocketbase"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Storage configuration
	StorageBackend string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Ledger policy
	CheckInGrace time.Duration
	ApplyRetries int

	// Payload rendering
	CurrencySymbol   string
	CurrencyDecimals int32
	Timezone         string

	// Scanner rate limiting, 0 disables it
	ScanRateLimit  int64
	ScanRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(Port, "8090")
	v.SetDefault(Environment, "development")
	v.SetDefault(StorageBackend, BackendMemory)
	v.SetDefault(RedisURL, "localhost:6379")
	v.SetDefault(RedisPassword, "")
	v.SetDefault(RedisDB, 0)
	v.SetDefault(PubNubPublishKey, "")
	v.SetDefault(PubNubSubscribeKey, "")
	v.SetDefault(PubNubSecretKey, "")
	v.SetDefault(PubNubUserID, "ticket-ledger")
	v.SetDefault(CheckInGrace, "24h")
	v.SetDefault(ApplyRetries, 16)
	v.SetDefault(CurrencySymbol, "$")
	v.SetDefault(CurrencyDecimals, 2)
	v.SetDefault(Timezone, "UTC")
	v.SetDefault(ScanRateLimit, 0)
	v.SetDefault(ScanRateWindow, "1m")
	v.SetDefault(EnableMetrics, true)
	v.SetDefault(MetricsPort, "9090")
	v.SetDefault(LogLevel, "info")
	v.SetDefault(LogFormat, "json")
}

// LoadConfig reads configuration from the environment (LEDGER_CHECKIN_GRACE,
// STORAGE_BACKEND, ...) and, when CONFIG_PATH is set, from that file first.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString(Port),
		Environment: v.GetString(Environment),

		StorageBackend: strings.ToLower(v.GetString(StorageBackend)),

		RedisURL:      v.GetString(RedisURL),
		RedisPassword: v.GetString(RedisPassword),
		RedisDB:       v.GetInt(RedisDB),

		PubNubPublishKey:   v.GetString(PubNubPublishKey),
		PubNubSubscribeKey: v.GetString(PubNubSubscribeKey),
		PubNubSecretKey:    v.GetString(PubNubSecretKey),
		PubNubUserID:       v.GetString(PubNubUserID),

		CheckInGrace: v.GetDuration(CheckInGrace),
		ApplyRetries: v.GetInt(ApplyRetries),

		CurrencySymbol:   v.GetString(CurrencySymbol),
		CurrencyDecimals: v.GetInt32(CurrencyDecimals),
		Timezone:         v.GetString(Timezone),

		ScanRateLimit:  v.GetInt64(ScanRateLimit),
		ScanRateWindow: v.GetDuration(ScanRateWindow),

		EnableMetrics: v.GetBool(EnableMetrics),
		MetricsPort:   v.GetString(MetricsPort),

		LogLevel:  v.GetString(LogLevel),
		LogFormat: v.GetString(LogFormat),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the ledger cannot run with.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendRedis, BackendPocketBase:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.StorageBackend)
	}
	if c.CheckInGrace < 0 {
		return fmt.Errorf("config: %s must not be negative", CheckInGrace)
	}
	if c.ApplyRetries <= 0 {
		return fmt.Errorf("config: %s must be positive", ApplyRetries)
	}
	if c.CurrencyDecimals < 0 || c.CurrencyDecimals > 8 {
		return fmt.Errorf("config: %s must be between 0 and 8", CurrencyDecimals)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: %s: %w", Timezone, err)
	}
	return nil
}

// Location returns the time zone payload dates are rendered in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
