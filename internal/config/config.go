package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/omnivault/crosschain-composer/internal/auth"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	TransportBackendRedis  = "redis"
	TransportBackendMemory = "memory"
)

const (
	dbStatementTimeoutDefaultMS  = 30000
	dbStatementTimeoutMinMS      = 1000
	dbStatementTimeoutMaxMS      = 600000
	dbPoolStatsIntervalDefaultMS = 10000
	dbPoolStatsIntervalMinMS     = 1000
	dbPoolStatsIntervalMaxMS     = 3600000
)

type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	Store     StoreConfig
	Transport TransportConfig
	Attester  AttesterConfig
	Composer  ComposerConfig
	Server    ServerConfig
	Alert     AlertConfig
	Tracing   TracingConfig
	Topology  TopologyConfig
	Log       LogConfig
}

type DBConfig struct {
	URL                 string
	MaxOpenConns        int
	MaxIdleConns        int
	ConnMaxLifetime     time.Duration
	StatementTimeoutMS  int
	PoolStatsIntervalMS int
}

type RedisConfig struct {
	URL string
}

type StoreConfig struct {
	Backend string
}

type TransportConfig struct {
	Backend string
}

type AttesterConfig struct {
	// HealthAddr is the gRPC address of the remote attester's health
	// endpoint. Empty disables the liveness probe and dry-run quotes
	// report valid=false.
	HealthAddr string
	Timeout    time.Duration
}

type ComposerConfig struct {
	BroadcastIntervalMs int
	SendRateLimit       float64
	SendRateBurst       int
	RuntimeConfigPollMs int
	ChannelBufferSize   int
	DupIndexLRUCapacity int
	DupIndexBloomItems  int
}

type ServerConfig struct {
	HealthPort int
	AdminPort  int
	AdminToken string
}

type AlertConfig struct {
	SlackWebhookURL string
	WebhookURL      string
	Cooldown        time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

type TopologyConfig struct {
	Path string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		DB: DBConfig{
			URL:             getEnv("DB_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", StoreBackendPostgres),
		},
		Transport: TransportConfig{
			Backend: getEnv("TRANSPORT_BACKEND", TransportBackendRedis),
		},
		Attester: AttesterConfig{
			HealthAddr: getEnv("ATTESTER_HEALTH_ADDR", ""),
			Timeout:    time.Duration(getEnvInt("ATTESTER_TIMEOUT_SEC", 5)) * time.Second,
		},
		Composer: ComposerConfig{
			BroadcastIntervalMs: getEnvInt("BROADCAST_INTERVAL_MS", 5000),
			SendRateLimit:       getEnvFloat("SEND_RATE_LIMIT", 50),
			SendRateBurst:       getEnvInt("SEND_RATE_BURST", 100),
			RuntimeConfigPollMs: getEnvInt("RUNTIME_CONFIG_POLL_MS", 15000),
			ChannelBufferSize:   getEnvInt("CHANNEL_BUFFER_SIZE", 64),
			DupIndexLRUCapacity: getEnvInt("DUP_INDEX_LRU_CAPACITY", 100000),
			DupIndexBloomItems:  getEnvInt("DUP_INDEX_BLOOM_ITEMS", 10000000),
		},
		Server: ServerConfig{
			HealthPort: getEnvInt("HEALTH_PORT", 8080),
			AdminPort:  getEnvInt("ADMIN_PORT", 8081),
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
		Alert: AlertConfig{
			SlackWebhookURL: getEnv("ALERT_SLACK_WEBHOOK", ""),
			WebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
			Cooldown:        time.Duration(getEnvInt("ALERT_COOLDOWN_SEC", 300)) * time.Second,
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", ""),
			Insecure:    getEnvBool("TRACING_INSECURE", true),
			SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 1.0),
		},
		Topology: TopologyConfig{
			Path: getEnv("TOPOLOGY_FILE", "topology.yaml"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	var err error
	cfg.DB.StatementTimeoutMS, err = getEnvIntStrict("DB_STATEMENT_TIMEOUT_MS",
		dbStatementTimeoutDefaultMS, dbStatementTimeoutMinMS, dbStatementTimeoutMaxMS)
	if err != nil {
		return nil, err
	}
	cfg.DB.PoolStatsIntervalMS, err = getEnvIntStrict("DB_POOL_STATS_INTERVAL_MS",
		dbPoolStatsIntervalDefaultMS, dbPoolStatsIntervalMinMS, dbPoolStatsIntervalMaxMS)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreBackendPostgres:
		if c.DB.URL == "" {
			return fmt.Errorf("DB_URL is required when STORE_BACKEND=postgres")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q",
			StoreBackendPostgres, StoreBackendMemory, c.Store.Backend)
	}

	switch c.Transport.Backend {
	case TransportBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when TRANSPORT_BACKEND=redis")
		}
	case TransportBackendMemory:
	default:
		return fmt.Errorf("TRANSPORT_BACKEND must be %q or %q, got %q",
			TransportBackendRedis, TransportBackendMemory, c.Transport.Backend)
	}

	if c.Topology.Path == "" {
		return fmt.Errorf("TOPOLOGY_FILE is required")
	}

	if c.Server.AdminToken != "" {
		if _, err := auth.Parse(c.Server.AdminToken); err != nil {
			return fmt.Errorf("ADMIN_TOKEN is not a valid capability token: %w", err)
		}
	}

	if c.Attester.HealthAddr != "" && c.Attester.Timeout <= 0 {
		return fmt.Errorf("ATTESTER_TIMEOUT_SEC must be positive when ATTESTER_HEALTH_ADDR is set")
	}

	if c.Composer.SendRateLimit <= 0 {
		return fmt.Errorf("SEND_RATE_LIMIT must be positive, got %v", c.Composer.SendRateLimit)
	}
	if c.Composer.SendRateBurst <= 0 {
		return fmt.Errorf("SEND_RATE_BURST must be positive, got %d", c.Composer.SendRateBurst)
	}
	if c.Composer.BroadcastIntervalMs <= 0 {
		return fmt.Errorf("BROADCAST_INTERVAL_MS must be positive, got %d", c.Composer.BroadcastIntervalMs)
	}
	if c.Composer.RuntimeConfigPollMs <= 0 {
		return fmt.Errorf("RUNTIME_CONFIG_POLL_MS must be positive, got %d", c.Composer.RuntimeConfigPollMs)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("TRACING_ENDPOINT is required when TRACING_ENABLED=true")
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be in (0, 1], got %v", c.Tracing.SampleRatio)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvIntStrict rejects malformed or out-of-range values instead of
// silently falling back. Used for knobs where a typo must not produce a
// surprising runtime default.
func getEnvIntStrict(key string, fallback, min, max int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	if i < min || i > max {
		return 0, fmt.Errorf("%s must be in [%d, %d], got %d", key, min, max, i)
	}
	return i, nil
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
