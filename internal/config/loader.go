package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "profileservice.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("PROFILE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PROFILE_PORT")
	setString(&cfg.Server.CORSOrigin, "PROFILE_CORS_ORIGIN")
	setBool(&cfg.Server.PhotosOnly, "PROFILE_PHOTOS_ONLY")
	setBool(&cfg.Server.MountPhotos, "PROFILE_MOUNT_PHOTOS")
	setInt64(&cfg.Server.MaxUploadMB, "PROFILE_MAX_UPLOAD_MB")
	setDuration(&cfg.Server.WriteTimeout, "PROFILE_WRITE_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PROFILE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PROFILE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "PROFILE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "PROFILE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "PROFILE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Redis.Addr, "REDIS_URL")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setBool(&cfg.Redis.UseTLS, "REDIS_TLS")

	// Cache
	setDuration(&cfg.Cache.TTL, "PROFILE_CACHE_TTL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "PROFILE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "PROFILE_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Backend, "PROFILE_CACHE_L2_BACKEND")
	setString(&cfg.Cache.L2Bucket, "PROFILE_CACHE_L2_BUCKET")

	// Photo probe
	setString(&cfg.PhotoService.URL, "PHOTO_SERVICE_URL")
	setDuration(&cfg.PhotoService.Timeout, "PHOTO_SERVICE_TIMEOUT")

	setInt(&cfg.Breaker.WindowSize, "PROFILE_BREAKER_WINDOW_SIZE")
	setInt(&cfg.Breaker.MinCalls, "PROFILE_BREAKER_MIN_CALLS")
	setFloat64(&cfg.Breaker.FailureRatio, "PROFILE_BREAKER_FAILURE_RATIO")
	setDuration(&cfg.Breaker.CoolDown, "PROFILE_BREAKER_COOL_DOWN")
	setInt(&cfg.Breaker.HalfOpenMaxCalls, "PROFILE_BREAKER_HALF_OPEN_MAX_CALLS")

	setDuration(&cfg.Enrichment.Deadline, "PROFILE_ENRICH_DEADLINE")
	setInt(&cfg.Enrichment.MaxParallel, "PROFILE_ENRICH_MAX_PARALLEL")

	setString(&cfg.Logging.Level, "PROFILE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PROFILE_LOG_SERVICE")

	setFloat64(&cfg.Rate.RequestsPerSecond, "PROFILE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "PROFILE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "PROFILE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "PROFILE_RATE_MAX_IDLE_TIME")

	setString(&cfg.Idempotency.Bucket, "PROFILE_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "PROFILE_IDEMPOTENCY_TTL")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "PROFILE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "PROFILE_OTEL_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setFloat64(&cfg.OTEL.SampleRate, "PROFILE_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}
	switch cfg.Cache.L2Backend {
	case "nats", "redis", "none":
	default:
		return fmt.Errorf("cache.l2_backend must be one of nats, redis, none (got %q)", cfg.Cache.L2Backend)
	}
	if cfg.Cache.L2Backend == "redis" && cfg.Redis.Addr == "" {
		return errors.New("redis.addr is required when cache.l2_backend is redis")
	}
	if cfg.PhotoService.URL == "" {
		return errors.New("photo_service.url is required")
	}
	if cfg.PhotoService.Timeout <= 0 {
		return errors.New("photo_service.timeout must be > 0")
	}
	if cfg.Breaker.WindowSize < 1 {
		return errors.New("breaker.window_size must be >= 1")
	}
	if cfg.Breaker.MinCalls < 1 || cfg.Breaker.MinCalls > cfg.Breaker.WindowSize {
		return errors.New("breaker.min_calls must be between 1 and breaker.window_size")
	}
	if cfg.Breaker.FailureRatio <= 0 || cfg.Breaker.FailureRatio > 1 {
		return errors.New("breaker.failure_ratio must be in (0, 1]")
	}
	if cfg.Breaker.HalfOpenMaxCalls < 1 {
		return errors.New("breaker.half_open_max_calls must be >= 1")
	}
	if cfg.Enrichment.MaxParallel < 1 {
		return errors.New("enrichment.max_parallel must be >= 1")
	}
	if cfg.Enrichment.Deadline < cfg.PhotoService.Timeout {
		return errors.New("enrichment.deadline must be >= photo_service.timeout")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
