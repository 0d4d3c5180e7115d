package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Station          string
	BaseURL          string
	FetchTimeout     time.Duration
	WorkDir          string
	OutputPath       string
	OutputFormat     string
	DayCountPolicy   domain.DayCountPolicy
	KeepIntermediate bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka row sink; disabled when no brokers are configured.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool

	// Conversion cache for the HTTP surface. Redis is used when RedisAddr is set.
	CacheSize     int
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "6h")
	if err != nil {
		return nil, err
	}

	policy, ok := domain.ParseDayCountPolicy(sharedcfg.EnvOrDefault("DAY_COUNT_POLICY", "prcp"))
	if !ok {
		return nil, errors.New("invalid DAY_COUNT_POLICY: want prcp or max")
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		Station:          sharedcfg.EnvOrDefault("GHCN_STATION", "USC00479190"),
		BaseURL:          sharedcfg.EnvOrDefault("GHCN_BASE_URL", "https://www.ncei.noaa.gov/pub/data/ghcn/daily/all"),
		FetchTimeout:     fetchTimeout,
		WorkDir:          os.Getenv("WORK_DIR"),
		OutputPath:       os.Getenv("OUTPUT_PATH"),
		OutputFormat:     sharedcfg.EnvOrDefault("OUTPUT_FORMAT", "csv"),
		DayCountPolicy:   policy,
		KeepIntermediate: os.Getenv("KEEP_INTERMEDIATE") == "true",

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "ghcn-daily-observations"),
		KafkaEnabled:   len(brokers) > 0,

		CacheSize:     parseCacheSize(),
		CacheTTL:      cacheTTL,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
	}

	if !domain.ValidStationID(cfg.Station) {
		return nil, fmt.Errorf("invalid GHCN_STATION %q", cfg.Station)
	}
	if cfg.OutputFormat != "csv" && cfg.OutputFormat != "xlsx" {
		return nil, fmt.Errorf("invalid OUTPUT_FORMAT %q: want csv or xlsx", cfg.OutputFormat)
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 32
}
