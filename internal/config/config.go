package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cycle interval bounds. Forecast cadence is minutes, not seconds; anything
// outside this range is a misconfiguration.
const (
	minCycleInterval = 10 * time.Minute
	maxCycleInterval = 60 * time.Minute
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabasePath string
	LocationID   int64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	CycleInterval  time.Duration
	CooldownWindow time.Duration

	// Inference server configuration. Leave ModelURL empty to run the
	// heuristic fallback engine.
	ModelURL     string
	ModelTimeout time.Duration
	ScalerPath   string

	// SMS gateway configuration.
	SMSAPIURL    string
	SMSAPIKey    string
	SMSDeviceID  string
	SMSTimeout   time.Duration
	SMSDisabled  bool

	// Rate limiting for the ingestion endpoint.
	RateLimit  int
	RateWindow time.Duration

	// Optional Kafka telemetry ingestion. Empty brokers disable it.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first if
// present (ignored when absent).
func Load() (*Config, error) {
	_ = godotenv.Load()

	locationID, err := envInt64("LOCATION_ID", 1)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cycleInterval, err := envDuration("CYCLE_INTERVAL", minCycleInterval)
	if err != nil {
		return nil, err
	}

	cooldown, err := envDuration("COOLDOWN_WINDOW", time.Hour)
	if err != nil {
		return nil, err
	}

	modelTimeout, err := envDuration("MODEL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	smsTimeout, err := envDuration("SMS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	rateLimit, err := envInt("RATE_LIMIT", 60)
	if err != nil {
		return nil, err
	}

	rateWindow, err := envDuration("RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabasePath: envOrDefault("DATABASE_PATH", "data/flood-alert.db"),
		LocationID:   locationID,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CycleInterval:  cycleInterval,
		CooldownWindow: cooldown,

		ModelURL:     os.Getenv("MODEL_URL"),
		ModelTimeout: modelTimeout,
		ScalerPath:   envOrDefault("SCALER_PATH", "data/scaler.json"),

		SMSAPIURL:   os.Getenv("SMS_API_URL"),
		SMSAPIKey:   os.Getenv("SMS_API_KEY"),
		SMSDeviceID: envOrDefault("SMS_DEVICE_ID", "1"),
		SMSTimeout:  smsTimeout,

		RateLimit:  rateLimit,
		RateWindow: rateWindow,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "sensor-readings"),
		KafkaGroupID: envOrDefault("KAFKA_GROUP_ID", "flood-alert-ingest"),
	}

	cfg.SMSDisabled = cfg.SMSAPIURL == ""

	if cfg.DatabasePath == "" {
		return nil, errors.New("DATABASE_PATH is required")
	}
	if cfg.CycleInterval < minCycleInterval || cfg.CycleInterval > maxCycleInterval {
		return nil, fmt.Errorf("CYCLE_INTERVAL must be between %s and %s", minCycleInterval, maxCycleInterval)
	}
	if cfg.CooldownWindow <= 0 {
		return nil, errors.New("COOLDOWN_WINDOW must be positive")
	}
	if cfg.RateLimit <= 0 || cfg.RateWindow <= 0 {
		return nil, errors.New("RATE_LIMIT and RATE_WINDOW must be positive")
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	// Accept bare seconds for operational convenience ("CYCLE_INTERVAL=600").
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
