package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Lake data service.
	LakeAPIURL         string
	LakeAPITimeout     time.Duration
	LakeAPIMaxAttempts int
	RefreshOnSelect    bool

	// Map rendering.
	FrameInterval time.Duration

	// Geoapify geocoding configuration.
	GeoapifyKey      string
	GeocodeEnabled   bool
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int

	// Triage decision events.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaDecisionTopic string

	Tracing TracingConfig
}

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // used when Exporter == otlp
	SampleRatio float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	lakeTimeout, err := parsePositiveDuration("LAKE_API_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parsePositiveDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	frameInterval, err := parsePositiveDuration("FRAME_INTERVAL", "16ms")
	if err != nil {
		return nil, err
	}

	maxAttempts, err := strconv.Atoi(sharedcfg.EnvOrDefault("LAKE_API_MAX_ATTEMPTS", "3"))
	if err != nil || maxAttempts < 1 {
		return nil, errors.New("invalid LAKE_API_MAX_ATTEMPTS")
	}

	geoapifyKey := os.Getenv("GEOAPIFY_API_KEY")
	geocodeEnabled := geoapifyKey != ""
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		geocodeEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		LakeAPIURL:         sharedcfg.EnvOrDefault("LAKE_API_URL", "https://glacier-backend-1.onrender.com"),
		LakeAPITimeout:     lakeTimeout,
		LakeAPIMaxAttempts: maxAttempts,
		RefreshOnSelect:    os.Getenv("REFRESH_ON_SELECT") == "true",

		FrameInterval: frameInterval,

		GeoapifyKey:      geoapifyKey,
		GeocodeEnabled:   geocodeEnabled,
		GeocodeTimeout:   geocodeTimeout,
		GeocodeCacheSize: parseGeocodeCacheSize(),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaDecisionTopic: sharedcfg.EnvOrDefault("KAFKA_DECISION_TOPIC", "lake-report-decisions"),

		Tracing: parseTracing(),
	}

	if cfg.LakeAPIURL == "" {
		return nil, errors.New("LAKE_API_URL is required")
	}
	if cfg.GeocodeEnabled && cfg.GeoapifyKey == "" {
		return nil, errors.New("GEOCODE_ENABLED is true but GEOAPIFY_API_KEY is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaDecisionTopic == "" {
		return nil, errors.New("KAFKA_DECISION_TOPIC is required when KAFKA_ENABLED is true")
	}
	if cfg.Tracing.Exporter != "stdout" && cfg.Tracing.Exporter != "otlp" {
		return nil, errors.New("invalid TRACING_EXPORTER")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseGeocodeCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

func parseTracing() TracingConfig {
	ratio := 1.0
	if raw := os.Getenv("TRACING_SAMPLE_RATIO"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			ratio = parsed
		}
	}
	return TracingConfig{
		Enabled:     os.Getenv("TRACING_ENABLED") == "true",
		ServiceName: sharedcfg.EnvOrDefault("TRACING_SERVICE_NAME", "glacier-risk-map"),
		Exporter:    sharedcfg.EnvOrDefault("TRACING_EXPORTER", "stdout"),
		Endpoint:    os.Getenv("OTLP_ENDPOINT"),
		SampleRatio: ratio,
	}
}
