// Package config loads process configuration from the environment and hands
// typed sub-configs to the rest of the application through fx.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/stationops/pims/internal/observability/metrics"
	"github.com/stationops/pims/internal/observability/tracing"
	"github.com/stationops/pims/internal/plant"
)

// Config is the full process configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	HTTPAddr string
	DBPath   string

	LogLevel string

	TracingEnabled  bool
	TracingEndpoint string
	TracingProtocol string
	SamplingRatio   float64

	// Notifier settings for the open-outage watchdog.
	NotifierPollInterval  time.Duration
	NotifierOpenWarnAfter time.Duration

	// Plant calibration overrides.
	UnitRatedMWhPerDay    float64
	StationRatedMWhPerDay float64
	Epsilon               float64
}

// Load reads configuration from the environment with sane defaults.
func Load() Config {
	return Config{
		ServiceName:    envString("PIMS_SERVICE_NAME", "pims"),
		ServiceVersion: envString("PIMS_SERVICE_VERSION", "dev"),
		Environment:    envString("PIMS_ENV", "development"),

		HTTPAddr: envString("PIMS_HTTP_ADDR", ":8080"),
		DBPath:   envString("PIMS_DB_PATH", "pims.db"),

		LogLevel: envString("PIMS_LOG_LEVEL", "info"),

		TracingEnabled:  envBool("PIMS_TRACING_ENABLED", false),
		TracingEndpoint: envString("PIMS_TRACING_ENDPOINT", "localhost:4318"),
		TracingProtocol: envString("PIMS_TRACING_PROTOCOL", "http"),
		SamplingRatio:   envFloat("PIMS_TRACING_SAMPLING_RATIO", 1.0),

		NotifierPollInterval:  envDuration("PIMS_NOTIFIER_POLL_INTERVAL", time.Minute),
		NotifierOpenWarnAfter: envDuration("PIMS_NOTIFIER_OPEN_WARN_AFTER", 72*time.Hour),

		UnitRatedMWhPerDay:    envFloat("PIMS_UNIT_RATED_MWH_PER_DAY", 0),
		StationRatedMWhPerDay: envFloat("PIMS_STATION_RATED_MWH_PER_DAY", 0),
		Epsilon:               envFloat("PIMS_EPSILON", 0),
	}
}

// PlantConfig resolves the station calibration, applying overrides on top of
// the defaults.
func (c Config) PlantConfig() plant.Config {
	p := plant.Default()
	if c.UnitRatedMWhPerDay > 0 {
		p.UnitRatedMWhPerDay = c.UnitRatedMWhPerDay
	}
	if c.StationRatedMWhPerDay > 0 {
		p.StationRatedMWhPerDay = c.StationRatedMWhPerDay
	}
	if c.Epsilon > 0 {
		p.Epsilon = c.Epsilon
	}
	return p
}

// TracingConfig derives the tracer provider configuration.
func (c Config) TracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.TracingEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.ServiceVersion,
		Environment:      c.Environment,
		ExporterEndpoint: c.TracingEndpoint,
		ExporterProtocol: c.TracingProtocol,
		SamplingRatio:    c.SamplingRatio,
	}
}

// MetricsConfig derives the metrics configuration.
func (c Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		ServiceName: c.ServiceName,
		Environment: c.Environment,
	}
}

// Module provides the configuration to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(Config.PlantConfig),
	fx.Provide(Config.TracingConfig),
	fx.Provide(Config.MetricsConfig),
)

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
