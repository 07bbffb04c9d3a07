// Package config reads the service settings from the environment. Every
// setting has a default so a bare process starts with only the Earth
// Engine credentials configured.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config is the process-wide configuration.
type Config struct {
	AppName    string
	AppVersion string
	Host       string
	Port       int

	// Earth Engine
	GEEProjectID         string
	GEEServiceAccountKey string // path to the key file or inline JSON
	SSMKeyParam          string

	DefaultImageScale int
	MaxImagePixels    float64
	CacheExpiry       time.Duration

	// Optional AWS resources. An empty value disables the feature.
	ArchiveBucket        string
	S3Endpoint           string
	ResultCacheTable     string
	JobTable             string
	MonitoringClusterARN string
	MonitoringSecretARN  string
	MonitoringDatabase   string
	EventBusName         string
	WorkerLambdaARN      string
	ROIStateMachineARN   string

	GeminiAPIKey string
	GeminiModel  string

	GatewayWorkers       int
	GatewayMaxInFlight   int
	GatewayRatePerSecond float64

	AllowedOrigins []string
}

// Load reads Config from the environment.
func Load() Config {
	return Config{
		AppName:    Env("APP_NAME", "Agrisa Satellite Data Service"),
		AppVersion: Env("APP_VERSION", "1.0.0"),
		Host:       Env("HOST", "0.0.0.0"),
		Port:       EnvInt("PORT", 8000),

		GEEProjectID:         os.Getenv("GEE_PROJECT_ID"),
		GEEServiceAccountKey: os.Getenv("GEE_SERVICE_ACCOUNT_KEY"),
		SSMKeyParam:          os.Getenv("SSM_GEE_KEY_PARAM"),

		DefaultImageScale: EnvInt("DEFAULT_IMAGE_SCALE", 30),
		MaxImagePixels:    EnvFloat("MAX_IMAGE_PIXELS", 1e7),
		CacheExpiry:       time.Duration(EnvInt("CACHE_EXPIRY_HOURS", 24)) * time.Hour,

		ArchiveBucket:        os.Getenv("ARCHIVE_BUCKET_NAME"),
		S3Endpoint:           os.Getenv("S3_ENDPOINT"),
		ResultCacheTable:     os.Getenv("RESULT_CACHE_TABLE"),
		JobTable:             os.Getenv("JOB_TABLE"),
		MonitoringClusterARN: os.Getenv("MONITORING_CLUSTER_ARN"),
		MonitoringSecretARN:  os.Getenv("MONITORING_SECRET_ARN"),
		MonitoringDatabase:   Env("MONITORING_DATABASE", "agrisa"),
		EventBusName:         os.Getenv("EVENT_BUS_NAME"),
		WorkerLambdaARN:      os.Getenv("WORKER_LAMBDA_ARN"),
		ROIStateMachineARN:   os.Getenv("ROI_STATE_MACHINE_ARN"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  Env("GEMINI_MODEL", "gemini-2.5-flash"),

		GatewayWorkers:       EnvInt("GATEWAY_WORKERS", 10),
		GatewayMaxInFlight:   EnvInt("GATEWAY_MAX_IN_FLIGHT", 15),
		GatewayRatePerSecond: EnvFloat("GATEWAY_RATE_PER_SECOND", 0),

		AllowedOrigins: EnvList("ALLOWED_ORIGINS", []string{"*"}),
	}
}

// Env returns the value of key, or fallback when it is unset or empty.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt parses key as an integer. Unparseable values log a warning and
// use fallback.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("envVar", key).Str("value", v).Int("default", fallback).Msg("Invalid integer setting, using default")
		return fallback
	}
	return n
}

// EnvFloat parses key as a float.
func EnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Warn().Str("envVar", key).Str("value", v).Float64("default", fallback).Msg("Invalid number setting, using default")
		return fallback
	}
	return f
}

// EnvList splits a comma-separated value, dropping empty entries.
func EnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// MonitoringEnabled reports whether the Aurora sink is configured.
func (c Config) MonitoringEnabled() bool {
	return c.MonitoringClusterARN != "" && c.MonitoringSecretARN != ""
}
