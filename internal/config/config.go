package config

import (
	"os"
	"strconv"
	"time"

	"github.com/botforge/botforge/pkg/models"
)

// Config holds all configuration for the BotForge control plane.
type Config struct {
	Port      int
	Version   string
	Remote    RemoteConfig
	Mongo     MongoConfig
	Retry     RetryConfig
	Telemetry TelemetryConfig
	Reconcile ReconcileConfig

	// SystemAgentName is the reserved agent created by the platform itself;
	// it is hidden from listings and skipped during rehydration.
	SystemAgentName string
}

// RemoteConfig points at the external agent service.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
	Token   string // optional bearer token

	// CompositionEncoding selects the wire encoding for COMPOSITED/STRICT
	// composition modes. Deployed agent services disagree on the word
	// order, so the accepted variant must be confirmed per environment.
	CompositionEncoding models.RemoteEncoding
}

// MongoConfig configures the document-store mirror. An empty URI disables
// Mongo and falls back to the file-backed memory store.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// RetryConfig bounds the persistence retry loop in the creation flow.
type RetryConfig struct {
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number between retries.
	BaseDelay time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// ReconcileConfig controls the background sweep over PARTIALLY_CREATED bots.
type ReconcileConfig struct {
	SweepInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	enc := models.RemoteEncoding(envStr("BOTFORGE_COMPOSITION_ENCODING", string(models.EncodingSuffix)))
	if !enc.Valid() {
		enc = models.EncodingSuffix
	}
	return &Config{
		Port:            envInt("BOTFORGE_PORT", 8080),
		Version:         envStr("BOTFORGE_VERSION", "0.2.0"),
		SystemAgentName: envStr("BOTFORGE_SYSTEM_AGENT", "Otto"),
		Remote: RemoteConfig{
			BaseURL:             envStr("AGENT_API_BASE_URL", "http://localhost:8800"),
			Timeout:             envDur("AGENT_API_TIMEOUT", 30*time.Second),
			Token:               envStr("AGENT_API_TOKEN", ""),
			CompositionEncoding: enc,
		},
		Mongo: MongoConfig{
			URI:            envStr("MONGODB_URI", ""),
			Database:       envStr("MONGODB_DATABASE", "botforge_domain"),
			ConnectTimeout: envDur("MONGODB_CONNECT_TIMEOUT", 5*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: envInt("BOTFORGE_PERSIST_RETRIES", 3),
			BaseDelay:   envDur("BOTFORGE_PERSIST_RETRY_DELAY", time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "botforge-control-plane"),
		},
		Reconcile: ReconcileConfig{
			SweepInterval: envDur("BOTFORGE_RECONCILE_SWEEP_INTERVAL", 10*time.Minute),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
