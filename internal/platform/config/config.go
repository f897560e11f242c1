package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr              string
	SessionSigningKey string
	SessionTokenTTL   time.Duration
	// SessionIdleTTL evicts in-memory sessions untouched for this long. Their
	// snapshots stay in the store until the snapshot TTL. Zero disables it.
	SessionIdleTTL    time.Duration
	Redis             RedisConfig
	DatabaseURL       string
	Kafka             KafkaConfig
	Verification      VerificationConfig
	DirectorySeed     string
	// SessionStartLimit caps POST /sessions per client IP per minute. Zero
	// disables the limit.
	SessionStartLimit int
	// AuditKey keys the hash applied to document numbers in audit events.
	AuditKey          string
}

// RedisConfig configures the profile snapshot store. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SnapshotTTL  time.Duration
}

// KafkaConfig configures the audit sink. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// VerificationConfig tunes the simulated authorities and the step ceiling.
type VerificationConfig struct {
	Latency     time.Duration
	FailureRate float64
	StepTimeout time.Duration
}

// Defaults follow the onboarding app: a 2s authority round trip and a 5%
// failure chance per step.
const (
	DefaultVerificationLatency     = 2 * time.Second
	DefaultVerificationFailureRate = 0.05
	DefaultVerificationStepTimeout = 30 * time.Second
	DefaultSessionTokenTTL         = 24 * time.Hour
	DefaultSnapshotTTL             = 24 * time.Hour
	DefaultSessionIdleTTL          = 2 * time.Hour
	DefaultSessionStartLimit       = 30
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	signingKey := os.Getenv("SESSION_SIGNING_KEY")
	if signingKey == "" {
		// development default, override in any shared environment
		signingKey = "dev-session-key-change-me"
	}

	return Server{
		Addr:              envOr("DRIVEMATCH_ADDR", ":8080"),
		SessionSigningKey: signingKey,
		SessionTokenTTL:   durationOr("SESSION_TOKEN_TTL", DefaultSessionTokenTTL),
		SessionIdleTTL:    durationOr("SESSION_IDLE_TTL", DefaultSessionIdleTTL),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
			SnapshotTTL:  durationOr("PROFILE_SNAPSHOT_TTL", DefaultSnapshotTTL),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			TopicPrefix: envOr("KAFKA_AUDIT_TOPIC_PREFIX", "drivematch.audit"),
		},
		Verification: VerificationConfig{
			Latency:     durationOr("VERIFICATION_LATENCY", DefaultVerificationLatency),
			FailureRate: floatOr("VERIFICATION_FAILURE_RATE", DefaultVerificationFailureRate),
			StepTimeout: durationOr("VERIFICATION_STEP_TIMEOUT", DefaultVerificationStepTimeout),
		},
		DirectorySeed:     os.Getenv("DIRECTORY_SEED"),
		SessionStartLimit: limitOr("SESSION_START_LIMIT", DefaultSessionStartLimit),
		AuditKey:          envOr("AUDIT_HASH_KEY", signingKey),
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d >= 0 {
		return d
	}
	return def
}

func intOr(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return def
}

// limitOr accepts zero so a limit can be switched off.
func limitOr(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n >= 0 {
		return n
	}
	return def
}

func floatOr(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
