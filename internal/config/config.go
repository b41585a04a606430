package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the dispatch server
// process. Values are primarily loaded from environment variables with sane
// defaults so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Presence tuning. A driver with no heartbeat for HeartbeatTimeout is no
	// longer eligible for real-time delivery; the sweep runs every
	// SweepInterval and marks expired drivers inactive.
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration

	// Availability tuning.
	DefaultTravelTimeMinutes int
	BaseGraceMinutes         int
	LongCallThresholdMinutes int
	GraceScalingEnabled      bool

	RedisAddr     string
	RedisPassword string
	TravelTimeTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	GoogleMapsAPIKey string
	PushEndpoint     string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		HeartbeatTimeout: 15 * time.Minute,
		SweepInterval:    30 * time.Second,

		DefaultTravelTimeMinutes: 20,
		BaseGraceMinutes:         30,
		LongCallThresholdMinutes: 45,
		GraceScalingEnabled:      true,

		TravelTimeTTL: 10 * time.Minute,

		KafkaTopic: "driver-locations",

		PushEndpoint: "https://exp.host/--/api/v2/push/send",
		LogLevel:     "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setDurationFromEnv(&cfg.HeartbeatTimeout, "HEARTBEAT_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.SweepInterval, "HEARTBEAT_SWEEP_INTERVAL", &errs)

	setIntFromEnv(&cfg.DefaultTravelTimeMinutes, "DEFAULT_TRAVEL_TIME_MINUTES", &errs)
	setIntFromEnv(&cfg.BaseGraceMinutes, "BASE_GRACE_MINUTES", &errs)
	setIntFromEnv(&cfg.LongCallThresholdMinutes, "LONG_CALL_THRESHOLD_MINUTES", &errs)
	setBoolFromEnv(&cfg.GraceScalingEnabled, "GRACE_SCALING_ENABLED", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.TravelTimeTTL, "TRAVEL_TIME_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.GoogleMapsAPIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	setStringFromEnv(&cfg.PushEndpoint, "PUSH_ENDPOINT")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.HeartbeatTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HEARTBEAT_TIMEOUT must be > 0"))
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("HEARTBEAT_SWEEP_INTERVAL must be > 0"))
	}
	if cfg.DefaultTravelTimeMinutes < 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TRAVEL_TIME_MINUTES must be >= 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
