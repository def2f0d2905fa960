package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	ReasoningEffort string

	WindowCapacity  int
	RetryAttempts   int
	BackoffUnit     time.Duration
	BreakerCooldown time.Duration
	ProbeInterval   time.Duration
	OfflineLatency  time.Duration
	RateWindow      time.Duration
}

func Load() Config {
	return Config{
		Port:            envInt("PARLEY_PORT", 8840),
		NatsURL:         envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("PARLEY_MODEL", "claude-sonnet-4-20250514"),
		ReasoningEffort: envStr("PARLEY_REASONING_EFFORT", "low"),
		WindowCapacity:  envInt("PARLEY_WINDOW_CAPACITY", 120),
		RetryAttempts:   envInt("PARLEY_RETRY_ATTEMPTS", 3),
		BackoffUnit:     envDur("PARLEY_BACKOFF_UNIT", time.Second),
		BreakerCooldown: envDur("PARLEY_BREAKER_COOLDOWN", 30*time.Second),
		ProbeInterval:   envDur("PARLEY_PROBE_INTERVAL", 30*time.Second),
		OfflineLatency:  envDur("PARLEY_OFFLINE_LATENCY", 1500*time.Millisecond),
		RateWindow:      envDur("PARLEY_RATE_WINDOW", 5*time.Second),
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
		if n, err := strconv.Atoi(v); err == nil {
			return n
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
