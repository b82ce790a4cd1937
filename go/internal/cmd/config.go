package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/events"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/gateway"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/session"
)

type Config struct {
	Port             string
	LogLevel         string
	LogFormat        string
	DifficultyConfig string
	MaxStrikes       int
	ShutdownTimeout  time.Duration
	AllowedOrigins   []string
	Connection       gateway.ConnectionConfig
	NATS             events.JetStreamConfig
}

func loadConfig() Config {
	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		DifficultyConfig: getEnv("DIFFICULTY_CONFIG", ""),
		MaxStrikes:       getEnvAsInt("MAX_STRIKES", session.DefaultMaxStrikes),
		ShutdownTimeout:  getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	conn := gateway.DefaultConnectionConfig()
	conn.PingInterval = getEnvAsDuration("WS_PING_INTERVAL", conn.PingInterval)
	conn.ReadTimeout = getEnvAsDuration("WS_READ_TIMEOUT", conn.ReadTimeout)
	conn.WriteTimeout = getEnvAsDuration("WS_WRITE_TIMEOUT", conn.WriteTimeout)
	conn.MaxMessageSize = int64(getEnvAsInt("WS_MAX_MESSAGE_BYTES", int(conn.MaxMessageSize)))
	cfg.Connection = conn

	nats := events.DefaultJetStreamConfig()
	nats.URL = getEnv("NATS_URL", "")
	nats.StreamName = getEnv("NATS_STREAM", nats.StreamName)
	nats.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", nats.SubjectPrefix)
	cfg.NATS = nats

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
