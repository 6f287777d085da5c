// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server and historian read from the environment.
type Config struct {
	Port         string
	PingInterval time.Duration
	BusBuffer    int
	StaticDir    string
	LogLevel     string

	JournalEnabled bool
	RedisAddr      string
	RedisDB        int
	JournalQueue   string

	PGUser     string
	PGPassword string
	PGHost     string
	PGPort     string
	PGDatabase string

	HistorianBatchSize int
	HistorianFlush     time.Duration
}

// Load reads the configuration. Call after godotenv has populated the environment.
func Load() Config {
	return Config{
		Port:         getEnv("PORT", "3000"),
		PingInterval: time.Duration(getEnvInt("PING_INTERVAL_SEC", 60)) * time.Second,
		BusBuffer:    getEnvInt("BUS_BUFFER", 32),
		StaticDir:    getEnv("STATIC_DIR", "./client"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		JournalEnabled: getEnvBool("JOURNAL_ENABLED", false),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		JournalQueue:   getEnv("JOURNAL_QUEUE", "caucus_room_events"),

		PGUser:     os.Getenv("POSTGRES_USER"),
		PGPassword: os.Getenv("POSTGRES_PASSWORD"),
		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGDatabase: getEnv("PG_DATABASE", "caucus"),

		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
	}
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return ":" + c.Port
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}
