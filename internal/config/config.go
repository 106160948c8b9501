package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env             string
	LogLevel        string
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	DB Database

	KVBackend     string // redis, mongo or memory
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDB       string

	KafkaBrokers     []string
	OrderEventsTopic string
	HandoffTopic     string

	MessagingHost string

	AdminUser         string
	AdminPasswordHash string
	AdminSessionTTL   time.Duration
	PreferencesTTL    time.Duration
	SnapshotTTL       time.Duration
	PreviewTTL        time.Duration
}

type Database struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	MigrationsPath string
}

func Load() (*Config, error) {
	var errs []string
	intVal := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVal := func(key string, def time.Duration) time.Duration {
		v, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  durVal("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: durVal("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxBodyBytes:    int64(intVal("MAX_BODY_BYTES", 1<<20)),

		DB: Database{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           intVal("DB_PORT", 5432),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "storefront"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},

		KVBackend:     getEnv("KV_BACKEND", "redis"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "storefront"),

		KafkaBrokers:     getEnvList("KAFKA_BROKERS", nil),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		HandoffTopic:     getEnv("HANDOFF_TOPIC", "order-handoff"),

		MessagingHost: getEnv("MESSAGING_HOST", "https://wa.me"),

		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminSessionTTL:   durVal("ADMIN_SESSION_TTL", 12*time.Hour),
		PreferencesTTL:    durVal("PREFERENCES_TTL", 30*24*time.Hour),
		SnapshotTTL:       durVal("SNAPSHOT_TTL", 30*time.Minute),
		PreviewTTL:        durVal("PREVIEW_TTL", 10*time.Minute),
	}

	switch cfg.KVBackend {
	case "redis", "mongo", "memory":
	default:
		errs = append(errs, fmt.Sprintf("KV_BACKEND: unsupported value %q", cfg.KVBackend))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a duration", key, value)
	}
	return d, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
