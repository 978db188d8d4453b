// Package config loads deployment settings from the environment. A .env
// file in the working directory is applied first when present.
package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Config struct {
	// DB selects the driver: sqlite or postgres.
	DB          string
	SQLitePath  string
	PostgresDSN string

	RedisAddr     string
	RedisPassword string

	// Minio/S3 object storage. PrivateBucket holds entity payloads and
	// raw media; PublicBucket serves published share blobs.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	PrivateBucket  string
	PublicBucket   string
	PublicBaseURL  string

	MeiliURL    string
	MeiliAPIKey string

	KafkaBrokers string
	KafkaTopic   string
	KafkaGroup   string

	// Compression names the codec for entity content written at rest:
	// gzip, brotli, lz4 or empty for plain.
	Compression string

	// ShareRateLimit caps mutating share operations per entity within
	// ShareRateWindow.
	ShareRateLimit  int
	ShareRateWindow time.Duration

	// UsageResyncCron schedules the periodic quota usage recount.
	UsageResyncCron string

	// ShareRefreshCron schedules the stale-share re-snapshot sweep;
	// ShareMaxAge is how old a snapshot may get before the sweep
	// rewrites it.
	ShareRefreshCron string
	ShareMaxAge      time.Duration
}

func Load() Config {
	return Config{
		DB:          getenv("CANVAS_DB", "sqlite"),
		SQLitePath:  getenv("CANVAS_SQLITE_PATH", "./.data/canvas.db"),
		PostgresDSN: getenv("CANVAS_POSTGRES_DSN", "host=localhost user=canvas password=canvas dbname=canvas port=5432 sslmode=disable"),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
		PrivateBucket:  getenv("CANVAS_PRIVATE_BUCKET", "canvas-private"),
		PublicBucket:   getenv("CANVAS_PUBLIC_BUCKET", "canvas-public"),
		PublicBaseURL:  getenv("CANVAS_PUBLIC_BASE_URL", "http://localhost:9000/canvas-public"),

		MeiliURL:    getenv("MEILI_URL", ""),
		MeiliAPIKey: getenv("MEILI_API_KEY", ""),

		KafkaBrokers: getenv("KAFKA_BROKERS", ""),
		KafkaTopic:   getenv("KAFKA_TOPIC", "canvas-jobs"),
		KafkaGroup:   getenv("KAFKA_GROUP", "canvas-workers"),

		Compression: getenv("CANVAS_COMPRESSION", "gzip"),

		ShareRateLimit:  getenvInt("CANVAS_SHARE_RATE_LIMIT", 30),
		ShareRateWindow: time.Duration(getenvInt("CANVAS_SHARE_RATE_WINDOW_SECONDS", 60)) * time.Second,

		UsageResyncCron: getenv("CANVAS_USAGE_RESYNC_CRON", "@every 10m"),

		ShareRefreshCron: getenv("CANVAS_SHARE_REFRESH_CRON", "@every 1h"),
		ShareMaxAge:      time.Duration(getenvInt("CANVAS_SHARE_MAX_AGE_HOURS", 24)) * time.Hour,
	}
}

// GetDb opens the configured database connection.
func GetDb(cnf Config) (*gorm.DB, error) {
	switch cnf.DB {
	case "postgres":
		return gorm.Open(postgres.Open(cnf.PostgresDSN), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(cnf.SQLitePath), &gorm.Config{})
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
