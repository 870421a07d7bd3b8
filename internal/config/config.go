package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime settings loaded from the environment.
type Config struct {
	Port           string
	GRPCHealthPort string
	ServiceName    string
	Environment    string

	DatabaseDSN string

	RedisAddr       string
	ProfileCacheTTL time.Duration

	BlobEndpoint      string
	BlobAccessKey     string
	BlobSecretKey     string
	BlobUseSSL        bool
	BlobPublicBaseURL string
	BucketImages      string
	BucketFiles       string
	BucketAvatars     string

	AMQPURL      string
	AMQPExchange string

	NATSURL string

	OTLPEndpoint string

	MessagesPageLimitMax int
	MaxUploadBytes       int64
}

// Load reads Config from environment variables with defaults.
func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8083"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "8086"),
		ServiceName:    getEnv("SERVICE_NAME", "direct-chat"),
		Environment:    getEnv("APP_ENV", "local"),

		DatabaseDSN: getEnv("DB_DSN", ""),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		ProfileCacheTTL: getDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		BlobEndpoint:      getEnv("BLOB_ENDPOINT", ""),
		BlobAccessKey:     getEnv("BLOB_ACCESS_KEY", ""),
		BlobSecretKey:     getEnv("BLOB_SECRET_KEY", ""),
		BlobUseSSL:        getBool("BLOB_USE_SSL", true),
		BlobPublicBaseURL: getEnv("BLOB_PUBLIC_BASE_URL", ""),
		BucketImages:      getEnv("BUCKET_IMAGES", "chat-images"),
		BucketFiles:       getEnv("BUCKET_FILES", "chat-files"),
		BucketAvatars:     getEnv("BUCKET_AVATARS", "avatars"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "chat.events"),

		NATSURL: getEnv("NATS_URL", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		MessagesPageLimitMax: getInt("MESSAGES_PAGE_LIMIT_MAX", 100),
		MaxUploadBytes:       int64(getInt("MAX_UPLOAD_BYTES", 20<<20)),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
