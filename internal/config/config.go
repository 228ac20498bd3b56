package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisURL string

	ServerPort string

	// JWTSecret signs HMAC tokens accepted when Firebase is not configured
	// (local development and tests).
	JWTSecret string

	FirebaseProjectID   string
	FirebaseClientEmail string
	FirebasePrivateKey  string

	LocationPublishInterval time.Duration
	LocationMaxDuration     time.Duration
	LocationSweepSchedule   string

	// AdminUserIDs receive report notifications.
	AdminUserIDs []string

	WorkerCount int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnv("DB_SSLMODE", "require"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		ServerPort: getEnv("SERVER_PORT", "8080"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		FirebaseProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseClientEmail: os.Getenv("FIREBASE_CLIENT_EMAIL"),
		FirebasePrivateKey:  os.Getenv("FIREBASE_PRIVATE_KEY"),

		LocationPublishInterval: getDuration("LOCATION_PUBLISH_INTERVAL", 30*time.Second),
		LocationMaxDuration:     getDuration("LOCATION_MAX_DURATION", 8*time.Hour),
		LocationSweepSchedule:   getEnv("LOCATION_SWEEP_SCHEDULE", "@every 1m"),

		AdminUserIDs: splitList(os.Getenv("ADMIN_USER_IDS")),

		WorkerCount: getInt("WORKER_COUNT", 2),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
	}, nil
}

// FirebaseEnabled reports whether service account credentials are present.
func (c *Config) FirebaseEnabled() bool {
	return c.FirebaseProjectID != "" && c.FirebaseClientEmail != "" && c.FirebasePrivateKey != ""
}

// R2Enabled reports whether object storage for backfill reports is configured.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
