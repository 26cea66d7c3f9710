package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wb-go/wbf/retry"
)

type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	// "firestore" or "memory"
	StoreDriver string

	FirebaseProject         string
	FirebaseCredentialsJSON string
	FirebaseCredentialsPath string
	StorageBucket           string

	// "firebase" or "jwt"
	AuthMode  string
	JWTSecret string
	JWKSURL   string
	JWTExpiry int64

	RedisURL      string
	RedisPassword string
	RedisDB       int64
	RedisChannel  string

	KafkaBrokers   []string
	KafkaTopic     string
	KafkaGroupID   string
	ReceiptWorkers int64
	ReceiptRetry   retry.Strategy

	SMTPHost      string
	SMTPPort      int64
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string
	TelegramToken string

	AllowedOrigins []string

	GeocoderURL     string
	GeocoderTimeout time.Duration

	OfferTTL           time.Duration
	OfferSweepInterval time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		StoreDriver: getEnv("STORE_DRIVER", "firestore"),

		FirebaseProject:         getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseCredentialsPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		StorageBucket:           getEnv("STORAGE_BUCKET", ""),

		AuthMode:  getEnv("AUTH_MODE", "firebase"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWKSURL:   getEnv("JWKS_URL", ""),
		JWTExpiry: getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt64("REDIS_DB", 0),
		RedisChannel:  getEnv("REDIS_REALTIME_CHANNEL", "neighborly:realtime"),

		KafkaBrokers:   getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:     getEnv("KAFKA_LIFECYCLE_TOPIC", "service-request-lifecycle"),
		KafkaGroupID:   getEnv("KAFKA_RECEIPT_GROUP", "receipt-worker"),
		ReceiptWorkers: getEnvAsInt64("RECEIPT_WORKERS", 2),
		ReceiptRetry: retry.Strategy{
			Attempts: int(getEnvAsInt64("RECEIPT_RETRY_ATTEMPTS", 3)),
			Delay:    getEnvAsDuration("RECEIPT_RETRY_DELAY", time.Second),
			Backoff:  getEnvAsFloat("RECEIPT_RETRY_BACKOFF", 2),
		},

		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnvAsInt64("SMTP_PORT", 587),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:      getEnv("SMTP_FROM", "no-reply@neighborly.local"),
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		AllowedOrigins: getEnvAsList("WS_ALLOWED_ORIGINS"),

		GeocoderURL:     getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderTimeout: getEnvAsDuration("GEOCODER_TIMEOUT", 2*time.Second),

		OfferTTL:           getEnvAsDuration("OFFER_TTL", 30*time.Minute),
		OfferSweepInterval: getEnvAsDuration("OFFER_SWEEP_INTERVAL", 5*time.Minute),
	}

	defaultLevel := "info"
	if config.IsDevelopment() {
		defaultLevel = "debug"
	}
	config.LogLevel = getEnv("LOG_LEVEL", defaultLevel)

	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
