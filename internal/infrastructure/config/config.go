package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string

	// Server
	Port         string `validate:"required,numeric"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PostgreSQL
	PostgresDSN string `validate:"required"`

	// MongoDB
	MongoURI      string `validate:"required"`
	MongoDB       string `validate:"required"`
	MongoUser     string
	MongoPassword string

	// Credentials, the salt only applies to passphrase keys
	EncryptionKey  string
	EncryptionSalt string

	// Ingestion
	IngestInterval    time.Duration `validate:"min=1000000000"`
	IngestConcurrency int           `validate:"min=1,max=64"`
	RetryWindow       time.Duration
	MaxRetryAttempts  int `validate:"min=1"`
	DefaultCurrency   string `validate:"len=3"`

	// Timeouts for external calls
	HTTPTimeout time.Duration `validate:"min=1000000000"`
	IMAPTimeout time.Duration `validate:"min=1000000000"`

	// RabbitMQ, publishing is disabled when empty
	RabbitMQURL string

	// Gmail
	GmailClientID     string
	GmailClientSecret string

	// Payment gateway
	PaymentAPIURL        string `validate:"required,url"`
	PaymentSandboxAPIURL string `validate:"omitempty,url"`

	// WhatsApp
	WhatsAppAPIURL string `validate:"required,url"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=postgres dbname=hostel sslmode=disable"),

		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "hostel"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		EncryptionKey:  getEnv("CREDENTIALS_ENCRYPTION_KEY", ""),
		EncryptionSalt: getEnv("CREDENTIALS_KEY_SALT", ""),

		IngestInterval:    getEnvAsDuration("INGEST_INTERVAL", 5*time.Minute),
		IngestConcurrency: getEnvAsInt("INGEST_CONCURRENCY", 4),
		RetryWindow:       getEnvAsDuration("RETRY_WINDOW", 72*time.Hour),
		MaxRetryAttempts:  getEnvAsInt("MAX_RETRY_ATTEMPTS", 5),
		DefaultCurrency:   getEnv("DEFAULT_CURRENCY", "COP"),

		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		IMAPTimeout: getEnvAsDuration("IMAP_TIMEOUT", 60*time.Second),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),

		PaymentAPIURL:        getEnv("PAYMENT_API_URL", "https://integrations.api.bold.co"),
		PaymentSandboxAPIURL: getEnv("PAYMENT_SANDBOX_API_URL", ""),

		WhatsAppAPIURL: getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v21.0"),
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// GmailEnabled reports whether Gmail mailboxes can be used
func (c *Config) GmailEnabled() bool {
	return c.GmailClientID != "" && c.GmailClientSecret != ""
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "5m") or plain seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
