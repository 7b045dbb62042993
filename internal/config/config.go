package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort string

	// Billing defaults
	DefaultVatRate       string // percentage, decimal string
	InvoiceNoPrefix      string
	OverdueCheckInterval time.Duration
	MinOverduePeriodDays int

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	ResetCodeTTL    time.Duration

	// AWS S3 (expense attachments)
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AttachmentBaseURL  string
	ThumbMaxDimension  int
	AttachmentMaxSizeMB int

	// App defaults
	AppName        string
	PasswordRegexp string
	ReportCacheTTL time.Duration

	// Rate limiting
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "atarah")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.DefaultVatRate = getEnv("DEFAULT_VAT_RATE", "16")
	cfg.InvoiceNoPrefix = getEnv("INVOICE_NO_PREFIX", "INV-")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "accounts@atarahsolutions.co.ke")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AttachmentBaseURL = getEnv("ATTACHMENT_BASE_URL", "")
	cfg.AppName = getEnv("APP_NAME", "Atarah")
	cfg.PasswordRegexp = getEnv("PASSWORD_REGEXP", "^.{8,}$")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "28800"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	resetCodeTTLMinutes, err := strconv.ParseInt(getEnv("RESET_CODE_TTL_MINUTES", "20"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RESET_CODE_TTL_MINUTES: %w", err)
	}
	cfg.ResetCodeTTL = time.Duration(resetCodeTTLMinutes) * time.Minute

	overdueCheckHours, err := strconv.ParseInt(getEnv("OVERDUE_CHECK_INTERVAL_HOURS", "24"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OVERDUE_CHECK_INTERVAL_HOURS: %w", err)
	}
	cfg.OverdueCheckInterval = time.Duration(overdueCheckHours) * time.Hour

	cfg.MinOverduePeriodDays, err = strconv.Atoi(getEnv("MIN_OVERDUE_PERIOD_DAYS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_OVERDUE_PERIOD_DAYS: %w", err)
	}

	cfg.ThumbMaxDimension, err = strconv.Atoi(getEnv("THUMB_MAX_DIMENSION", "320"))
	if err != nil {
		return nil, fmt.Errorf("invalid THUMB_MAX_DIMENSION: %w", err)
	}

	cfg.AttachmentMaxSizeMB, err = strconv.Atoi(getEnv("ATTACHMENT_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATTACHMENT_MAX_SIZE_MB: %w", err)
	}

	reportCacheTTLSeconds, err := strconv.ParseInt(getEnv("REPORT_CACHE_TTL_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.ReportCacheTTL = time.Duration(reportCacheTTLSeconds) * time.Second

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
