package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Email transports accepted in EMAIL_TRANSPORT.
const (
	EmailTransportSMTP  = "smtp"
	EmailTransportRedis = "redis"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	LogLevel    string
	Environment string
	HTTPAddr    string

	StoreDriver string
	DatabaseURL string
	MongoURI    string
	MongoDB     string

	ReconcileCron    string
	ReconcileOnStart bool
	ReconcileWorkers int
	ReconcileLockTTL time.Duration // Only used when REDIS_URL is set

	PNRAPIBaseURL string
	RapidAPIHost  string
	RapidAPIKey   string
	PNRAPITimeout time.Duration

	NotifySendTimeout time.Duration
	EmailTransport    string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPFrom          string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	TelegramToken string

	RedisURL    string
	NotifyTopic string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv without touching .env files.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.HTTPAddr = stringOr(getenv("HTTP_ADDR"), ":8080")

	cfg.StoreDriver = strings.ToLower(stringOr(getenv("STORE_DRIVER"), StoreDriverPostgres))
	cfg.DatabaseURL = getenv("DATABASE_URL")
	cfg.MongoURI = getenv("MONGO_URI")
	cfg.MongoDB = stringOr(getenv("MONGO_DB"), "railgo")
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StoreDriverMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is not set")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want postgres, mongo or memory", cfg.StoreDriver)
	}

	cfg.ReconcileCron = stringOr(getenv("RECONCILE_CRON"), "*/30 * * * *") // Default: every 30 minutes

	if v := getenv("RECONCILE_ON_START"); v != "" {
		cfg.ReconcileOnStart, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RECONCILE_ON_START: %w", err)
		}
	}

	cfg.ReconcileWorkers = 4
	if v := getenv("RECONCILE_WORKERS"); v != "" {
		cfg.ReconcileWorkers, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RECONCILE_WORKERS: %w", err)
		}
	}
	if cfg.ReconcileWorkers <= 0 {
		return nil, fmt.Errorf("RECONCILE_WORKERS must be positive, got %d", cfg.ReconcileWorkers)
	}

	if cfg.ReconcileLockTTL, err = durationOr(getenv, "RECONCILE_LOCK_TTL", 25*time.Minute); err != nil {
		return nil, err
	}

	cfg.PNRAPIBaseURL = stringOr(getenv("PNR_API_BASE_URL"), "https://irctc-indian-railway-pnr-status.p.rapidapi.com")
	cfg.RapidAPIHost = stringOr(getenv("RAPIDAPI_HOST"), "irctc-indian-railway-pnr-status.p.rapidapi.com")
	cfg.RapidAPIKey = getenv("RAPIDAPI_KEY")
	if cfg.RapidAPIKey == "" {
		return nil, fmt.Errorf("RAPIDAPI_KEY is not set")
	}
	if cfg.PNRAPITimeout, err = durationOr(getenv, "PNR_API_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if cfg.NotifySendTimeout, err = durationOr(getenv, "NOTIFY_SEND_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	cfg.EmailTransport = strings.ToLower(stringOr(getenv("EMAIL_TRANSPORT"), EmailTransportSMTP))
	if cfg.EmailTransport != EmailTransportSMTP && cfg.EmailTransport != EmailTransportRedis {
		return nil, fmt.Errorf("invalid EMAIL_TRANSPORT %q: want smtp or redis", cfg.EmailTransport)
	}

	cfg.SMTPHost = getenv("SMTP_HOST")
	cfg.SMTPPort = 587
	if v := getenv("SMTP_PORT"); v != "" {
		cfg.SMTPPort, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
	}
	cfg.SMTPUser = getenv("SMTP_USER")
	cfg.SMTPPass = getenv("SMTP_PASS")
	cfg.SMTPFrom = stringOr(getenv("SMTP_FROM"), cfg.SMTPUser)

	cfg.TwilioAccountSID = getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioFromNumber = getenv("TWILIO_FROM_NUMBER")

	cfg.TelegramToken = getenv("TELEGRAM_TOKEN")

	cfg.RedisURL = getenv("REDIS_URL")
	cfg.NotifyTopic = stringOr(getenv("NOTIFY_TOPIC"), "pnr_notifications")
	if cfg.EmailTransport == EmailTransportRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is not set but EMAIL_TRANSPORT is redis")
	}

	return cfg, nil
}

// SMTPEnabled reports whether enough SMTP settings are present to send email directly.
func (c *AppConfig) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// TwilioEnabled reports whether SMS delivery is configured.
func (c *AppConfig) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}
