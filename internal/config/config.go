package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/fire"
)

// Auth modes.
const (
	AuthModeLogin             = "login"
	AuthModeStatic            = "static"
	AuthModeClientCredentials = "client_credentials"
)

var validAuthModes = []string{AuthModeLogin, AuthModeStatic, AuthModeClientCredentials}

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Remote finance API
	APIBaseURL string
	APITimeout time.Duration

	// Principal
	AuthMode          string
	AuthToken         string
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthScopes       []string

	// Presentation
	Timezone       string
	CurrencySymbol string

	// Categorization cache
	CategorizeCacheSize int
	CategorizeCacheTTL  time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export worker
	ExportDBPath        string
	ExportBatchSize     int
	ExportRetryInterval time.Duration
	ExportMaxAttempts   int

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Planner starting values
	Fire fire.Parameters

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5001/api"), "/"),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),

		AuthMode:          strings.ToLower(getEnv("AUTH_MODE", AuthModeLogin)),
		AuthToken:         getEnv("AUTH_TOKEN", ""),
		OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
		OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthScopes:       splitList(getEnv("OAUTH_SCOPES", "")),

		Timezone:       getEnv("TIMEZONE", "UTC"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", ""),

		CategorizeCacheSize: getEnvInt("CATEGORIZE_CACHE_SIZE", 256),
		CategorizeCacheTTL:  getEnvDuration("CATEGORIZE_CACHE_TTL", time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transactions_recorded"),

		ExportDBPath:        getEnv("EXPORT_DB_PATH", "./data/export.db"),
		ExportBatchSize:     getEnvInt("EXPORT_BATCH_SIZE", 50),
		ExportRetryInterval: getEnvDuration("EXPORT_RETRY_INTERVAL", time.Minute),
		ExportMaxAttempts:   getEnvInt("EXPORT_MAX_ATTEMPTS", 5),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		Fire: loadFire(),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func loadFire() fire.Parameters {
	d := fire.DefaultParameters()
	return fire.Parameters{
		CurrentAge:          getEnvInt("FIRE_CURRENT_AGE", d.CurrentAge),
		AnnualIncome:        getEnvFloat("FIRE_ANNUAL_INCOME", d.AnnualIncome),
		AnnualExpense:       getEnvFloat("FIRE_ANNUAL_EXPENSE", d.AnnualExpense),
		SavingsRatePct:      getEnvFloat("FIRE_SAVINGS_RATE", d.SavingsRatePct),
		InvestmentReturnPct: getEnvFloat("FIRE_INVESTMENT_RETURN", d.InvestmentReturnPct),
		WithdrawalRatePct:   getEnvFloat("FIRE_WITHDRAWAL_RATE", d.WithdrawalRatePct),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SheetsEnabled reports whether the export worker should write to Google
// Sheets rather than keep rows in memory.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}
	if c.APITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
	}

	switch c.AuthMode {
	case AuthModeLogin:
	case AuthModeStatic:
		if c.AuthToken == "" {
			errors = append(errors, "AUTH_TOKEN is required when AUTH_MODE is 'static'")
		}
	case AuthModeClientCredentials:
		if c.OAuthTokenURL == "" {
			errors = append(errors, "OAUTH_TOKEN_URL is required when AUTH_MODE is 'client_credentials'")
		}
		if c.OAuthClientID == "" || c.OAuthClientSecret == "" {
			errors = append(errors, "OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET are required when AUTH_MODE is 'client_credentials'")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid auth mode '%s': must be one of %v", c.AuthMode, validAuthModes))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.CategorizeCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid categorize cache size %d: must not be negative", c.CategorizeCacheSize))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if err := c.Fire.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid FIRE defaults: %v", strings.ReplaceAll(err.Error(), "\n", "; ")))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings only the export worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the export worker")
	}
	if c.ExportDBPath == "" {
		errors = append(errors, "export database path cannot be empty")
	}
	if c.ExportBatchSize < 1 || c.ExportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be between 1 and 1000", c.ExportBatchSize))
	}
	if c.ExportRetryInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export retry interval %v: must be at least 1 second", c.ExportRetryInterval))
	} else if c.ExportRetryInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export retry interval %v: must be at most 24 hours", c.ExportRetryInterval))
	}
	if c.ExportMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("invalid export max attempts %d: must be at least 1", c.ExportMaxAttempts))
	}
	if c.SheetsEnabled() && c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided with GOOGLE_SPREADSHEET_ID")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
