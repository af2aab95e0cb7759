package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Relational store (users, budgets, alert log, cohort aggregates)
	SQLiteDBPath string

	// Spending document store
	SpendingBackend string // "memory" or "supabase"
	SupabaseURL     string
	SupabaseKey     string
	SpendingTable   string

	// Bank of Korea ECOS statistics API
	EcosBaseURL  string
	EcosAPIKey   string
	EcosStatCode string
	EcosTimeout  time.Duration

	// Outgoing mail
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	// AMQP (budget adjustment report pipeline)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Batch execution
	WorkerPoolSize    int
	AnalyticsInterval time.Duration

	// Cohort export
	SheetsSpreadsheetID string
	SheetsSheetName     string
}

func Load() *Config {
	return &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/savemate.db"),

		SpendingBackend: getEnv("SPENDING_BACKEND", "memory"),
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SpendingTable:   getEnv("SPENDING_TABLE", "spending_records"),

		EcosBaseURL:  getEnv("ECOS_BASE_URL", "https://ecos.bok.or.kr/api"),
		EcosAPIKey:   getEnv("ECOS_API_KEY", ""),
		EcosStatCode: getEnv("ECOS_STAT_CODE", "901Y009"),
		EcosTimeout:  getEnvDuration("ECOS_TIMEOUT", 10*time.Second),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		MailFrom: getEnv("MAIL_FROM", "no-reply@savemate.local"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "savemate"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_reports"),

		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 8),
		AnalyticsInterval: getEnvDuration("ANALYTICS_INTERVAL", 24*time.Hour),

		SheetsSpreadsheetID: getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsSheetName:     getEnv("SHEETS_SHEET_NAME", "Cohorts"),
	}
}

// Validate checks the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	switch c.SpendingBackend {
	case "memory":
	case "supabase":
		if c.SupabaseURL == "" {
			errs = append(errs, "SUPABASE_URL is required when using the supabase spending backend")
		}
		if c.SupabaseKey == "" {
			errs = append(errs, "SUPABASE_KEY is required when using the supabase spending backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid spending backend '%s': must be one of [memory supabase]", c.SpendingBackend))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.EcosTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid ECOS timeout %v: must be at least 1 second", c.EcosTimeout))
	}

	if c.WorkerPoolSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid worker pool size %d: must be at least 1", c.WorkerPoolSize))
	} else if c.WorkerPoolSize > 256 {
		errs = append(errs, fmt.Sprintf("invalid worker pool size %d: must be at most 256", c.WorkerPoolSize))
	}

	if c.AnalyticsInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid analytics interval %v: must be at least 1 minute", c.AnalyticsInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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
