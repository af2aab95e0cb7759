package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.SpendingBackend != "memory" {
		t.Errorf("SpendingBackend = %q, want memory", cfg.SpendingBackend)
	}
	if cfg.EcosBaseURL != "https://ecos.bok.or.kr/api" {
		t.Errorf("EcosBaseURL = %q", cfg.EcosBaseURL)
	}
	if cfg.EcosStatCode != "901Y009" {
		t.Errorf("EcosStatCode = %q", cfg.EcosStatCode)
	}
	if cfg.EcosTimeout != 10*time.Second {
		t.Errorf("EcosTimeout = %v", cfg.EcosTimeout)
	}
	if cfg.WorkerPoolSize != 8 {
		t.Errorf("WorkerPoolSize = %d", cfg.WorkerPoolSize)
	}
	if cfg.AnalyticsInterval != 24*time.Hour {
		t.Errorf("AnalyticsInterval = %v", cfg.AnalyticsInterval)
	}
	if cfg.AMQPExchange != "savemate" || cfg.AMQPQueue != "budget_reports" {
		t.Errorf("AMQP defaults = %q/%q", cfg.AMQPExchange, cfg.AMQPQueue)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SPENDING_BACKEND", "supabase")
	t.Setenv("WORKER_POOL_SIZE", "16")
	t.Setenv("ANALYTICS_INTERVAL", "1h")

	cfg := Load()
	if cfg.SpendingBackend != "supabase" {
		t.Errorf("SpendingBackend = %q", cfg.SpendingBackend)
	}
	if cfg.WorkerPoolSize != 16 {
		t.Errorf("WorkerPoolSize = %d", cfg.WorkerPoolSize)
	}
	if cfg.AnalyticsInterval != time.Hour {
		t.Errorf("AnalyticsInterval = %v", cfg.AnalyticsInterval)
	}
}

func validConfig() *Config {
	return &Config{
		SQLiteDBPath:      "./savemate.db",
		SpendingBackend:   "memory",
		EcosTimeout:       10 * time.Second,
		WorkerPoolSize:    8,
		AnalyticsInterval: 24 * time.Hour,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty db path", func(c *Config) { c.SQLiteDBPath = "" }, "SQLite database path"},
		{"unknown backend", func(c *Config) { c.SpendingBackend = "redis" }, "invalid spending backend"},
		{"supabase without url", func(c *Config) { c.SpendingBackend = "supabase"; c.SupabaseKey = "k" }, "SUPABASE_URL is required"},
		{"supabase without key", func(c *Config) { c.SpendingBackend = "supabase"; c.SupabaseURL = "https://x.supabase.co" }, "SUPABASE_KEY is required"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "invalid AMQP URL scheme"},
		{"amqp without exchange", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPQueue = "q" }, "exchange name cannot be empty"},
		{"short ecos timeout", func(c *Config) { c.EcosTimeout = 100 * time.Millisecond }, "invalid ECOS timeout"},
		{"zero workers", func(c *Config) { c.WorkerPoolSize = 0 }, "worker pool size"},
		{"huge pool", func(c *Config) { c.WorkerPoolSize = 1000 }, "at most 256"},
		{"short interval", func(c *Config) { c.AnalyticsInterval = time.Second }, "analytics interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q missing %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.SpendingBackend = "redis"
	cfg.WorkerPoolSize = 0
	cfg.AnalyticsInterval = time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"spending backend", "worker pool size", "analytics interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}
