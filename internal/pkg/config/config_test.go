package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StoreDriver != DriverMongo {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, DriverMongo)
	}
	if cfg.Mongo.Database != "access_codes" {
		t.Errorf("Mongo.Database = %q", cfg.Mongo.Database)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty (throttling off)", cfg.Redis.Addr)
	}
	if cfg.Throttle.MaxAttempts != 10 || cfg.Throttle.Window != 15*time.Minute {
		t.Errorf("Throttle = %+v", cfg.Throttle)
	}
	if cfg.Audit.Workers != 4 {
		t.Errorf("Audit.Workers = %d, want 4", cfg.Audit.Workers)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("durations = %v / %v", cfg.TokenTTL, cfg.ShutdownTimeout)
	}
	if !cfg.Pretty() {
		t.Error("development env should log pretty")
	}
	if ranges, err := cfg.ProxyRanges(); err != nil || len(ranges) != 0 {
		t.Errorf("ProxyRanges = %v, %v; want none", ranges, err)
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           "s3cret",
		"ENV":                  "production",
		"STORE_DRIVER":         " Postgres ",
		"REDIS_ADDR":           "redis:6379",
		"CONSUME_MAX_ATTEMPTS": "3",
		"CONSUME_WINDOW":       "1m",
		"MANAGER_SECRET":       "bootstrap",
		"MONGO_TRANSACTIONS":   "true",
		"TRUSTED_PROXIES":      "10.0.0.0/8, 192.168.1.1/32",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StoreDriver != DriverPostgres {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, DriverPostgres)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Throttle.MaxAttempts != 3 || cfg.Throttle.Window != time.Minute {
		t.Errorf("throttle settings not applied: %+v %+v", cfg.Redis, cfg.Throttle)
	}
	if cfg.ManagerSecret != "bootstrap" || !cfg.Mongo.Transactions {
		t.Errorf("ManagerSecret=%q Transactions=%v", cfg.ManagerSecret, cfg.Mongo.Transactions)
	}
	if cfg.Pretty() {
		t.Error("production env should log JSON")
	}

	ranges, err := cfg.ProxyRanges()
	if err != nil || len(ranges) != 2 {
		t.Fatalf("ProxyRanges = %v, %v; want 2 ranges", ranges, err)
	}
	if ranges[0].String() != "10.0.0.0/8" || ranges[1].String() != "192.168.1.1/32" {
		t.Errorf("ProxyRanges = %v", ranges)
	}
}

func TestLoadWith_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{}},
		{"unknown driver", map[string]string{"JWT_SECRET": "x", "STORE_DRIVER": "sqlite"}},
		{"zero audit workers", map[string]string{"JWT_SECRET": "x", "AUDIT_WORKERS": "0"}},
		{"bad duration", map[string]string{"JWT_SECRET": "x", "CONSUME_WINDOW": "soon"}},
		{"bad proxy range", map[string]string{"JWT_SECRET": "x", "TRUSTED_PROXIES": "10.0.0.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadWith(context.Background(), envconfig.MapLookuper(tt.env)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
