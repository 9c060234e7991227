package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/nimburion/recordlock/pkg/locking"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service.Name != "recordlock" {
		t.Errorf("expected service name recordlock, got %s", cfg.Service.Name)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("expected info/json logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Locking.Shards != locking.DefaultShards {
		t.Errorf("expected %d shards, got %d", locking.DefaultShards, cfg.Locking.Shards)
	}
	if cfg.Locking.Source != PolicySourceFile {
		t.Errorf("expected file policy source, got %s", cfg.Locking.Source)
	}
	if cfg.Locking.ExpireSchedule != "@every 30s" {
		t.Errorf("expected expire schedule @every 30s, got %s", cfg.Locking.ExpireSchedule)
	}
	if cfg.Locking.ReloadSchedule != "" {
		t.Errorf("expected periodic reload off by default, got %s", cfg.Locking.ReloadSchedule)
	}
	if cfg.Management.Addr != ":9090" {
		t.Errorf("expected management addr :9090, got %s", cfg.Management.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoader_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := &Config{}
	if err := NewLoader("", "APP").Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := DefaultConfig()
	if cfg.Locking.Guard != want.Locking.Guard {
		t.Errorf("guard = %+v, want %+v", cfg.Locking.Guard, want.Locking.Guard)
	}
	if cfg.Tracing.SampleRate != 1 || cfg.Database.QueryTimeout != 5*time.Second {
		t.Errorf("defaults not applied: tracing %+v, database %+v", cfg.Tracing, cfg.Database)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("RECORDLOCK_LOG_LEVEL", "debug")
	t.Setenv("RECORDLOCK_LOCK_SHARDS", "128")
	t.Setenv("RECORDLOCK_LOCK_SOURCE", "sql")
	t.Setenv("RECORDLOCK_LOCK_RELOAD_SCHEDULE", "*/5 * * * *")
	t.Setenv("RECORDLOCK_LOCK_GUARD_MAX_FAILURES", "7")
	t.Setenv("RECORDLOCK_DB_DRIVER", "mysql")
	t.Setenv("RECORDLOCK_DB_URL", "locks:secret@tcp(db:3306)/locks")
	t.Setenv("RECORDLOCK_DB_QUERY_TIMEOUT", "2s")
	t.Setenv("RECORDLOCK_SERVICE_NAME", "orders-locks")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := &Config{}
	if err := NewLoader("", "").Load(cfg); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug from env, got %s", cfg.Log.Level)
	}
	if cfg.Locking.Shards != 128 {
		t.Errorf("expected 128 shards from env, got %d", cfg.Locking.Shards)
	}
	if cfg.Locking.Source != PolicySourceSQL || cfg.Locking.ReloadSchedule != "*/5 * * * *" {
		t.Errorf("unexpected locking config %+v", cfg.Locking)
	}
	if cfg.Locking.Guard.MaxFailures != 7 {
		t.Errorf("expected 7 guard failures, got %d", cfg.Locking.Guard.MaxFailures)
	}
	if cfg.Database.Driver != DatabaseDriverMySQL || cfg.Database.QueryTimeout != 2*time.Second {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Database.Table != "lock_policies" {
		t.Errorf("expected default table, got %s", cfg.Database.Table)
	}
	if cfg.Service.Name != "orders-locks" {
		t.Errorf("expected service name from env, got %s", cfg.Service.Name)
	}
	if cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("expected OTLP endpoint from env, got %s", cfg.Tracing.Endpoint)
	}
}

func TestLoader_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "recordlock.yaml", `
log:
  level: warn
management:
  addr: ":7000"
service:
  environment: staging
`)
	t.Setenv("APP_LOG_LEVEL", "error")
	t.Setenv("APP_MGMT_ADDR", ":7100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Set("log-level", "debug"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	cfg := &Config{}
	if err := NewLoader(path, "APP").WithFlags(flags).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("flag should win over env and file, got %q", cfg.Log.Level)
	}
	if cfg.Management.Addr != ":7100" {
		t.Errorf("env should win over file, got %q", cfg.Management.Addr)
	}
	if cfg.Service.Environment != "staging" {
		t.Errorf("file should win over defaults, got %q", cfg.Service.Environment)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("unchanged flag should not override the default, got %q", cfg.Log.Format)
	}
}

func TestLoader_ServiceName(t *testing.T) {
	cfg := &Config{}
	if err := NewLoader("", "APP").WithServiceName("orders-locks").Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "orders-locks" {
		t.Fatalf("expected service name orders-locks, got %q", cfg.Service.Name)
	}

	t.Setenv("APP_SERVICE_NAME", "billing-locks")
	cfg = &Config{}
	if err := NewLoader("", "APP").WithServiceName("orders-locks").Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "billing-locks" {
		t.Fatalf("env should win over the service name default, got %q", cfg.Service.Name)
	}
}

func TestLoader_PoliciesFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "recordlock.yaml", `
locking:
  shards: 64
  policies:
    - object_name: Order
      enabled: true
      timeout: 5s
    - object_name: Customer
      enabled: false
`)

	cfg := &Config{}
	if err := NewLoader(path, "APP").Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Locking.Shards != 64 {
		t.Fatalf("expected 64 shards, got %d", cfg.Locking.Shards)
	}
	policies := cfg.Locking.LockPolicies()
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
	if policies[0].ObjectName != "Order" || !policies[0].Enabled || policies[0].Timeout != 5*time.Second {
		t.Fatalf("unexpected first policy %+v", policies[0])
	}
	if cfg.Locking.ExpireSchedule != "@every 30s" {
		t.Fatalf("partial locking section lost defaults: %+v", cfg.Locking)
	}
}

func TestLoader_InvalidPoliciesFailValidation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "recordlock.yaml", `
locking:
  policies:
    - object_name: Order
      enabled: true
`)
	err := NewLoader(path, "APP").Load(&Config{})
	if err == nil || !strings.Contains(err.Error(), "locking.policies[0]") {
		t.Fatalf("expected policy validation error, got %v", err)
	}
}

func TestLoader_Secrets(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "recordlock.yaml", "locking:\n  source: sql\n")

	t.Run("beside config file", func(t *testing.T) {
		writeFile(t, dir, "secrets.yaml", "database:\n  url: postgres://locks:hunter2@db/locks\n")
		cfg := &Config{}
		if err := NewLoader(path, "APP").Load(cfg); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Database.URL != "postgres://locks:hunter2@db/locks" {
			t.Fatalf("expected url from secrets, got %q", cfg.Database.URL)
		}
	})

	t.Run("explicit env", func(t *testing.T) {
		other := writeFile(t, t.TempDir(), "prod.yaml", "database:\n  url: postgres://other@db/locks\n")
		t.Setenv("APP_SECRETS_FILE", other)
		cfg := &Config{}
		if err := NewLoader(path, "APP").Load(cfg); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Database.URL != "postgres://other@db/locks" {
			t.Fatalf("expected url from explicit secrets, got %q", cfg.Database.URL)
		}
	})

	t.Run("option beats env", func(t *testing.T) {
		fromEnv := writeFile(t, t.TempDir(), "env.yaml", "database:\n  url: postgres://env@db/locks\n")
		fromFlag := writeFile(t, t.TempDir(), "flag.yaml", "database:\n  url: postgres://flag@db/locks\n")
		t.Setenv("APP_SECRETS_FILE", fromEnv)
		cfg := &Config{}
		if err := NewLoader(path, "APP").WithSecretsFile(fromFlag).Load(cfg); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Database.URL != "postgres://flag@db/locks" {
			t.Fatalf("expected url from WithSecretsFile, got %q", cfg.Database.URL)
		}
	})

	t.Run("option missing file", func(t *testing.T) {
		if err := NewLoader(path, "APP").WithSecretsFile(dir).Load(&Config{}); err == nil {
			t.Fatal("expected error for a directory as secrets file")
		}
	})

	t.Run("explicit env missing file", func(t *testing.T) {
		t.Setenv("APP_SECRETS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		err := NewLoader(path, "APP").Load(&Config{})
		if err == nil || !strings.Contains(err.Error(), "APP_SECRETS_FILE") {
			t.Fatalf("expected error naming APP_SECRETS_FILE, got %v", err)
		}
	})
}

func TestConfig_Redacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.URL = "postgres://locks:hunter2@db/locks"

	redacted := cfg.Redacted()
	if redacted.Database.URL != RedactedValue {
		t.Errorf("database url = %q", redacted.Database.URL)
	}
	if redacted.Redis.URL != "" {
		t.Errorf("empty redis url should stay empty, got %q", redacted.Redis.URL)
	}
	if cfg.Database.URL != "postgres://locks:hunter2@db/locks" {
		t.Errorf("Redacted modified the receiver")
	}
}

func TestConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "invalid log.level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "invalid log.format",
		},
		{
			name:    "negative shards",
			mutate:  func(c *Config) { c.Locking.Shards = -1 },
			wantErr: "locking.shards",
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Locking.Source = "etcd" },
			wantErr: "invalid locking.source",
		},
		{
			name:    "missing expire schedule",
			mutate:  func(c *Config) { c.Locking.ExpireSchedule = " " },
			wantErr: "locking.expire_schedule is required",
		},
		{
			name: "duplicate policy",
			mutate: func(c *Config) {
				c.Locking.Policies = []PolicyConfig{
					{ObjectName: "Order", Enabled: true, Timeout: time.Second},
					{ObjectName: "Order", Enabled: false},
				}
			},
			wantErr: "duplicate object_name",
		},
		{
			name:    "sql without url",
			mutate:  func(c *Config) { c.Locking.Source = PolicySourceSQL },
			wantErr: "database.url is required",
		},
		{
			name: "sql with unknown driver",
			mutate: func(c *Config) {
				c.Locking.Source = PolicySourceSQL
				c.Database.URL = "sqlite://locks.db"
				c.Database.Driver = "sqlite"
			},
			wantErr: "invalid database.driver",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Locking.Source = PolicySourceRedis },
			wantErr: "redis.url is required",
		},
		{
			name: "watch with redis",
			mutate: func(c *Config) {
				c.Locking.Source = PolicySourceRedis
				c.Redis.URL = "redis://localhost:6379/0"
				c.Locking.Watch = true
			},
			wantErr: "locking.watch requires",
		},
		{
			name:    "guard without failures",
			mutate:  func(c *Config) { c.Locking.Guard.MaxFailures = 0 },
			wantErr: "locking.guard.max_failures",
		},
		{
			name: "tracing with bad sample rate",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 2
			},
			wantErr: "tracing.sample_rate",
		},
		{
			name:    "management without addr",
			mutate:  func(c *Config) { c.Management.Addr = "" },
			wantErr: "management.addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_ValidationJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "verbose"
	cfg.Locking.Policies = []PolicyConfig{{ObjectName: "Order", Enabled: true}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, locking.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy in joined error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid log.level") {
		t.Fatalf("expected log level error in joined error, got %v", err)
	}
}

func TestConfig_NormalizesSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Locking.Source = " FILE "
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Locking.Source != PolicySourceFile {
		t.Fatalf("expected normalized source, got %q", cfg.Locking.Source)
	}
}
