package config

import (
	"time"

	"github.com/nimburion/recordlock/pkg/locking"
)

// Policy source constants
const (
	// PolicySourceFile reads lock policies from the config file.
	PolicySourceFile = "file"
	// PolicySourceSQL reads lock policies from a database table.
	PolicySourceSQL = "sql"
	// PolicySourceRedis reads lock policies from a Redis hash.
	PolicySourceRedis = "redis"
)

// Database driver constants
const (
	// DatabaseDriverPostgres represents PostgreSQL
	DatabaseDriverPostgres = "postgres"
	// DatabaseDriverMySQL represents MySQL
	DatabaseDriverMySQL = "mysql"
)

// DefaultEnvPrefix prefixes every environment variable read by the loader.
const DefaultEnvPrefix = "RECORDLOCK"

// Config is the root configuration of the lock service.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service" yaml:"service"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Locking    LockingConfig    `mapstructure:"locking" yaml:"locking"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Management ManagementConfig `mapstructure:"management" yaml:"management"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LockingConfig configures the lock table and where lock policies come from.
type LockingConfig struct {
	Shards int    `mapstructure:"shards" yaml:"shards"`
	Source string `mapstructure:"source" yaml:"source"`

	// ExpireSchedule triggers the periodic sweep of expired locks.
	ExpireSchedule string `mapstructure:"expire_schedule" yaml:"expire_schedule"`
	// ReloadSchedule triggers a periodic policy reload. Empty disables it.
	ReloadSchedule string `mapstructure:"reload_schedule" yaml:"reload_schedule"`
	// Watch reloads policies when the config file changes. File source only.
	Watch bool `mapstructure:"watch" yaml:"watch"`
	// Guard bounds calls to the sql and redis sources.
	Guard GuardConfig `mapstructure:"guard" yaml:"guard"`

	Policies []PolicyConfig `mapstructure:"policies" yaml:"policies"`
}

// PolicyConfig is one lock policy entry as written in the config file.
type PolicyConfig struct {
	ObjectName string        `mapstructure:"object_name" yaml:"object_name"`
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LockPolicies converts the configured entries into lock policies.
func (c LockingConfig) LockPolicies() []locking.Policy {
	out := make([]locking.Policy, 0, len(c.Policies))
	for _, p := range c.Policies {
		out = append(out, locking.Policy{
			ObjectName: p.ObjectName,
			Enabled:    p.Enabled,
			Timeout:    p.Timeout,
		})
	}
	return out
}

// GuardConfig configures the timeout and circuit breaker around remote
// policy sources.
type GuardConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxFailures int           `mapstructure:"max_failures" yaml:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// DatabaseConfig configures the SQL policy source.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	URL             string        `mapstructure:"url" yaml:"url"`
	Table           string        `mapstructure:"table" yaml:"table"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
}

// RedisConfig configures the Redis policy source.
type RedisConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	Key              string        `mapstructure:"key" yaml:"key"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// ManagementConfig configures the management HTTP server.
type ManagementConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "recordlock",
			Environment: "production",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Locking: LockingConfig{
			Shards:         locking.DefaultShards,
			Source:         PolicySourceFile,
			ExpireSchedule: "@every 30s",
			Guard: GuardConfig{
				Timeout:     10 * time.Second,
				MaxFailures: 3,
				Cooldown:    30 * time.Second,
			},
		},
		Database: DatabaseConfig{
			Driver:          DatabaseDriverPostgres,
			Table:           "lock_policies",
			MaxOpenConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			Key:              "recordlock:policies",
			OperationTimeout: 3 * time.Second,
		},
		Management: ManagementConfig{
			Enabled:         true,
			Addr:            ":9090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Tracing: TracingConfig{
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1,
		},
	}
}
