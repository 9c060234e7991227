package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/observability/logger"
)

// RedactedValue replaces secret values in Redacted output.
const RedactedValue = "REDACTED"

// Validate reports every problem in c. It normalizes locking.source.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Service.Name) == "" {
		add("service.name is required")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		add("invalid log.level: %w", err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		add("invalid log.format: %w", err)
	}

	if c.Locking.Shards < 0 || c.Locking.Shards > locking.MaxShards {
		add("locking.shards must be between 0 and %d, got %d", locking.MaxShards, c.Locking.Shards)
	}
	if strings.TrimSpace(c.Locking.ExpireSchedule) == "" {
		add("locking.expire_schedule is required")
	}

	c.Locking.Source = strings.ToLower(strings.TrimSpace(c.Locking.Source))
	sources := []string{PolicySourceFile, PolicySourceSQL, PolicySourceRedis}
	if !slices.Contains(sources, c.Locking.Source) {
		add("invalid locking.source: %q (must be one of: %v)", c.Locking.Source, sources)
	}

	switch c.Locking.Source {
	case PolicySourceFile:
		seen := make(map[string]bool, len(c.Locking.Policies))
		for i, p := range c.Locking.LockPolicies() {
			if err := p.Validate(); err != nil {
				add("locking.policies[%d]: %w", i, err)
				continue
			}
			name := strings.TrimSpace(p.ObjectName)
			if seen[name] {
				add("locking.policies[%d]: duplicate object_name %q", i, name)
			}
			seen[name] = true
		}
	case PolicySourceSQL:
		drivers := []string{DatabaseDriverPostgres, DatabaseDriverMySQL}
		if !slices.Contains(drivers, strings.ToLower(c.Database.Driver)) {
			add("invalid database.driver: %q (must be one of: %v)", c.Database.Driver, drivers)
		}
		if c.Database.URL == "" {
			add("database.url is required when locking.source is sql")
		}
		if strings.TrimSpace(c.Database.Table) == "" {
			add("database.table is required when locking.source is sql")
		}
		if c.Database.QueryTimeout <= 0 {
			add("database.query_timeout must be > 0")
		}
	case PolicySourceRedis:
		if c.Redis.URL == "" {
			add("redis.url is required when locking.source is redis")
		}
		if strings.TrimSpace(c.Redis.Key) == "" {
			add("redis.key is required when locking.source is redis")
		}
		if c.Redis.OperationTimeout <= 0 {
			add("redis.operation_timeout must be > 0")
		}
	}

	if c.Locking.Guard.Timeout < 0 || c.Locking.Guard.Cooldown < 0 {
		add("locking.guard durations must be >= 0")
	}
	if c.Locking.Guard.MaxFailures < 1 {
		add("locking.guard.max_failures must be >= 1, got %d", c.Locking.Guard.MaxFailures)
	}
	if c.Locking.Watch && c.Locking.Source != PolicySourceFile {
		add("locking.watch requires locking.source to be file")
	}

	if c.Tracing.Enabled {
		if strings.TrimSpace(c.Tracing.Endpoint) == "" {
			add("tracing.endpoint is required when tracing is enabled")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			add("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate)
		}
	}
	if c.Management.Enabled && strings.TrimSpace(c.Management.Addr) == "" {
		add("management.addr is required when management is enabled")
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with the connection URLs, which carry
// credentials, replaced by RedactedValue.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.URL != "" {
		out.Database.URL = RedactedValue
	}
	if out.Redis.URL != "" {
		out.Redis.URL = RedactedValue
	}
	return out
}
