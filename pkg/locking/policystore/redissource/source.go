// Package redissource loads lock policies from a Redis hash.
//
// Each hash field is an object name and its value is a JSON document:
//
//	HSET recordlock:policies Order '{"enabled":true,"timeout_seconds":300}'
package redissource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	"github.com/nimburion/recordlock/pkg/observability/tracing"
)

const (
	defaultKey              = "recordlock:policies"
	defaultOperationTimeout = 3 * time.Second
)

// Config configures the Redis policy source.
type Config struct {
	URL              string
	Key              string
	OperationTimeout time.Duration
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Key) == "" {
		c.Key = defaultKey
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultOperationTimeout
	}
}

// hashClient is the subset of the redis client used by Source.
type hashClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Value is the JSON document stored per object name.
type Value struct {
	Enabled        bool  `json:"enabled"`
	TimeoutSeconds int64 `json:"timeout_seconds"`
}

// Source reads lock policies from a single Redis hash.
type Source struct {
	client hashClient
	closer func() error
	log    logger.Logger
	config Config
}

// New connects to Redis and verifies connectivity.
func New(cfg Config, log logger.Logger) (*Source, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("redis url is required")
	}
	cfg.normalize()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.ReadTimeout = cfg.OperationTimeout
	opts.WriteTimeout = cfg.OperationTimeout
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("policy redis connected", "key", cfg.Key)
	return &Source{client: client, closer: client.Close, log: log, config: cfg}, nil
}

func newSourceWithClient(client hashClient, cfg Config, log logger.Logger) *Source {
	cfg.normalize()
	return &Source{client: client, log: log, config: cfg}
}

// Load implements locking.PolicySource.
func (s *Source) Load(ctx context.Context) (policies []locking.Policy, err error) {
	ctx, span := tracing.StartPolicyLoadSpan(ctx, "redis", tracing.WithRedisKey(s.config.Key))
	defer func() {
		if err != nil {
			tracing.RecordError(span, err)
		} else {
			tracing.RecordPolicyCount(span, len(policies))
			tracing.RecordSuccess(span)
		}
		span.End()
	}()

	opCtx, cancel := context.WithTimeout(ctx, s.config.OperationTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(opCtx, s.config.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("read policy hash %s: %w", s.config.Key, err)
	}

	policies, err = decodePolicies(fields)
	if err != nil {
		return nil, fmt.Errorf("decode policy hash %s: %w", s.config.Key, err)
	}
	s.log.Debug("policies loaded from redis", "key", s.config.Key, "count", len(policies))
	return policies, nil
}

// Put stores or replaces the policy for its object name.
func (s *Source) Put(ctx context.Context, p locking.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(Value{Enabled: p.Enabled, TimeoutSeconds: int64(p.Timeout / time.Second)})
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.config.OperationTimeout)
	defer cancel()
	if err := s.client.HSet(opCtx, s.config.Key, p.ObjectName, string(raw)).Err(); err != nil {
		return fmt.Errorf("write policy %s: %w", p.ObjectName, err)
	}
	return nil
}

// Delete removes the policy for objectName.
func (s *Source) Delete(ctx context.Context, objectName string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.config.OperationTimeout)
	defer cancel()
	if err := s.client.HDel(opCtx, s.config.Key, objectName).Err(); err != nil {
		return fmt.Errorf("delete policy %s: %w", objectName, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *Source) HealthCheck(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.config.OperationTimeout)
	defer cancel()
	if err := s.client.Ping(opCtx).Err(); err != nil {
		return fmt.Errorf("policy redis health check failed: %w", err)
	}
	return nil
}

// Close closes the client created by New.
func (s *Source) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

func decodePolicies(fields map[string]string) ([]locking.Policy, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	policies := make([]locking.Policy, 0, len(fields))
	var errs []error
	for _, name := range names {
		var v Value
		if err := json.Unmarshal([]byte(fields[name]), &v); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", name, err))
			continue
		}
		policies = append(policies, locking.Policy{
			ObjectName: name,
			Enabled:    v.Enabled,
			Timeout:    time.Duration(v.TimeoutSeconds) * time.Second,
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return policies, nil
}
