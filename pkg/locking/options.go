package locking

import "github.com/nimburion/recordlock/pkg/observability/logger"

// ManagerOption applies a setting to a Manager during construction.
type ManagerOption func(*ManagerConfig)

// ManagerConfig holds the collaborators and tuning of a Manager.
type ManagerConfig struct {
	// Shards is the lock table partition count.
	Shards int

	Clock          Clock
	Logger         logger.Logger
	Metrics        Metrics
	Actor          ActorProvider
	EntityResolver EntityResolver
}

// DefaultManagerConfig returns a config using the system clock, a no-op logger
// and metrics, context-based actors and an empty metadata registry.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Shards:         DefaultShards,
		Clock:          SystemClock{},
		Logger:         logger.NewNop(),
		Metrics:        NewNoOpMetrics(),
		Actor:          ActorFromContext,
		EntityResolver: NewMetadataRegistry(),
	}
}

// WithShards sets the lock table partition count.
func WithShards(n int) ManagerOption {
	return func(cfg *ManagerConfig) {
		if n > 0 {
			cfg.Shards = n
		}
	}
}

// WithClock sets the time source used for acquisition stamps and expiry.
func WithClock(clock Clock) ManagerOption {
	return func(cfg *ManagerConfig) {
		if clock != nil {
			cfg.Clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) ManagerOption {
	return func(cfg *ManagerConfig) {
		if log != nil {
			cfg.Logger = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(cfg *ManagerConfig) {
		if metrics != nil {
			cfg.Metrics = metrics
		}
	}
}

// WithActorProvider sets how the current caller's identity is determined.
func WithActorProvider(actor ActorProvider) ManagerOption {
	return func(cfg *ManagerConfig) {
		if actor != nil {
			cfg.Actor = actor
		}
	}
}

// WithEntityResolver sets the resolver used by LockEntity and UnlockEntity.
func WithEntityResolver(resolver EntityResolver) ManagerOption {
	return func(cfg *ManagerConfig) {
		if resolver != nil {
			cfg.EntityResolver = resolver
		}
	}
}
