package locking

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/recordlock/pkg/observability/logger"
)

// Manager is the pessimistic lock manager. Callers try to lock a business
// object before editing it; a conflicting lock is reported with its holder
// instead of blocking. Locks expire after the timeout configured for their
// object type and are never renewed automatically.
type Manager struct {
	table    *Table
	policies *PolicyResolver
	config   ManagerConfig
	log      logger.Logger
}

// NewManager composes a lock table with the given policy resolver.
func NewManager(policies *PolicyResolver, opts ...ManagerOption) (*Manager, error) {
	if policies == nil {
		return nil, errors.New("policy resolver is required")
	}

	cfg := DefaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	policies.setMetrics(cfg.Metrics)

	return &Manager{
		table: NewTable(TableConfig{
			Shards:  cfg.Shards,
			Clock:   cfg.Clock,
			Metrics: cfg.Metrics,
		}),
		policies: policies,
		config:   cfg,
		log:      cfg.Logger.With("component", "lock-manager"),
	}, nil
}

// Lock tries to lock the object identified by name and id for the actor in ctx.
func (m *Manager) Lock(ctx context.Context, name, id string) LockResult {
	result := m.lock(ctx, name, id)
	m.config.Metrics.IncrLockRequest(name, lockOutcome(result))
	m.config.Metrics.SetActiveLocks(m.table.Len())
	return result
}

func (m *Manager) lock(ctx context.Context, name, id string) LockResult {
	policy, ok := m.policies.Resolve(name)
	if !ok {
		return NotSupported{ObjectName: name}
	}

	key := NewLockKey(name, id)
	holder := m.config.Actor(ctx)
	info, acquired := m.table.TryAcquire(key, holder, policy.Timeout)
	if !acquired {
		m.log.WithContext(ctx).Debug("lock conflict",
			"object", name,
			"id", id,
			"holder", info.Holder,
			"since", info.Since,
		)
		return Locked{Info: info}
	}

	m.log.WithContext(ctx).Debug("lock acquired", "object", name, "id", id, "timeout", policy.Timeout)
	return Acquired{}
}

// LockEntity locks entity under the key reported by the entity resolver.
// An entity the resolver does not know is a programming error and is
// returned as an error wrapping ErrUnresolvableEntity.
func (m *Manager) LockEntity(ctx context.Context, entity any) (LockResult, error) {
	key, err := m.resolveEntity(entity)
	if err != nil {
		return nil, err
	}
	return m.Lock(ctx, key.ObjectName, key.ObjectID), nil
}

// Unlock releases the lock on the object. Releasing an absent lock does nothing,
// and any caller may release any lock.
func (m *Manager) Unlock(ctx context.Context, name, id string) {
	info, released := m.table.Release(NewLockKey(name, id))
	if !released {
		return
	}

	actor := m.config.Actor(ctx)
	m.log.WithContext(ctx).Debug("lock released", "object", name, "id", id, "holder", info.Holder, "released_by", actor)
	m.config.Metrics.IncrUnlock(name)
	m.config.Metrics.SetActiveLocks(m.table.Len())
}

// UnlockEntity releases the lock on entity.
func (m *Manager) UnlockEntity(ctx context.Context, entity any) error {
	key, err := m.resolveEntity(entity)
	if err != nil {
		return err
	}
	m.Unlock(ctx, key.ObjectName, key.ObjectID)
	return nil
}

func (m *Manager) resolveEntity(entity any) (LockKey, error) {
	key, err := m.config.EntityResolver.Resolve(entity)
	if err != nil {
		if errors.Is(err, ErrUnresolvableEntity) {
			return LockKey{}, err
		}
		return LockKey{}, fmt.Errorf("%w: %w", ErrUnresolvableEntity, err)
	}
	return key, nil
}

// GetLockInfo reports the lock state of the object without acquiring anything.
func (m *Manager) GetLockInfo(_ context.Context, name, id string) StatusResult {
	if _, ok := m.policies.Resolve(name); !ok {
		return NotSupported{ObjectName: name}
	}
	info, ok := m.table.Lookup(NewLockKey(name, id))
	if !ok {
		return Unlocked{}
	}
	return Locked{Info: info}
}

// GetCurrentLocks returns copies of all live locks.
func (m *Manager) GetCurrentLocks() []LockInfo {
	return m.table.Snapshot()
}

// LockCount returns the number of stored locks, including expired ones awaiting a sweep.
func (m *Manager) LockCount() int {
	return m.table.Len()
}

// ExpireLocks removes every expired lock and returns how many were removed.
// It is meant to be called on a fixed interval by a scheduler.
func (m *Manager) ExpireLocks() int {
	removed := m.table.SweepExpired(m.config.Clock.Now())
	if removed > 0 {
		m.log.Info("expired locks removed", "count", removed)
	}
	m.config.Metrics.SetActiveLocks(m.table.Len())
	return removed
}

// ReloadConfiguration reloads lock policies. Held locks are kept; if loading
// fails the previous policies stay active and the error is returned.
func (m *Manager) ReloadConfiguration(ctx context.Context) error {
	if err := m.policies.Reload(ctx); err != nil {
		m.log.WithContext(ctx).Error("lock policy reload failed", "error", err)
		return err
	}
	m.log.WithContext(ctx).Info("lock policies reloaded",
		"version", m.policies.Version(),
		"policies", len(m.policies.Policies()),
	)
	return nil
}

// Policies lists the active lock policies.
func (m *Manager) Policies() []Policy {
	return m.policies.Policies()
}

// HealthCheck fails until a policy snapshot has been loaded.
func (m *Manager) HealthCheck(context.Context) error {
	if m.policies.Version() == 0 {
		return errors.New("lock policies not loaded")
	}
	return nil
}
