package locking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Policy configures pessimistic locking for one object type.
type Policy struct {
	ObjectName string        `json:"object_name" yaml:"object_name"`
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// Validate checks that the policy names an object and, when enabled, has a positive timeout.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.ObjectName) == "" {
		return lockingError(ErrInvalidPolicy, "object name is required")
	}
	if p.Enabled && p.Timeout <= 0 {
		return lockingError(ErrInvalidPolicy, fmt.Sprintf("policy %q: timeout must be > 0", p.ObjectName))
	}
	return nil
}

// PolicySource loads the full set of lock policies from external configuration.
type PolicySource interface {
	Load(ctx context.Context) ([]Policy, error)
}

// StaticSource serves a fixed policy list.
type StaticSource []Policy

// Load returns a copy of the list.
func (s StaticSource) Load(context.Context) ([]Policy, error) {
	out := make([]Policy, len(s))
	copy(out, s)
	return out, nil
}

// PolicySourceFunc adapts a function to PolicySource.
type PolicySourceFunc func(ctx context.Context) ([]Policy, error)

// Load calls f.
func (f PolicySourceFunc) Load(ctx context.Context) ([]Policy, error) { return f(ctx) }

type policySnapshot struct {
	version  uint64
	policies map[string]Policy
}

// PolicyResolver answers which object types are lock-managed.
// The active policy set is an immutable snapshot swapped whole on Reload,
// so concurrent Resolve calls see either the old or the new set.
type PolicyResolver struct {
	source  PolicySource
	current atomic.Pointer[policySnapshot]
	metrics Metrics
}

// NewPolicyResolver creates a resolver with an empty snapshot. Call Reload to load policies.
func NewPolicyResolver(source PolicySource) (*PolicyResolver, error) {
	if source == nil {
		return nil, ErrNoPolicySource
	}
	r := &PolicyResolver{source: source, metrics: NewNoOpMetrics()}
	r.current.Store(&policySnapshot{policies: map[string]Policy{}})
	return r, nil
}

func (r *PolicyResolver) setMetrics(m Metrics) {
	if m != nil {
		r.metrics = m
	}
}

// Resolve returns the enabled policy for objectName.
func (r *PolicyResolver) Resolve(objectName string) (Policy, bool) {
	p, ok := r.current.Load().policies[objectName]
	if !ok || !p.Enabled {
		return Policy{}, false
	}
	return p, true
}

// Reload loads policies from the source and activates them.
// An invalid set is rejected as a whole and the previous snapshot stays active.
func (r *PolicyResolver) Reload(ctx context.Context) error {
	loaded, err := r.source.Load(ctx)
	if err != nil {
		r.metrics.IncrPolicyReload(false)
		return fmt.Errorf("load lock policies: %w", err)
	}

	policies, err := indexPolicies(loaded)
	if err != nil {
		r.metrics.IncrPolicyReload(false)
		return err
	}

	for {
		prev := r.current.Load()
		next := &policySnapshot{version: prev.version + 1, policies: policies}
		if r.current.CompareAndSwap(prev, next) {
			break
		}
	}

	r.metrics.IncrPolicyReload(true)
	r.metrics.SetPolicies(countEnabled(policies))
	return nil
}

func indexPolicies(loaded []Policy) (map[string]Policy, error) {
	policies := make(map[string]Policy, len(loaded))
	var errs []error
	for _, p := range loaded {
		p.ObjectName = strings.TrimSpace(p.ObjectName)
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, exists := policies[p.ObjectName]; exists {
			errs = append(errs, lockingError(ErrDuplicatePolicy, p.ObjectName))
			continue
		}
		policies[p.ObjectName] = p
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return policies, nil
}

func countEnabled(policies map[string]Policy) int {
	n := 0
	for _, p := range policies {
		if p.Enabled {
			n++
		}
	}
	return n
}

// Policies lists the active snapshot, including disabled entries, ordered by object name.
func (r *PolicyResolver) Policies() []Policy {
	snap := r.current.Load()
	out := make([]Policy, 0, len(snap.policies))
	for _, p := range snap.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectName < out[j].ObjectName })
	return out
}

// Version counts successful reloads. Zero means no policies were ever loaded.
func (r *PolicyResolver) Version() uint64 {
	return r.current.Load().version
}
