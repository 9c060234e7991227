// Package policystore holds helpers shared by the remote policy sources.
package policystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	"github.com/nimburion/recordlock/pkg/resilience"
)

// GuardConfig bounds how a remote source is called.
type GuardConfig struct {
	// Timeout caps one Load call. Zero leaves the source's own timeouts.
	Timeout time.Duration
	// MaxFailures consecutive failed loads open the breaker.
	MaxFailures int
	// Cooldown is how long an open breaker rejects loads.
	Cooldown time.Duration
}

// Guarded wraps a remote PolicySource with a timeout and a circuit breaker.
// While the breaker is open Load fails fast, so a reload keeps the current
// policy snapshot without waiting on an unreachable backend.
type Guarded struct {
	source  locking.PolicySource
	name    string
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps source. name labels log lines.
func NewGuarded(name string, source locking.PolicySource, cfg GuardConfig, log logger.Logger, opts ...resilience.Option) (*Guarded, error) {
	if source == nil {
		return nil, locking.ErrNoPolicySource
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	opts = append([]resilience.Option{
		resilience.WithStateChange(func(from, to resilience.State) {
			log.Warn("policy source breaker state changed",
				"source", name, "from", from.String(), "to", to.String())
		}),
	}, opts...)
	return &Guarded{
		source:  source,
		name:    name,
		timeout: cfg.Timeout,
		breaker: resilience.NewCircuitBreaker(cfg.MaxFailures, cfg.Cooldown, opts...),
	}, nil
}

// Load implements locking.PolicySource.
func (g *Guarded) Load(ctx context.Context) ([]locking.Policy, error) {
	var policies []locking.Policy
	err := g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, func(ctx context.Context) error {
			loaded, err := g.source.Load(ctx)
			if err != nil {
				return err
			}
			policies = loaded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load policies from %s: %w", g.name, err)
	}
	return policies, nil
}

// State reports the breaker state.
func (g *Guarded) State() resilience.State {
	return g.breaker.State()
}
