package health

import (
	"context"
	"time"

	"github.com/nimburion/recordlock/pkg/locking"
)

const defaultCheckTimeout = 5 * time.Second

// FuncChecker is a checker around a function returning nil when the component is
// usable. Each call is bounded by its timeout.
type FuncChecker struct {
	name    string
	timeout time.Duration
	fn      func(ctx context.Context) error
}

// NewFuncChecker returns a checker around fn. A zero timeout means 5s.
func NewFuncChecker(name string, timeout time.Duration, fn func(ctx context.Context) error) *FuncChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &FuncChecker{name: name, timeout: timeout, fn: fn}
}

func (p *FuncChecker) Name() string { return p.name }

func (p *FuncChecker) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.fn(ctx)
	res := Result{Name: p.name, Status: StatusHealthy, Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}
	return res
}

// LockManager is the part of locking.Manager that ManagerChecker reads.
type LockManager interface {
	HealthCheck(ctx context.Context) error
	LockCount() int
	Policies() []locking.Policy
}

// ManagerChecker is unhealthy until policies are loaded and degraded while
// no object type has locking enabled.
type ManagerChecker struct {
	name    string
	manager LockManager
}

func NewManagerChecker(name string, manager LockManager) *ManagerChecker {
	return &ManagerChecker{name: name, manager: manager}
}

func (c *ManagerChecker) Name() string { return c.name }

func (c *ManagerChecker) Check(ctx context.Context) (res Result) {
	start := time.Now()
	res = Result{Name: c.name, Status: StatusHealthy}
	defer func() { res.Duration = time.Since(start) }()

	if err := c.manager.HealthCheck(ctx); err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		return res
	}

	enabled := 0
	for _, p := range c.manager.Policies() {
		if p.Enabled {
			enabled++
		}
	}
	res.Details = map[string]any{
		"locks":            c.manager.LockCount(),
		"enabled_policies": enabled,
	}
	if enabled == 0 {
		res.Status = StatusDegraded
		res.Message = "no object type has locking enabled"
	}
	return res
}
