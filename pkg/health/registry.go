// Package health aggregates the readiness checks served on /ready.
package health

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Status is the state of one check or of the whole service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Result is the outcome of one check.
type Result struct {
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
	Details  map[string]any `json:"details,omitempty"`
}

// Checker is one named readiness check.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// Report aggregates every check. Its status is the worst check status.
type Report struct {
	Status    Status    `json:"status"`
	Checks    []Result  `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

// Ready is false only when a check is unhealthy. A degraded service still
// serves lock requests.
func (r Report) Ready() bool {
	return r.Status != StatusUnhealthy
}

// Registry holds the checks of the running service.
type Registry struct {
	mu       sync.RWMutex
	checkers []Checker
}

// NewRegistry returns a registry holding checkers.
func NewRegistry(checkers ...Checker) *Registry {
	r := &Registry{}
	for _, c := range checkers {
		r.Register(c)
	}
	return r
}

// Register adds c, replacing a checker with the same name.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = slices.DeleteFunc(r.checkers, func(existing Checker) bool {
		return existing.Name() == c.Name()
	})
	r.checkers = append(r.checkers, c)
}

// Check runs every checker concurrently. Results are sorted by name.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checkers := slices.Clone(r.checkers)
	r.mu.RUnlock()

	results := make([]Result, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Go(func() {
			results[i] = c.Check(ctx)
		})
	}
	wg.Wait()

	report := Report{Status: StatusHealthy, Checks: results, CheckedAt: time.Now()}
	for _, res := range results {
		if res.Status.severity() > report.Status.severity() {
			report.Status = res.Status
		}
	}
	slices.SortFunc(report.Checks, func(a, b Result) int {
		return strings.Compare(a.Name, b.Name)
	})
	return report
}
