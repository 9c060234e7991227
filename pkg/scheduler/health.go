package scheduler

import (
	"strings"
	"time"

	"github.com/nimburion/recordlock/pkg/health"
)

// NewHealthChecker reports the runtime as unhealthy while it is not running.
// An empty name means "scheduler".
func NewHealthChecker(name string, runtime *Runtime, timeout time.Duration) health.Checker {
	if name = strings.TrimSpace(name); name == "" {
		name = "scheduler"
	}
	return health.NewFuncChecker(name, timeout, runtime.HealthCheck)
}
