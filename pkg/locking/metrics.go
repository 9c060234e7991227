package locking

// Lock request outcomes reported to Metrics.
const (
	OutcomeAcquired    = "acquired"
	OutcomeConflict    = "conflict"
	OutcomeUnsupported = "unsupported"
)

// Metrics receives lock manager events. Implementations must be safe for concurrent use.
type Metrics interface {
	// IncrLockRequest counts a Lock call by object name and outcome.
	IncrLockRequest(objectName, outcome string)

	// IncrUnlock counts an Unlock call that removed a live lock.
	IncrUnlock(objectName string)

	// IncrExpired counts locks discarded because their timeout elapsed,
	// whether by sweep or lazily on read.
	IncrExpired(count int)

	// IncrPolicyReload counts configuration reloads.
	IncrPolicyReload(success bool)

	// SetActiveLocks records the number of stored locks.
	SetActiveLocks(count int)

	// SetPolicies records the number of enabled policies in the active snapshot.
	SetPolicies(count int)
}

// NoOpMetrics discards every event.
type NoOpMetrics struct{}

// NewNoOpMetrics returns a Metrics that does nothing.
func NewNoOpMetrics() Metrics { return &NoOpMetrics{} }

func (*NoOpMetrics) IncrLockRequest(string, string) {}
func (*NoOpMetrics) IncrUnlock(string)              {}
func (*NoOpMetrics) IncrExpired(int)                {}
func (*NoOpMetrics) IncrPolicyReload(bool)          {}
func (*NoOpMetrics) SetActiveLocks(int)             {}
func (*NoOpMetrics) SetPolicies(int)                {}
