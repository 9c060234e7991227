package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nimburion/recordlock/pkg/locking"
)

// LockMetrics implements locking.Metrics with Prometheus instruments.
type LockMetrics struct {
	lockRequests *prometheus.CounterVec
	unlocks      *prometheus.CounterVec
	expired      prometheus.Counter
	reloads      *prometheus.CounterVec
	activeLocks  prometheus.Gauge
	policies     prometheus.Gauge
}

var _ locking.Metrics = (*LockMetrics)(nil)

// NewLockMetrics creates the lock instruments and registers them with reg.
func NewLockMetrics(reg prometheus.Registerer) (*LockMetrics, error) {
	m := &LockMetrics{
		lockRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordlock_lock_requests_total",
			Help: "Lock requests by object type and outcome",
		}, []string{"object", "outcome"}),
		unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordlock_unlock_total",
			Help: "Live locks released by object type",
		}, []string{"object"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordlock_expired_total",
			Help: "Locks removed because their timeout elapsed",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordlock_policy_reload_total",
			Help: "Policy reload attempts by status",
		}, []string{"status"}),
		activeLocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recordlock_active_locks",
			Help: "Locks currently stored, including expired ones awaiting a sweep",
		}),
		policies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recordlock_policies",
			Help: "Enabled lock policies in the active snapshot",
		}),
	}

	for _, c := range []prometheus.Collector{m.lockRequests, m.unlocks, m.expired, m.reloads, m.activeLocks, m.policies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *LockMetrics) IncrLockRequest(objectName, outcome string) {
	m.lockRequests.WithLabelValues(objectName, outcome).Inc()
}

func (m *LockMetrics) IncrUnlock(objectName string) {
	m.unlocks.WithLabelValues(objectName).Inc()
}

func (m *LockMetrics) IncrExpired(count int) {
	if count > 0 {
		m.expired.Add(float64(count))
	}
}

func (m *LockMetrics) IncrPolicyReload(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.reloads.WithLabelValues(status).Inc()
}

func (m *LockMetrics) SetActiveLocks(count int) {
	m.activeLocks.Set(float64(count))
}

func (m *LockMetrics) SetPolicies(count int) {
	m.policies.Set(float64(count))
}
