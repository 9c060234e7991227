package scheduler

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type runtimeMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRuntimeMetrics(reg prometheus.Registerer) (*runtimeMetrics, error) {
	m := &runtimeMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordlock_scheduler_runs_total",
			Help: "Scheduler task runs by outcome.",
		}, []string{"task", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "recordlock_scheduler_run_duration_seconds",
			Help: "Scheduler task run duration.",
		}, []string{"task"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.runs, m.duration} {
		var already prometheus.AlreadyRegisteredError
		if err := reg.Register(c); err != nil && !errors.As(err, &already) {
			return nil, err
		}
	}
	return m, nil
}

func (m *runtimeMetrics) record(task string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.runs.WithLabelValues(task, status).Inc()
	m.duration.WithLabelValues(task).Observe(elapsed.Seconds())
}
