package query

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const outcomeSuccess = "success"

type metrics struct {
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
}

// newMetrics builds the collectors and registers them on reg. A collector
// that reg already holds is reused, so several executors can share one
// registry.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metalite",
			Subsystem: "query",
			Name:      "executions_total",
			Help:      "Remote query executions by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metalite",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall time of remote query executions, including queueing.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	if reg == nil {
		return m
	}

	m.executions = register(reg, m.executions)
	m.duration = register(reg, m.duration)

	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) observe(err error, elapsed time.Duration) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = "unknown"
		var ee *ExecError
		if errors.As(err, &ee) {
			outcome = ee.Kind.outcome()
		}
	}

	m.executions.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}
