package functions

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appfunctions",
				Subsystem: "functions",
				Name:      "executions_total",
				Help:      "Total number of function executions by outcome.",
			},
			[]string{"package", "function", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "appfunctions",
				Subsystem: "functions",
				Name:      "execution_duration_seconds",
				Help:      "Duration of function executions.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"package", "function"},
		),
	}
	var err error
	if m.executions, err = register(reg, m.executions); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adopts an identical collector that is already registered, so
// several services can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) observe(pkg, fn string, err *Error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = err.Code.String()
	}
	m.executions.WithLabelValues(pkg, fn, status).Inc()
	m.duration.WithLabelValues(pkg, fn).Observe(elapsed.Seconds())
}
