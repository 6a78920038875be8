package logger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// statements is registered once per process; Init may run again in tests.
var (
	statements     *prometheus.CounterVec //nolint:gochecknoglobals
	statementsOnce sync.Once              //nolint:gochecknoglobals
)

// PrometheusHook counts log statements per level as log_statements_total.
type PrometheusHook struct {
	counter *prometheus.CounterVec
}

// NewPrometheusHook registers log_statements_total, labelled with the
// service name, and returns a hook feeding it.
func NewPrometheusHook(service string) PrometheusHook {
	statementsOnce.Do(func() {
		statements = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "log_statements_total",
				Help:        "Log statements written by RRDM, by level.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"level"},
		)
	})

	return PrometheusHook{counter: statements}
}

// Run implements zerolog.Hook. Events without a level are not counted.
func (h PrometheusHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level == zerolog.NoLevel || h.counter == nil {
		return
	}

	h.counter.WithLabelValues(level.String()).Inc()
}
