package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pumpspares/src_project/internal/model"
)

type Metrics struct {
	calculations   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	reg            prometheus.Registerer
}

// NewMetrics registers on reg; a nil reg keeps the collectors private.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srcgw_calculations_total",
			Help: "SRC calculations served, by source.",
		}, []string{"source"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "srcgw_backend_request_seconds",
			Help:    "Latency of calls to the SRC calculation backend.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		reg: reg,
	}
	if reg != nil {
		reg.MustRegister(m.calculations, m.backendLatency)
	}
	return m
}

func (m *Metrics) trackSessions(s *Store) {
	if m.reg == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "srcgw_active_wizards",
		Help: "Wizard sessions currently held in memory.",
	}, func() float64 { return float64(s.Len()) }))
}

func (m *Metrics) countCalculation(src model.ComputationSource) {
	m.calculations.WithLabelValues(string(src)).Inc()
}

func (m *Metrics) observeBackend(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.backendLatency.WithLabelValues(outcome).Observe(d.Seconds())
}
