package calculator

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "srccalc_request_seconds",
			Help:    "Duration of SRC calculation requests, by HTTP status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"code"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srccalc_events_total",
			Help: "srcCalculated events, by outcome (published, duplicate, error).",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.events)
	}
	return m
}

func (m *Metrics) observeRequest(code int, d time.Duration) {
	m.requests.WithLabelValues(strconv.Itoa(code)).Observe(d.Seconds())
}

func (m *Metrics) countEvent(result string) {
	m.events.WithLabelValues(result).Inc()
}
