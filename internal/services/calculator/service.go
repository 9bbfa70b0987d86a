// Package calculator is the SRC calculation backend: it computes the curves
// for the gateway, keeps a history in InfluxDB and announces every
// calculation on MQTT. InfluxDB and MQTT are both optional.
package calculator

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	History        *History
	Events         *Emitter
	MaxUploadBytes int64
	// età minima dell'ultimo errore Influx per considerarsi "ok"
	MinErrorAge time.Duration
	Registerer  prometheus.Registerer
	Logger      *log.Entry
}

type Service struct {
	history     *History
	reader      historyReader
	events      *Emitter
	maxUpload   int64
	minErrorAge time.Duration
	metrics     *Metrics
	log         *log.Entry
}

func NewService(o Options) *Service {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 << 20
	}
	if o.MinErrorAge <= 0 {
		o.MinErrorAge = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = log.WithField("service", "calculator")
	}
	s := &Service{
		history:     o.History,
		events:      o.Events,
		maxUpload:   o.MaxUploadBytes,
		minErrorAge: o.MinErrorAge,
		metrics:     NewMetrics(o.Registerer),
		log:         o.Logger,
	}
	if o.History != nil {
		s.reader = o.History
	}
	return s
}

func (s *Service) Routes(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/calculate-src-curves/", s.HandleCalculate)
	mux.HandleFunc("GET /api/src-history", s.HandleHistory)
	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.HandleFunc("GET /readyz", s.HandleReady)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}
