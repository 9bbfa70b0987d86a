package app

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/pumpspares/src_project/internal/auth"
	"github.com/pumpspares/src_project/internal/wizard"
)

type Config struct {
	CalcBaseURL string
	CalcPath    string
	HTTPTimeout time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	WizardTTL       time.Duration
	PreviewDebounce time.Duration
	MaxUploadBytes  int64

	Auth       auth.SessionProvider
	Registerer prometheus.Registerer
	Logger     *log.Entry
}

type Gateway struct {
	cfg      Config
	calc     *Upstream
	metrics  *Metrics
	sessions *Store
	log      *log.Entry
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("service", "gateway")
	}
	if cfg.Auth == nil {
		cfg.Auth = auth.OpenProvider{}
	}
	if cfg.CalcPath == "" {
		cfg.CalcPath = "/api/calculate-src-curves/"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	cb := newBreaker("calculator", cfg.BreakerFailures, cfg.BreakerOpenFor, cfg.BreakerInterval)
	g := &Gateway{
		cfg:     cfg,
		calc:    NewUpstream("calculator", cfg.CalcBaseURL, cfg.CalcPath, cfg.HTTPTimeout, cb),
		metrics: NewMetrics(cfg.Registerer),
		log:     cfg.Logger,
	}
	g.sessions = NewStore(g, cfg.WizardTTL, wizard.WithDebounce(cfg.PreviewDebounce))
	g.metrics.trackSessions(g.sessions)
	return g
}

func (g *Gateway) Sessions() *Store { return g.sessions }

// Handler monta le rotte; /healthz e /metrics restano pubbliche.
func (g *Gateway) Handler(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", g.HandleHealth)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	private := http.NewServeMux()
	private.HandleFunc("POST /wizard/sessions", g.HandleCreate)
	private.HandleFunc("GET /wizard/sessions/{id}", g.HandleSnapshot)
	private.HandleFunc("POST /wizard/sessions/{id}/process-parameters", g.HandleProcessParameters)
	private.HandleFunc("POST /wizard/sessions/{id}/preview", g.HandlePreview)
	private.HandleFunc("GET /wizard/sessions/{id}/preview/ws", g.HandlePreviewSocket)
	private.HandleFunc("POST /wizard/sessions/{id}/nameplate", g.HandleNamePlate)
	private.HandleFunc("POST /wizard/sessions/{id}/reset", g.HandleReset)
	private.HandleFunc("DELETE /auth/session", g.HandleLogout)

	gated := auth.RequireSession(g.cfg.Auth, private)
	mux.Handle("/wizard/", gated)
	mux.Handle("/auth/", gated)
	return logRequests(g.log, mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack serve all'upgrade websocket.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(l *log.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		l.Debugf("%s %s [%dms] status=%d", r.Method, r.URL.Path, time.Since(start).Milliseconds(), rec.status)
	})
}
