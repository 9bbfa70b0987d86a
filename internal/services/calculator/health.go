package calculator

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServiceName is the name reported by the gRPC health service.
const GRPCServiceName = "src.Calculator"

type healthStatus struct {
	Status          string  `json:"status"`
	MQTTConnected   *bool   `json:"mqtt_connected,omitempty"`
	InfluxEnabled   bool    `json:"influx_enabled"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec,omitempty"`
}

// Le dipendenze sono opzionali: quelle non configurate non contano.
func (s *Service) health() healthStatus {
	st := healthStatus{InfluxEnabled: s.history != nil}
	ok, some := true, false

	if s.events != nil {
		c := s.events.Connected()
		st.MQTTConnected = &c
		ok = ok && c
		some = some || c
	}
	if s.history != nil {
		age := s.history.LastErrorAge()
		st.LastWriteErrorS = age.Seconds()
		fresh := age > s.minErrorAge
		ok = ok && fresh
		some = some || fresh
	}

	switch {
	case ok:
		st.Status = "ok"
	case some:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st
}

// Ready: la calcolatrice risponde anche senza Influx/MQTT, ma segnala
// not-ready se una dipendenza configurata è giù.
func (s *Service) Ready() bool { return s.health().Status == "ok" }

func (s *Service) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Service) HandleReady(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Ready bool `json:"ready"`
	}
	ready := s.Ready()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp{Ready: ready})
}

// WatchHealth mirrors Ready into the gRPC health server until ctx is done,
// then reports NOT_SERVING.
func (s *Service) WatchHealth(ctx context.Context, hs *health.Server, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	set := func() {
		st := healthpb.HealthCheckResponse_SERVING
		if !s.Ready() {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(GRPCServiceName, st)
	}
	set()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			set()
		}
	}
}
