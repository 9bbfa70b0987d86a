package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/model"
	"github.com/pumpspares/src_project/internal/srccalc"
	"github.com/pumpspares/src_project/internal/wizard"
)

const testSH = 742.5181082232638

func testRequest() wizard.CalculationRequest {
	return wizard.CalculationRequest{
		SH: testSH, Qnp: 60, Hnp: 910, Qact: 43, Hact: 82,
		Dataset: wizard.Dataset{Name: "qh.csv", Data: []byte("Q,H\n0,1000\n30,950\n60,910\n80,850\n")},
	}
}

func newTestGateway(t *testing.T, calcURL string, reg prometheus.Registerer) *Gateway {
	t.Helper()
	g := NewGateway(Config{
		CalcBaseURL:     calcURL,
		HTTPTimeout:     2 * time.Second,
		BreakerFailures: 2,
		BreakerOpenFor:  time.Minute,
		WizardTTL:       time.Hour,
		Registerer:      reg,
	})
	t.Cleanup(func() { g.Sessions().CloseAll() })
	return g
}

// fakeBackend answers like the calculator service, from the same code.
func fakeBackend(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/calculate-src-curves/", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "742.5181082232638", r.FormValue("shValue"))
		assert.Equal(t, "60", r.FormValue("qnp"))
		assert.Equal(t, "82", r.FormValue("hact"))

		f, hdr, err := r.FormFile("qhFile")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "qh.csv", hdr.Filename)
		assert.Contains(t, string(body), "60,910")

		res := srccalc.Compute(srccalc.Input{SH: testSH, Qnp: 60, Hnp: 910, Qact: 43, Hact: 82}, nil, formula.ConfirmedSamples)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(calcResponse{SRCResult: res, Success: true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCalculate_Backend(t *testing.T) {
	var hits atomic.Int32
	srv := fakeBackend(t, &hits)
	reg := prometheus.NewRegistry()
	g := newTestGateway(t, srv.URL, reg)

	res, err := g.Calculate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.SourceBackend, res.Source)
	assert.Empty(t, res.FallbackCause)
	assert.Equal(t, testSH, res.SH)
	assert.InDelta(t, 0.046523, res.K1, 1e-6)
	assert.Len(t, res.TheoreticalSRC, formula.ConfirmedSamples)
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(g.metrics.calculations.WithLabelValues("backend")))
}

func TestCalculate_FallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()
	g := newTestGateway(t, srv.URL, prometheus.NewRegistry())

	res, err := g.Calculate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.SourceLocalFallback, res.Source)
	assert.Contains(t, res.FallbackCause, "status 500")
	assert.Contains(t, res.FallbackCause, "boom")
	assert.InDelta(t, 0.046523, res.K1, 1e-6)
	assert.InDelta(t, -0.357230, res.K2, 1e-6)
	assert.Len(t, res.TheoreticalSRC, formula.ConfirmedSamples)
	assert.Len(t, res.ActualSRC, formula.ConfirmedSamples)

	// the dataset survives the fallback
	require.Len(t, res.QHCurve, 4)
	assert.Equal(t, model.QHPoint{Q: 60, H: 910}, res.QHCurve[2])
	assert.Equal(t, 1.0, testutil.ToFloat64(g.metrics.calculations.WithLabelValues("local-fallback")))
}

func TestCalculate_FallbackWhenUnconfigured(t *testing.T) {
	g := newTestGateway(t, "", nil)
	res, err := g.Calculate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.SourceLocalFallback, res.Source)
	assert.Contains(t, res.FallbackCause, ErrNotConfigured.Error())
}

func TestCalculate_BadDatasetStillFallsBack(t *testing.T) {
	g := newTestGateway(t, "", nil)
	req := testRequest()
	req.Dataset = wizard.Dataset{Name: "pump.pdf", Data: []byte("%PDF")}

	res, err := g.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.SourceLocalFallback, res.Source)
	assert.Nil(t, res.QHCurve)
	assert.Len(t, res.TheoreticalSRC, formula.ConfirmedSamples)
}

func TestCalculate_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	g := newTestGateway(t, srv.URL, nil)

	for i := 0; i < 4; i++ {
		res, err := g.Calculate(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, model.SourceLocalFallback, res.Source)
	}
	// two failures trip the breaker, later calls never reach the backend
	assert.EqualValues(t, 2, hits.Load())

	res, _ := g.Calculate(context.Background(), testRequest())
	assert.Contains(t, res.FallbackCause, "breaker open")
}

func TestCalculate_ClientErrorsDoNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"qnp must be positive"}`))
	}))
	defer srv.Close()
	g := newTestGateway(t, srv.URL, nil)

	for i := 0; i < 4; i++ {
		res, err := g.Calculate(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, model.SourceLocalFallback, res.Source)
	}
	assert.EqualValues(t, 4, hits.Load())
	assert.Equal(t, "closed", g.calc.State().String())
}

func TestCalculate_CancelledCaller(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	g := newTestGateway(t, srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Calculate(ctx, testRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
