package calculator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/model"
	"github.com/pumpspares/src_project/internal/model/messages"
	"github.com/pumpspares/src_project/pkg/dedup"
)

type fakePub struct {
	mu     sync.Mutex
	topics []string
	events []messages.SRCCalculatedEvent
	err    error
	down   bool
}

func (p *fakePub) PublishJSON(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, v.(messages.SRCCalculatedEvent))
	return nil
}

func (p *fakePub) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.down
}

type fakeReader struct {
	entries []HistoryEntry
	err     error
	gotMin  int
	gotLim  int
}

func (r *fakeReader) Recent(_ context.Context, minutes, limit int) ([]HistoryEntry, error) {
	r.gotMin, r.gotLim = minutes, limit
	return r.entries, r.err
}

var validFields = map[string]string{
	"shValue": "742.5181082232638", "qnp": "60", "hnp": "910", "qact": "43", "hact": "82",
}

func multipartBody(t *testing.T, fields map[string]string, file, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != "" {
		fw, err := mw.CreateFormFile("qhFile", file)
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postCalc(t *testing.T, h http.Handler, body *bytes.Buffer, ct string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/calculate-src-curves/", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestCalculate_OK(t *testing.T) {
	pub := &fakePub{}
	s := NewService(Options{Events: NewEmitter(pub, dedup.New(0, 0), "")})
	body, ct := multipartBody(t, validFields, "pump.csv", "Q;H\n0;1000\n30;950\n60;910\n80;850\n")

	rec, _ := postCalc(t, s.Routes(nil), body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	var res calcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, model.SourceBackend, res.Source)
	assert.InDelta(t, 0.046523, res.K1, 1e-6)
	assert.InDelta(t, -0.357230, res.K2, 1e-6)
	require.Len(t, res.TheoreticalSRC, formula.ConfirmedSamples)
	assert.Len(t, res.FlowPoints, formula.ConfirmedSamples)
	assert.Len(t, res.QHCurve, 4)
	assert.Equal(t, model.OperatingPoint{Qact: 43, Hact: 82}, res.OperatingPoint)
	require.NotNil(t, res.Scenarios)

	want := formula.SampleCurve(742.5181082232638, res.K1, 72, formula.ConfirmedSamples)
	if diff := cmp.Diff([]model.SRCPoint(want), []model.SRCPoint(res.TheoreticalSRC), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("theoretical curve mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, pub.events, 1)
	assert.Equal(t, "event/srcCalculated/backend", pub.topics[0])
	ev := pub.events[0]
	assert.True(t, ev.HasQH)
	assert.Equal(t, formula.ConfirmedSamples, ev.Points)
	assert.NotEmpty(t, ev.EventID)
}

func TestCalculate_URLEncoded(t *testing.T) {
	s := NewService(Options{})
	form := url.Values{}
	for k, v := range validFields {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/calculate-src-curves/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Routes(nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalculate_Rejects(t *testing.T) {
	cases := map[string]struct {
		patch map[string]string
		want  string
	}{
		"zero flow":   {map[string]string{"qnp": "0"}, missingParams},
		"missing sh":  {map[string]string{"shValue": ""}, missingParams},
		"not numeric": {map[string]string{"hact": "abc"}, "Invalid parameter values"},
		"infinite":    {map[string]string{"qact": "Inf"}, "Invalid parameter values"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pub := &fakePub{}
			s := NewService(Options{Events: NewEmitter(pub, nil, "")})
			fields := map[string]string{}
			for k, v := range validFields {
				fields[k] = v
			}
			for k, v := range tc.patch {
				fields[k] = v
			}
			body, ct := multipartBody(t, fields, "", "")
			rec, out := postCalc(t, s.Routes(nil), body, ct)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, out["error"], tc.want)
			assert.Empty(t, pub.events)
		})
	}
}

func TestCalculate_BadFileIgnored(t *testing.T) {
	s := NewService(Options{})
	body, ct := multipartBody(t, validFields, "pump.docx", "whatever")
	rec, out := postCalc(t, s.Routes(nil), body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, out, "qhCurveData")
	assert.Nil(t, out["intersection"])
}

func TestCalculate_DuplicateEventsSuppressed(t *testing.T) {
	pub := &fakePub{}
	s := NewService(Options{Events: NewEmitter(pub, dedup.New(0, 0), "event/srcCalculated/")})
	h := s.Routes(nil)
	for i := 0; i < 3; i++ {
		body, ct := multipartBody(t, validFields, "", "")
		rec, _ := postCalc(t, h, body, ct)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, pub.events, 1)
}

func TestCalculate_EventRetriedAfterPublishError(t *testing.T) {
	pub := &fakePub{err: errors.New("broker down")}
	s := NewService(Options{Events: NewEmitter(pub, dedup.New(0, 0), "")})
	h := s.Routes(nil)

	body, ct := multipartBody(t, validFields, "", "")
	rec, _ := postCalc(t, h, body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	for i := 0; i < 2; i++ {
		body, ct = multipartBody(t, validFields, "", "")
		rec, _ = postCalc(t, h, body, ct)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, pub.events, 1, "published once the broker is back, then deduplicated")
}

func TestCalculate_PublishErrorDoesNotFailRequest(t *testing.T) {
	pub := &fakePub{err: errors.New("broker down")}
	s := NewService(Options{Events: NewEmitter(pub, nil, "")})
	body, ct := multipartBody(t, validFields, "", "")
	rec, out := postCalc(t, s.Routes(nil), body, ct)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
}

func TestHistory_Handler(t *testing.T) {
	s := NewService(Options{})

	rec := httptest.NewRecorder()
	s.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/src-history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "history-disabled", rec.Header().Get("X-Error"))
	assert.JSONEq(t, "[]", rec.Body.String())

	r := &fakeReader{entries: []HistoryEntry{{Time: "2024-05-01T10:00:00Z", Source: "backend", K1: 0.05}}}
	s.reader = r
	rec = httptest.NewRecorder()
	s.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/src-history?limit=9999&minutes=0", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, r.gotLim)
	assert.Equal(t, 1, r.gotMin)
	var got []HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, r.entries, got)

	r.err = errors.New("influx down")
	rec = httptest.NewRecorder()
	s.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/src-history", nil))
	assert.Equal(t, "influx-query-error", rec.Header().Get("X-Error"))
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, 20, r.gotLim)
	assert.Equal(t, 1440, r.gotMin)
}
