package calculator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	log "github.com/sirupsen/logrus"

	"github.com/pumpspares/src_project/internal/model/messages"
)

const measurement = "src_calculation"

// HistoryEntry is one calculation as read back from InfluxDB.
type HistoryEntry struct {
	Time   string  `json:"time"` // RFC3339
	Source string  `json:"source"`
	SH     float64 `json:"sh"`
	K1     float64 `json:"k1"`
	K2     float64 `json:"k2"`
	Qnp    float64 `json:"qnp"`
	Hnp    float64 `json:"hnp"`
	Qact   float64 `json:"qact"`
	Hact   float64 `json:"hact"`
	HasQH  bool    `json:"has_qh"`
}

type historyReader interface {
	Recent(ctx context.Context, minutes, limit int) ([]HistoryEntry, error)
}

// History scrive i calcoli su InfluxDB (WriteAPI non bloccante) e traccia
// l'ultimo errore di scrittura per /healthz e /readyz.
type History struct {
	write  api.WriteAPI
	query  api.QueryAPI
	bucket string

	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

func NewHistory(client influxdb2.Client, org, bucket string) *History {
	h := &History{
		write:   client.WriteAPI(org, bucket),
		query:   client.QueryAPI(org),
		bucket:  bucket,
		lastErr: time.Now().Add(-24 * time.Hour), // "lontano nel tempo"
	}
	go func() {
		for err := range h.write.Errors() {
			if err != nil {
				h.mu.Lock()
				h.lastErr = time.Now()
				h.mu.Unlock()
				log.Warnf("influx write error: %v", err)
			}
		}
	}()
	return h
}

// EventToPoint maps a calculation on the src_calculation measurement.
func EventToPoint(ev messages.SRCCalculatedEvent) *write.Point {
	tags := map[string]string{
		"source": ev.Source,
		"has_qh": strconv.FormatBool(ev.HasQH),
	}
	fields := map[string]interface{}{
		"sh":     ev.SH,
		"k1":     ev.K1,
		"k2":     ev.K2,
		"qnp":    ev.Qnp,
		"hnp":    ev.Hnp,
		"qact":   ev.Qact,
		"hact":   ev.Hact,
		"points": int64(ev.Points),
	}
	return influxdb2.NewPoint(measurement, tags, fields, ev.Timestamp)
}

func (h *History) Record(ev messages.SRCCalculatedEvent) {
	h.write.WritePoint(EventToPoint(ev))
	h.mu.Lock()
	h.written++
	h.mu.Unlock()
}

func (h *History) Flush() { h.write.Flush() }

// LastErrorAge ritorna da quanto tempo non si verificano errori di scrittura.
func (h *History) LastErrorAge() time.Duration {
	if h == nil {
		return 99999 * time.Hour
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return time.Since(h.lastErr)
}

func (h *History) Written() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.written
}

func buildFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, measurement, limit)
}

func (h *History) Recent(ctx context.Context, minutes, limit int) ([]HistoryEntry, error) {
	res, err := h.query.Query(ctx, buildFlux(h.bucket, minutes, limit))
	if err != nil {
		return nil, err
	}
	defer res.Close()

	out := make([]HistoryEntry, 0, limit)
	for res.Next() {
		rec := res.Record()
		vals := rec.Values()
		out = append(out, HistoryEntry{
			Time:   rec.Time().UTC().Format(time.RFC3339),
			Source: asString(vals["source"]),
			SH:     asFloat(vals["sh"]),
			K1:     asFloat(vals["k1"]),
			K2:     asFloat(vals["k2"]),
			Qnp:    asFloat(vals["qnp"]),
			Hnp:    asFloat(vals["hnp"]),
			Qact:   asFloat(vals["qact"]),
			Hact:   asFloat(vals["hact"]),
			HasQH:  asString(vals["has_qh"]) == "true",
		})
	}
	return out, res.Err()
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return 0
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

type historyParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseHistory(r *http.Request, defMin, defLim, defTOms int) historyParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return historyParams{
		Minutes:   get("minutes", defMin, 1, 30*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

// HandleHistory serves GET /api/src-history?limit=20[&minutes=1440].
// Query failures degrade to an empty list with an X-Error header.
func (s *Service) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		w.Header().Set("X-Error", "history-disabled")
		writeJSON(w, http.StatusOK, []HistoryEntry{})
		return
	}
	p := parseHistory(r, 1440, 20, 2000)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
	defer cancel()

	out, err := s.reader.Recent(ctx, p.Minutes, p.Limit)
	if err != nil {
		s.log.WithError(err).Warn("history query")
		w.Header().Set("X-Error", "influx-query-error")
		out = []HistoryEntry{}
	}
	if out == nil {
		out = []HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, out)
}
