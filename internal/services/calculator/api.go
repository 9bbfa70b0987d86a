package calculator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/model"
	"github.com/pumpspares/src_project/internal/model/messages"
	"github.com/pumpspares/src_project/internal/srccalc"
	"github.com/pumpspares/src_project/pkg/qhfile"
)

const missingParams = "Missing required parameters: shValue, qnp, hnp, qact, hact"

// Payload di risposta, la stessa che il gateway decodifica.
type calcResponse struct {
	model.SRCResult
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseInput reads the five numbers. Missing or zero values are rejected
// together; a value that is not a finite number is rejected on its own.
func parseInput(r *http.Request) (srccalc.Input, error) {
	get := func(k string) (float64, error) {
		v := strings.TrimSpace(r.FormValue(k))
		if v == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("Invalid parameter values: %s=%q is not a number", k, v)
		}
		return f, nil
	}

	var in srccalc.Input
	targets := []struct {
		key string
		dst *float64
	}{
		{"shValue", &in.SH}, {"qnp", &in.Qnp}, {"hnp", &in.Hnp}, {"qact", &in.Qact}, {"hact", &in.Hact},
	}
	for _, t := range targets {
		v, err := get(t.key)
		if err != nil {
			return in, err
		}
		*t.dst = v
	}
	if in.SH == 0 || in.Qnp == 0 || in.Hnp == 0 || in.Qact == 0 || in.Hact == 0 {
		return in, errors.New(missingParams)
	}
	return in, nil
}

// HandleCalculate serves POST /api/calculate-src-curves/.
func (s *Service) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := http.StatusOK
	defer func() { s.metrics.observeRequest(code, time.Since(start)) }()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		code = http.StatusBadRequest
		writeJSON(w, code, errorResponse{Error: "invalid form body: " + err.Error()})
		return
	}

	in, err := parseInput(r)
	if err != nil {
		code = http.StatusBadRequest
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}

	qh, qhName := s.readQH(r)
	res := srccalc.Compute(in, qh, formula.ConfirmedSamples)
	res.Source = model.SourceBackend

	writeJSON(w, code, calcResponse{SRCResult: res, Success: true})

	ev := messages.SRCCalculatedEvent{
		EventID:   uuid.NewString(),
		Source:    string(res.Source),
		SH:        in.SH,
		K1:        res.K1,
		K2:        res.K2,
		Qnp:       in.Qnp,
		Hnp:       in.Hnp,
		Qact:      in.Qact,
		Hact:      in.Hact,
		Points:    len(res.TheoreticalSRC),
		HasQH:     len(qh) > 0,
		Timestamp: time.Now().UTC(),
	}
	s.record(ev)

	s.log.WithFields(log.Fields{
		"k1":     res.K1,
		"k2":     res.K2,
		"qhFile": qhName,
		"qhRows": len(qh),
	}).Infof("POST /api/calculate-src-curves/ [%dms]", time.Since(start).Milliseconds())
}

// readQH parses the optional qhFile; a bad file is logged and ignored.
func (s *Service) readQH(r *http.Request) ([]model.QHPoint, string) {
	if r.MultipartForm == nil {
		return nil, ""
	}
	f, hdr, err := r.FormFile("qhFile")
	if err != nil {
		return nil, ""
	}
	defer f.Close()
	pts, err := qhfile.Parse(hdr.Filename, f)
	if err != nil {
		s.log.WithError(err).Warnf("Q-H file %q ignored", hdr.Filename)
		return nil, hdr.Filename
	}
	return pts, hdr.Filename
}

func (s *Service) record(ev messages.SRCCalculatedEvent) {
	if s.history != nil {
		s.history.Record(ev)
	}
	if s.events != nil {
		published, err := s.events.Emit(ev)
		switch {
		case err != nil:
			s.metrics.countEvent("error")
			s.log.WithError(err).Warn("publish srcCalculated")
		case published:
			s.metrics.countEvent("published")
		default:
			s.metrics.countEvent("duplicate")
		}
	}
}
