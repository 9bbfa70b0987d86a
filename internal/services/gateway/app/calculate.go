package app

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/model"
	"github.com/pumpspares/src_project/internal/srccalc"
	"github.com/pumpspares/src_project/internal/wizard"
	"github.com/pumpspares/src_project/pkg/qhfile"
)

var errEmptyResult = errors.New("calculator returned no curves")

// Calculate posts the step-2 values to the calculation backend. Any backend
// failure is answered locally with Source=local-fallback; only a cancelled
// caller context is returned as an error.
func (g *Gateway) Calculate(ctx context.Context, req wizard.CalculationRequest) (model.SRCResult, error) {
	start := time.Now()

	var resp calcResponse
	err := g.calc.PostMultipart(ctx, calcFields(req), calcFile(req.Dataset), &resp)
	if err == nil && !resp.Success && resp.Error != "" {
		err = errors.New(resp.Error)
	}
	if err == nil && len(resp.TheoreticalSRC) == 0 {
		err = errEmptyResult
	}
	g.metrics.observeBackend(time.Since(start), err)

	if err == nil {
		res := resp.SRCResult
		res.SH = req.SH
		res.Source = model.SourceBackend
		res.FallbackCause = ""
		g.metrics.countCalculation(res.Source)
		g.log.WithFields(log.Fields{"k1": res.K1, "k2": res.K2, "points": len(res.TheoreticalSRC)}).
			Infof("calc backend ok [%dms] cb=%v", time.Since(start).Milliseconds(), g.calc.State())
		return res, nil
	}

	if cerr := ctx.Err(); cerr != nil {
		return model.SRCResult{}, cerr
	}

	res := g.localResult(req)
	res.FallbackCause = err.Error()
	g.metrics.countCalculation(res.Source)
	g.log.WithError(err).Warnf("calc backend failed [%dms] cb=%v, using local fallback",
		time.Since(start).Milliseconds(), g.calc.State())
	return res, nil
}

func (g *Gateway) localResult(req wizard.CalculationRequest) model.SRCResult {
	var qh []model.QHPoint
	if !req.Dataset.Empty() {
		pts, err := qhfile.Parse(req.Dataset.Name, bytes.NewReader(req.Dataset.Data))
		if err != nil {
			g.log.WithError(err).Warnf("fallback: Q-H file %q ignored", req.Dataset.Name)
		} else {
			qh = pts
		}
	}
	res := srccalc.Compute(srccalc.Input{
		SH: req.SH, Qnp: req.Qnp, Hnp: req.Hnp, Qact: req.Qact, Hact: req.Hact,
	}, qh, formula.ConfirmedSamples)
	res.Source = model.SourceLocalFallback
	return res
}

func calcFields(req wizard.CalculationRequest) []FormField {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []FormField{
		{Name: "shValue", Value: f(req.SH)},
		{Name: "qnp", Value: f(req.Qnp)},
		{Name: "hnp", Value: f(req.Hnp)},
		{Name: "qact", Value: f(req.Qact)},
		{Name: "hact", Value: f(req.Hact)},
	}
}

func calcFile(ds wizard.Dataset) *FormFile {
	if ds.Empty() {
		return nil
	}
	name := ds.Name
	if name == "" {
		name = "qh.csv"
	}
	return &FormFile{Field: "qhFile", Filename: name, Data: ds.Data}
}
