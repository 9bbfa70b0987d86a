// Package srccalc assembles a full SRC result from the five step-2 numbers
// and an optional pump Q-H dataset. The calculator service, the gateway's
// local fallback and srcctl all go through Compute.
package srccalc

import (
	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/model"
)

type Input struct {
	SH   float64 `json:"shValue"`
	Qnp  float64 `json:"qnp"`
	Hnp  float64 `json:"hnp"`
	Qact float64 `json:"qact"`
	Hact float64 `json:"hact"`
}

// Compute builds k1/k2, both curves over [0, 1.2·max(Qnp, Qact)] and, when
// a Q-H dataset is given, the crossing of the pump curve with the
// theoretical SRC. Source is left for the caller to set.
func Compute(in Input, qh []model.QHPoint, samples int) model.SRCResult {
	if samples <= 0 {
		samples = formula.ConfirmedSamples
	}
	k1 := formula.ComputeK(in.Qnp, in.Hnp, in.SH)
	k2 := formula.ComputeK(in.Qact, in.Hact, in.SH)
	qMax := formula.CurveMax(in.Qnp, in.Qact)

	theoretical := formula.SampleCurve(in.SH, k1, qMax, samples)
	scen := formula.Scenarios(in.SH, k1, qMax, samples)

	res := model.SRCResult{
		SH:             in.SH,
		K1:             k1,
		K2:             k2,
		Qnp:            in.Qnp,
		Hnp:            in.Hnp,
		TheoreticalSRC: theoretical,
		ActualSRC:      formula.SampleCurve(in.SH, k2, qMax, samples),
		FlowPoints:     formula.FlowPoints(theoretical),
		OperatingPoint: model.OperatingPoint{Qact: in.Qact, Hact: in.Hact},
		Scenarios:      &scen,
	}
	if len(qh) > 0 {
		res.QHCurve = qh
		if p, ok := formula.Intersection(qh, theoretical); ok {
			res.Intersection = &p
		}
	}
	return res
}
