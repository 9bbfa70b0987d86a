// Package formula holds the pure hydraulic arithmetic behind the SRC wizard.
//
// The system resistance curve is modelled as SRC(Q) = SH + k·Q², where SH is the
// static head between the DA tank and the boiler drum.
package formula

import (
	"math"

	"github.com/pumpspares/src_project/internal/model"
)

const (
	// kg/cm² -> m of water column
	pressureToHead = 10.2

	// margin applied to the larger of Qnp/Qact when sizing the curve
	flowMargin = 1.2

	PreviewSamples   = 11
	ConfirmedSamples = 21
)

// ComputeSH returns (h2 - h1) + (P2 - P1) * 10.2 / SG.
// SG is not checked: SG == 0 yields ±Inf or NaN.
func ComputeSH(p model.ProcessParameters) float64 {
	return (p.DrumHeight - p.TankHeight) + (p.DrumPressure-p.TankPressure)*pressureToHead/p.SG
}

// ComputeK returns the resistance coefficient (h - sh) / q², or 0 when q is 0.
func ComputeK(q, h, sh float64) float64 {
	if q == 0 {
		return 0
	}
	return (h - sh) / (q * q)
}

// SRCAt evaluates the curve at a single flow.
func SRCAt(sh, k, q float64) float64 {
	return sh + k*q*q
}

// CurveMax is the upper flow bound of a sampled curve.
func CurveMax(qnp, qact float64) float64 {
	return math.Max(qnp, qact) * flowMargin
}

// SampleCurve returns n points evenly spaced over [0, qMax], both ends included.
func SampleCurve(sh, k, qMax float64, n int) model.SRCCurve {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return model.SRCCurve{{Q: 0, SRC: sh}}
	}
	step := qMax / float64(n-1)
	out := make(model.SRCCurve, n)
	for i := 0; i < n; i++ {
		q := step * float64(i)
		if i == n-1 {
			q = qMax
		}
		out[i] = model.SRCPoint{Q: q, SRC: SRCAt(sh, k, q)}
	}
	return out
}

// FlowPoints extracts the Q axis of a curve.
func FlowPoints(c model.SRCCurve) []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Q
	}
	return out
}

// Scenarios builds the base curve plus a throttled (k·1.2) and an optimized (k·0.8) variant.
func Scenarios(sh, k, qMax float64, n int) model.ScenarioCurves {
	return model.ScenarioCurves{
		Base:      SampleCurve(sh, k, qMax, n),
		Throttled: SampleCurve(sh, k*1.2, qMax, n),
		Optimized: SampleCurve(sh, k*0.8, qMax, n),
	}
}

// Positive reports whether every value is a finite number > 0.
func Positive(vals ...float64) bool {
	for _, v := range vals {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
