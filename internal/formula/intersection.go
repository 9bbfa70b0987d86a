package formula

import (
	"math"
	"sort"

	"github.com/pumpspares/src_project/internal/model"
)

const (
	intersectionGrid      = 1000
	intersectionTolerance = 1.0 // m
)

// Intersection estimates where the pump Q-H curve crosses an SRC curve.
// Both curves are linearly interpolated over a shared grid; the closest
// sample is returned only if the two heads are within 1 m of each other.
func Intersection(pump []model.QHPoint, curve model.SRCCurve) (model.QHPoint, bool) {
	if len(pump) < 2 || len(curve) < 2 {
		return model.QHPoint{}, false
	}

	pq := make([]float64, len(pump))
	ph := make([]float64, len(pump))
	sorted := append([]model.QHPoint(nil), pump...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Q < sorted[j].Q })
	for i, p := range sorted {
		pq[i], ph[i] = p.Q, p.H
	}
	sq := make([]float64, len(curve))
	sh := make([]float64, len(curve))
	for i, p := range curve {
		sq[i], sh[i] = p.Q, p.SRC
	}

	lo := math.Min(pq[0], sq[0])
	hi := math.Max(pq[len(pq)-1], sq[len(sq)-1])
	if hi <= lo {
		return model.QHPoint{}, false
	}

	best := model.QHPoint{}
	bestDiff := math.Inf(1)
	step := (hi - lo) / float64(intersectionGrid-1)
	for i := 0; i < intersectionGrid; i++ {
		q := lo + step*float64(i)
		hp := interp(q, pq, ph)
		d := math.Abs(hp - interp(q, sq, sh))
		if d < bestDiff {
			bestDiff = d
			best = model.QHPoint{Q: q, H: hp}
		}
	}
	if bestDiff >= intersectionTolerance {
		return model.QHPoint{}, false
	}
	return best, true
}

// interp is a clamped piecewise-linear interpolation; xs must be ascending.
func interp(x float64, xs, ys []float64) float64 {
	n := len(xs)
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	i := sort.SearchFloat64s(xs, x)
	x0, x1 := xs[i-1], xs[i]
	if x1 == x0 {
		return ys[i]
	}
	return ys[i-1] + (ys[i]-ys[i-1])*(x-x0)/(x1-x0)
}
