package entities

// SRCPoint is one sample of a system resistance curve.
type SRCPoint struct {
	Q   float64 `json:"q"`
	SRC float64 `json:"src"`
}

// SRCCurve is an ordered set of samples from q=0 upwards.
type SRCCurve []SRCPoint

// QHPoint is one row of a pump Q-H dataset (or an operating point on it).
type QHPoint struct {
	Q float64 `json:"q"`
	H float64 `json:"h"`
}

// OperatingPoint echoes the measured duty used for k2.
type OperatingPoint struct {
	Qact float64 `json:"qact"`
	Hact float64 `json:"hact"`
}

// ComputationSource tells who produced an SRC result.
type ComputationSource string

const (
	SourceBackend       ComputationSource = "backend"
	SourceLocalFallback ComputationSource = "local-fallback"
	SourcePreview       ComputationSource = "preview"
)

// ScenarioCurves are the base curve and two what-if variants of it.
type ScenarioCurves struct {
	Base      SRCCurve `json:"base"`
	Throttled SRCCurve `json:"throttled"` // k * 1.2
	Optimized SRCCurve `json:"optimized"` // k * 0.8
}

// SRCResult is the authoritative outcome of step 2.
type SRCResult struct {
	SH             float64           `json:"shValue"`
	K1             float64           `json:"k1"`
	K2             float64           `json:"k2"`
	Qnp            float64           `json:"qnp"`
	Hnp            float64           `json:"hnp"`
	TheoreticalSRC SRCCurve          `json:"theoreticalSRC"`
	ActualSRC      SRCCurve          `json:"actualSRC"`
	FlowPoints     []float64         `json:"flowPoints"`
	OperatingPoint OperatingPoint    `json:"operatingPoint"`
	QHCurve        []QHPoint         `json:"qhCurveData,omitempty"`
	Intersection   *QHPoint          `json:"intersection,omitempty"`
	Scenarios      *ScenarioCurves   `json:"scenarios,omitempty"`
	Source         ComputationSource `json:"source"`
	FallbackCause  string            `json:"fallbackCause,omitempty"`
}
