package wizard

import (
	"math"
	"strconv"
	"strings"

	"github.com/pumpspares/src_project/internal/model"
)

const (
	msgRequired = "required"
	msgNumber   = "must be a number"
	msgPositive = "must be greater than zero"

	msgPositiveSH = "static head must be greater than zero, reset and correct the process parameters"
)

// ProcessForm is step 1 as typed by the user.
type ProcessForm struct {
	TankHeight    string `json:"daTankHeight"`
	DrumHeight    string `json:"boilerDrumHeight"`
	TankPressure  string `json:"daTankPressure"`
	DrumPressure  string `json:"boilerDrumPressure"`
	FeedWaterTemp string `json:"feedWaterTemp"`
	SG            string `json:"specificGravity"`
}

// NamePlateForm is step 2 as typed by the user (the Q-H file travels separately).
type NamePlateForm struct {
	Qnp        string `json:"flowQnp"`
	Hnp        string `json:"headHnp"`
	BKWnp      string `json:"bkwBkwnp"`
	Efficiency string `json:"efficiency"`
	N1         string `json:"speedN1"`
	Qact       string `json:"actualFlowRequired"`
	Hact       string `json:"actualDischargePressure"`
	N2         string `json:"actualSpeedN2"`
	Power      string `json:"actualPowerConsumption"`
}

// Preview field names, same keys as the form.
const (
	FieldQnp  = "flowQnp"
	FieldHnp  = "headHnp"
	FieldQact = "actualFlowRequired"
	FieldHact = "actualDischargePressure"
)

type fieldSpec struct {
	name string
	raw  string
	dst  *float64
}

func parseFields(specs []fieldSpec, verr *ValidationError) {
	for _, f := range specs {
		s := strings.TrimSpace(f.raw)
		if s == "" {
			verr.add(f.name, msgRequired)
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			verr.add(f.name, msgNumber)
			continue
		}
		*f.dst = v
	}
}

// Parse validates the step 1 schema.
func (f ProcessForm) Parse() (model.ProcessParameters, error) {
	var (
		p    model.ProcessParameters
		verr ValidationError
	)
	parseFields([]fieldSpec{
		{"daTankHeight", f.TankHeight, &p.TankHeight},
		{"boilerDrumHeight", f.DrumHeight, &p.DrumHeight},
		{"daTankPressure", f.TankPressure, &p.TankPressure},
		{"boilerDrumPressure", f.DrumPressure, &p.DrumPressure},
		{"feedWaterTemp", f.FeedWaterTemp, &p.FeedWaterTemp},
		{"specificGravity", f.SG, &p.SG},
	}, &verr)
	if _, bad := verr.Fields["specificGravity"]; !bad && p.SG <= 0 {
		verr.add("specificGravity", msgPositive)
	}
	return p, verr.orNil()
}

// Parse validates the step 2 schema.
func (f NamePlateForm) Parse() (model.NamePlateReading, model.ActualOperatingPoint, error) {
	var (
		np   model.NamePlateReading
		act  model.ActualOperatingPoint
		verr ValidationError
	)
	parseFields([]fieldSpec{
		{FieldQnp, f.Qnp, &np.Qnp},
		{FieldHnp, f.Hnp, &np.Hnp},
		{"bkwBkwnp", f.BKWnp, &np.BKWnp},
		{"efficiency", f.Efficiency, &np.Efficiency},
		{"speedN1", f.N1, &np.N1},
		{FieldQact, f.Qact, &act.Qact},
		{FieldHact, f.Hact, &act.Hact},
		{"actualSpeedN2", f.N2, &act.N2},
		{"actualPowerConsumption", f.Power, &act.Power},
	}, &verr)
	for _, f := range []struct {
		name string
		v    float64
	}{
		{FieldQnp, np.Qnp},
		{FieldHnp, np.Hnp},
		{FieldQact, act.Qact},
		{FieldHact, act.Hact},
	} {
		if _, bad := verr.Fields[f.name]; !bad && f.v <= 0 {
			verr.add(f.name, msgPositive)
		}
	}
	return np, act, verr.orNil()
}

// set updates one of the live-preview inputs; false if name is not one of them.
func (f *NamePlateForm) set(name, value string) bool {
	switch name {
	case FieldQnp:
		f.Qnp = value
	case FieldHnp:
		f.Hnp = value
	case FieldQact:
		f.Qact = value
	case FieldHact:
		f.Hact = value
	default:
		return false
	}
	return true
}

// lenient mirrors a browser number input: anything unparsable counts as 0.
func lenient(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
