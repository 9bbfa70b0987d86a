package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCalc struct {
	mu    sync.Mutex
	reqs  []CalculationRequest
	err   error
	block chan struct{}
}

func (f *fakeCalc) Calculate(_ context.Context, req CalculationRequest) (model.SRCResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return model.SRCResult{}, f.err
	}
	k1 := formula.ComputeK(req.Qnp, req.Hnp, req.SH)
	k2 := formula.ComputeK(req.Qact, req.Hact, req.SH)
	qMax := formula.CurveMax(req.Qnp, req.Qact)
	return model.SRCResult{
		SH:             req.SH,
		K1:             k1,
		K2:             k2,
		Qnp:            req.Qnp,
		Hnp:            req.Hnp,
		TheoreticalSRC: formula.SampleCurve(req.SH, k1, qMax, formula.ConfirmedSamples),
		ActualSRC:      formula.SampleCurve(req.SH, k2, qMax, formula.ConfirmedSamples),
		OperatingPoint: model.OperatingPoint{Qact: req.Qact, Hact: req.Hact},
		Source:         model.SourceBackend,
	}, nil
}

func validProcess() ProcessForm {
	return ProcessForm{
		TankHeight:    "14",
		DrumHeight:    "34",
		TankPressure:  "1.5",
		DrumPressure:  "68",
		FeedWaterTemp: "105",
		SG:            "0.9388",
	}
}

func validNamePlate() NamePlateForm {
	return NamePlateForm{
		Qnp:        "60",
		Hnp:        "910",
		BKWnp:      "220",
		Efficiency: "72",
		N1:         "2980",
		Qact:       "43",
		Hact:       "82",
		N2:         "2980",
		Power:      "190",
	}
}

var dataset = Dataset{Name: "qh.csv", Data: []byte("0,1000\n20,950\n40,850\n")}

func atStep2(t *testing.T, calc Calculator, opts ...Option) *Wizard {
	t.Helper()
	w := New("w1", calc, opts...)
	t.Cleanup(w.Close)
	_, err := w.SubmitProcessParameters(validProcess())
	require.NoError(t, err)
	require.Equal(t, StepNamePlate, w.Step())
	return w
}

func TestSubmitProcessParameters(t *testing.T) {
	w := New("w1", &fakeCalc{})
	defer w.Close()

	sh, err := w.SubmitProcessParameters(validProcess())
	require.NoError(t, err)
	assert.InDelta(t, 742.5181, sh, 1e-4)
	assert.Equal(t, StepNamePlate, w.Step())

	snap := w.Snapshot()
	require.NotNil(t, snap.SH)
	assert.Equal(t, sh, *snap.SH)
	assert.Equal(t, 105.0, snap.ProcessParameters.FeedWaterTemp)
}

func TestSubmitProcessParameters_Rejected(t *testing.T) {
	cases := map[string]func(*ProcessForm){
		"daTankHeight":       func(f *ProcessForm) { f.TankHeight = "" },
		"boilerDrumHeight":   func(f *ProcessForm) { f.DrumHeight = "abc" },
		"daTankPressure":     func(f *ProcessForm) { f.TankPressure = "  " },
		"boilerDrumPressure": func(f *ProcessForm) { f.DrumPressure = "1,5" },
		"feedWaterTemp":      func(f *ProcessForm) { f.FeedWaterTemp = "" },
		"specificGravity":    func(f *ProcessForm) { f.SG = "NaN" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			w := New("w1", &fakeCalc{})
			defer w.Close()
			form := validProcess()
			mutate(&form)

			_, err := w.SubmitProcessParameters(form)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, field)
			assert.Len(t, verr.Fields, 1)

			snap := w.Snapshot()
			assert.Equal(t, StepProcessParameters, snap.Step)
			assert.Nil(t, snap.SH)
			assert.Nil(t, snap.ProcessParameters)
		})
	}
}

func TestSubmitProcessParameters_NonPositiveSG(t *testing.T) {
	w := New("w1", &fakeCalc{})
	defer w.Close()
	form := validProcess()
	form.SG = "0"

	_, err := w.SubmitProcessParameters(form)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgPositive, verr.Fields["specificGravity"])
	assert.Equal(t, StepProcessParameters, w.Step())
}

func TestSubmitNamePlate(t *testing.T) {
	calc := &fakeCalc{}
	w := atStep2(t, calc, WithDebounce(0))

	res, err := w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
	require.NoError(t, err)
	assert.Equal(t, StepGraphAnalysis, w.Step())
	assert.Equal(t, model.SourceBackend, res.Source)
	assert.Len(t, res.TheoreticalSRC, formula.ConfirmedSamples)

	require.Len(t, calc.reqs, 1)
	req := calc.reqs[0]
	assert.InDelta(t, 742.5181, req.SH, 1e-4)
	assert.Equal(t, 60.0, req.Qnp)
	assert.Equal(t, 82.0, req.Hact)
	assert.Equal(t, "qh.csv", req.Dataset.Name)

	snap := w.Snapshot()
	require.NotNil(t, snap.Result)
	assert.InDelta(t, 0.046523, snap.Result.K1, 1e-6)
	assert.Equal(t, 2980.0, snap.NamePlate.N1)
	assert.Equal(t, 190.0, snap.Actual.Power)
}

func TestSubmitNamePlate_MissingDataset(t *testing.T) {
	calc := &fakeCalc{}
	w := atStep2(t, calc)

	_, err := w.SubmitNamePlate(context.Background(), validNamePlate(), Dataset{Name: "empty.csv"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"qhFile": msgRequired}, verr.Fields)
	assert.Equal(t, StepNamePlate, w.Step())
	assert.Empty(t, calc.reqs)
}

func TestSubmitNamePlate_MissingFields(t *testing.T) {
	w := atStep2(t, &fakeCalc{})
	form := validNamePlate()
	form.BKWnp = ""
	form.Hact = "x"

	_, err := w.SubmitNamePlate(context.Background(), form, Dataset{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgRequired, verr.Fields["bkwBkwnp"])
	assert.Equal(t, msgNumber, verr.Fields[FieldHact])
	assert.Equal(t, msgRequired, verr.Fields["qhFile"])
}

func TestSubmitNamePlate_NonPositiveFlowOrHead(t *testing.T) {
	cases := map[string]func(*NamePlateForm){
		FieldQnp:  func(f *NamePlateForm) { f.Qnp = "0" },
		FieldHnp:  func(f *NamePlateForm) { f.Hnp = "-910" },
		FieldQact: func(f *NamePlateForm) { f.Qact = "-43" },
		FieldHact: func(f *NamePlateForm) { f.Hact = "0" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			calc := &fakeCalc{}
			w := atStep2(t, calc)
			form := validNamePlate()
			mutate(&form)

			_, err := w.SubmitNamePlate(context.Background(), form, dataset)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, map[string]string{field: msgPositive}, verr.Fields)
			assert.Equal(t, StepNamePlate, w.Step())
			assert.Nil(t, w.Snapshot().Result)
			assert.Empty(t, calc.reqs)
		})
	}
}

func TestSubmitNamePlate_NonPositiveSH(t *testing.T) {
	for name, form := range map[string]ProcessForm{
		"negative": {TankHeight: "34", DrumHeight: "14", TankPressure: "2", DrumPressure: "2", FeedWaterTemp: "105", SG: "1"},
		"zero":     {TankHeight: "20", DrumHeight: "20", TankPressure: "2", DrumPressure: "2", FeedWaterTemp: "105", SG: "1"},
	} {
		t.Run(name, func(t *testing.T) {
			calc := &fakeCalc{}
			w := New("w1", calc)
			defer w.Close()

			sh, err := w.SubmitProcessParameters(form)
			require.NoError(t, err)
			assert.LessOrEqual(t, sh, 0.0)

			_, err = w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "shValue")
			assert.Equal(t, StepNamePlate, w.Step())
			assert.Empty(t, calc.reqs)
		})
	}
}

func TestClosedWizardRejectsSubmissions(t *testing.T) {
	calc := &fakeCalc{}
	w := New("w1", calc)
	w.Close()
	_, err := w.SubmitProcessParameters(validProcess())
	require.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, w.Snapshot().SH)

	w = atStep2(t, calc)
	w.Close()
	_, err = w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StepNamePlate, w.Step())
	assert.Empty(t, calc.reqs)
}

func TestCloseDuringCalculation(t *testing.T) {
	calc := &fakeCalc{block: make(chan struct{})}
	w := atStep2(t, calc)

	done := make(chan error, 1)
	go func() {
		_, err := w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
		done <- err
	}()
	require.Eventually(t, func() bool { return w.Snapshot().Busy }, time.Second, 5*time.Millisecond)
	w.Close()
	close(calc.block)

	require.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, StepNamePlate, w.Step())
	assert.Nil(t, w.Snapshot().Result)
}

func TestSubmitNamePlate_CalculatorErrorKeepsData(t *testing.T) {
	boom := errors.New("backend exploded")
	w := atStep2(t, &fakeCalc{err: boom})

	_, err := w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
	require.ErrorIs(t, err, boom)

	snap := w.Snapshot()
	assert.Equal(t, StepNamePlate, snap.Step)
	assert.Equal(t, validNamePlate(), snap.NamePlateForm)
	assert.NotNil(t, snap.SH)
	assert.Nil(t, snap.Result)
}

func TestWrongStep(t *testing.T) {
	w := New("w1", &fakeCalc{})
	defer w.Close()

	_, err := w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.ErrorIs(t, w.UpdatePreview(FieldQnp, "60"), ErrWrongStep)

	_, err = w.SubmitProcessParameters(validProcess())
	require.NoError(t, err)
	_, err = w.SubmitProcessParameters(validProcess())
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestReset(t *testing.T) {
	w := atStep2(t, &fakeCalc{}, WithDebounce(0))
	require.NoError(t, w.UpdatePreview(FieldQnp, "60"))
	require.NoError(t, w.UpdatePreview(FieldHnp, "910"))
	_, err := w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
	require.NoError(t, err)
	require.Equal(t, StepGraphAnalysis, w.Step())

	w.Reset()

	snap := w.Snapshot()
	assert.Equal(t, StepProcessParameters, snap.Step)
	assert.Nil(t, snap.SH)
	assert.Nil(t, snap.ProcessParameters)
	assert.Nil(t, snap.NamePlate)
	assert.Nil(t, snap.Actual)
	assert.Nil(t, snap.Preview)
	assert.Nil(t, snap.Result)
	assert.Equal(t, NamePlateForm{}, snap.NamePlateForm)
}

func TestResetDuringCalculation(t *testing.T) {
	calc := &fakeCalc{block: make(chan struct{})}
	w := atStep2(t, calc)

	done := make(chan error, 1)
	go func() {
		_, err := w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
		done <- err
	}()

	require.Eventually(t, func() bool { return w.Snapshot().Busy }, time.Second, 5*time.Millisecond)
	_, err := w.SubmitNamePlate(context.Background(), validNamePlate(), dataset)
	assert.ErrorIs(t, err, ErrBusy)

	w.Reset()
	close(calc.block)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	snap := w.Snapshot()
	assert.Equal(t, StepProcessParameters, snap.Step)
	assert.Nil(t, snap.Result)
}

func TestValidationErrorMessage(t *testing.T) {
	e := &ValidationError{Fields: map[string]string{"b": "x", "a": "y"}}
	assert.Equal(t, "validation failed: a: y; b: x", e.Error())
}
