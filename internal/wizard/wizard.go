package wizard

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/model"
)

// DefaultDebounce is how long a preview waits for typing to settle.
const DefaultDebounce = 500 * time.Millisecond

// Dataset is the uploaded Q-H file.
type Dataset struct {
	Name string
	Data []byte
}

func (d Dataset) Empty() bool { return len(d.Data) == 0 }

// CalculationRequest is what step 2 hands to the calculator.
type CalculationRequest struct {
	SH      float64
	Qnp     float64
	Hnp     float64
	Qact    float64
	Hact    float64
	Dataset Dataset
}

// Calculator produces the authoritative SRC result for step 2.
type Calculator interface {
	Calculate(ctx context.Context, req CalculationRequest) (model.SRCResult, error)
}

type Option func(*Wizard)

// WithDebounce sets the live preview delay; 0 computes synchronously.
func WithDebounce(d time.Duration) Option {
	return func(w *Wizard) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// Wizard is one user's pass through the three steps. Safe for concurrent use.
type Wizard struct {
	id       string
	calc     Calculator
	debounce time.Duration

	mu      sync.Mutex
	step    Step
	gen     uint64 // bumped on Reset
	busy    bool
	touched time.Time

	process   *model.ProcessParameters
	sh        *float64
	npForm    NamePlateForm
	namePlate *model.NamePlateReading
	actual    *model.ActualOperatingPoint
	result    *model.SRCResult

	// live preview
	seq     uint64
	timer   *time.Timer
	preview *Preview
	subs    map[int]chan Preview
	nextSub int
	closed  bool
}

func New(id string, calc Calculator, opts ...Option) *Wizard {
	w := &Wizard{
		id:       id,
		calc:     calc,
		debounce: DefaultDebounce,
		step:     StepProcessParameters,
		touched:  time.Now(),
		subs:     make(map[int]chan Preview),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Wizard) ID() string { return w.id }

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// LastTouched is the time of the last state-changing call.
func (w *Wizard) LastTouched() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.touched
}

// SubmitProcessParameters validates step 1, computes SH and moves to step 2.
func (w *Wizard) SubmitProcessParameters(form ProcessForm) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	if w.step != StepProcessParameters {
		return 0, ErrWrongStep
	}
	p, err := form.Parse()
	if err != nil {
		return 0, err
	}
	sh := formula.ComputeSH(p)
	if math.IsNaN(sh) || math.IsInf(sh, 0) {
		verr := &ValidationError{}
		verr.add("shValue", "static head is not a finite number")
		return 0, verr
	}

	w.process = &p
	w.sh = &sh
	w.step = StepNamePlate
	w.touched = time.Now()

	log.WithFields(log.Fields{"wizard": w.id, "sh": sh}).Debug("wizard: step 1 complete")
	return sh, nil
}

// SubmitNamePlate validates step 2, calls the calculator and on success
// moves to step 3. On any error the wizard stays in step 2 with its inputs.
func (w *Wizard) SubmitNamePlate(ctx context.Context, form NamePlateForm, ds Dataset) (model.SRCResult, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return model.SRCResult{}, ErrClosed
	}
	if w.step != StepNamePlate {
		w.mu.Unlock()
		return model.SRCResult{}, ErrWrongStep
	}
	if w.busy {
		w.mu.Unlock()
		return model.SRCResult{}, ErrBusy
	}
	w.npForm = form
	w.touched = time.Now()

	np, act, err := form.Parse()
	if ds.Empty() {
		verr, _ := err.(*ValidationError)
		if verr == nil {
			verr = &ValidationError{}
		}
		verr.add("qhFile", msgRequired)
		err = verr
	}
	if err != nil {
		w.mu.Unlock()
		return model.SRCResult{}, err
	}
	if w.sh == nil {
		w.mu.Unlock()
		return model.SRCResult{}, ErrSHNotComputed
	}
	// k1/k2 are only defined for a positive static head.
	if !formula.Positive(*w.sh) {
		w.mu.Unlock()
		verr := &ValidationError{}
		verr.add("shValue", msgPositiveSH)
		return model.SRCResult{}, verr
	}

	req := CalculationRequest{
		SH:      *w.sh,
		Qnp:     np.Qnp,
		Hnp:     np.Hnp,
		Qact:    act.Qact,
		Hact:    act.Hact,
		Dataset: ds,
	}
	gen := w.gen
	w.busy = true
	w.mu.Unlock()

	res, err := w.calc.Calculate(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	if gen != w.gen {
		return model.SRCResult{}, ErrSuperseded
	}
	if w.closed {
		return model.SRCResult{}, ErrClosed
	}
	if err != nil {
		log.WithFields(log.Fields{"wizard": w.id}).Warnf("wizard: step 2 calculation failed: %v", err)
		return model.SRCResult{}, fmt.Errorf("calculate SRC curves: %w", err)
	}

	w.stopPreviewLocked()
	w.namePlate = &np
	w.actual = &act
	w.result = &res
	w.step = StepGraphAnalysis
	w.touched = time.Now()

	log.WithFields(log.Fields{
		"wizard": w.id,
		"k1":     res.K1,
		"k2":     res.K2,
		"source": res.Source,
	}).Debug("wizard: step 2 complete")
	return res, nil
}

// Reset clears every input and derived value and returns to step 1.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopPreviewLocked()
	w.gen++
	w.step = StepProcessParameters
	w.process = nil
	w.sh = nil
	w.npForm = NamePlateForm{}
	w.namePlate = nil
	w.actual = nil
	w.result = nil
	w.preview = nil
	w.touched = time.Now()
}

// Close stops pending previews and releases subscribers.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.stopPreviewLocked()
	for id, ch := range w.subs {
		close(ch)
		delete(w.subs, id)
	}
}

// Snapshot is a read-only copy of the wizard state.
type Snapshot struct {
	ID                string                      `json:"id"`
	Step              Step                        `json:"step"`
	StepName          string                      `json:"stepName"`
	Busy              bool                        `json:"busy"`
	ProcessParameters *model.ProcessParameters    `json:"processParameters,omitempty"`
	SH                *float64                    `json:"shValue,omitempty"`
	NamePlateForm     NamePlateForm               `json:"nameplateForm"`
	NamePlate         *model.NamePlateReading     `json:"nameplate,omitempty"`
	Actual            *model.ActualOperatingPoint `json:"actual,omitempty"`
	Preview           *Preview                    `json:"preview,omitempty"`
	Result            *model.SRCResult            `json:"result,omitempty"`
}

func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		ID:            w.id,
		Step:          w.step,
		StepName:      w.step.String(),
		Busy:          w.busy,
		NamePlateForm: w.npForm,
	}
	if w.process != nil {
		p := *w.process
		s.ProcessParameters = &p
	}
	if w.sh != nil {
		v := *w.sh
		s.SH = &v
	}
	if w.namePlate != nil {
		v := *w.namePlate
		s.NamePlate = &v
	}
	if w.actual != nil {
		v := *w.actual
		s.Actual = &v
	}
	if w.preview != nil {
		v := *w.preview
		s.Preview = &v
	}
	if w.result != nil {
		v := *w.result
		s.Result = &v
	}
	return s
}
