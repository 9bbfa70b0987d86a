package wizard

import (
	"time"

	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/model"
)

// Preview is the non-authoritative live calculation shown while step 2 is
// being typed. K1/K2 are nil until their inputs and SH are all positive; a
// preview with neither one clears the previous preview.
type Preview struct {
	Seq            uint64                  `json:"seq"`
	SH             float64                 `json:"shValue"`
	K1             *float64                `json:"k1,omitempty"`
	K2             *float64                `json:"k2,omitempty"`
	TheoreticalSRC model.SRCCurve          `json:"theoreticalSRC,omitempty"`
	ActualSRC      model.SRCCurve          `json:"actualSRC,omitempty"`
	Source         model.ComputationSource `json:"source"`
	ComputedAt     time.Time               `json:"computedAt"`
}

// UpdatePreview records a keystroke on one of Qnp/Hnp/Qact/Hact and
// schedules a recomputation. Only the latest scheduled update is applied.
func (w *Wizard) UpdatePreview(field, value string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.step != StepNamePlate {
		w.mu.Unlock()
		return ErrWrongStep
	}
	if !w.npForm.set(field, value) {
		w.mu.Unlock()
		verr := &ValidationError{}
		verr.add(field, "not a live preview field")
		return verr
	}
	w.seq++
	seq := w.seq
	w.touched = time.Now()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.debounce == 0 {
		if p, ok := w.recomputeLocked(seq); ok {
			w.publishLocked(p)
		}
		w.mu.Unlock()
		return nil
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.firePreview(seq) })
	w.mu.Unlock()
	return nil
}

// Preview returns the latest live preview, if any.
func (w *Wizard) Preview() (Preview, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preview == nil {
		return Preview{}, false
	}
	return *w.preview, true
}

// Subscribe delivers every new preview. The channel keeps only the newest
// value; cancel releases it.
func (w *Wizard) Subscribe() (<-chan Preview, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan Preview, 1)
	if w.closed {
		close(ch)
		return ch, func() {}
	}
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if c, ok := w.subs[id]; ok {
			close(c)
			delete(w.subs, id)
		}
	}
}

func (w *Wizard) firePreview(seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.recomputeLocked(seq); ok {
		w.publishLocked(p)
	}
}

// recomputeLocked drops superseded requests by comparing sequence numbers.
func (w *Wizard) recomputeLocked(seq uint64) (Preview, bool) {
	if seq != w.seq || w.step != StepNamePlate || w.sh == nil {
		return Preview{}, false
	}
	w.timer = nil

	sh := *w.sh
	qnp, hnp := lenient(w.npForm.Qnp), lenient(w.npForm.Hnp)
	qact, hact := lenient(w.npForm.Qact), lenient(w.npForm.Hact)
	qMax := formula.CurveMax(qnp, qact)

	p := Preview{
		Seq:        seq,
		SH:         sh,
		Source:     model.SourcePreview,
		ComputedAt: time.Now(),
	}
	if formula.Positive(qnp, hnp, sh) {
		k1 := formula.ComputeK(qnp, hnp, sh)
		p.K1 = &k1
		p.TheoreticalSRC = formula.SampleCurve(sh, k1, qMax, formula.PreviewSamples)
	}
	if formula.Positive(qact, hact, sh) {
		k2 := formula.ComputeK(qact, hact, sh)
		p.K2 = &k2
		p.ActualSRC = formula.SampleCurve(sh, k2, qMax, formula.PreviewSamples)
	}
	if p.K1 == nil && p.K2 == nil {
		if w.preview == nil {
			return Preview{}, false
		}
		// inputs were cleared: drop the stale preview and tell subscribers
		w.preview = nil
		return p, true
	}
	w.preview = &p
	return p, true
}

// publishLocked never blocks: a slow subscriber just misses older previews.
func (w *Wizard) publishLocked(p Preview) {
	for _, ch := range w.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}

func (w *Wizard) stopPreviewLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.seq++
}
