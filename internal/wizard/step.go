// Package wizard implements the three-step "Operational Philosophy" intake:
// process parameters, nameplate + actual duty with a Q-H upload, and graph
// analysis of the resulting system resistance curves.
package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Step int

const (
	StepProcessParameters Step = iota + 1
	StepNamePlate
	StepGraphAnalysis
)

func (s Step) String() string {
	switch s {
	case StepProcessParameters:
		return "process-parameters"
	case StepNamePlate:
		return "nameplate-and-upload"
	case StepGraphAnalysis:
		return "graph-analysis"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

var (
	ErrWrongStep     = errors.New("wizard: operation not allowed in the current step")
	ErrSHNotComputed = errors.New("wizard: SH value not calculated, complete step 1 first")
	ErrBusy          = errors.New("wizard: a calculation is already running")
	ErrSuperseded    = errors.New("wizard: reset while the calculation was running")
	ErrClosed        = errors.New("wizard: closed")
)

// ValidationError carries per-field messages. The wizard never changes step
// when one is returned.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
