package triage

import (
	"errors"
	"fmt"
	"math"
)

// Condition is one of the findings the inference model scores.
type Condition string

const (
	Pneumothorax Condition = "pneumothorax"
	Pneumonia    Condition = "pneumonia"
	Nodule       Condition = "nodule"
)

// Conditions lists every known condition in priority order. The order is used
// to break ties when naming the conditions that drove a triage level.
var Conditions = []Condition{Pneumothorax, Pneumonia, Nodule}

var (
	// ErrIncompletePredictions means a known condition had no probability.
	ErrIncompletePredictions = errors.New("predictions missing a known condition")

	// ErrProbabilityRange means a probability was not a finite value in [0,1].
	ErrProbabilityRange = errors.New("probability must be a finite value in [0,1]")
)

// Predictions holds one probability per known condition.
type Predictions struct {
	Pneumothorax float64 `json:"pneumothorax"`
	Pneumonia    float64 `json:"pneumonia"`
	Nodule       float64 `json:"nodule"`
}

// Get returns the probability recorded for c, or 0 for an unknown condition.
func (p Predictions) Get(c Condition) float64 {
	switch c {
	case Pneumothorax:
		return p.Pneumothorax
	case Pneumonia:
		return p.Pneumonia
	case Nodule:
		return p.Nodule
	default:
		return 0
	}
}

// Set stores v for c. Unknown conditions are ignored.
func (p *Predictions) Set(c Condition, v float64) {
	switch c {
	case Pneumothorax:
		p.Pneumothorax = v
	case Pneumonia:
		p.Pneumonia = v
	case Nodule:
		p.Nodule = v
	}
}

// ParsePredictions builds a complete Predictions from a condition-keyed map.
// Every known condition must be present with a non-null finite value in
// [0,1]; extra keys are ignored. Values are pointers so a JSON null stays
// distinguishable from 0.
func ParsePredictions(m map[string]*float64) (Predictions, error) {
	var p Predictions
	var errs []error
	for _, c := range Conditions {
		pv, ok := m[string(c)]
		if !ok || pv == nil {
			errs = append(errs, fmt.Errorf("%w: %s", ErrIncompletePredictions, c))
			continue
		}
		v := *pv
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%w: %s=%v", ErrProbabilityRange, c, v))
			continue
		}
		p.Set(c, v)
	}
	if len(errs) > 0 {
		return Predictions{}, errors.Join(errs...)
	}
	return p, nil
}
