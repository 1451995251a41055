package triage

import (
	"errors"
	"fmt"
	"strings"
)

// Flag is the per-condition urgency tier.
type Flag string

const (
	FlagLow    Flag = "low"
	FlagReview Flag = "review"
	FlagUrgent Flag = "urgent"
)

// Rank orders flags low < review < urgent. Unknown flags rank below low.
func (f Flag) Rank() int {
	switch f {
	case FlagLow:
		return 0
	case FlagReview:
		return 1
	case FlagUrgent:
		return 2
	default:
		return -1
	}
}

// Valid reports whether f is one of the known flags.
func (f Flag) Valid() bool { return f.Rank() >= 0 }

// Level is the aggregate urgency of a case.
type Level string

const (
	LevelRoutine Level = "ROUTINE"
	LevelReview  Level = "REVIEW"
	LevelUrgent  Level = "URGENT"
)

// Rank orders levels ROUTINE < REVIEW < URGENT. Unknown levels rank below ROUTINE.
func (l Level) Rank() int {
	switch l {
	case LevelRoutine:
		return 0
	case LevelReview:
		return 1
	case LevelUrgent:
		return 2
	default:
		return -1
	}
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool { return l.Rank() >= 0 }

// Flags holds one flag per known condition.
type Flags struct {
	Pneumothorax Flag `json:"pneumothorax"`
	Pneumonia    Flag `json:"pneumonia"`
	Nodule       Flag `json:"nodule"`
}

// Get returns the flag for c, or "" for an unknown condition.
func (f Flags) Get(c Condition) Flag {
	switch c {
	case Pneumothorax:
		return f.Pneumothorax
	case Pneumonia:
		return f.Pneumonia
	case Nodule:
		return f.Nodule
	default:
		return ""
	}
}

// Set stores flag for c. Unknown conditions are ignored.
func (f *Flags) Set(c Condition, flag Flag) {
	switch c {
	case Pneumothorax:
		f.Pneumothorax = flag
	case Pneumonia:
		f.Pneumonia = flag
	case Nodule:
		f.Nodule = flag
	}
}

// AllLow returns Flags with every condition set to low.
func AllLow() Flags {
	return Flags{Pneumothorax: FlagLow, Pneumonia: FlagLow, Nodule: FlagLow}
}

// Assessment is the classifier output stored on a case.
type Assessment struct {
	Level  Level  `json:"level"`
	Reason string `json:"reason"`
	Flags  Flags  `json:"flags"`
}

// Thresholds are the probability cut-offs for the review and urgent tiers.
// A probability exactly at a threshold lands in the higher tier.
type Thresholds struct {
	Review float64
	Urgent float64
}

// DefaultThresholds are used when nothing else is configured.
var DefaultThresholds = Thresholds{Review: 0.4, Urgent: 0.7}

// Validate requires 0 < Review < Urgent <= 1.
func (t Thresholds) Validate() error {
	if !(t.Review > 0) || !(t.Review < t.Urgent) || !(t.Urgent <= 1) {
		return fmt.Errorf("invalid thresholds review=%v urgent=%v (need 0 < review < urgent <= 1)", t.Review, t.Urgent)
	}
	return nil
}

// Classifier maps predictions to an Assessment. It holds no mutable state and
// is safe for concurrent use.
type Classifier struct {
	th Thresholds
}

// NewClassifier returns a Classifier using th.
func NewClassifier(th Thresholds) (*Classifier, error) {
	if err := th.Validate(); err != nil {
		return nil, errors.Join(errors.New("triage classifier"), err)
	}
	return &Classifier{th: th}, nil
}

// Thresholds returns the configured cut-offs.
func (c *Classifier) Thresholds() Thresholds { return c.th }

// FlagFor returns the tier for a single probability.
func (c *Classifier) FlagFor(p float64) Flag {
	switch {
	case p >= c.th.Urgent:
		return FlagUrgent
	case p >= c.th.Review:
		return FlagReview
	default:
		return FlagLow
	}
}

// Classify flags each condition and aggregates the highest flag into a level.
// Callers must pass a complete, validated Predictions.
func (c *Classifier) Classify(p Predictions) Assessment {
	var (
		flags  Flags
		urgent []Condition
		review []Condition
	)
	for _, cond := range Conditions {
		f := c.FlagFor(p.Get(cond))
		flags.Set(cond, f)
		switch f {
		case FlagUrgent:
			urgent = append(urgent, cond)
		case FlagReview:
			review = append(review, cond)
		}
	}

	switch {
	case len(urgent) > 0:
		return Assessment{
			Level:  LevelUrgent,
			Reason: "Urgent: high probability of " + describe(p, urgent),
			Flags:  flags,
		}
	case len(review) > 0:
		return Assessment{
			Level:  LevelReview,
			Reason: "Review: possible " + describe(p, review),
			Flags:  flags,
		}
	default:
		return Assessment{
			Level:  LevelRoutine,
			Reason: "Routine: no condition above review threshold",
			Flags:  flags,
		}
	}
}

// describe renders conditions (already in priority order) with their probabilities.
func describe(p Predictions, conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = fmt.Sprintf("%s (%.2f)", c, p.Get(c))
	}
	return strings.Join(parts, ", ")
}
