// Package similarity flags a case whose prediction profile is close enough to
// a prior case to be a likely duplicate presentation.
package similarity

import (
	"fmt"
	"math"
	"time"

	"github.com/linnemanlabs/pleura/internal/triage"
)

// DefaultThreshold is the score a candidate must strictly exceed to match.
const DefaultThreshold = 0.8

// Candidate is a prior case eligible for matching. Eligibility (ownership,
// resolution state, excluding the target) is decided by the caller.
type Candidate struct {
	ID          string
	Predictions triage.Predictions
	CreatedAt   time.Time
}

// Match is the best candidate and its score.
type Match struct {
	CaseID string
	Score  float64
}

// Score returns one minus the mean absolute difference between the two
// prediction vectors. It is symmetric, Score(x, x) == 1, and bounded in [0,1].
func Score(a, b triage.Predictions) float64 {
	var sum float64
	for _, c := range triage.Conditions {
		sum += math.Abs(clamp(a.Get(c)) - clamp(b.Get(c)))
	}
	return 1 - sum/float64(len(triage.Conditions))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Matcher finds the most similar candidate above a fixed threshold.
type Matcher struct {
	threshold float64
}

// NewMatcher returns a Matcher. threshold must be in [0,1).
func NewMatcher(threshold float64) (*Matcher, error) {
	if !(threshold >= 0 && threshold < 1) {
		return nil, fmt.Errorf("similarity threshold %v out of range [0,1)", threshold)
	}
	return &Matcher{threshold: threshold}, nil
}

// Threshold returns the configured threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// FindMostSimilar scores every candidate against target and returns the best
// one if its score strictly exceeds the threshold. Equal scores prefer the most
// recently created candidate, then the earlier position in candidates.
func (m *Matcher) FindMostSimilar(target triage.Predictions, candidates []Candidate) (Match, bool) {
	best := -1
	var bestScore float64
	for i := range candidates {
		s := Score(target, candidates[i].Predictions)
		if best < 0 || s > bestScore ||
			(s == bestScore && candidates[i].CreatedAt.After(candidates[best].CreatedAt)) {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore <= m.threshold {
		return Match{}, false
	}
	return Match{CaseID: candidates[best].ID, Score: bestScore}, true
}
