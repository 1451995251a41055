package similarity

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/linnemanlabs/pleura/internal/triage"
)

func TestScore_ReflexiveSymmetricBounded(t *testing.T) {
	t.Parallel()

	vectors := []triage.Predictions{
		{},
		{Pneumothorax: 1, Pneumonia: 1, Nodule: 1},
		{Pneumothorax: 0.85, Pneumonia: 0.2, Nodule: 0.1},
		{Pneumothorax: 0.1, Pneumonia: 0.5, Nodule: 0.1},
		{Pneumothorax: 0.33, Pneumonia: 0.66, Nodule: 0.99},
	}

	for _, x := range vectors {
		if got := Score(x, x); got != 1 {
			t.Errorf("Score(%+v, itself) = %v, want 1", x, got)
		}
		for _, y := range vectors {
			xy, yx := Score(x, y), Score(y, x)
			if xy != yx {
				t.Errorf("Score not symmetric: %v != %v for %+v, %+v", xy, yx, x, y)
			}
			if xy < 0 || xy > 1 {
				t.Errorf("Score(%+v, %+v) = %v, outside [0,1]", x, y, xy)
			}
		}
	}

	opposite := Score(triage.Predictions{}, triage.Predictions{Pneumothorax: 1, Pneumonia: 1, Nodule: 1})
	if opposite != 0 {
		t.Errorf("opposite vectors score = %v, want 0", opposite)
	}
}

func TestScore_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	got := Score(triage.Predictions{Pneumothorax: 5, Pneumonia: -3, Nodule: math.NaN()}, triage.Predictions{Pneumothorax: 1})
	if got != 1 {
		t.Errorf("Score with clamped inputs = %v, want 1", got)
	}
}

func TestNewMatcher_Range(t *testing.T) {
	t.Parallel()

	for _, th := range []float64{-0.1, 1, 1.5, math.NaN()} {
		if _, err := NewMatcher(th); err == nil {
			t.Errorf("NewMatcher(%v) = nil error, want error", th)
		}
	}
	if _, err := NewMatcher(0); err != nil {
		t.Errorf("NewMatcher(0): %v", err)
	}
}

func TestFindMostSimilar(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher(0.8)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	target := triage.Predictions{Pneumothorax: 0.85, Pneumonia: 0.2, Nodule: 0.1}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		candidates []Candidate
		want       Match
		wantOK     bool
	}{
		{"no candidates", nil, Match{}, false},
		{
			"single close candidate",
			[]Candidate{{ID: "CXR-001", Predictions: triage.Predictions{Pneumothorax: 0.85, Pneumonia: 0.2, Nodule: 0.34}, CreatedAt: base}},
			Match{CaseID: "CXR-001", Score: 0.92},
			true,
		},
		{
			"best of several",
			[]Candidate{
				{ID: "CXR-001", Predictions: triage.Predictions{Pneumothorax: 0.1, Pneumonia: 0.9, Nodule: 0.9}, CreatedAt: base},
				{ID: "CXR-002", Predictions: triage.Predictions{Pneumothorax: 0.8, Pneumonia: 0.2, Nodule: 0.1}, CreatedAt: base},
				{ID: "CXR-003", Predictions: triage.Predictions{Pneumothorax: 0.5, Pneumonia: 0.2, Nodule: 0.1}, CreatedAt: base},
			},
			Match{CaseID: "CXR-002", Score: Score(target, triage.Predictions{Pneumothorax: 0.8, Pneumonia: 0.2, Nodule: 0.1})},
			true,
		},
		{
			"tie prefers most recent",
			[]Candidate{
				{ID: "CXR-001", Predictions: target, CreatedAt: base},
				{ID: "CXR-002", Predictions: target, CreatedAt: base.Add(time.Hour)},
				{ID: "CXR-003", Predictions: target, CreatedAt: base.Add(-time.Hour)},
			},
			Match{CaseID: "CXR-002", Score: 1},
			true,
		},
		{
			"tie with equal timestamps keeps first",
			[]Candidate{
				{ID: "CXR-004", Predictions: target, CreatedAt: base},
				{ID: "CXR-005", Predictions: target, CreatedAt: base},
			},
			Match{CaseID: "CXR-004", Score: 1},
			true,
		},
		{
			"below threshold",
			[]Candidate{{ID: "CXR-001", Predictions: triage.Predictions{Pneumothorax: 0.1, Pneumonia: 0.2, Nodule: 0.1}, CreatedAt: base}},
			Match{},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := m.FindMostSimilar(target, tt.candidates)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got, cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })); diff != "" {
				t.Errorf("match mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindMostSimilar_AtThresholdIsNoMatch(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher(0.5)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	// mean abs diff exactly 0.5 -> score exactly 0.5
	target := triage.Predictions{Pneumothorax: 0.5, Pneumonia: 0.5, Nodule: 0.5}
	cand := []Candidate{{ID: "CXR-001", Predictions: triage.Predictions{Pneumothorax: 1, Pneumonia: 1, Nodule: 1}}}

	if got, ok := m.FindMostSimilar(target, cand); ok {
		t.Errorf("FindMostSimilar at threshold = %+v, want no match", got)
	}
}

func TestFindMostSimilar_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	m, _ := NewMatcher(0.1)
	cands := []Candidate{
		{ID: "a", Predictions: triage.Predictions{Pneumothorax: 0.3}},
		{ID: "b", Predictions: triage.Predictions{Nodule: 0.3}},
	}
	before := append([]Candidate(nil), cands...)
	m.FindMostSimilar(triage.Predictions{Pneumothorax: 0.3}, cands)

	if diff := cmp.Diff(before, cands); diff != "" {
		t.Errorf("candidates mutated (-before +after):\n%s", diff)
	}
}
