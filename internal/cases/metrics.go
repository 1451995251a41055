package cases

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the case workflow. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CreatedTotal      *prometheus.CounterVec
	ResolvedTotal     *prometheus.CounterVec
	SimilarityFills   *prometheus.CounterVec
	IDsAllocatedTotal prometheus.Counter
	ReportsTotal      *prometheus.CounterVec
}

// NewMetrics registers and returns case metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pleura_cases_created_total",
			Help: "Cases created by triage level (none when predictions are pending).",
		}, []string{"level"}),
		ResolvedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pleura_cases_resolved_total",
			Help: "Case resolutions recorded by resolution.",
		}, []string{"resolution"}),
		SimilarityFills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pleura_similarity_fills_total",
			Help: "Similarity cache fill attempts by outcome.",
		}, []string{"outcome"}),
		IDsAllocatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pleura_case_ids_allocated_total",
			Help: "Case ids drawn from the counter, including ones never persisted.",
		}),
		ReportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pleura_reports_total",
			Help: "Narrative report drafts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.CreatedTotal,
		m.ResolvedTotal,
		m.SimilarityFills,
		m.IDsAllocatedTotal,
		m.ReportsTotal,
	)

	return m
}

func (m *Metrics) created(level string) {
	if m == nil {
		return
	}
	if level == "" {
		level = "none"
	}
	m.CreatedTotal.WithLabelValues(level).Inc()
}

func (m *Metrics) resolved(r Resolution) {
	if m == nil {
		return
	}
	m.ResolvedTotal.WithLabelValues(string(r)).Inc()
}

// similarity fill outcomes
const (
	fillMatched = "matched"
	fillNoMatch = "no_match"
	fillError   = "error"
)

func (m *Metrics) similarityFill(outcome string) {
	if m == nil {
		return
	}
	m.SimilarityFills.WithLabelValues(outcome).Inc()
}

func (m *Metrics) idAllocated() {
	if m == nil {
		return
	}
	m.IDsAllocatedTotal.Inc()
}

func (m *Metrics) report(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ReportsTotal.WithLabelValues(outcome).Inc()
}
