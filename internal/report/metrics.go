package report

import "github.com/prometheus/client_golang/prometheus"

// Hooks are optional callbacks fired around each LLM call.
type Hooks struct {
	OnLLMCall func(inputTokens, outputTokens int64, duration float64, err error)
}

// Metrics holds Prometheus metrics for report drafting.
type Metrics struct {
	LLMCallsTotal *prometheus.CounterVec
	LLMTokensIn   prometheus.Counter
	LLMTokensOut  prometheus.Counter
	LLMDuration   prometheus.Histogram
	ReportTokens  prometheus.Histogram
}

// NewMetrics registers and returns report metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pleura_llm_calls_total",
			Help: "Total LLM provider calls by outcome.",
		}, []string{"outcome"}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pleura_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pleura_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pleura_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		ReportTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pleura_report_tokens_output",
			Help:    "Output tokens per drafted report.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8), // 64 .. ~8192
		}),
	}

	reg.MustRegister(
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.ReportTokens,
	)

	return m
}

// Hooks returns Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnLLMCall: func(inputTokens, outputTokens int64, duration float64, err error) {
			m.LLMDuration.Observe(duration)
			if err != nil {
				m.LLMCallsTotal.WithLabelValues("error").Inc()
				return
			}
			m.LLMCallsTotal.WithLabelValues("success").Inc()
			m.LLMTokensIn.Add(float64(inputTokens))
			m.LLMTokensOut.Add(float64(outputTokens))
			m.ReportTokens.Observe(float64(outputTokens))
		},
	}
}
