package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the agent's operational counters. A nil registerer gives
// a private registry, which keeps tests independent of global state.
type Metrics struct {
	Turns      *prometheus.CounterVec
	ToolCalls  *prometheus.CounterVec
	Iterations prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spaceplan",
			Subsystem: "agent",
			Name:      "turns_total",
			Help:      "Agent turns by terminal state.",
		}, []string{"terminal"}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spaceplan",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		Iterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spaceplan",
			Subsystem: "agent",
			Name:      "turn_iterations",
			Help:      "Oracle round trips per turn.",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		}),
	}
}
