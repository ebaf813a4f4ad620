// Package metrics holds the prometheus collectors for the question
// pipeline, the agent loop and the HTTP API. Collectors register with
// the default registry at init and are exposed by Handler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chainStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfcare_chain_stage_duration_seconds",
			Help:    "Latency of each question pipeline stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage", "outcome"},
	)
	safetyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfcare_safety_rejections_total",
			Help: "Synthesized statements refused by the safety gate, by matched keyword.",
		},
		[]string{"keyword"},
	)
	agentRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfcare_agent_runs_total",
			Help: "Completed agent runs by terminal state and error type.",
		},
		[]string{"state", "error_type"},
	)
	agentIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelfcare_agent_iterations",
			Help:    "Model round-trips per agent run.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)
	toolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfcare_tool_invocations_total",
			Help: "Agent tool calls by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		chainStageDurationSeconds,
		safetyRejectionsTotal,
		agentRunsTotal,
		agentIterations,
		toolInvocationsTotal,
	)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStage records one pipeline stage.
func ObserveStage(stage string, err error, elapsed time.Duration) {
	chainStageDurationSeconds.WithLabelValues(stage, outcome(err)).Observe(elapsed.Seconds())
}

// IncrementSafetyRejection counts a statement refused by the gate.
func IncrementSafetyRejection(keyword string) {
	safetyRejectionsTotal.WithLabelValues(keyword).Inc()
}

// ObserveAgentRun records a finished agent run.
func ObserveAgentRun(state, errorType string, iterations int) {
	agentRunsTotal.WithLabelValues(state, errorType).Inc()
	agentIterations.Observe(float64(iterations))
}

// ObserveToolCall counts one tool invocation.
func ObserveToolCall(tool string, err error) {
	toolInvocationsTotal.WithLabelValues(tool, outcome(err)).Inc()
}
