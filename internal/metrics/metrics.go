// Package metrics holds the process-wide Prometheus instruments for both
// control loops. Counters only ever go up; gauges mirror the owned state of
// the supervisor and the promotion gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts enforcement outcomes by kind and outcome.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_actions_total",
		Help: "Enforcement actions by kind and outcome.",
	}, []string{"kind", "outcome"})

	// TransitionsTotal counts guardian state transitions by destination.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_transitions_total",
		Help: "Guardian state transitions by destination state.",
	}, []string{"to_state"})

	// DegradedSamplesTotal counts health samples with at least one failed read.
	DegradedSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardian_degraded_samples_total",
		Help: "Health samples that substituted a last known-good value.",
	})

	// GuardianState mirrors the current protection state as an ordinal
	// (0=normal 1=brownout 2=emergency 3=cooldown).
	GuardianState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guardian_state",
		Help: "Current guardian protection state ordinal.",
	})

	// KillWindowCount mirrors the number of applied kills inside the sliding window.
	KillWindowCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guardian_kill_window_count",
		Help: "Applied kill actions inside the rate-limit window.",
	})

	// RolloutStage mirrors the canary stage as an ordinal
	// (0=off 1=canary_5 2=canary_20 3=full 4=rolled_back).
	RolloutStage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rollout_stage",
		Help: "Current canary rollout stage ordinal.",
	})

	// RolloutDecisionsTotal counts committed gate decisions by kind.
	RolloutDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollout_decisions_total",
		Help: "Promotion gate decisions by kind (promote, rollback, enable, disable).",
	}, []string{"decision"})
)
