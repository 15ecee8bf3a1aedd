package telemetry

import (
	"context"
	"time"
)

// #region snapshot

// Snapshot is one aggregated production telemetry window. Produced by the
// surrounding platform; consumed read-only by the promotion gate.
type Snapshot struct {
	WinRate           float64   `json:"win_rate"`
	HallucinationRate float64   `json:"hallucination_rate"`
	P95LatencyDelta   float64   `json:"p95_latency_delta"` // signed fraction vs baseline
	PolicyViolations  int       `json:"policy_violation_count"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
}

// #endregion snapshot

// #region event

// Event carries the per-event diagnostic fields of the telemetry contract.
// They never participate in gate decisions, only in logs.
type Event struct {
	VerifierOK bool `json:"verifier_ok"`
	RetryUsed  bool `json:"retry_used"`
}

// #endregion event

// #region reader-interface

// WindowReader is the boundary to the platform's telemetry aggregation. A
// read error means the window is inconclusive for this tick, never a rollback
// on its own.
type WindowReader interface {
	ReadWindow(ctx context.Context) (Snapshot, error)
}

// #endregion reader-interface
