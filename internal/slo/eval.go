package slo

import (
	"github.com/danielpatrickdp/guardian/internal/telemetry"
)

// #region evaluate

// Evaluate compares one telemetry snapshot against the fixed thresholds.
// Dimensions are AND-combined: a single breach fails the whole snapshot, and
// every breached dimension is reported for diagnostics. Pure function, no
// smoothing or weighting.
func Evaluate(snap telemetry.Snapshot, t Thresholds) Result {
	var violations []Violation

	if snap.WinRate < t.WinRateMin {
		violations = append(violations, Violation{
			Dimension: DimWinRate,
			Observed:  snap.WinRate,
			Bound:     t.WinRateMin,
		})
	}
	if snap.HallucinationRate > t.HallucinationMax {
		violations = append(violations, Violation{
			Dimension: DimHallucination,
			Observed:  snap.HallucinationRate,
			Bound:     t.HallucinationMax,
		})
	}
	if snap.P95LatencyDelta > t.LatencyDeltaMax {
		violations = append(violations, Violation{
			Dimension: DimLatencyDelta,
			Observed:  snap.P95LatencyDelta,
			Bound:     t.LatencyDeltaMax,
		})
	}
	if snap.PolicyViolations > t.PolicyViolationsMax {
		violations = append(violations, Violation{
			Dimension: DimPolicyViolations,
			Observed:  float64(snap.PolicyViolations),
			Bound:     float64(t.PolicyViolationsMax),
		})
	}

	return Result{Pass: len(violations) == 0, Violations: violations}
}

// #endregion evaluate
