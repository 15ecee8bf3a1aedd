package slo

// #region dimension

// Dimension names one service-level objective.
type Dimension string

const (
	DimWinRate          Dimension = "win_rate"
	DimHallucination    Dimension = "hallucination_rate"
	DimLatencyDelta     Dimension = "p95_latency_delta"
	DimPolicyViolations Dimension = "policy_violation_count"
)

// #endregion dimension

// #region thresholds

// Thresholds are the fixed SLO bounds. Immutable config; a change requires a
// restart.
type Thresholds struct {
	WinRateMin          float64 `yaml:"win_rate_min"`
	HallucinationMax    float64 `yaml:"hallucination_max"`
	LatencyDeltaMax     float64 `yaml:"latency_delta_max"`
	PolicyViolationsMax int     `yaml:"policy_violations_max"`
}

// DefaultThresholds returns the documented bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WinRateMin:          0.65,
		HallucinationMax:    0.005,
		LatencyDeltaMax:     0.10,
		PolicyViolationsMax: 0,
	}
}

// #endregion thresholds

// #region result

// Violation reports one breached dimension with the observed value and the
// bound it broke.
type Violation struct {
	Dimension Dimension
	Observed  float64
	Bound     float64
}

// Result is the outcome of evaluating one snapshot. Pass is true only when
// every dimension holds simultaneously.
type Result struct {
	Pass       bool
	Violations []Violation
}

// #endregion result
