package rollout

import (
	"fmt"
	"time"
)

// #region stage

// Stage is the canary traffic share for the candidate artifact. Owned
// exclusively by the Gate; the only mutation paths are Gate decisions.
type Stage int

const (
	StageOff Stage = iota
	StageCanary5
	StageCanary20
	StageFull
	// StageRolledBack is terminal for the candidate; only Disable (a fresh
	// enable cycle) leaves it.
	StageRolledBack
)

func (s Stage) String() string {
	switch s {
	case StageOff:
		return "off"
	case StageCanary5:
		return "canary_5"
	case StageCanary20:
		return "canary_20"
	case StageFull:
		return "full"
	case StageRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ParseStage maps a persisted stage name back to its Stage. Used to recover
// the gate's position from the promotion log after a restart.
func ParseStage(name string) (Stage, error) {
	for _, s := range []Stage{StageOff, StageCanary5, StageCanary20, StageFull, StageRolledBack} {
		if s.String() == name {
			return s, nil
		}
	}
	return StageOff, fmt.Errorf("unknown stage %q", name)
}

// #endregion stage

// #region decision

// DecisionKind classifies one evaluation or control outcome.
type DecisionKind string

const (
	DecisionPromoted     DecisionKind = "promoted"
	DecisionRolledBack   DecisionKind = "rolled_back"
	DecisionHeld         DecisionKind = "held"
	DecisionInconclusive DecisionKind = "inconclusive"
	DecisionEnabled      DecisionKind = "enabled"
	DecisionDisabled     DecisionKind = "disabled"
)

// Decision is the outcome of one gate tick or control trigger.
type Decision struct {
	Kind      DecisionKind
	From      Stage
	To        Stage
	Rationale string
	At        time.Time
}

// #endregion decision

// #region config

// Config bounds the gate's observation discipline.
type Config struct {
	// ObservationWindow is how long every snapshot must pass before a
	// promotion is considered.
	ObservationWindow time.Duration `yaml:"observation_window"`
	// UpliftMinPP is the minimum win-rate uplift over BaselineWinRate, in
	// absolute fraction (0.05 = five percentage points).
	UpliftMinPP float64 `yaml:"uplift_min_pp"`
	// BaselineWinRate is the control arm's win rate the uplift is measured
	// against.
	BaselineWinRate float64       `yaml:"baseline_win_rate"`
	EvalInterval    time.Duration `yaml:"eval_interval"`
}

// DefaultConfig returns the documented gate defaults.
func DefaultConfig() Config {
	return Config{
		ObservationWindow: 24 * time.Hour,
		UpliftMinPP:       0.05,
		BaselineWinRate:   0.60,
		EvalInterval:      time.Minute,
	}
}

// #endregion config
