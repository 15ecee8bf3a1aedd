package supervisor

import (
	"time"

	"github.com/danielpatrickdp/guardian/internal/threshold"
)

// #region state

// State is the guardian protection state. Owned exclusively by the machine;
// transitions are the only mutation path.
type State int

const (
	StateNormal State = iota
	StateBrownout
	StateEmergency
	StateCooldown
)

// String returns the canonical lowercase name used in logs and audit rows.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateBrownout:
		return "brownout"
	case StateEmergency:
		return "emergency"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// #endregion state

// #region target

// Target is one entry of the static enforcement-target inventory. Critical
// targets are never degraded or killed. KillPriority orders kill candidates:
// higher means more resource-hungry, killed first.
type Target struct {
	Name         string `yaml:"name"`
	Critical     bool   `yaml:"critical"`
	KillPriority int    `yaml:"kill_priority"`
}

// #endregion target

// #region config

// Config holds the machine's hysteresis and dwell knobs plus the target
// inventory. Immutable after load.
type Config struct {
	// HysteresisN is the number of consecutive samples required at or above
	// a level to escalate, and strictly below it to de-escalate.
	HysteresisN int `yaml:"hysteresis_n"`

	// CooldownDwell is the minimum time spent in cooldown regardless of
	// sample severity.
	CooldownDwell time.Duration `yaml:"cooldown_dwell"`

	Targets []Target `yaml:"targets"`
}

// DefaultConfig returns N=3 and a 5 minute dwell.
func DefaultConfig() Config {
	return Config{
		HysteresisN:   3,
		CooldownDwell: 5 * time.Minute,
	}
}

// #endregion config

// #region transition

// Transition records one state change and the severity that confirmed it.
type Transition struct {
	From     State
	To       State
	Severity threshold.Severity
	Reason   string
	At       time.Time
}

// #endregion transition

// #region status

// Status is a consistent read-only snapshot for the query surface.
type Status struct {
	State         State
	LastSeverity  threshold.Severity
	LastSampleAt  time.Time
	CooldownUntil time.Time
}

// #endregion status
