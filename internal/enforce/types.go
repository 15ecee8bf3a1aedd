package enforce

import (
	"context"
	"time"
)

// #region action-kind

// ActionKind enumerates the corrective actions the supervisor can order.
type ActionKind string

const (
	ActionThrottle ActionKind = "throttle"
	ActionDegrade  ActionKind = "degrade_feature"
	ActionKill     ActionKind = "kill"

	// ActionAlert is the substitute emitted when a kill is suppressed by the
	// rate limiter: alert-only, never touches the target.
	ActionAlert ActionKind = "alert"
)

// #endregion action-kind

// #region outcome

// Outcome is the recorded result of one enforcement attempt.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeSuppressed Outcome = "suppressed_rate_limited"
	OutcomeFailed     Outcome = "failed"
)

// #endregion outcome

// #region command

// Command is one enforcement order from the state machine. The command queue
// is fed only by the supervisor; the enforcer is its sole consumer.
type Command struct {
	Kind   ActionKind
	Target string
	Reason string
}

// #endregion command

// #region controller-interface

// TargetController is the external lifecycle-control collaborator. Every call
// must return within the bounded timeout the enforcer applies.
type TargetController interface {
	Throttle(ctx context.Context, target string) error
	Degrade(ctx context.Context, target string) error
	Terminate(ctx context.Context, target string) error
}

// #endregion controller-interface

// #region config

// Config holds enforcer tuning knobs.
type Config struct {
	// QueueSize bounds the command channel between supervisor and enforcer.
	QueueSize int `yaml:"queue_size"`

	// ShutdownGrace is how long Close waits for an in-flight command before
	// giving up, so no kill is abandoned half-issued.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:     64,
		ShutdownGrace: 10 * time.Second,
	}
}

// #endregion config
