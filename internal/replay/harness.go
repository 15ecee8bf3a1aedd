// Package replay re-runs a recorded sample sequence through the threshold
// evaluator and the supervisor state machine, entirely in-memory. The same
// fixture always yields the same transitions and commands, so recorded
// incidents can be verified offline without the live process.
package replay

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/guardian/internal/health"
	"github.com/danielpatrickdp/guardian/internal/supervisor"
	"github.com/danielpatrickdp/guardian/internal/threshold"
)

// #region results

// StepResult is the machine's full output for one replayed sample.
type StepResult struct {
	Step        int
	At          time.Time
	Severity    threshold.Severity
	Transitions []supervisor.Transition
	Commands    []CommandResult
}

// CommandResult is one enforcement command the machine issued, flattened for
// comparison and printing.
type CommandResult struct {
	Kind   string
	Target string
}

// Summary aggregates one replay run.
type Summary struct {
	TotalSteps  int
	Transitions int
	Kills       int
	Degrades    int
	Throttles   int
	Alerts      int
	FinalState  supervisor.State
}

// #endregion results

// #region replay

// Replay runs every fixture step through the evaluator and the machine.
// The clock starts at epoch and advances by the fixture's step interval
// unless a step carries an explicit offset.
func Replay(f *Fixture) ([]StepResult, Summary, error) {
	thresholds := f.Config.Thresholds.ToThresholdConfig()
	machine := supervisor.NewMachine(f.Config.ToSupervisorConfig())
	interval := f.Config.stepInterval()

	base := time.Unix(0, 0).UTC()
	results := make([]StepResult, 0, len(f.Steps))
	summary := Summary{TotalSteps: len(f.Steps)}

	for i, step := range f.Steps {
		at := base.Add(time.Duration(i) * interval)
		if step.AtOffsetSeconds > 0 {
			at = base.Add(time.Duration(step.AtOffsetSeconds) * time.Second)
		}

		sev, err := stepSeverity(step, thresholds, at)
		if err != nil {
			return nil, Summary{}, fmt.Errorf("step %d: %w", i, err)
		}

		out := machine.Apply(sev, at)
		res := StepResult{Step: i, At: at, Severity: sev, Transitions: out.Transitions}
		for _, cmd := range out.Commands {
			res.Commands = append(res.Commands, CommandResult{
				Kind:   string(cmd.Kind),
				Target: cmd.Target,
			})
			switch cmd.Kind {
			case "kill":
				summary.Kills++
			case "degrade_feature":
				summary.Degrades++
			case "throttle":
				summary.Throttles++
			case "alert":
				summary.Alerts++
			}
		}
		summary.Transitions += len(out.Transitions)
		results = append(results, res)
	}

	summary.FinalState = machine.State()
	return results, summary, nil
}

// stepSeverity derives the step's severity: raw readings run through the
// evaluator, otherwise the named severity is taken as recorded.
func stepSeverity(step FixtureStep, thresholds threshold.Config, at time.Time) (threshold.Severity, error) {
	if len(step.Readings) > 0 {
		sample := health.Sample{
			At:            at,
			Readings:      map[health.Signal]float64{},
			SensorFailure: step.SensorFailure,
		}
		for name, value := range step.Readings {
			sample.Readings[health.Signal(name)] = value
		}
		return threshold.Evaluate(sample, thresholds), nil
	}

	switch step.Severity {
	case "ok":
		return threshold.SeverityOK, nil
	case "warn":
		return threshold.SeverityWarn, nil
	case "brownout":
		return threshold.SeverityBrownout, nil
	case "emergency":
		return threshold.SeverityEmergency, nil
	default:
		return threshold.SeverityOK, fmt.Errorf("unknown severity %q", step.Severity)
	}
}

// #endregion replay

// #region verify

// Verify compares a run's output to the fixture's expectations and returns
// one message per mismatch. Empty means the replay matched.
func Verify(f *Fixture, results []StepResult) []string {
	var mismatches []string

	transitions := map[int][]supervisor.Transition{}
	commands := map[int][]CommandResult{}
	for _, r := range results {
		transitions[r.Step] = r.Transitions
		commands[r.Step] = r.Commands
	}

	for _, want := range f.ExpectedTransitions {
		if !hasTransition(transitions[want.Step], want) {
			mismatches = append(mismatches, fmt.Sprintf(
				"step %d: expected transition %s -> %s, got %s",
				want.Step, want.From, want.To, formatTransitions(transitions[want.Step])))
		}
	}
	for _, want := range f.ExpectedCommands {
		if !hasCommand(commands[want.Step], want) {
			mismatches = append(mismatches, fmt.Sprintf(
				"step %d: expected command %s %s, got %v",
				want.Step, want.Kind, want.Target, commands[want.Step]))
		}
	}
	return mismatches
}

func hasTransition(got []supervisor.Transition, want ExpectedTransition) bool {
	for _, t := range got {
		if t.From.String() == want.From && t.To.String() == want.To {
			return true
		}
	}
	return false
}

func hasCommand(got []CommandResult, want ExpectedCommand) bool {
	for _, c := range got {
		if c.Kind == want.Kind && (want.Target == "" || c.Target == want.Target) {
			return true
		}
	}
	return false
}

func formatTransitions(got []supervisor.Transition) string {
	if len(got) == 0 {
		return "none"
	}
	out := ""
	for i, t := range got {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s -> %s", t.From, t.To)
	}
	return out
}

// #endregion verify
