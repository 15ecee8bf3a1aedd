package supervisor

import (
	"fmt"
	"sort"
	"time"

	"github.com/danielpatrickdp/guardian/internal/enforce"
	"github.com/danielpatrickdp/guardian/internal/threshold"
)

// #region machine

// Machine is the deterministic guardian state machine. The next state is a
// pure function of (current state, last N severities, dwell clock): no model,
// heuristic, or external service ever participates in a transition.
type Machine struct {
	config Config

	state         State
	window        []threshold.Severity // last N severities, oldest first
	cooldownUntil time.Time

	// Kill candidate bookkeeping for repeated emergencies.
	killOrder       []string
	killCursor      int
	emergencyStreak int
}

// NewMachine creates a machine in the Normal state.
func NewMachine(config Config) *Machine {
	m := &Machine{config: config, state: StateNormal}
	m.killOrder = killCandidates(config.Targets)
	return m
}

// killCandidates returns the non-critical target names, most resource-hungry
// first.
func killCandidates(targets []Target) []string {
	var cands []Target
	for _, t := range targets {
		if !t.Critical {
			cands = append(cands, t)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].KillPriority > cands[j].KillPriority
	})
	names := make([]string, len(cands))
	for i, t := range cands {
		names[i] = t.Name
	}
	return names
}

// State returns the current protection state.
func (m *Machine) State() State {
	return m.state
}

// CooldownUntil returns the end of the mandatory dwell, zero outside cooldown.
func (m *Machine) CooldownUntil() time.Time {
	return m.cooldownUntil
}

// #endregion machine

// #region result

// Result is the outcome of applying one severity sample.
type Result struct {
	Transitions []Transition
	Commands    []enforce.Command
}

// #endregion result

// #region apply

// Apply feeds one severity into the hysteresis window and returns the
// transitions and enforcement commands it produced. Not safe for concurrent
// use; the run loop is the single writer.
func (m *Machine) Apply(sev threshold.Severity, now time.Time) Result {
	m.push(sev)

	var res Result

	// Mandatory dwell: no transition in or out of cooldown, regardless of
	// severity, until the dwell elapses.
	if m.state == StateCooldown && now.Before(m.cooldownUntil) {
		return res
	}

	// Escalation: one level per confirmation, possibly several levels in one
	// tick when the same window confirms each step (e.g. N emergencies from
	// Normal step through Brownout into Emergency immediately).
	for {
		next, ok := nextUp(m.state)
		if !ok || !m.windowAtOrAbove(severityFor(next)) {
			break
		}
		res.append(m.transition(next, sev, now))
	}

	// Repeated emergency: while the machine stays in Emergency, every further
	// run of N consecutive emergency samples selects the next kill candidate.
	if m.state == StateEmergency && len(res.Transitions) == 0 {
		if sev >= threshold.SeverityEmergency {
			m.emergencyStreak++
			if m.emergencyStreak >= m.config.HysteresisN {
				m.emergencyStreak = 0
				res.Commands = append(res.Commands, m.nextKill("sustained emergency")...)
			}
		} else {
			m.emergencyStreak = 0
		}
	}

	if len(res.Transitions) > 0 {
		return res
	}

	// De-escalation: N consecutive samples strictly below the current level,
	// one level at a time. Emergency always passes through Cooldown.
	switch m.state {
	case StateBrownout:
		if m.windowStrictlyBelow(threshold.SeverityBrownout) {
			res.append(m.transition(StateNormal, sev, now))
		}
	case StateEmergency:
		if m.windowStrictlyBelow(threshold.SeverityEmergency) {
			res.append(m.transition(StateCooldown, sev, now))
		}
	case StateCooldown:
		if m.windowStrictlyBelow(threshold.SeverityBrownout) {
			res.append(m.transition(StateNormal, sev, now))
		}
	}

	return res
}

func (r *Result) append(t Transition, cmds []enforce.Command) {
	r.Transitions = append(r.Transitions, t)
	r.Commands = append(r.Commands, cmds...)
}

// #endregion apply

// #region transition

// transition moves the machine one level and returns the transition plus the
// commands from the fixed action table.
func (m *Machine) transition(to State, sev threshold.Severity, now time.Time) (Transition, []enforce.Command) {
	from := m.state
	m.state = to

	t := Transition{
		From:     from,
		To:       to,
		Severity: sev,
		Reason:   fmt.Sprintf("%d consecutive samples confirmed %s", m.config.HysteresisN, to),
		At:       now,
	}

	var cmds []enforce.Command
	switch to {
	case StateBrownout:
		for _, target := range m.config.Targets {
			if !target.Critical {
				cmds = append(cmds, enforce.Command{
					Kind:   enforce.ActionDegrade,
					Target: target.Name,
					Reason: "brownout entry",
				})
			}
		}
	case StateEmergency:
		m.emergencyStreak = 0
		cmds = m.nextKill("emergency entry")
	case StateCooldown:
		m.cooldownUntil = now.Add(m.config.CooldownDwell)
		// Keep load shed while the dwell runs.
		for _, target := range m.config.Targets {
			if !target.Critical {
				cmds = append(cmds, enforce.Command{
					Kind:   enforce.ActionThrottle,
					Target: target.Name,
					Reason: "cooldown entry",
				})
			}
		}
	case StateNormal:
		m.cooldownUntil = time.Time{}
		m.killCursor = 0
	}

	return t, cmds
}

// nextKill returns a kill command for the next candidate, cycling through the
// inventory when every candidate has been tried once this episode.
func (m *Machine) nextKill(reason string) []enforce.Command {
	if len(m.killOrder) == 0 {
		return nil
	}
	target := m.killOrder[m.killCursor%len(m.killOrder)]
	m.killCursor++
	return []enforce.Command{{
		Kind:   enforce.ActionKill,
		Target: target,
		Reason: reason,
	}}
}

// #endregion transition

// #region window

// push appends sev, keeping only the last N severities.
func (m *Machine) push(sev threshold.Severity) {
	m.window = append(m.window, sev)
	if n := m.config.HysteresisN; len(m.window) > n {
		m.window = m.window[len(m.window)-n:]
	}
}

func (m *Machine) windowAtOrAbove(sev threshold.Severity) bool {
	if len(m.window) < m.config.HysteresisN {
		return false
	}
	for _, s := range m.window {
		if s < sev {
			return false
		}
	}
	return true
}

func (m *Machine) windowStrictlyBelow(sev threshold.Severity) bool {
	if len(m.window) < m.config.HysteresisN {
		return false
	}
	for _, s := range m.window {
		if s >= sev {
			return false
		}
	}
	return true
}

// nextUp returns the next state up the escalation ladder. Cooldown can
// re-escalate into Brownout once its dwell has elapsed.
func nextUp(s State) (State, bool) {
	switch s {
	case StateNormal, StateCooldown:
		return StateBrownout, true
	case StateBrownout:
		return StateEmergency, true
	default:
		return 0, false
	}
}

// severityFor maps a protection state to the severity that confirms it.
func severityFor(s State) threshold.Severity {
	switch s {
	case StateBrownout:
		return threshold.SeverityBrownout
	case StateEmergency:
		return threshold.SeverityEmergency
	default:
		return threshold.SeverityOK
	}
}

// #endregion window
