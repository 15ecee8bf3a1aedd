package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/guardian/internal/supervisor"
	"github.com/danielpatrickdp/guardian/internal/threshold"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a recorded
// (or constructed) sample sequence plus the expected machine behavior.
type Fixture struct {
	Description         string               `json:"description"`
	Config              FixtureConfig        `json:"config"`
	Steps               []FixtureStep        `json:"steps"`
	ExpectedTransitions []ExpectedTransition `json:"expected_transitions"`
	ExpectedCommands    []ExpectedCommand    `json:"expected_commands"`
}

// FixtureLimits mirrors threshold.Limits with JSON tags.
type FixtureLimits struct {
	Warn     float64 `json:"warn"`
	Critical float64 `json:"critical"`
}

// FixtureThresholds mirrors threshold.Config with JSON tags. A zero-valued
// section falls back to the documented default for that signal.
type FixtureThresholds struct {
	CPU         FixtureLimits `json:"cpu"`
	Memory      FixtureLimits `json:"memory"`
	Temperature FixtureLimits `json:"temperature"`
	Battery     FixtureLimits `json:"battery"`
}

// FixtureTarget mirrors supervisor.Target with JSON tags.
type FixtureTarget struct {
	Name         string `json:"name"`
	Critical     bool   `json:"critical"`
	KillPriority int    `json:"kill_priority"`
}

// FixtureConfig bundles the machine and threshold knobs for one run.
// Durations are seconds, since fixtures are hand-edited JSON.
type FixtureConfig struct {
	HysteresisN          int               `json:"hysteresis_n"`
	CooldownDwellSeconds int               `json:"cooldown_dwell_seconds"`
	SampleStepSeconds    int               `json:"sample_step_seconds"`
	Thresholds           FixtureThresholds `json:"thresholds"`
	Targets              []FixtureTarget   `json:"targets"`
}

// FixtureStep is one sample in the sequence. Either a pre-derived severity
// name, or raw readings to run through the threshold evaluator; readings win
// when both are present. AtOffsetSeconds overrides the step clock so dwell
// behavior is replayable.
type FixtureStep struct {
	Severity        string             `json:"severity,omitempty"`
	Readings        map[string]float64 `json:"readings,omitempty"`
	SensorFailure   bool               `json:"sensor_failure,omitempty"`
	AtOffsetSeconds int                `json:"at_offset_seconds,omitempty"`
}

// ExpectedTransition pins one state change to the step that caused it.
type ExpectedTransition struct {
	Step int    `json:"step"`
	From string `json:"from"`
	To   string `json:"to"`
}

// ExpectedCommand pins one enforcement command to the step that issued it.
type ExpectedCommand struct {
	Step   int    `json:"step"`
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("fixture %s: no steps", path)
	}
	return &f, nil
}

// ToThresholdConfig converts fixture thresholds to the domain config,
// defaulting any signal left zero.
func (ft *FixtureThresholds) ToThresholdConfig() threshold.Config {
	cfg := threshold.DefaultConfig()
	apply := func(dst *threshold.Limits, src FixtureLimits) {
		if src.Warn != 0 || src.Critical != 0 {
			dst.Warn = src.Warn
			dst.Critical = src.Critical
		}
	}
	apply(&cfg.CPU, ft.CPU)
	apply(&cfg.Memory, ft.Memory)
	apply(&cfg.Temperature, ft.Temperature)
	apply(&cfg.Battery, ft.Battery)
	return cfg
}

// ToSupervisorConfig converts the fixture knobs to the machine config.
func (fc *FixtureConfig) ToSupervisorConfig() supervisor.Config {
	cfg := supervisor.DefaultConfig()
	if fc.HysteresisN > 0 {
		cfg.HysteresisN = fc.HysteresisN
	}
	if fc.CooldownDwellSeconds > 0 {
		cfg.CooldownDwell = time.Duration(fc.CooldownDwellSeconds) * time.Second
	}
	for _, t := range fc.Targets {
		cfg.Targets = append(cfg.Targets, supervisor.Target{
			Name:         t.Name,
			Critical:     t.Critical,
			KillPriority: t.KillPriority,
		})
	}
	return cfg
}

// stepInterval is the clock advance between steps without explicit offsets.
func (fc *FixtureConfig) stepInterval() time.Duration {
	if fc.SampleStepSeconds > 0 {
		return time.Duration(fc.SampleStepSeconds) * time.Second
	}
	return 5 * time.Second
}

// #endregion fixture-loader
