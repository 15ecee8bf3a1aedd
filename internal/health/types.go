package health

import (
	"context"
	"time"
)

// #region signal

// Signal identifies one raw resource signal.
type Signal string

const (
	SignalCPU         Signal = "cpu"
	SignalMemory      Signal = "memory"
	SignalTemperature Signal = "temperature"
	SignalBattery     Signal = "battery"
)

// AllSignals lists every known signal in canonical order.
func AllSignals() []Signal {
	return []Signal{SignalCPU, SignalMemory, SignalTemperature, SignalBattery}
}

// #endregion signal

// #region reader-interface

// SignalReader abstracts the raw reading source so the sampler can be tested
// without touching procfs/sysfs.
type SignalReader interface {
	Read(ctx context.Context, sig Signal) (float64, error)
}

// #endregion reader-interface

// #region sample

// Sample is one immutable snapshot of all configured signals. Consumers never
// mutate a Sample; evaluation and hysteresis happen downstream.
type Sample struct {
	At       time.Time
	Readings map[Signal]float64

	// Degraded is set when at least one signal read failed this tick and the
	// last known-good value was substituted.
	Degraded bool

	// SensorFailure is set after a signal has failed for SensorFailureAfter
	// consecutive ticks. A silently failing sensor must never read as healthy,
	// so this forces at least a brownout severity downstream.
	SensorFailure bool

	// FailedSignals names the signals that could not be read this tick.
	FailedSignals []Signal
}

// #endregion sample

// #region config

// SamplerConfig holds tuning knobs for the sampling loop.
type SamplerConfig struct {
	Interval           time.Duration `yaml:"interval"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	SensorFailureAfter int           `yaml:"sensor_failure_after"`
	Signals            []Signal      `yaml:"signals"`
}

// DefaultSamplerConfig returns sensible defaults.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Interval:           5 * time.Second,
		ReadTimeout:        2 * time.Second,
		SensorFailureAfter: 3,
		Signals:            AllSignals(),
	}
}

// #endregion config
