package threshold

import (
	"github.com/danielpatrickdp/guardian/internal/health"
)

// #region evaluate

// Evaluate maps a sample to a severity: per signal the highest bound exceeded,
// across signals the worst one wins. No smoothing happens here; hysteresis
// belongs to the state machine.
func Evaluate(sample health.Sample, config Config) Severity {
	worst := SeverityOK

	for sig, reading := range sample.Readings {
		sev := signalSeverity(sig, reading, config)
		if sev > worst {
			worst = sev
		}
	}

	// A failing sensor must never be interpreted as healthy.
	if sample.SensorFailure && worst < SeverityBrownout {
		worst = SeverityBrownout
	}

	return worst
}

// #endregion evaluate

// #region signal-severity

// signalSeverity compares one reading against its limits. Battery is
// inverted: the hazard is a reading below the bound.
func signalSeverity(sig health.Signal, reading float64, config Config) Severity {
	switch sig {
	case health.SignalCPU:
		return above(reading, config.CPU)
	case health.SignalMemory:
		return above(reading, config.Memory)
	case health.SignalTemperature:
		return above(reading, config.Temperature)
	case health.SignalBattery:
		return below(reading, config.Battery)
	default:
		return SeverityOK
	}
}

func above(reading float64, lim Limits) Severity {
	switch {
	case reading >= lim.Critical:
		return SeverityEmergency
	case reading >= lim.Warn:
		return SeverityWarn
	default:
		return SeverityOK
	}
}

func below(reading float64, lim Limits) Severity {
	switch {
	case reading <= lim.Critical:
		return SeverityEmergency
	case reading <= lim.Warn:
		return SeverityWarn
	default:
		return SeverityOK
	}
}

// #endregion signal-severity
