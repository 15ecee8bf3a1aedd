package threshold

// #region severity

// Severity is the ordered health severity scale. Higher is worse.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarn
	SeverityBrownout
	SeverityEmergency
)

// String returns the canonical lowercase name used in logs and audit rows.
func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarn:
		return "warn"
	case SeverityBrownout:
		return "brownout"
	case SeverityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// #endregion severity

// #region limits

// Limits holds the warn and critical bounds for one signal.
type Limits struct {
	Warn     float64 `yaml:"warn"`
	Critical float64 `yaml:"critical"`
}

// #endregion limits

// #region config

// Config is the immutable per-signal threshold table, loaded once at process
// start. Changing it requires a restart; nothing mutates it at runtime.
type Config struct {
	CPU         Limits `yaml:"cpu"`
	Memory      Limits `yaml:"memory"`
	Temperature Limits `yaml:"temperature"`
	Battery     Limits `yaml:"battery"` // inverted: readings below the bound breach
}

// DefaultConfig returns conservative defaults: CPU/memory in percent,
// temperature in celsius, battery charge in percent.
func DefaultConfig() Config {
	return Config{
		CPU:         Limits{Warn: 80, Critical: 95},
		Memory:      Limits{Warn: 85, Critical: 95},
		Temperature: Limits{Warn: 75, Critical: 90},
		Battery:     Limits{Warn: 20, Critical: 5},
	}
}

// #endregion config
