// Package config loads the single YAML file every component is configured
// from. Values are read once at startup and passed explicitly; nothing here
// is mutable after Load returns.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/guardian/internal/enforce"
	"github.com/danielpatrickdp/guardian/internal/health"
	"github.com/danielpatrickdp/guardian/internal/ratelimit"
	"github.com/danielpatrickdp/guardian/internal/retry"
	"github.com/danielpatrickdp/guardian/internal/rollout"
	"github.com/danielpatrickdp/guardian/internal/slo"
	"github.com/danielpatrickdp/guardian/internal/supervisor"
	"github.com/danielpatrickdp/guardian/internal/threshold"
)

// #region config

// Config is the full process configuration.
type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	DBPath       string `yaml:"db_path"`
	TelemetryURL string `yaml:"telemetry_url"`
	ControlURL   string `yaml:"control_url"`
	ManifestPath string `yaml:"manifest_path"`

	Thresholds threshold.Config     `yaml:"thresholds"`
	Sampler    health.SamplerConfig `yaml:"sampler"`
	Supervisor supervisor.Config    `yaml:"supervisor"`
	KillLimit  ratelimit.Config     `yaml:"kill_limit"`
	Enforce    enforce.Config       `yaml:"enforce"`
	SLO        slo.Thresholds       `yaml:"slo"`
	Rollout    rollout.Config       `yaml:"rollout"`
	Retry      retry.Policy         `yaml:"retry"`
}

// Default returns the documented defaults for every component.
func Default() Config {
	return Config{
		ListenAddr:   ":8090",
		DBPath:       "guardian.db",
		ControlURL:   "http://localhost:8070",
		ManifestPath: "manifest.json",
		Thresholds:   threshold.DefaultConfig(),
		Sampler:      health.DefaultSamplerConfig(),
		Supervisor:   supervisor.DefaultConfig(),
		KillLimit:    ratelimit.DefaultConfig(),
		Enforce:      enforce.DefaultConfig(),
		SLO:          slo.DefaultThresholds(),
		Rollout:      rollout.DefaultConfig(),
		Retry:        retry.DefaultPolicy(),
	}
}

// #endregion config

// #region load

// Load reads path over the defaults and validates the result. Any malformed
// file or unsafe bound is an error; the caller is expected to treat that as
// fatal rather than run with partial protection.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects bounds that would disable or invert a protection.
func (c Config) Validate() error {
	if err := validateLimits("cpu", c.Thresholds.CPU); err != nil {
		return err
	}
	if err := validateLimits("memory", c.Thresholds.Memory); err != nil {
		return err
	}
	if err := validateLimits("temperature", c.Thresholds.Temperature); err != nil {
		return err
	}
	// Battery bounds are inverted: readings below the bound breach.
	if c.Thresholds.Battery.Warn <= c.Thresholds.Battery.Critical {
		return fmt.Errorf("battery thresholds: warn %.2f must sit above critical %.2f",
			c.Thresholds.Battery.Warn, c.Thresholds.Battery.Critical)
	}

	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler interval must be positive")
	}
	if c.Sampler.SensorFailureAfter < 1 {
		return fmt.Errorf("sensor failure streak must be at least 1")
	}

	if c.Supervisor.HysteresisN < 1 {
		return fmt.Errorf("hysteresis window must be at least 1 sample")
	}
	if c.Supervisor.CooldownDwell <= 0 {
		return fmt.Errorf("cooldown dwell must be positive")
	}

	if c.KillLimit.Span <= 0 || c.KillLimit.Cap < 1 {
		return fmt.Errorf("kill rate limit needs a positive span and a cap of at least 1")
	}

	if c.SLO.WinRateMin <= 0 || c.SLO.WinRateMin > 1 {
		return fmt.Errorf("win rate minimum %.3f outside (0, 1]", c.SLO.WinRateMin)
	}
	if c.SLO.HallucinationMax < 0 || c.SLO.PolicyViolationsMax < 0 {
		return fmt.Errorf("slo maxima must be non-negative")
	}

	if c.Rollout.ObservationWindow <= 0 || c.Rollout.EvalInterval <= 0 {
		return fmt.Errorf("rollout windows must be positive")
	}
	if c.Rollout.UpliftMinPP < 0 {
		return fmt.Errorf("uplift requirement must be non-negative")
	}
	if c.Rollout.BaselineWinRate < 0 || c.Rollout.BaselineWinRate >= 1 {
		return fmt.Errorf("baseline win rate %.3f outside [0, 1)", c.Rollout.BaselineWinRate)
	}

	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry budget must allow at least one attempt")
	}
	return nil
}

func validateLimits(name string, l threshold.Limits) error {
	if l.Warn <= 0 || l.Critical <= 0 {
		return fmt.Errorf("%s thresholds must be positive", name)
	}
	if l.Warn >= l.Critical {
		return fmt.Errorf("%s thresholds: warn %.2f must sit below critical %.2f",
			name, l.Warn, l.Critical)
	}
	return nil
}

// #endregion load
