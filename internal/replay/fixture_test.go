package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadFixtureValid(t *testing.T) {
	path := writeFixture(t, `{
		"description": "sustained emergency",
		"config": {
			"hysteresis_n": 3,
			"cooldown_dwell_seconds": 300,
			"targets": [
				{"name": "gateway", "critical": true},
				{"name": "indexer", "kill_priority": 90}
			]
		},
		"steps": [
			{"severity": "emergency"},
			{"readings": {"cpu": 97}, "sensor_failure": false}
		],
		"expected_transitions": [
			{"step": 2, "from": "normal", "to": "brownout"}
		]
	}`)

	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if f.Description != "sustained emergency" {
		t.Fatalf("description = %q", f.Description)
	}
	if len(f.Steps) != 2 || f.Steps[0].Severity != "emergency" {
		t.Fatalf("steps = %+v", f.Steps)
	}
	if f.Steps[1].Readings["cpu"] != 97 {
		t.Fatalf("readings = %+v", f.Steps[1].Readings)
	}
	if len(f.ExpectedTransitions) != 1 || f.ExpectedTransitions[0].To != "brownout" {
		t.Fatalf("expected transitions = %+v", f.ExpectedTransitions)
	}
}

func TestLoadFixtureRejectsEmptySteps(t *testing.T) {
	path := writeFixture(t, `{"description": "empty", "steps": []}`)
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected error for fixture without steps")
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

func TestThresholdConversionDefaultsZeroSections(t *testing.T) {
	ft := FixtureThresholds{CPU: FixtureLimits{Warn: 70, Critical: 90}}
	cfg := ft.ToThresholdConfig()

	if cfg.CPU.Warn != 70 || cfg.CPU.Critical != 90 {
		t.Fatalf("cpu limits not applied: %+v", cfg.CPU)
	}
	if cfg.Memory.Warn != 85 {
		t.Fatalf("memory default lost: %+v", cfg.Memory)
	}
	if cfg.Battery.Warn != 20 || cfg.Battery.Critical != 5 {
		t.Fatalf("battery default lost: %+v", cfg.Battery)
	}
}

func TestSupervisorConversion(t *testing.T) {
	fc := FixtureConfig{
		HysteresisN:          2,
		CooldownDwellSeconds: 60,
		Targets:              []FixtureTarget{{Name: "indexer", KillPriority: 90}},
	}
	cfg := fc.ToSupervisorConfig()

	if cfg.HysteresisN != 2 {
		t.Fatalf("hysteresis = %d", cfg.HysteresisN)
	}
	if cfg.CooldownDwell != time.Minute {
		t.Fatalf("dwell = %s", cfg.CooldownDwell)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Name != "indexer" {
		t.Fatalf("targets = %+v", cfg.Targets)
	}
}

func TestSupervisorConversionKeepsDefaults(t *testing.T) {
	cfg := (&FixtureConfig{}).ToSupervisorConfig()
	if cfg.HysteresisN != 3 || cfg.CooldownDwell != 5*time.Minute {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}
