package replay

import (
	"reflect"
	"testing"

	"github.com/danielpatrickdp/guardian/internal/supervisor"
	"github.com/danielpatrickdp/guardian/internal/threshold"
)

func emergencyFixture() *Fixture {
	return &Fixture{
		Description: "three emergencies escalate through brownout",
		Config: FixtureConfig{
			HysteresisN: 3,
			Targets: []FixtureTarget{
				{Name: "gateway", Critical: true},
				{Name: "indexer", KillPriority: 90},
			},
		},
		Steps: []FixtureStep{
			{Severity: "emergency"},
			{Severity: "emergency"},
			{Severity: "emergency"},
		},
		ExpectedTransitions: []ExpectedTransition{
			{Step: 2, From: "normal", To: "brownout"},
			{Step: 2, From: "brownout", To: "emergency"},
		},
		ExpectedCommands: []ExpectedCommand{
			{Step: 2, Kind: "kill", Target: "indexer"},
		},
	}
}

func TestReplaySustainedEmergency(t *testing.T) {
	f := emergencyFixture()

	results, summary, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	// Nothing moves before the hysteresis window fills.
	for i := 0; i < 2; i++ {
		if len(results[i].Transitions) != 0 {
			t.Fatalf("step %d: unexpected transitions %+v", i, results[i].Transitions)
		}
	}

	last := results[2]
	if len(last.Transitions) != 2 {
		t.Fatalf("step 2 transitions = %+v", last.Transitions)
	}
	if last.Transitions[0].To != supervisor.StateBrownout ||
		last.Transitions[1].To != supervisor.StateEmergency {
		t.Fatalf("escalation order wrong: %+v", last.Transitions)
	}

	if summary.Kills != 1 || summary.FinalState != supervisor.StateEmergency {
		t.Fatalf("summary = %+v", summary)
	}
	for _, cmd := range last.Commands {
		if cmd.Target == "gateway" {
			t.Fatalf("critical target enforced: %+v", last.Commands)
		}
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	f := emergencyFixture()

	first, firstSummary, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	second, secondSummary, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatal("same fixture produced different results")
	}
	if firstSummary != secondSummary {
		t.Fatalf("summaries differ: %+v vs %+v", firstSummary, secondSummary)
	}
}

func TestReplayDerivesSeverityFromReadings(t *testing.T) {
	f := &Fixture{
		Config: FixtureConfig{HysteresisN: 1},
		Steps: []FixtureStep{
			{Readings: map[string]float64{"cpu": 97, "memory": 50, "temperature": 40, "battery": 80}},
		},
	}

	results, _, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Severity != threshold.SeverityEmergency {
		t.Fatalf("severity = %s, want emergency", results[0].Severity)
	}
}

func TestReplayRejectsUnknownSeverity(t *testing.T) {
	f := &Fixture{Steps: []FixtureStep{{Severity: "catastrophic"}}}
	if _, _, err := Replay(f); err == nil {
		t.Fatal("expected error for unknown severity")
	}
}

func TestVerifyMatchesExpectations(t *testing.T) {
	f := emergencyFixture()
	results, _, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if mismatches := Verify(f, results); len(mismatches) != 0 {
		t.Fatalf("unexpected mismatches: %v", mismatches)
	}
}

func TestVerifyReportsMissingTransition(t *testing.T) {
	f := emergencyFixture()
	f.ExpectedTransitions = append(f.ExpectedTransitions,
		ExpectedTransition{Step: 0, From: "normal", To: "emergency"})

	results, _, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	mismatches := Verify(f, results)
	if len(mismatches) != 1 {
		t.Fatalf("mismatches = %v", mismatches)
	}
}
