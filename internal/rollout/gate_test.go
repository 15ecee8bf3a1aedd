package rollout

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/guardian/internal/audit"
	"github.com/danielpatrickdp/guardian/internal/manifest"
	"github.com/danielpatrickdp/guardian/internal/slo"
	"github.com/danielpatrickdp/guardian/internal/supervisor"
	"github.com/danielpatrickdp/guardian/internal/telemetry"
)

type fakeReader struct {
	snap telemetry.Snapshot
	err  error
}

func (f *fakeReader) ReadWindow(ctx context.Context) (telemetry.Snapshot, error) {
	return f.snap, f.err
}

type harness struct {
	gate     *Gate
	reader   *fakeReader
	store    *audit.Store
	guardian *supervisor.State
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := audit.NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	state := supervisor.StateNormal
	reader := &fakeReader{}

	config := DefaultConfig()
	config.BaselineWinRate = 0.64 // candidate at 0.70 gives +6pp uplift

	gate, err := NewGate(config, slo.DefaultThresholds(), reader, store,
		func() supervisor.State { return state },
		manifest.Manifest{Hash: "sha256:test-artifact"})
	require.NoError(t, err)

	return &harness{gate: gate, reader: reader, store: store, guardian: &state}
}

func cleanSnapshot(windowStart time.Time) telemetry.Snapshot {
	return telemetry.Snapshot{
		WinRate:           0.70,
		HallucinationRate: 0.003,
		P95LatencyDelta:   0.05,
		PolicyViolations:  0,
		WindowStart:       windowStart,
		WindowEnd:         windowStart.Add(24 * time.Hour),
	}
}

func TestEnableCanaryStartsAtFivePercent(t *testing.T) {
	h := newHarness(t)

	d := h.gate.EnableCanary("manual start")
	assert.Equal(t, DecisionEnabled, d.Kind)
	assert.Equal(t, StageCanary5, h.gate.Stage())

	// Enabling again is ignored.
	d = h.gate.EnableCanary("again")
	assert.Equal(t, DecisionHeld, d.Kind)
	assert.Equal(t, StageCanary5, h.gate.Stage())
}

func TestCleanWindowWithUpliftPromotes(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	t0 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	h.reader.snap = cleanSnapshot(t0)

	// First clean evaluation opens the streak; no promotion yet.
	d := h.gate.Evaluate(context.Background(), t0)
	require.Equal(t, DecisionHeld, d.Kind)
	assert.Equal(t, StageCanary5, h.gate.Stage())

	// A full observation window later, still clean, uplift +6pp, guardian normal.
	h.reader.snap = cleanSnapshot(t0.Add(24 * time.Hour))
	d = h.gate.Evaluate(context.Background(), t0.Add(24*time.Hour))
	require.Equal(t, DecisionPromoted, d.Kind)
	assert.Equal(t, StageCanary20, h.gate.Stage())

	entry, err := h.store.LastPromotion()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "canary_5", entry.FromStage)
	assert.Equal(t, "canary_20", entry.ToStage)
	assert.Equal(t, "sha256:test-artifact", entry.ManifestHash)
	assert.Contains(t, entry.SnapshotJSON, `"win_rate":0.7`)
}

func TestSingleFailingSnapshotRollsBackImmediately(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	t0 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	snap := cleanSnapshot(t0)
	snap.HallucinationRate = 0.01
	h.reader.snap = snap

	d := h.gate.Evaluate(context.Background(), t0)
	require.Equal(t, DecisionRolledBack, d.Kind)
	assert.Equal(t, StageRolledBack, h.gate.Stage())
	assert.Contains(t, d.Rationale, "hallucination_rate")

	entry, err := h.store.LastPromotion()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "rolled_back", entry.ToStage)
	assert.Contains(t, entry.Rationale, "hallucination_rate")
}

func TestDegradedGuardianRollsBack(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	t0 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	h.reader.snap = cleanSnapshot(t0)
	*h.guardian = supervisor.StateBrownout

	d := h.gate.Evaluate(context.Background(), t0)
	require.Equal(t, DecisionRolledBack, d.Kind)
	assert.Contains(t, d.Rationale, "brownout")
}

func TestMissingTelemetryIsInconclusive(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")
	h.reader.err = errors.New("window endpoint unreachable")

	d := h.gate.Evaluate(context.Background(), time.Now())
	assert.Equal(t, DecisionInconclusive, d.Kind)
	assert.Equal(t, StageCanary5, h.gate.Stage())
}

func TestSameWindowNotPromotedTwice(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	t0 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	h.reader.snap = cleanSnapshot(t0)
	h.gate.Evaluate(context.Background(), t0)

	// A second clean look at the same window is deduped.
	d := h.gate.Evaluate(context.Background(), t0.Add(time.Minute))
	assert.Equal(t, DecisionHeld, d.Kind)
	assert.Contains(t, d.Rationale, "already evaluated")
	assert.Equal(t, StageCanary5, h.gate.Stage())
}

func TestFailingSnapshotInSeenWindowStillRollsBack(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	t0 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	h.reader.snap = cleanSnapshot(t0)
	h.gate.Evaluate(context.Background(), t0)

	// The same window degrades halfway through: rollback fires on the next
	// tick, the earlier clean look does not shield it.
	snap := cleanSnapshot(t0)
	snap.HallucinationRate = 0.02
	h.reader.snap = snap
	d := h.gate.Evaluate(context.Background(), t0.Add(12*time.Hour))
	require.Equal(t, DecisionRolledBack, d.Kind)
	assert.Contains(t, d.Rationale, "hallucination_rate")
	assert.Equal(t, StageRolledBack, h.gate.Stage())
}

func TestGuardianDegradesInSeenWindowStillRollsBack(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	t0 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	h.reader.snap = cleanSnapshot(t0)
	h.gate.Evaluate(context.Background(), t0)

	*h.guardian = supervisor.StateBrownout
	d := h.gate.Evaluate(context.Background(), t0.Add(time.Minute))
	require.Equal(t, DecisionRolledBack, d.Kind)
	assert.Contains(t, d.Rationale, "brownout")
	assert.Equal(t, StageRolledBack, h.gate.Stage())
}

func TestInsufficientUpliftBlocksPromotionOnly(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	t0 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	snap := cleanSnapshot(t0)
	snap.WinRate = 0.66 // passes SLO floor, only +2pp over baseline
	h.reader.snap = snap
	h.gate.Evaluate(context.Background(), t0)

	snap.WindowStart = t0.Add(24 * time.Hour)
	h.reader.snap = snap
	d := h.gate.Evaluate(context.Background(), t0.Add(24*time.Hour))
	require.Equal(t, DecisionHeld, d.Kind)
	assert.Contains(t, d.Rationale, "uplift")
	assert.Equal(t, StageCanary5, h.gate.Stage())
}

func TestCooldownGuardianBlocksPromotionWithoutRollback(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	t0 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	h.reader.snap = cleanSnapshot(t0)
	h.gate.Evaluate(context.Background(), t0)

	*h.guardian = supervisor.StateCooldown
	h.reader.snap = cleanSnapshot(t0.Add(24 * time.Hour))
	d := h.gate.Evaluate(context.Background(), t0.Add(24*time.Hour))
	require.Equal(t, DecisionHeld, d.Kind)
	assert.Equal(t, StageCanary5, h.gate.Stage())
}

func TestRollbackIsIdempotentButAlwaysAudited(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	h.gate.Rollback("first trigger")
	require.Equal(t, StageRolledBack, h.gate.Stage())

	before, err := h.store.RecentPromotions(10)
	require.NoError(t, err)

	d := h.gate.Rollback("second trigger")
	assert.Equal(t, DecisionRolledBack, d.Kind)
	assert.Equal(t, StageRolledBack, h.gate.Stage())

	after, err := h.store.RecentPromotions(10)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1, "repeat rollback still writes one audit record")
}

func TestOperatorPromoteAdvancesOneStage(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")

	d := h.gate.Promote("verified out of band")
	assert.Equal(t, DecisionPromoted, d.Kind)
	assert.Equal(t, StageCanary20, h.gate.Stage())

	h.gate.Promote("again")
	assert.Equal(t, StageFull, h.gate.Stage())

	// Full is not promotable.
	d = h.gate.Promote("past the end")
	assert.Equal(t, DecisionHeld, d.Kind)
	assert.Equal(t, StageFull, h.gate.Stage())
}

func TestDisableReturnsToOff(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")
	h.gate.Rollback("bad candidate")

	d := h.gate.Disable("retire candidate")
	assert.Equal(t, DecisionDisabled, d.Kind)
	assert.Equal(t, StageOff, h.gate.Stage())
}

func TestStageRecoveredFromPromotionLog(t *testing.T) {
	h := newHarness(t)
	h.gate.EnableCanary("start")
	h.gate.Promote("advance")
	require.Equal(t, StageCanary20, h.gate.Stage())

	recovered, err := NewGate(DefaultConfig(), slo.DefaultThresholds(), h.reader, h.store,
		func() supervisor.State { return supervisor.StateNormal },
		manifest.Manifest{Hash: "sha256:test-artifact"})
	require.NoError(t, err)
	assert.Equal(t, StageCanary20, recovered.Stage())
}
