package rollout

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/guardian/internal/audit"
	"github.com/danielpatrickdp/guardian/internal/manifest"
	"github.com/danielpatrickdp/guardian/internal/metrics"
	"github.com/danielpatrickdp/guardian/internal/slo"
	"github.com/danielpatrickdp/guardian/internal/supervisor"
	"github.com/danielpatrickdp/guardian/internal/telemetry"
)

// #region gate

// Gate owns the canary stage. It advances one stage at a time after a fully
// clean observation window and rolls back immediately on a single failing
// snapshot or a degraded guardian. Every committed decision lands in the
// promotion log before the in-memory stage moves.
type Gate struct {
	config     Config
	thresholds slo.Thresholds
	reader     telemetry.WindowReader
	store      *audit.Store
	guardian   func() supervisor.State
	artifact   manifest.Manifest

	mu         sync.Mutex
	stage      Stage
	cleanSince time.Time // zero while no unbroken pass streak
	lastBucket int64     // dedupe key of the last evaluated window
	last       Decision
}

// NewGate builds a gate positioned at the last persisted stage, or StageOff
// when the promotion log is empty.
func NewGate(config Config, thresholds slo.Thresholds, reader telemetry.WindowReader,
	store *audit.Store, guardian func() supervisor.State, artifact manifest.Manifest) (*Gate, error) {

	g := &Gate{
		config:     config,
		thresholds: thresholds,
		reader:     reader,
		store:      store,
		guardian:   guardian,
		artifact:   artifact,
		lastBucket: -1,
	}

	entry, err := store.LastPromotion()
	if err != nil {
		return nil, fmt.Errorf("recover stage: %w", err)
	}
	if entry != nil {
		stage, err := ParseStage(entry.ToStage)
		if err != nil {
			return nil, fmt.Errorf("recover stage: %w", err)
		}
		g.stage = stage
		log.Printf("[GATE] recovered stage %s from promotion log", stage)
	}
	metrics.RolloutStage.Set(float64(g.stage))
	return g, nil
}

// Stage returns the current canary stage.
func (g *Gate) Stage() Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stage
}

// LastDecision returns the most recent tick or control outcome.
func (g *Gate) LastDecision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Run evaluates the gate on its interval until the context is cancelled.
func (g *Gate) Run(ctx context.Context) {
	ticker := time.NewTicker(g.config.EvalInterval)
	defer ticker.Stop()

	log.Printf("[GATE] evaluating every %s, observation window %s",
		g.config.EvalInterval, g.config.ObservationWindow)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[GATE] stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			g.Evaluate(ctx, time.Now())
		}
	}
}

// #endregion gate

// #region evaluate

// Evaluate runs one gate tick against the current telemetry window.
func (g *Gate) Evaluate(ctx context.Context, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stage != StageCanary5 && g.stage != StageCanary20 {
		return g.hold(now, DecisionHeld, "no canary stage under observation")
	}

	snap, err := g.reader.ReadWindow(ctx)
	if err != nil {
		// Missing telemetry is inconclusive: no advance, no rollback.
		log.Printf("[GATE] telemetry unreadable, holding: %v", err)
		return g.hold(now, DecisionInconclusive, fmt.Sprintf("telemetry unreadable: %v", err))
	}

	bucket := g.bucketOf(snap.WindowStart)
	windowID := fmt.Sprintf("%d", bucket)

	// Rollback triggers fire on every tick, even for a window that already
	// held or failed a promotion check. Only promotion waits on anything.
	if st := g.guardian(); st == supervisor.StateBrownout || st == supervisor.StateEmergency {
		return g.rollbackLocked(now, &snap, windowID,
			fmt.Sprintf("guardian in %s during observation window", st))
	}

	res := slo.Evaluate(snap, g.thresholds)
	if !res.Pass {
		return g.rollbackLocked(now, &snap, windowID,
			"slo violation: "+describeViolations(res.Violations))
	}

	// The first completed evaluation of a window is the one that can commit
	// an advance; later looks at the same window hold.
	if bucket == g.lastBucket {
		return g.hold(now, DecisionHeld, "window already evaluated")
	}
	g.lastBucket = bucket

	if g.cleanSince.IsZero() {
		g.cleanSince = now
	}
	clean := now.Sub(g.cleanSince)
	if clean < g.config.ObservationWindow {
		return g.hold(now, DecisionHeld,
			fmt.Sprintf("observation window %s of %s clean", clean, g.config.ObservationWindow))
	}

	uplift := snap.WinRate - g.config.BaselineWinRate
	if uplift < g.config.UpliftMinPP {
		return g.hold(now, DecisionHeld,
			fmt.Sprintf("win-rate uplift %.3f below required %.3f", uplift, g.config.UpliftMinPP))
	}
	if st := g.guardian(); st != supervisor.StateNormal {
		return g.hold(now, DecisionHeld,
			fmt.Sprintf("guardian in %s, promotion requires normal", st))
	}

	return g.commit(now, DecisionPromoted, g.stage+1, &snap, windowID,
		fmt.Sprintf("clean window %s, uplift %.3f", g.config.ObservationWindow, uplift))
}

// bucketOf identifies an observation window by its start bucket so the same
// window is never evaluated twice.
func (g *Gate) bucketOf(start time.Time) int64 {
	span := int64(g.config.ObservationWindow / time.Second)
	if span <= 0 {
		span = 1
	}
	return start.Unix() / span
}

func describeViolations(violations []slo.Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s=%.4f bound=%.4f", v.Dimension, v.Observed, v.Bound))
	}
	return strings.Join(parts, ", ")
}

// #endregion evaluate

// #region controls

// EnableCanary starts a canary at the 5% share. A no-op unless the gate is
// idle at StageOff.
func (g *Gate) EnableCanary(rationale string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage != StageOff {
		return g.hold(time.Now(), DecisionHeld,
			fmt.Sprintf("enable ignored at stage %s", g.stage))
	}
	return g.commit(time.Now(), DecisionEnabled, StageCanary5, nil, "", rationale)
}

// Promote advances one stage on operator authority, bypassing the observation
// window. Refused at terminal or idle stages.
func (g *Gate) Promote(rationale string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage != StageCanary5 && g.stage != StageCanary20 {
		return g.hold(time.Now(), DecisionHeld,
			fmt.Sprintf("promote ignored at stage %s", g.stage))
	}
	return g.commit(time.Now(), DecisionPromoted, g.stage+1, nil, "", "operator promote: "+rationale)
}

// Rollback moves to the terminal stage. Idempotent: rolling back an already
// rolled-back gate changes nothing but still writes one audit record.
func (g *Gate) Rollback(rationale string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rollbackLocked(time.Now(), nil, "", rationale)
}

// Disable returns the gate to StageOff, ending the current candidate's cycle.
func (g *Gate) Disable(rationale string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage == StageOff {
		return g.hold(time.Now(), DecisionHeld, "disable ignored: already off")
	}
	return g.commit(time.Now(), DecisionDisabled, StageOff, nil, "", rationale)
}

// #endregion controls

// #region commit

func (g *Gate) rollbackLocked(now time.Time, snap *telemetry.Snapshot, windowID, rationale string) Decision {
	if g.stage == StageRolledBack {
		// Already terminal. The repeat request is still audited so the trail
		// shows every trigger, not just the first.
		if err := g.persist(StageRolledBack, StageRolledBack, windowID, snap, "repeat rollback: "+rationale, now); err != nil {
			log.Printf("[GATE] persist repeat rollback: %v", err)
		}
		d := Decision{Kind: DecisionRolledBack, From: StageRolledBack, To: StageRolledBack,
			Rationale: "repeat rollback: " + rationale, At: now}
		g.last = d
		metrics.RolloutDecisionsTotal.WithLabelValues(string(DecisionRolledBack)).Inc()
		return d
	}
	return g.commit(now, DecisionRolledBack, StageRolledBack, snap, windowID, rationale)
}

// commit persists a stage change, then applies it. The stage only moves once
// the promotion log holds the decision.
func (g *Gate) commit(now time.Time, kind DecisionKind, to Stage, snap *telemetry.Snapshot,
	windowID, rationale string) Decision {

	from := g.stage
	if err := g.persist(from, to, windowID, snap, rationale, now); err != nil {
		log.Printf("[GATE] persist decision %s->%s: %v", from, to, err)
		return g.hold(now, DecisionInconclusive, fmt.Sprintf("decision not persisted: %v", err))
	}

	g.stage = to
	g.cleanSince = time.Time{}
	g.lastBucket = -1

	d := Decision{Kind: kind, From: from, To: to, Rationale: rationale, At: now}
	g.last = d
	metrics.RolloutStage.Set(float64(to))
	metrics.RolloutDecisionsTotal.WithLabelValues(string(kind)).Inc()
	log.Printf("[GATE] %s: %s -> %s (%s)", kind, from, to, rationale)
	return d
}

func (g *Gate) persist(from, to Stage, windowID string, snap *telemetry.Snapshot,
	rationale string, now time.Time) error {

	snapshotJSON := ""
	if snap != nil {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		snapshotJSON = string(data)
	}
	return g.store.RecordPromotion(audit.PromotionEntry{
		FromStage:    from.String(),
		ToStage:      to.String(),
		WindowID:     windowID,
		ManifestHash: g.artifact.Hash,
		SnapshotJSON: snapshotJSON,
		Rationale:    rationale,
		CreatedAt:    now,
	})
}

// hold records a non-committing outcome. Nothing is persisted: the stage did
// not move.
func (g *Gate) hold(now time.Time, kind DecisionKind, rationale string) Decision {
	d := Decision{Kind: kind, From: g.stage, To: g.stage, Rationale: rationale, At: now}
	g.last = d
	return d
}

// #endregion commit
