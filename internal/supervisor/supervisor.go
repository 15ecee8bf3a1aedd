package supervisor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/danielpatrickdp/guardian/internal/audit"
	"github.com/danielpatrickdp/guardian/internal/enforce"
	"github.com/danielpatrickdp/guardian/internal/health"
	"github.com/danielpatrickdp/guardian/internal/metrics"
	"github.com/danielpatrickdp/guardian/internal/threshold"
)

// #region supervisor

// Supervisor is the single-writer owner of the guardian state. It consumes
// health samples, evaluates them against the immutable threshold table, runs
// the machine, records transitions, and feeds the enforcer's command queue.
type Supervisor struct {
	thresholds threshold.Config
	machine    *Machine
	enforcer   *enforce.Enforcer
	store      *audit.Store

	mu           sync.RWMutex
	lastSeverity threshold.Severity
	lastSampleAt time.Time
}

// New wires a supervisor around a fresh machine.
func New(thresholds threshold.Config, config Config, enforcer *enforce.Enforcer, store *audit.Store) *Supervisor {
	return &Supervisor{
		thresholds: thresholds,
		machine:    NewMachine(config),
		enforcer:   enforcer,
		store:      store,
	}
}

// #endregion supervisor

// #region run

// Run consumes samples until the channel closes or ctx is cancelled. All
// state mutation happens on this goroutine.
func (s *Supervisor) Run(ctx context.Context, samples <-chan health.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			s.step(sample)
		}
	}
}

// step evaluates one sample and applies it to the machine.
func (s *Supervisor) step(sample health.Sample) {
	if sample.Degraded {
		metrics.DegradedSamplesTotal.Inc()
	}

	sev := threshold.Evaluate(sample, s.thresholds)
	res := s.apply(sev, sample.At)

	for _, t := range res.Transitions {
		log.Printf("[SUPER] %s → %s (severity=%s)", t.From, t.To, t.Severity)
		metrics.TransitionsTotal.WithLabelValues(t.To.String()).Inc()
		err := s.store.RecordTransition(audit.TransitionEntry{
			FromState: t.From.String(),
			ToState:   t.To.String(),
			Severity:  t.Severity.String(),
			Reason:    t.Reason,
			CreatedAt: t.At,
		})
		if err != nil {
			log.Printf("[SUPER] audit write failed: %v", err)
		}
	}

	for _, cmd := range res.Commands {
		s.enforcer.Submit(cmd)
	}
}

// apply serializes machine access so Status readers see consistent snapshots.
func (s *Supervisor) apply(sev threshold.Severity, at time.Time) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.machine.Apply(sev, at)
	s.lastSeverity = sev
	s.lastSampleAt = at
	metrics.GuardianState.Set(float64(s.machine.State()))
	return res
}

// #endregion run

// #region status

// Status returns a consistent snapshot of the owned state.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:         s.machine.State(),
		LastSeverity:  s.lastSeverity,
		LastSampleAt:  s.lastSampleAt,
		CooldownUntil: s.machine.CooldownUntil(),
	}
}

// CurrentState returns just the protection state. The promotion gate consults
// this before promoting.
func (s *Supervisor) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine.State()
}

// #endregion status
