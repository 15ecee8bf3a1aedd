package enforce

import (
	"context"
	"log"
	"time"

	"github.com/danielpatrickdp/guardian/internal/audit"
	"github.com/danielpatrickdp/guardian/internal/metrics"
	"github.com/danielpatrickdp/guardian/internal/ratelimit"
	"github.com/danielpatrickdp/guardian/internal/retry"
)

// #region enforcer

// Enforcer executes enforcement commands against the external target
// controller, one at a time, and appends every outcome to the audit trail.
// Kill commands pass through the sliding-window rate limiter first.
type Enforcer struct {
	controller TargetController
	killWindow *ratelimit.KillWindow
	store      *audit.Store
	policy     retry.Policy
	config     Config

	commands chan Command
}

// NewEnforcer wires an enforcer. The returned enforcer owns the command
// channel; feed it via Submit and consume by calling Run.
func NewEnforcer(controller TargetController, killWindow *ratelimit.KillWindow, store *audit.Store, policy retry.Policy, config Config) *Enforcer {
	return &Enforcer{
		controller: controller,
		killWindow: killWindow,
		store:      store,
		policy:     policy,
		config:     config,
		commands:   make(chan Command, config.QueueSize),
	}
}

// Submit enqueues one command. It reports false when the queue is full; the
// next evaluation tick will reassess, so a dropped command is logged, not
// fatal.
func (e *Enforcer) Submit(cmd Command) bool {
	select {
	case e.commands <- cmd:
		return true
	default:
		log.Printf("[ENFORCE] queue full, dropping %s %s", cmd.Kind, cmd.Target)
		return false
	}
}

// #endregion enforcer

// #region run

// Run consumes commands until ctx is cancelled. An in-flight command always
// finishes (or times out on its own bounded budget) before Run returns, so no
// kill is abandoned half-issued.
func (e *Enforcer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Drain anything already queued before the cancel.
			for {
				select {
				case cmd := <-e.commands:
					e.process(cmd)
				default:
					return
				}
			}
		case cmd := <-e.commands:
			e.process(cmd)
		}
	}
}

// #endregion run

// #region process

// process executes one command and records the outcome. Enforcement runs on
// its own bounded budget, detached from the loop context, so shutdown waits
// for it rather than cancelling it mid-call.
func (e *Enforcer) process(cmd Command) {
	if cmd.Kind == ActionKill && !e.killWindow.TryConsume(time.Now()) {
		e.record(ActionKill, cmd.Target, OutcomeSuppressed, "kill window full")
		e.record(ActionAlert, cmd.Target, OutcomeApplied, "kill suppressed by rate limiter: "+cmd.Reason)
		log.Printf("[ENFORCE] kill %s suppressed: rate limit window full", cmd.Target)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.config.ShutdownGrace)
	defer cancel()

	err := e.policy.Do(ctx, string(cmd.Kind), func(ctx context.Context) error {
		switch cmd.Kind {
		case ActionThrottle:
			return e.controller.Throttle(ctx, cmd.Target)
		case ActionDegrade:
			return e.controller.Degrade(ctx, cmd.Target)
		case ActionKill:
			return e.controller.Terminate(ctx, cmd.Target)
		case ActionAlert:
			return nil // alert actions are record-only
		default:
			return nil
		}
	})

	if err != nil {
		// Target unreachable or already gone: recorded, surfaced, and the
		// loop continues. The next sampling tick reassesses independently.
		if cmd.Kind == ActionKill {
			// The kill never landed, so it must not count toward the cap.
			e.killWindow.Refund()
		}
		e.record(cmd.Kind, cmd.Target, OutcomeFailed, err.Error())
		log.Printf("[ENFORCE] %s %s failed: %v", cmd.Kind, cmd.Target, err)
		return
	}

	e.record(cmd.Kind, cmd.Target, OutcomeApplied, cmd.Reason)
	log.Printf("[ENFORCE] %s %s applied", cmd.Kind, cmd.Target)
}

func (e *Enforcer) record(kind ActionKind, target string, outcome Outcome, reason string) {
	metrics.ActionsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	metrics.KillWindowCount.Set(float64(e.killWindow.Count(time.Now())))
	err := e.store.RecordAction(audit.ActionEntry{
		Kind:    string(kind),
		Target:  target,
		Outcome: string(outcome),
		Reason:  reason,
	})
	if err != nil {
		log.Printf("[ENFORCE] audit write failed: %v", err)
	}
}

// #endregion process
