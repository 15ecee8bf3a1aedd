package health

import (
	"context"
	"log"
	"time"
)

// #region sampler

// Sampler periodically reads all configured signals and emits immutable
// Samples. On a transient read failure it substitutes the last known-good
// value for that signal and marks the sample degraded.
type Sampler struct {
	reader SignalReader
	config SamplerConfig

	lastGood   map[Signal]float64
	failStreak map[Signal]int
}

// NewSampler creates a Sampler. The reader must not be nil.
func NewSampler(reader SignalReader, config SamplerConfig) *Sampler {
	return &Sampler{
		reader:     reader,
		config:     config,
		lastGood:   make(map[Signal]float64),
		failStreak: make(map[Signal]int),
	}
}

// #endregion sampler

// #region sample

// Sample reads every configured signal once and returns the snapshot.
// Not safe for concurrent use; the run loop is the single caller.
func (s *Sampler) Sample(ctx context.Context) Sample {
	out := Sample{
		At:       time.Now().UTC(),
		Readings: make(map[Signal]float64, len(s.config.Signals)),
	}

	for _, sig := range s.config.Signals {
		readCtx, cancel := context.WithTimeout(ctx, s.config.ReadTimeout)
		v, err := s.reader.Read(readCtx, sig)
		cancel()

		if err != nil {
			s.failStreak[sig]++
			out.Degraded = true
			out.FailedSignals = append(out.FailedSignals, sig)
			last, seen := s.lastGood[sig]
			out.Readings[sig] = last
			// With no known-good value to substitute, a zero reading would
			// pass for healthy. That failure escalates immediately.
			if !seen || s.failStreak[sig] >= s.config.SensorFailureAfter {
				out.SensorFailure = true
			}
			log.Printf("[SAMPLER] read %s failed (streak=%d): %v", sig, s.failStreak[sig], err)
			continue
		}

		s.failStreak[sig] = 0
		s.lastGood[sig] = v
		out.Readings[sig] = v
	}

	return out
}

// #endregion sample

// #region run

// Run emits one Sample per interval on out until ctx is cancelled.
// The out channel is closed on return so downstream loops can drain and stop.
func (s *Sampler) Run(ctx context.Context, out chan<- Sample) {
	defer close(out)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample := s.Sample(ctx)
			select {
			case out <- sample:
			case <-ctx.Done():
				return
			}
		}
	}
}

// #endregion run
