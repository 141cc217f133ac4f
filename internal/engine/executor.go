package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ruizrica/driftgate/internal/gate"
)

// Outcome is the settled result of one gate launch, before
// normalization. Exactly one of Raw or Err is meaningful; TimedOut
// implies Err.
type Outcome struct {
	Raw      gate.RawOutcome
	Err      error
	TimedOut bool
	Duration time.Duration
}

// Executor fans a set of gates out concurrently against one run context
// and joins on all of them. A gate that returns an error, panics, or
// exceeds the per-gate timeout settles as a failed Outcome; its
// siblings keep running to completion, and no cross-gate cancellation
// occurs. Total wall-clock time is bounded by the slowest gate.
type Executor struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates an executor. timeout applies independently to
// each gate; zero disables the per-gate deadline.
func NewExecutor(timeout time.Duration, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{timeout: timeout, logger: logger}
}

// Execute launches every gate concurrently and returns only after every
// launch has settled. The result map always holds exactly one Outcome
// per gate.
func (e *Executor) Execute(ctx context.Context, gates []gate.Gate, rc *gate.RunContext) map[gate.ID]Outcome {
	results := make(map[gate.ID]Outcome, len(gates))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, g := range gates {
		wg.Add(1)
		go func(g gate.Gate) {
			defer wg.Done()
			outcome := e.runOne(ctx, g, rc)
			mu.Lock()
			results[g.ID()] = outcome
			mu.Unlock()
		}(g)
	}

	wg.Wait()
	return results
}

// runOne executes a single gate with its own timeout and panic
// isolation. A gate that ignores context cancellation is abandoned at
// the deadline; its eventual result is discarded.
func (e *Executor) runOne(ctx context.Context, g gate.Gate, rc *gate.RunContext) Outcome {
	start := time.Now()

	gctx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		gctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type settled struct {
		raw gate.RawOutcome
		err error
	}
	done := make(chan settled, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- settled{err: fmt.Errorf("gate panicked: %v", r)}
			}
		}()
		raw, err := g.Run(gctx, rc)
		done <- settled{raw: raw, err: err}
	}()

	select {
	case s := <-done:
		if s.err != nil {
			e.logger.Warn("gate execution failed",
				zap.String("gate_id", string(g.ID())),
				zap.Error(s.err),
			)
			return Outcome{Err: s.err, Duration: time.Since(start)}
		}
		return Outcome{Raw: s.raw, Duration: time.Since(start)}
	case <-gctx.Done():
		// Caller cancellation is not a timeout; only the per-gate
		// deadline counts as one.
		if !errors.Is(gctx.Err(), context.DeadlineExceeded) {
			e.logger.Warn("gate canceled",
				zap.String("gate_id", string(g.ID())),
				zap.Error(gctx.Err()),
			)
			return Outcome{
				Err:      fmt.Errorf("gate %s canceled: %w", g.ID(), gctx.Err()),
				Duration: time.Since(start),
			}
		}
		e.logger.Warn("gate timed out",
			zap.String("gate_id", string(g.ID())),
			zap.Duration("timeout", e.timeout),
		)
		return Outcome{
			Err:      fmt.Errorf("gate %s timed out after %s: %w", g.ID(), e.timeout, gctx.Err()),
			TimedOut: true,
			Duration: time.Since(start),
		}
	}
}
