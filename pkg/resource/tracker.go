// Package resource implements the cooperative resource limits a running
// script is bounded by (spec.md §9): an instruction budget, a call-depth
// budget, a wall-clock timeout, and a kill flag another goroutine (the
// command handling SCRIPT KILL) can raise. The VM's dispatch loop checks
// in with a Tracker roughly every CheckInterval instructions rather than
// on every single one, keeping the hot path cheap.
package resource

import (
	"sync/atomic"
	"time"

	"github.com/iGentAI/ferrous/pkg/errors"
)

// DefaultCheckInterval matches spec.md §9's "check every 1000
// instructions" cadence.
const DefaultCheckInterval = 1000

// Limits configures a Tracker. A zero value for any bound disables that
// particular limit.
type Limits struct {
	MaxInstructions int64
	MaxCallDepth    int
	Timeout         time.Duration
	CheckInterval   int64
}

// Tracker is shared by exactly one in-flight script execution; it is not
// safe to reuse concurrently across two executions, but Kill may be
// called from a different goroutine than the one running the script
// (that's the whole point of SCRIPT KILL).
type Tracker struct {
	limits Limits
	start  time.Time

	instructions int64
	sinceCheck   int64
	callDepth    int32
	killed       atomic.Bool
}

// New starts a Tracker's wall-clock timer running now.
func New(limits Limits) *Tracker {
	if limits.CheckInterval <= 0 {
		limits.CheckInterval = DefaultCheckInterval
	}
	return &Tracker{limits: limits, start: time.Now()}
}

// Kill requests that the running script abort at its next check-in.
// Safe to call concurrently with the script's own goroutine.
func (t *Tracker) Kill() { t.killed.Store(true) }

// Killed reports whether Kill has been called.
func (t *Tracker) Killed() bool { return t.killed.Load() }

// EnterCall increments the call-depth counter, failing if it would exceed
// MaxCallDepth (0 means unbounded).
func (t *Tracker) EnterCall() error {
	depth := atomic.AddInt32(&t.callDepth, 1)
	if t.limits.MaxCallDepth > 0 && int(depth) > t.limits.MaxCallDepth {
		atomic.AddInt32(&t.callDepth, -1)
		return &errors.ResourceLimitError{Resource: "call_depth", Limit: int64(t.limits.MaxCallDepth), Used: int64(depth)}
	}
	return nil
}

// ExitCall undoes a matching EnterCall; callers use `defer tracker.ExitCall()`.
func (t *Tracker) ExitCall() { atomic.AddInt32(&t.callDepth, -1) }

// CountInstruction is called once per VM dispatch-loop iteration. It only
// does the (comparatively expensive) kill-flag/timeout/budget check every
// CheckInterval calls, per spec.md §9's cooperative-checking design.
func (t *Tracker) CountInstruction() error {
	t.instructions++
	t.sinceCheck++
	if t.sinceCheck < t.limits.CheckInterval {
		return nil
	}
	t.sinceCheck = 0
	return t.checkNow()
}

func (t *Tracker) checkNow() error {
	if t.killed.Load() {
		return &errors.Aborted{Reason: "killed"}
	}
	if t.limits.MaxInstructions > 0 && t.instructions > t.limits.MaxInstructions {
		return &errors.ResourceLimitError{Resource: "instructions", Limit: t.limits.MaxInstructions, Used: t.instructions}
	}
	if t.limits.Timeout > 0 && time.Since(t.start) > t.limits.Timeout {
		return &errors.Aborted{Reason: "timeout"}
	}
	return nil
}

// Instructions reports the number executed so far, for metrics.
func (t *Tracker) Instructions() int64 { return t.instructions }

// Elapsed reports how long the tracked execution has been running.
func (t *Tracker) Elapsed() time.Duration { return time.Since(t.start) }
