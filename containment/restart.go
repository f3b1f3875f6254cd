// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package containment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/warden-foundation/warden/audit"
	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/ref"
)

// TrapSnapshot is the host-constructed checkpoint of a trapped unit:
// enough to diagnose and restart, nothing more.
type TrapSnapshot struct {
	ProgramCounter uint64 `cbor:"1,keyasint"`
	StackDepth     int    `cbor:"2,keyasint"`

	// LastSafeYield is the most recent yield point the unit passed
	// before trapping; a restarted unit resumes from a clean entry, so
	// this is diagnostic only.
	LastSafeYield uint64 `cbor:"3,keyasint,omitempty"`

	Module  ref.ModuleID  `cbor:"4,keyasint"`
	Process ref.ProcessID `cbor:"5,keyasint"`

	Description string    `cbor:"6,keyasint,omitempty"`
	At          time.Time `cbor:"7,keyasint"`
}

// SavedState is the restartable process's retained execution context.
// Mailbox entries are retained as message IDs only, never payload
// bytes, so a trapped unit's saved state cannot hold the containment
// region's memory hostage.
type SavedState struct {
	Priority int `cbor:"1,keyasint"`

	MailboxMessageIDs []uint64 `cbor:"2,keyasint,omitempty"`
}

// RestartConfig is the backoff policy for restarting a trapped unit.
type RestartConfig struct {
	// MaxAttempts bounds restart attempts; past it the unit is
	// abandoned.
	MaxAttempts int

	// BaseDelay, BackoffFactor, and MaxDelay define the attempt delay:
	// min(BaseDelay * BackoffFactor^attempt, MaxDelay).
	BaseDelay     time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// DefaultRestartConfig returns the policy used for a zero config.
func DefaultRestartConfig() RestartConfig {
	return RestartConfig{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		BackoffFactor: 2,
		MaxDelay:      30 * time.Second,
	}
}

// RestartableProcess is a trapped hosted unit checkpointed for bounded
// re-execution. A restarted process holds no capabilities from its
// prior incarnation — it must re-acquire every one through the
// capability store.
type RestartableProcess struct {
	PID    ref.ProcessID
	Module ref.ModuleID

	Saved SavedState
	Trap  TrapSnapshot

	Config RestartConfig

	// Attempt counts restarts already performed.
	Attempt int

	QuarantinedAt time.Time
}

// CanRestart reports whether another restart attempt is permitted.
func (p *RestartableProcess) CanRestart() bool {
	return p.Attempt < p.Config.MaxAttempts
}

// NextDelay computes the backoff delay for the upcoming attempt:
// min(BaseDelay * BackoffFactor^Attempt, MaxDelay). Monotonically
// non-decreasing in the attempt number for factors >= 1.
func (p *RestartableProcess) NextDelay() time.Duration {
	factor := p.Config.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	scaled := float64(p.Config.BaseDelay) * math.Pow(factor, float64(p.Attempt))
	if p.Config.MaxDelay > 0 && scaled > float64(p.Config.MaxDelay) {
		return p.Config.MaxDelay
	}
	return time.Duration(scaled)
}

// OutcomeKind tags a restart outcome.
type OutcomeKind uint8

const (
	// RestartedSuccessfully means the restarter produced a new
	// incarnation. NewPID is set.
	RestartedSuccessfully OutcomeKind = iota

	// RestartPending means the backoff delay has not elapsed (or the
	// context canceled during the wait). NextAttemptAt is set.
	RestartPending

	// RestartFailed means the restarter returned an error; another
	// attempt may follow. Reason and RetryAt are set.
	RestartFailed

	// RestartAbandoned means the attempt budget is exhausted. Reason
	// is set. Terminal.
	RestartAbandoned
)

// String returns the outcome kind's wire name.
func (k OutcomeKind) String() string {
	switch k {
	case RestartedSuccessfully:
		return "restarted"
	case RestartPending:
		return "pending"
	case RestartFailed:
		return "failed"
	case RestartAbandoned:
		return "abandoned"
	default:
		return "invalid"
	}
}

// RestartOutcome is the tagged result of handling a trap. Exactly the
// fields implied by Kind are set.
type RestartOutcome struct {
	Kind OutcomeKind

	NewPID        ref.ProcessID
	NextAttemptAt time.Time
	RetryAt       time.Time
	Reason        string
}

// Restarter is the host-side mechanism that actually re-executes a
// unit. The controller decides whether and when; the restarter does
// the work and returns the new incarnation's process ID.
type Restarter interface {
	Restart(ctx context.Context, process *RestartableProcess) (ref.ProcessID, error)
}

// Controller applies restart policy to trapped units. It owns no
// process state — the host retains the RestartableProcess between
// calls and the controller mutates only its attempt counter.
type Controller struct {
	clk       clock.Clock
	restarter Restarter
	recorder  *audit.Recorder
	logger    *slog.Logger
}

// NewController constructs a Controller. recorder and logger may be
// nil.
func NewController(clk clock.Clock, restarter Restarter, recorder *audit.Recorder, logger *slog.Logger) (*Controller, error) {
	if clk == nil {
		return nil, errors.New("containment: nil clock")
	}
	if restarter == nil {
		return nil, errors.New("containment: nil restarter")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{clk: clk, restarter: restarter, recorder: recorder, logger: logger}, nil
}

// HandleTrap runs one restart cycle for a trapped unit: checks the
// attempt budget, waits out the backoff delay on the injected clock,
// and invokes the restarter. The context bounds the wait and the
// restart itself; cancellation during the wait yields RestartPending
// with the instant the attempt would have been due.
func (c *Controller) HandleTrap(ctx context.Context, process *RestartableProcess) RestartOutcome {
	if !process.CanRestart() {
		c.logger.Warn("restart budget exhausted, abandoning process",
			"pid", process.PID.String(),
			"module", process.Module.String(),
			"attempts", process.Attempt,
		)
		c.recorder.Emit(audit.Record{
			At:      c.clk.Now(),
			Type:    audit.EventRestartAbandoned,
			Process: process.PID,
			Reason:  "restart attempts exhausted",
			Count:   uint64(process.Attempt),
		})
		return RestartOutcome{Kind: RestartAbandoned, Reason: "restart attempts exhausted"}
	}

	delay := process.NextDelay()
	dueAt := c.clk.Now().Add(delay)
	if delay > 0 {
		select {
		case <-ctx.Done():
			return RestartOutcome{Kind: RestartPending, NextAttemptAt: dueAt}
		case <-c.clk.After(delay):
		}
	}

	process.Attempt++
	newPID, err := c.restarter.Restart(ctx, process)
	now := c.clk.Now()

	if err != nil {
		retryAt := now.Add(process.NextDelay())
		c.logger.Warn("restart attempt failed",
			"pid", process.PID.String(),
			"module", process.Module.String(),
			"attempt", process.Attempt,
			"error", err,
		)
		c.recorder.Emit(audit.Record{
			At:      now,
			Type:    audit.EventRestartAttempt,
			Process: process.PID,
			Reason:  err.Error(),
			Count:   uint64(process.Attempt),
		})
		return RestartOutcome{Kind: RestartFailed, Reason: err.Error(), RetryAt: retryAt}
	}

	c.logger.Info("process restarted",
		"pid", process.PID.String(),
		"new_pid", newPID.String(),
		"module", process.Module.String(),
		"attempt", process.Attempt,
	)
	c.recorder.Emit(audit.Record{
		At:      now,
		Type:    audit.EventRestartAttempt,
		Process: newPID,
		Count:   uint64(process.Attempt),
	})
	return RestartOutcome{Kind: RestartedSuccessfully, NewPID: newPID}
}
