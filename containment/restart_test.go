// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package containment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/ref"
	"github.com/warden-foundation/warden/lib/testutil"
)

var (
	trappedPID    = ref.MustParseProcessID("worker-7")
	billingModule = ref.MustParseModuleID("billing")
)

func newTrappedProcess(config RestartConfig) *RestartableProcess {
	return &RestartableProcess{
		PID:    trappedPID,
		Module: billingModule,
		Saved: SavedState{
			Priority:          3,
			MailboxMessageIDs: []uint64{101, 102, 103},
		},
		Trap: TrapSnapshot{
			ProgramCounter: 0x4021f0,
			StackDepth:     12,
			Module:         billingModule,
			Process:        trappedPID,
			Description:    "divide by zero",
			At:             testEpoch,
		},
		Config:        config,
		QuarantinedAt: testEpoch,
	}
}

func TestBackoffMonotonic(t *testing.T) {
	config := RestartConfig{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, BackoffFactor: 2, MaxDelay: 2 * time.Second}
	process := newTrappedProcess(config)

	var previous time.Duration
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		process.Attempt = attempt
		delay := process.NextDelay()
		if delay < previous {
			t.Fatalf("attempt %d: delay %s < previous %s", attempt, delay, previous)
		}
		if delay > config.MaxDelay {
			t.Fatalf("attempt %d: delay %s exceeds cap %s", attempt, delay, config.MaxDelay)
		}
		previous = delay
	}

	// Spot-check the formula and the cap.
	process.Attempt = 0
	if got := process.NextDelay(); got != 100*time.Millisecond {
		t.Errorf("attempt 0: delay = %s, want 100ms", got)
	}
	process.Attempt = 3
	if got := process.NextDelay(); got != 800*time.Millisecond {
		t.Errorf("attempt 3: delay = %s, want 800ms", got)
	}
	process.Attempt = 9
	if got := process.NextDelay(); got != 2*time.Second {
		t.Errorf("attempt 9: delay = %s, want the 2s cap", got)
	}
}

func TestCanRestartExhaustion(t *testing.T) {
	process := newTrappedProcess(RestartConfig{MaxAttempts: 3, BaseDelay: time.Second, BackoffFactor: 2, MaxDelay: time.Minute})

	for attempt := 0; attempt < 3; attempt++ {
		process.Attempt = attempt
		if !process.CanRestart() {
			t.Fatalf("attempt %d: CanRestart = false", attempt)
		}
	}
	process.Attempt = 3
	if process.CanRestart() {
		t.Fatal("CanRestart = true past the attempt budget")
	}
}

// scriptedRestarter fails a fixed number of times before succeeding.
type scriptedRestarter struct {
	failures int
	calls    int
	newPID   ref.ProcessID
}

func (r *scriptedRestarter) Restart(ctx context.Context, process *RestartableProcess) (ref.ProcessID, error) {
	r.calls++
	if r.calls <= r.failures {
		return ref.ProcessID{}, fmt.Errorf("spawn failed (call %d)", r.calls)
	}
	return r.newPID, nil
}

func newTestController(t *testing.T, restarter Restarter) (*Controller, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(testEpoch)
	controller, err := NewController(clk, restarter, nil, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return controller, clk
}

func TestHandleTrapSuccess(t *testing.T) {
	newPID := ref.MustParseProcessID("worker-8")
	restarter := &scriptedRestarter{newPID: newPID}
	controller, clk := newTestController(t, restarter)

	process := newTrappedProcess(RestartConfig{MaxAttempts: 3, BaseDelay: time.Second, BackoffFactor: 2, MaxDelay: time.Minute})

	outcome := make(chan RestartOutcome, 1)
	go func() {
		outcome <- controller.HandleTrap(context.Background(), process)
	}()

	clk.WaitForWaiters(1)
	clk.Advance(time.Second)

	result := testutil.RequireReceive(t, outcome, 5*time.Second, "restart outcome")
	if result.Kind != RestartedSuccessfully {
		t.Fatalf("outcome = %s (%s)", result.Kind, result.Reason)
	}
	if result.NewPID != newPID {
		t.Fatalf("new PID = %s, want %s", result.NewPID, newPID)
	}
	if process.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", process.Attempt)
	}
}

func TestHandleTrapFailureThenRetry(t *testing.T) {
	restarter := &scriptedRestarter{failures: 1, newPID: ref.MustParseProcessID("worker-8")}
	controller, clk := newTestController(t, restarter)

	process := newTrappedProcess(RestartConfig{MaxAttempts: 3, BaseDelay: time.Second, BackoffFactor: 2, MaxDelay: time.Minute})

	outcome := make(chan RestartOutcome, 1)
	go func() {
		outcome <- controller.HandleTrap(context.Background(), process)
	}()
	clk.WaitForWaiters(1)
	clk.Advance(time.Second)

	result := testutil.RequireReceive(t, outcome, 5*time.Second, "first restart outcome")
	if result.Kind != RestartFailed {
		t.Fatalf("first outcome = %s", result.Kind)
	}
	if result.RetryAt.IsZero() || result.Reason == "" {
		t.Fatalf("failed outcome missing retry metadata: %+v", result)
	}

	// Second cycle: backoff doubles, then succeeds.
	go func() {
		outcome <- controller.HandleTrap(context.Background(), process)
	}()
	clk.WaitForWaiters(1)
	clk.Advance(2 * time.Second)

	result = testutil.RequireReceive(t, outcome, 5*time.Second, "second restart outcome")
	if result.Kind != RestartedSuccessfully {
		t.Fatalf("second outcome = %s (%s)", result.Kind, result.Reason)
	}
	if process.Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", process.Attempt)
	}
}

func TestHandleTrapAbandoned(t *testing.T) {
	restarter := &scriptedRestarter{failures: 100}
	controller, clk := newTestController(t, restarter)

	process := newTrappedProcess(RestartConfig{MaxAttempts: 3, BaseDelay: time.Second, BackoffFactor: 2, MaxDelay: time.Minute})

	outcome := make(chan RestartOutcome, 1)
	for cycle := 0; cycle < 3; cycle++ {
		go func() {
			outcome <- controller.HandleTrap(context.Background(), process)
		}()
		clk.WaitForWaiters(1)
		clk.Advance(time.Minute)
		if result := testutil.RequireReceive(t, outcome, 5*time.Second, "cycle %d outcome", cycle); result.Kind != RestartFailed {
			t.Fatalf("cycle %d: outcome = %s", cycle, result.Kind)
		}
	}

	// The fourth check reports the budget exhausted without waiting or
	// calling the restarter again.
	result := controller.HandleTrap(context.Background(), process)
	if result.Kind != RestartAbandoned {
		t.Fatalf("outcome = %s, want abandoned", result.Kind)
	}
	if restarter.calls != 3 {
		t.Fatalf("restarter called %d times, want 3", restarter.calls)
	}
}

func TestHandleTrapContextCanceledDuringBackoff(t *testing.T) {
	restarter := &scriptedRestarter{newPID: ref.MustParseProcessID("worker-8")}
	controller, clk := newTestController(t, restarter)
	_ = clk

	process := newTrappedProcess(RestartConfig{MaxAttempts: 3, BaseDelay: time.Minute, BackoffFactor: 2, MaxDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	outcome := make(chan RestartOutcome, 1)
	go func() {
		outcome <- controller.HandleTrap(ctx, process)
	}()
	clk.WaitForWaiters(1)
	cancel()

	result := testutil.RequireReceive(t, outcome, 5*time.Second, "canceled restart outcome")
	if result.Kind != RestartPending {
		t.Fatalf("outcome = %s, want pending", result.Kind)
	}
	if result.NextAttemptAt != testEpoch.Add(time.Minute) {
		t.Fatalf("next attempt at %s", result.NextAttemptAt)
	}
	if process.Attempt != 0 || restarter.calls != 0 {
		t.Fatalf("canceled wait still attempted: attempt=%d calls=%d", process.Attempt, restarter.calls)
	}
}
