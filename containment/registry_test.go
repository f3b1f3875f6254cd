// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package containment

import (
	"errors"
	"testing"
	"time"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/ref"
)

var testEpoch = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

var (
	kernelRegion = ref.MustParseRegionID("kernel")
	diskRegion   = ref.MustParseRegionID("driver.disk")
	appRegion    = ref.MustParseRegionID("app.billing")
)

func newTestRegistry(t *testing.T) (*Registry, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(testEpoch)
	registry, err := NewRegistry(clk, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := registry.CreateRegion(kernelRegion, KernelRegion, ref.RegionID{}, RegionConfig{}); err != nil {
		t.Fatalf("CreateRegion kernel: %v", err)
	}
	return registry, clk
}

func mustCreateRegion(t *testing.T, registry *Registry, id ref.RegionID, typ RegionType, parent ref.RegionID, config RegionConfig) {
	t.Helper()
	if err := registry.CreateRegion(id, typ, parent, config); err != nil {
		t.Fatalf("CreateRegion %s: %v", id, err)
	}
}

func TestRegionTree(t *testing.T) {
	registry, _ := newTestRegistry(t)
	mustCreateRegion(t, registry, diskRegion, DriverRegion(ref.MustParseDriverID("disk")), kernelRegion, RegionConfig{})

	children, err := registry.Children(kernelRegion)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 1 || children[0] != diskRegion {
		t.Fatalf("children = %v", children)
	}

	if err := registry.CreateRegion(diskRegion, KernelRegion, ref.RegionID{}, RegionConfig{}); !errors.Is(err, ErrRegionExists) {
		t.Fatalf("duplicate create: err = %v, want ErrRegionExists", err)
	}
	if err := registry.CreateRegion(appRegion, ApplicationRegion(ref.MustParseModuleID("billing")), ref.MustParseRegionID("ghost"), RegionConfig{}); !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("missing parent: err = %v, want ErrRegionNotFound", err)
	}
}

func TestFaultThresholdQuarantine(t *testing.T) {
	registry, _ := newTestRegistry(t)
	config := RegionConfig{FaultThreshold: 5, FaultWindow: 60 * time.Second, QuarantineTimeout: 5 * time.Minute}
	mustCreateRegion(t, registry, diskRegion, DriverRegion(ref.MustParseDriverID("disk")), kernelRegion, config)

	// Five faults within ten seconds: the fifth quarantines.
	fault := FaultInput{Type: "io-error", Severity: SeverityError}
	for i := 0; i < 4; i++ {
		state, err := registry.RecordFaultAt(diskRegion, fault, testEpoch.Add(time.Duration(i)*2*time.Second))
		if err != nil {
			t.Fatalf("fault %d: %v", i+1, err)
		}
		if state.Kind != StateDegraded {
			t.Fatalf("fault %d: state = %s, want degraded", i+1, state.Kind)
		}
		if state.FaultCount != i+1 {
			t.Fatalf("fault %d: count = %d", i+1, state.FaultCount)
		}
	}
	state, err := registry.RecordFaultAt(diskRegion, fault, testEpoch.Add(8*time.Second))
	if err != nil {
		t.Fatalf("fault 5: %v", err)
	}
	if state.Kind != StateQuarantined || state.Reason != QuarantineFaultThreshold {
		t.Fatalf("fault 5: state = %s (%s)", state.Kind, state.Reason)
	}
}

func TestFaultsOutsideWindowStayDegraded(t *testing.T) {
	registry, _ := newTestRegistry(t)
	config := RegionConfig{FaultThreshold: 5, FaultWindow: 60 * time.Second, QuarantineTimeout: 5 * time.Minute}
	mustCreateRegion(t, registry, diskRegion, DriverRegion(ref.MustParseDriverID("disk")), kernelRegion, config)

	// Four faults spread across seventy seconds: the window never
	// holds more than a fraction of them at once.
	fault := FaultInput{Type: "io-error", Severity: SeverityWarning}
	var last RegionState
	for i := 0; i < 4; i++ {
		at := testEpoch.Add(time.Duration(i) * 23 * time.Second)
		var err error
		last, err = registry.RecordFaultAt(diskRegion, fault, at)
		if err != nil {
			t.Fatalf("fault %d: %v", i+1, err)
		}
		if last.Kind == StateQuarantined {
			t.Fatalf("fault %d quarantined a region under threshold", i+1)
		}
	}
	if last.Kind != StateDegraded {
		t.Fatalf("final state = %s, want degraded", last.Kind)
	}
}

func TestQuarantineSticky(t *testing.T) {
	registry, _ := newTestRegistry(t)
	mustCreateRegion(t, registry, diskRegion, DriverRegion(ref.MustParseDriverID("disk")), kernelRegion, RegionConfig{})

	if err := registry.QuarantineAt(diskRegion, QuarantineSecurity, testEpoch); err != nil {
		t.Fatalf("Quarantine: %v", err)
	}

	// Faults (or their absence) never leave quarantine automatically.
	state, err := registry.RecordFaultAt(diskRegion, FaultInput{Type: "noise"}, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("RecordFault: %v", err)
	}
	if state.Kind != StateQuarantined || state.Reason != QuarantineSecurity {
		t.Fatalf("state = %s (%s), want quarantined (security)", state.Kind, state.Reason)
	}

	// Re-quarantine is a no-op, not an error.
	if err := registry.QuarantineAt(diskRegion, QuarantineManual, testEpoch.Add(time.Hour)); err != nil {
		t.Fatalf("re-quarantine: %v", err)
	}
}

func TestRecoverBeforeTimeout(t *testing.T) {
	registry, _ := newTestRegistry(t)
	config := RegionConfig{FaultThreshold: 2, FaultWindow: 60 * time.Second, QuarantineTimeout: 5 * time.Minute}
	mustCreateRegion(t, registry, diskRegion, DriverRegion(ref.MustParseDriverID("disk")), kernelRegion, config)

	fault := FaultInput{Type: "io-error", Severity: SeverityError}
	registry.RecordFaultAt(diskRegion, fault, testEpoch)
	state, _ := registry.RecordFaultAt(diskRegion, fault, testEpoch.Add(time.Second))
	if state.Kind != StateQuarantined {
		t.Fatalf("state = %s, want quarantined", state.Kind)
	}

	if err := registry.RecoverAt(diskRegion, testEpoch.Add(2*time.Minute)); err != nil {
		t.Fatalf("RecoverAt before timeout: %v", err)
	}
	state, err := registry.State(diskRegion)
	if err != nil || state.Kind != StateHealthy {
		t.Fatalf("state after recovery = %s, err = %v", state.Kind, err)
	}

	// The pre-recovery faults no longer count: one new fault is
	// Degraded, not Quarantined.
	state, _ = registry.RecordFaultAt(diskRegion, fault, testEpoch.Add(2*time.Minute+time.Second))
	if state.Kind != StateDegraded || state.FaultCount != 1 {
		t.Fatalf("state after post-recovery fault = %s (count %d)", state.Kind, state.FaultCount)
	}
}

func TestRecoverAfterTimeoutRequiresEscalation(t *testing.T) {
	registry, _ := newTestRegistry(t)
	config := RegionConfig{FaultThreshold: 1, FaultWindow: 60 * time.Second, QuarantineTimeout: time.Minute}
	mustCreateRegion(t, registry, diskRegion, DriverRegion(ref.MustParseDriverID("disk")), kernelRegion, config)

	registry.RecordFaultAt(diskRegion, FaultInput{Type: "panic", Severity: SeverityCritical}, testEpoch)

	err := registry.RecoverAt(diskRegion, testEpoch.Add(2*time.Minute))
	if !errors.Is(err, ErrQuarantineExpired) {
		t.Fatalf("late recovery: err = %v, want ErrQuarantineExpired", err)
	}

	// The region stays quarantined; recovery never happens
	// automatically.
	state, _ := registry.State(diskRegion)
	if state.Kind != StateQuarantined {
		t.Fatalf("state = %s, want quarantined", state.Kind)
	}
}

func TestRecoverNonQuarantined(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if err := registry.Recover(kernelRegion); !errors.Is(err, ErrNotQuarantined) {
		t.Fatalf("err = %v, want ErrNotQuarantined", err)
	}
}

func TestShutdownCascades(t *testing.T) {
	registry, _ := newTestRegistry(t)
	mustCreateRegion(t, registry, diskRegion, DriverRegion(ref.MustParseDriverID("disk")), kernelRegion, RegionConfig{})
	mustCreateRegion(t, registry, appRegion, ApplicationRegion(ref.MustParseModuleID("billing")), diskRegion, RegionConfig{})

	if err := registry.Shutdown(kernelRegion, "host stop"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	for _, id := range []ref.RegionID{kernelRegion, diskRegion, appRegion} {
		state, err := registry.State(id)
		if err != nil {
			t.Fatalf("State %s: %v", id, err)
		}
		if state.Kind != StateShutdown {
			t.Fatalf("%s state = %s, want shutdown", id, state.Kind)
		}
	}

	// Shutdown is terminal: no faults, no quarantine, no recovery.
	if _, err := registry.RecordFault(diskRegion, FaultInput{Type: "late"}); !errors.Is(err, ErrRegionShutdown) {
		t.Fatalf("fault on shutdown region: err = %v, want ErrRegionShutdown", err)
	}
	if err := registry.Quarantine(diskRegion, QuarantineManual); !errors.Is(err, ErrRegionShutdown) {
		t.Fatalf("quarantine on shutdown region: err = %v, want ErrRegionShutdown", err)
	}
}

func TestFaultHistoryBounded(t *testing.T) {
	registry, _ := newTestRegistry(t)
	config := RegionConfig{FaultThreshold: 1 << 30, FaultWindow: time.Second, QuarantineTimeout: time.Minute}
	mustCreateRegion(t, registry, diskRegion, DriverRegion(ref.MustParseDriverID("disk")), kernelRegion, config)

	for i := 0; i < maxFaultHistory+50; i++ {
		if _, err := registry.RecordFaultAt(diskRegion, FaultInput{Type: "churn"}, testEpoch.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("fault %d: %v", i, err)
		}
	}

	region, ok := registry.Get(diskRegion)
	if !ok {
		t.Fatal("Get: not found")
	}
	if len(region.FaultHistory) != maxFaultHistory {
		t.Fatalf("history length = %d, want %d", len(region.FaultHistory), maxFaultHistory)
	}
	// Oldest entries were dropped, newest retained.
	last := region.FaultHistory[len(region.FaultHistory)-1]
	if last.ID != uint64(maxFaultHistory+50) {
		t.Fatalf("newest fault ID = %d", last.ID)
	}
}
