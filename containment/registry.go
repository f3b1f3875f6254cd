// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package containment

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/warden-foundation/warden/audit"
	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/ref"
)

// Errors returned by registry operations.
var (
	ErrRegionNotFound = errors.New("containment: region not found")
	ErrRegionExists   = errors.New("containment: region already exists")
	ErrRegionShutdown = errors.New("containment: region is shut down")

	// ErrNotQuarantined means Recover was called on a region that is
	// not quarantined.
	ErrNotQuarantined = errors.New("containment: region is not quarantined")

	// ErrQuarantineExpired means the quarantine timeout elapsed before
	// recovery. In-place recovery is no longer possible — the caller
	// must escalate to the parent region's authority.
	ErrQuarantineExpired = errors.New("containment: quarantine timeout elapsed, escalation required")
)

// Registry owns every fault containment region and its health state
// machine. Mutex-guarded single-writer value, same ownership model as
// the capability store.
type Registry struct {
	mu sync.Mutex

	clk      clock.Clock
	recorder *audit.Recorder
	logger   *slog.Logger

	regions map[ref.RegionID]*Region

	// faultSequence numbers fault records across all regions.
	faultSequence uint64
}

// NewRegistry constructs a Registry. recorder and logger may be nil.
func NewRegistry(clk clock.Clock, recorder *audit.Recorder, logger *slog.Logger) (*Registry, error) {
	if clk == nil {
		return nil, errors.New("containment: nil clock")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		clk:      clk,
		recorder: recorder,
		logger:   logger,
		regions:  make(map[ref.RegionID]*Region),
	}, nil
}

// CreateRegion registers a new region. parent may be zero for a root
// region; otherwise it must name an existing region, which gains this
// region as a child. A zero config takes DefaultRegionConfig.
func (g *Registry) CreateRegion(id ref.RegionID, typ RegionType, parent ref.RegionID, config RegionConfig) error {
	if id.IsZero() {
		return errors.New("containment: zero region ID")
	}
	if typ.Kind == RegionKindInvalid {
		return errors.New("containment: invalid region type")
	}
	if config.FaultThreshold == 0 {
		config = DefaultRegionConfig()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.regions[id]; exists {
		return fmt.Errorf("%w: %s", ErrRegionExists, id)
	}
	if !parent.IsZero() {
		parentRegion, exists := g.regions[parent]
		if !exists {
			return fmt.Errorf("%w: parent %s", ErrRegionNotFound, parent)
		}
		if parentRegion.State.Kind == StateShutdown {
			return fmt.Errorf("%w: parent %s", ErrRegionShutdown, parent)
		}
		parentRegion.Children = append(parentRegion.Children, id)
	}

	now := g.clk.Now()
	g.regions[id] = &Region{
		ID:              id,
		Type:            typ,
		State:           RegionState{Kind: StateHealthy, Since: now},
		Parent:          parent,
		Config:          config,
		CreatedAt:       now,
		LastStateChange: now,
	}
	return nil
}

// FaultInput describes a fault being reported into a region.
type FaultInput struct {
	Type        string
	Severity    Severity
	Description string
	Process     ref.ProcessID
}

// RecordFault reports a fault at the injected clock's now.
func (g *Registry) RecordFault(regionID ref.RegionID, fault FaultInput) (RegionState, error) {
	return g.RecordFaultAt(regionID, fault, g.clk.Now())
}

// RecordFaultAt appends a fault to the region's history and recomputes
// its state: zero recent faults is Healthy, below threshold is
// Degraded, at or above threshold is Quarantined with
// QuarantineFaultThreshold. Quarantined and Shutdown are sticky —
// faults recorded there accumulate in history but do not transition.
// Returns the region's state after the fault.
func (g *Registry) RecordFaultAt(regionID ref.RegionID, fault FaultInput, now time.Time) (RegionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	region, exists := g.regions[regionID]
	if !exists {
		return RegionState{}, fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	if region.State.Kind == StateShutdown {
		return region.State, fmt.Errorf("%w: %s", ErrRegionShutdown, regionID)
	}

	g.faultSequence++
	record := FaultRecord{
		ID:          g.faultSequence,
		At:          now,
		Type:        fault.Type,
		Severity:    fault.Severity,
		Description: fault.Description,
		Process:     fault.Process,
	}
	region.FaultHistory = append(region.FaultHistory, record)
	if len(region.FaultHistory) > maxFaultHistory {
		region.FaultHistory = region.FaultHistory[len(region.FaultHistory)-maxFaultHistory:]
	}

	previous := region.State
	next := region.computeState(now)
	g.applyStateLocked(region, next, now)

	switch region.State.Kind {
	case StateQuarantined:
		region.FaultHistory[len(region.FaultHistory)-1].RecoveryAction = "quarantined"
	case StateDegraded:
		region.FaultHistory[len(region.FaultHistory)-1].RecoveryAction = "degraded"
	default:
		region.FaultHistory[len(region.FaultHistory)-1].RecoveryAction = "none"
	}

	g.recorder.Emit(audit.Record{
		At:      now,
		Type:    audit.EventRegionFault,
		Region:  regionID,
		Process: fault.Process,
		Reason:  fault.Type,
		Detail:  fault.Description,
		Count:   record.ID,
	})

	if previous.Kind != StateQuarantined && region.State.Kind == StateQuarantined {
		g.logger.Warn("region quarantined",
			"region", regionID.String(),
			"reason", region.State.Reason.String(),
			"fault_type", fault.Type,
		)
		g.recorder.Emit(audit.Record{
			At:     now,
			Type:   audit.EventRegionQuarantined,
			Region: regionID,
			Reason: region.State.Reason.String(),
		})
	}

	return region.State, nil
}

// Quarantine explicitly quarantines at the injected clock's now.
func (g *Registry) Quarantine(regionID ref.RegionID, reason QuarantineReason) error {
	return g.QuarantineAt(regionID, reason, g.clk.Now())
}

// QuarantineAt places the region in quarantine for a manual, security,
// or driver-failure reason, bypassing the fault threshold. No-op if
// already quarantined; error if shut down.
func (g *Registry) QuarantineAt(regionID ref.RegionID, reason QuarantineReason, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	region, exists := g.regions[regionID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	switch region.State.Kind {
	case StateShutdown:
		return fmt.Errorf("%w: %s", ErrRegionShutdown, regionID)
	case StateQuarantined:
		return nil
	}

	g.applyStateLocked(region, RegionState{
		Kind:   StateQuarantined,
		Reason: reason,
		Since:  now,
	}, now)

	g.recorder.Emit(audit.Record{
		At:     now,
		Type:   audit.EventRegionQuarantined,
		Region: regionID,
		Reason: reason.String(),
	})
	return nil
}

// Recover recovers at the injected clock's now.
func (g *Registry) Recover(regionID ref.RegionID) error {
	return g.RecoverAt(regionID, g.clk.Now())
}

// RecoverAt returns a quarantined region to Healthy, provided the
// quarantine timeout has not elapsed. Past the timeout the region
// stays quarantined and ErrQuarantineExpired is returned — there is no
// automatic recovery, only escalation to the parent authority.
//
// Recovery sets the fault watermark: faults recorded before it no
// longer count toward the threshold, so the region genuinely restarts
// from a clean slate.
func (g *Registry) RecoverAt(regionID ref.RegionID, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	region, exists := g.regions[regionID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	if region.State.Kind != StateQuarantined {
		return fmt.Errorf("%w: %s is %s", ErrNotQuarantined, regionID, region.State.Kind)
	}
	deadline := region.State.Since.Add(region.Config.QuarantineTimeout)
	if now.After(deadline) {
		return fmt.Errorf("%w: %s quarantined at %s, timeout %s",
			ErrQuarantineExpired, regionID,
			region.State.Since.Format(time.RFC3339), region.Config.QuarantineTimeout)
	}

	region.recoveredAt = now
	g.applyStateLocked(region, RegionState{Kind: StateHealthy, Since: now}, now)

	g.recorder.Emit(audit.Record{
		At:     now,
		Type:   audit.EventRegionRecovered,
		Region: regionID,
	})
	return nil
}

// Shutdown shuts down at the injected clock's now.
func (g *Registry) Shutdown(regionID ref.RegionID, reason string) error {
	return g.ShutdownAt(regionID, reason, g.clk.Now())
}

// ShutdownAt moves the region and its entire subtree to the terminal
// Shutdown state. A contained child cannot outlive its container.
func (g *Registry) ShutdownAt(regionID ref.RegionID, reason string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.regions[regionID]; !exists {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}

	queue := []ref.RegionID{regionID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		region := g.regions[id]
		if region == nil || region.State.Kind == StateShutdown {
			continue
		}
		g.applyStateLocked(region, RegionState{Kind: StateShutdown, Since: now}, now)
		g.recorder.Emit(audit.Record{
			At:     now,
			Type:   audit.EventRegionShutdown,
			Region: id,
			Reason: reason,
		})
		queue = append(queue, region.Children...)
	}
	return nil
}

// applyStateLocked installs a new state, stamping LastStateChange only
// on an actual kind change.
func (g *Registry) applyStateLocked(region *Region, next RegionState, now time.Time) {
	if region.State.Kind != next.Kind {
		region.LastStateChange = now
	}
	region.State = next
}

// Get returns a snapshot of the region descriptor.
func (g *Registry) Get(regionID ref.RegionID) (Region, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	region, exists := g.regions[regionID]
	if !exists {
		return Region{}, false
	}
	return region.clone(), true
}

// State returns the region's current state.
func (g *Registry) State(regionID ref.RegionID) (RegionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	region, exists := g.regions[regionID]
	if !exists {
		return RegionState{}, fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	return region.State, nil
}

// Children returns the region's direct child IDs.
func (g *Registry) Children(regionID ref.RegionID) ([]ref.RegionID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	region, exists := g.regions[regionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	return append([]ref.RegionID(nil), region.Children...), nil
}
