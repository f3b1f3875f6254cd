// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package containment

import (
	"fmt"
	"time"

	"github.com/warden-foundation/warden/lib/ref"
)

// StateKind is the health state of a fault containment region.
type StateKind uint8

const (
	// StateHealthy means no recent faults.
	StateHealthy StateKind = iota

	// StateDegraded means at least one recent fault, below the
	// quarantine threshold.
	StateDegraded

	// StateQuarantined means the region is presumed faulty and barred
	// from normal operation. Sticky: only an explicit, timely recovery
	// (or shutdown) leaves it.
	StateQuarantined

	// StateShutdown is terminal.
	StateShutdown
)

// String returns the state's wire name.
func (k StateKind) String() string {
	switch k {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateQuarantined:
		return "quarantined"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
}

// QuarantineReason is the closed set of causes for entering
// StateQuarantined.
type QuarantineReason uint8

const (
	QuarantineNone QuarantineReason = iota

	// QuarantineFaultThreshold means the recent-fault count reached the
	// configured threshold.
	QuarantineFaultThreshold

	// QuarantineManual is an explicit operator or parent-region
	// decision.
	QuarantineManual

	// QuarantineSecurity marks a suspected security violation.
	QuarantineSecurity

	// QuarantineDriverFailure marks a failure reported by the region's
	// driver.
	QuarantineDriverFailure
)

// String returns the reason's wire name.
func (r QuarantineReason) String() string {
	switch r {
	case QuarantineNone:
		return "none"
	case QuarantineFaultThreshold:
		return "fault-threshold-exceeded"
	case QuarantineManual:
		return "manual"
	case QuarantineSecurity:
		return "security"
	case QuarantineDriverFailure:
		return "driver-failure"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(r))
	}
}

// RegionState is the tagged health state. Fields beyond Kind are
// meaningful only for the kinds that carry them.
type RegionState struct {
	Kind StateKind `cbor:"1,keyasint"`

	// FaultCount and LastFaultAt are set for StateDegraded.
	FaultCount  int       `cbor:"2,keyasint,omitempty"`
	LastFaultAt time.Time `cbor:"3,keyasint,omitempty"`

	// Reason is set for StateQuarantined.
	Reason QuarantineReason `cbor:"4,keyasint,omitempty"`

	// Since is the instant the region entered this state.
	Since time.Time `cbor:"5,keyasint,omitempty"`
}

// RegionKind tags what a region isolates.
type RegionKind uint8

const (
	RegionKindInvalid RegionKind = iota

	// RegionKernel is the kernel's own region, root of the tree.
	RegionKernel

	// RegionDriver isolates one driver instance. Driver is set.
	RegionDriver

	// RegionApplication isolates one application module. Module is set.
	RegionApplication

	// RegionHostBoundary isolates the interface to the host system.
	RegionHostBoundary
)

// String returns the kind's wire name.
func (k RegionKind) String() string {
	switch k {
	case RegionKernel:
		return "kernel"
	case RegionDriver:
		return "driver"
	case RegionApplication:
		return "application"
	case RegionHostBoundary:
		return "host-boundary"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
}

// RegionType is the tagged variant of what a region isolates. Exactly
// the fields implied by Kind are set.
type RegionType struct {
	Kind   RegionKind   `cbor:"1,keyasint"`
	Driver ref.DriverID `cbor:"2,keyasint,omitempty"`
	Module ref.ModuleID `cbor:"3,keyasint,omitempty"`
}

// KernelRegion is the RegionType of the root region.
var KernelRegion = RegionType{Kind: RegionKernel}

// DriverRegion builds the RegionType for a driver instance.
func DriverRegion(driver ref.DriverID) RegionType {
	return RegionType{Kind: RegionDriver, Driver: driver}
}

// ApplicationRegion builds the RegionType for an application module.
func ApplicationRegion(module ref.ModuleID) RegionType {
	return RegionType{Kind: RegionApplication, Module: module}
}

// Severity grades a fault record.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the severity's wire name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(s))
	}
}

// FaultRecord is one entry in a region's append-only fault history.
type FaultRecord struct {
	// ID is assigned by the registry, strictly increasing across all
	// regions.
	ID uint64 `cbor:"1,keyasint"`

	At       time.Time `cbor:"2,keyasint"`
	Type     string    `cbor:"3,keyasint"`
	Severity Severity  `cbor:"4,keyasint"`

	Description string `cbor:"5,keyasint,omitempty"`

	// Process is the faulting process, when known.
	Process ref.ProcessID `cbor:"6,keyasint,omitempty"`

	// RecoveryAction describes what the registry did in response
	// ("none", "degraded", "quarantined").
	RecoveryAction string `cbor:"7,keyasint,omitempty"`
}

// RegionConfig is the per-region containment policy, supplied at
// region creation.
type RegionConfig struct {
	// FaultThreshold is the recent-fault count at which the region is
	// quarantined.
	FaultThreshold int

	// FaultWindow is the sliding window over which faults count as
	// recent.
	FaultWindow time.Duration

	// QuarantineTimeout bounds how long a quarantined region may be
	// recovered in place. Past the timeout, recovery demands
	// escalation to the parent region.
	QuarantineTimeout time.Duration

	// Restart is the restart policy for processes hosted in this
	// region.
	Restart RestartConfig
}

// DefaultRegionConfig returns the policy used when a region is created
// with a zero config.
func DefaultRegionConfig() RegionConfig {
	return RegionConfig{
		FaultThreshold:    5,
		FaultWindow:       60 * time.Second,
		QuarantineTimeout: 5 * time.Minute,
		Restart:           DefaultRestartConfig(),
	}
}

// Region is a fault containment region descriptor. Parent and Children
// are identifier references resolved through the registry, never
// owning pointers, so the region tree has no ownership cycles.
type Region struct {
	ID   ref.RegionID
	Type RegionType

	State RegionState

	Parent   ref.RegionID
	Children []ref.RegionID

	Config RegionConfig

	// FaultHistory is append-only. Retention is bounded by
	// maxFaultHistory, oldest entries dropped first.
	FaultHistory []FaultRecord

	CreatedAt       time.Time
	LastStateChange time.Time

	// recoveredAt is the watermark of the most recent successful
	// recovery. Faults at or before it do not count as recent, so a
	// recovered region starts from a clean slate without rewriting
	// history.
	recoveredAt time.Time
}

// maxFaultHistory bounds the per-region fault history length.
const maxFaultHistory = 256

// countRecentFaults counts history entries inside the sliding window
// ending at now, ignoring faults at or before the recovery watermark.
func (r *Region) countRecentFaults(now time.Time) (count int, latest time.Time) {
	windowStart := now.Add(-r.Config.FaultWindow)
	for _, fault := range r.FaultHistory {
		if fault.At.Before(windowStart) {
			continue
		}
		if !r.recoveredAt.IsZero() && !fault.At.After(r.recoveredAt) {
			continue
		}
		count++
		if fault.At.After(latest) {
			latest = fault.At
		}
	}
	return count, latest
}

// computeState derives the automatic state from recent fault pressure.
// Quarantined and Shutdown are sticky with respect to this function —
// only explicit registry operations leave them.
func (r *Region) computeState(now time.Time) RegionState {
	if r.State.Kind == StateQuarantined || r.State.Kind == StateShutdown {
		return r.State
	}

	count, latest := r.countRecentFaults(now)
	switch {
	case count == 0:
		return RegionState{Kind: StateHealthy, Since: now}
	case count < r.Config.FaultThreshold:
		return RegionState{Kind: StateDegraded, FaultCount: count, LastFaultAt: latest, Since: now}
	default:
		return RegionState{Kind: StateQuarantined, Reason: QuarantineFaultThreshold, Since: now}
	}
}

// clone returns a deep copy for handing out of the registry.
func (r *Region) clone() Region {
	copied := *r
	if len(r.Children) > 0 {
		copied.Children = append([]ref.RegionID(nil), r.Children...)
	}
	if len(r.FaultHistory) > 0 {
		copied.FaultHistory = append([]FaultRecord(nil), r.FaultHistory...)
	}
	return copied
}
