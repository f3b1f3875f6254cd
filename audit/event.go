// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"

	"github.com/warden-foundation/warden/lib/ref"
)

// EventType names an audit record type. The "capability." prefix
// covers store decisions, "region." covers containment, "restart."
// covers the restart controller.
type EventType string

const (
	EventCapabilityCreated    EventType = "capability.created"
	EventCapabilityValidated  EventType = "capability.validated"
	EventCapabilityDenied     EventType = "capability.denied"
	EventCapabilityDelegated  EventType = "capability.delegated"
	EventCapabilityRevoked    EventType = "capability.revoked"
	EventCapabilityExpired    EventType = "capability.expired"
	EventCapabilityUsageLimit EventType = "capability.usage-limit"

	EventRegionFault       EventType = "region.fault"
	EventRegionQuarantined EventType = "region.quarantined"
	EventRegionRecovered   EventType = "region.recovered"
	EventRegionShutdown    EventType = "region.shutdown"

	EventRestartAttempt   EventType = "restart.attempt"
	EventRestartAbandoned EventType = "restart.abandoned"
)

// Record is one audit stream entry. Fields beyond Sequence, At, and
// Type are set only where meaningful for the event; zero identifier
// values serialize as empty strings and are ignored by consumers.
type Record struct {
	// Sequence is assigned by the Recorder, strictly increasing per
	// sink.
	Sequence uint64 `cbor:"1,keyasint"`

	// At is the kernel-supplied instant of the decision being audited,
	// not the time of writing.
	At time.Time `cbor:"2,keyasint"`

	Type EventType `cbor:"3,keyasint"`

	Capability ref.CapabilityID `cbor:"4,keyasint,omitempty"`
	Process    ref.ProcessID    `cbor:"5,keyasint,omitempty"`
	Resource   ref.ResourceID   `cbor:"6,keyasint,omitempty"`
	Region     ref.RegionID     `cbor:"7,keyasint,omitempty"`

	// Reason is the machine-readable reason name for denials,
	// revocations, quarantines, and abandonments.
	Reason string `cbor:"8,keyasint,omitempty"`

	// Detail carries event-specific context (e.g., the rights string
	// of a created capability).
	Detail string `cbor:"9,keyasint,omitempty"`

	// Count carries event-specific magnitudes (cascade size, restart
	// attempt number).
	Count uint64 `cbor:"10,keyasint,omitempty"`
}
