// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package containment

import (
	"fmt"
	"time"
)

// FailFastReason is the closed set of reasons a guard fails an
// operation immediately.
type FailFastReason uint8

const (
	FailPayloadSize FailFastReason = iota
	FailTimeout
	FailMemory
	FailMailboxFull
	FailQueueFull
	FailSecurity
	FailProtocol
)

// String returns the reason's wire name.
func (r FailFastReason) String() string {
	switch r {
	case FailPayloadSize:
		return "payload-size"
	case FailTimeout:
		return "timeout"
	case FailMemory:
		return "memory"
	case FailMailboxFull:
		return "mailbox-full"
	case FailQueueFull:
		return "queue-full"
	case FailSecurity:
		return "security"
	case FailProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(r))
	}
}

// GuardOutcomeKind tags a guard decision.
type GuardOutcomeKind uint8

const (
	// GuardContinue means the operation proceeds.
	GuardContinue GuardOutcomeKind = iota

	// GuardWarnAndContinue means the operation proceeds with a
	// warning. Reserved exclusively for connection-limit saturation,
	// which is tolerated as backpressure.
	GuardWarnAndContinue

	// GuardFailImmediately means the operation must stop now.
	GuardFailImmediately
)

// GuardOutcome is the deterministic result of a guard check. Callers
// must branch on Kind; there is no implicit success path.
type GuardOutcome struct {
	Kind GuardOutcomeKind

	// Message is set for GuardWarnAndContinue.
	Message string

	// Reason is set for GuardFailImmediately.
	Reason FailFastReason
}

// guardContinue is the zero outcome.
var guardContinue = GuardOutcome{Kind: GuardContinue}

// TemporalGuard bounds an operation's duration as plain deadline data.
// Callers poll Check against their own clock; nothing preempts
// in-flight computation. Cancellation means the caller observes a
// deadline miss and stops issuing further work.
type TemporalGuard struct {
	Start    time.Time
	Deadline time.Time
}

// NewTemporalGuard starts a guard at the given instant with the given
// operation budget.
func NewTemporalGuard(start time.Time, maxOperationTime time.Duration) TemporalGuard {
	return TemporalGuard{Start: start, Deadline: start.Add(maxOperationTime)}
}

// Check reports whether the operation may continue at the given
// instant. The deadline itself is a miss.
func (g TemporalGuard) Check(now time.Time) GuardOutcome {
	if !now.Before(g.Deadline) {
		return GuardOutcome{Kind: GuardFailImmediately, Reason: FailTimeout}
	}
	return guardContinue
}

// Remaining returns the budget left at the given instant; negative
// once the deadline has passed.
func (g TemporalGuard) Remaining(now time.Time) time.Duration {
	return g.Deadline.Sub(now)
}

// SpatialLimits are the resource ceilings a SpatialGuard enforces. A
// zero field disables that ceiling.
type SpatialLimits struct {
	MaxPayloadBytes uint64
	MaxMemoryBytes  uint64
	MaxMailboxDepth int
	MaxQueueDepth   int
	MaxConnections  int
}

// SpatialUsage is a point-in-time usage sample supplied by the caller.
type SpatialUsage struct {
	MemoryBytes  uint64
	MailboxDepth int
	QueueDepth   int
	Connections  int
}

// SpatialGuard checks resource usage against configured ceilings.
// Memory, mailbox, and queue violations fail immediately; connection
// saturation alone warns and continues, because refusing new
// connections is backpressure the caller can absorb, not a fault.
type SpatialGuard struct {
	Limits SpatialLimits
}

// NewSpatialGuard builds a guard over the given limits.
func NewSpatialGuard(limits SpatialLimits) SpatialGuard {
	return SpatialGuard{Limits: limits}
}

// CheckPayload reports whether a payload of the given size may enter.
func (g SpatialGuard) CheckPayload(size uint64) GuardOutcome {
	if g.Limits.MaxPayloadBytes > 0 && size > g.Limits.MaxPayloadBytes {
		return GuardOutcome{Kind: GuardFailImmediately, Reason: FailPayloadSize}
	}
	return guardContinue
}

// Check evaluates a usage sample against every ceiling. Hard
// violations take precedence over the connection warning: a sample
// that both exceeds memory and saturates connections fails.
func (g SpatialGuard) Check(usage SpatialUsage) GuardOutcome {
	if g.Limits.MaxMemoryBytes > 0 && usage.MemoryBytes > g.Limits.MaxMemoryBytes {
		return GuardOutcome{Kind: GuardFailImmediately, Reason: FailMemory}
	}
	if g.Limits.MaxMailboxDepth > 0 && usage.MailboxDepth > g.Limits.MaxMailboxDepth {
		return GuardOutcome{Kind: GuardFailImmediately, Reason: FailMailboxFull}
	}
	if g.Limits.MaxQueueDepth > 0 && usage.QueueDepth > g.Limits.MaxQueueDepth {
		return GuardOutcome{Kind: GuardFailImmediately, Reason: FailQueueFull}
	}
	if g.Limits.MaxConnections > 0 && usage.Connections >= g.Limits.MaxConnections {
		return GuardOutcome{
			Kind: GuardWarnAndContinue,
			Message: fmt.Sprintf("connection limit saturated: %d of %d",
				usage.Connections, g.Limits.MaxConnections),
		}
	}
	return guardContinue
}
