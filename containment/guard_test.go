// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package containment

import (
	"testing"
	"time"
)

func TestTemporalGuard(t *testing.T) {
	guard := NewTemporalGuard(testEpoch, 500*time.Millisecond)

	if outcome := guard.Check(testEpoch); outcome.Kind != GuardContinue {
		t.Fatalf("at start: %v", outcome)
	}
	if outcome := guard.Check(testEpoch.Add(499 * time.Millisecond)); outcome.Kind != GuardContinue {
		t.Fatalf("just inside budget: %v", outcome)
	}

	// The deadline itself is a miss.
	outcome := guard.Check(testEpoch.Add(500 * time.Millisecond))
	if outcome.Kind != GuardFailImmediately || outcome.Reason != FailTimeout {
		t.Fatalf("at deadline: %v", outcome)
	}

	if remaining := guard.Remaining(testEpoch.Add(600 * time.Millisecond)); remaining >= 0 {
		t.Fatalf("Remaining past deadline = %s", remaining)
	}
}

func TestSpatialGuardCheckPayload(t *testing.T) {
	guard := NewSpatialGuard(SpatialLimits{MaxPayloadBytes: 1024})

	if outcome := guard.CheckPayload(1024); outcome.Kind != GuardContinue {
		t.Fatalf("at limit: %v", outcome)
	}
	outcome := guard.CheckPayload(1025)
	if outcome.Kind != GuardFailImmediately || outcome.Reason != FailPayloadSize {
		t.Fatalf("over limit: %v", outcome)
	}

	// Zero limit disables the ceiling.
	unbounded := NewSpatialGuard(SpatialLimits{})
	if outcome := unbounded.CheckPayload(1 << 40); outcome.Kind != GuardContinue {
		t.Fatalf("unbounded: %v", outcome)
	}
}

func TestSpatialGuardCheck(t *testing.T) {
	guard := NewSpatialGuard(SpatialLimits{
		MaxMemoryBytes:  1 << 20,
		MaxMailboxDepth: 100,
		MaxQueueDepth:   50,
		MaxConnections:  10,
	})

	tests := []struct {
		name   string
		usage  SpatialUsage
		kind   GuardOutcomeKind
		reason FailFastReason
	}{
		{"all clear", SpatialUsage{MemoryBytes: 1024, MailboxDepth: 1, QueueDepth: 1, Connections: 1}, GuardContinue, 0},
		{"memory ceiling", SpatialUsage{MemoryBytes: 1<<20 + 1}, GuardFailImmediately, FailMemory},
		{"mailbox full", SpatialUsage{MailboxDepth: 101}, GuardFailImmediately, FailMailboxFull},
		{"queue full", SpatialUsage{QueueDepth: 51}, GuardFailImmediately, FailQueueFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := guard.Check(tt.usage)
			if outcome.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", outcome.Kind, tt.kind)
			}
			if tt.kind == GuardFailImmediately && outcome.Reason != tt.reason {
				t.Fatalf("reason = %s, want %s", outcome.Reason, tt.reason)
			}
		})
	}
}

func TestSpatialGuardConnectionSaturationWarns(t *testing.T) {
	guard := NewSpatialGuard(SpatialLimits{MaxMemoryBytes: 1 << 20, MaxConnections: 10})

	// Connection saturation alone is backpressure, never a fault.
	outcome := guard.Check(SpatialUsage{Connections: 10})
	if outcome.Kind != GuardWarnAndContinue {
		t.Fatalf("saturated connections: %v", outcome)
	}
	if outcome.Message == "" {
		t.Fatal("warn outcome has no message")
	}

	// A hard violation takes precedence over the connection warning.
	outcome = guard.Check(SpatialUsage{MemoryBytes: 1<<20 + 1, Connections: 10})
	if outcome.Kind != GuardFailImmediately || outcome.Reason != FailMemory {
		t.Fatalf("memory + connections: %v", outcome)
	}
}
