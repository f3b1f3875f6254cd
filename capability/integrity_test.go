// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"testing"
	"time"
)

func TestIntegrityTamperDetection(t *testing.T) {
	store, _ := newTestStore(t)
	cap, err := store.Create(fileResource, Rights{Read: true}, alice, Validity{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Reach into the stored value and escalate its rights, bypassing
	// every store operation.
	store.mu.Lock()
	store.capabilities[cap.ID].Rights.Write = true
	store.mu.Unlock()

	result := store.Validate(cap.ID, Rights{Read: true}, fileResource, alice)
	if result.Decision != Deny || result.Reason != ReasonIntegrityCheckFailed {
		t.Fatalf("tampered capability: %s (%s), want deny (integrity-check-failed)",
			result.Decision, result.Reason)
	}

	violations := store.CheckInvariants()
	if len(violations) != 1 || violations[0].Invariant != "checksum" {
		t.Fatalf("CheckInvariants() = %v, want one checksum violation", violations)
	}
}

func TestIntegrityMutableFieldsDoNotInvalidate(t *testing.T) {
	store, _ := newTestStore(t)
	authorizer := NewAuthorizer(store, nil)

	cap, err := store.Create(fileResource, Rights{Read: true}, alice, Validity{MaxUses: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Use counts and validation timestamps change during normal
	// operation; the checksum covers identity fields only.
	for i := 0; i < 3; i++ {
		if decision := authorizer.Authorize(cap.ID, Operation{Kind: OpRead}, fileResource, alice); !decision.Granted {
			t.Fatalf("grant %d denied: %s", i+1, decision.Reason)
		}
	}
	if violations := store.CheckInvariants(); len(violations) != 0 {
		t.Fatalf("CheckInvariants() after normal use = %v", violations)
	}
}

func TestCheckInvariantsCleanStore(t *testing.T) {
	store, _ := newTestStore(t)

	parent, err := store.Create(fileResource, Rights{Read: true, Delegate: true}, alice, Validity{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Delegate(parent.ID, bob, Rights{Read: true}, alice); err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if _, err := store.Revoke(parent.ID, KernelProcess, "sweep"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if violations := store.CheckInvariants(); len(violations) != 0 {
		t.Fatalf("CheckInvariants() = %v, want none", violations)
	}
}

func TestRevokedAccessInvariant(t *testing.T) {
	store, _ := newTestStore(t)
	cap, err := store.Create(fileResource, Rights{Read: true}, alice, Validity{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Revoke(cap.ID, KernelProcess, "x"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// Validation after revocation is denied and must not stamp
	// LastValidatedAt.
	result := store.ValidateAt(cap.ID, Rights{Read: true}, fileResource, alice, testEpoch.Add(time.Minute))
	if result.Reason != ReasonCapabilityRevoked {
		t.Fatalf("reason = %s", result.Reason)
	}
	if violations := store.CheckInvariants(); len(violations) != 0 {
		t.Fatalf("CheckInvariants() = %v", violations)
	}

	// Forge a validation timestamp after revocation: the sweep must
	// report it.
	store.mu.Lock()
	store.capabilities[cap.ID].LastValidatedAt = testEpoch.Add(time.Hour)
	store.mu.Unlock()

	violations := store.CheckInvariants()
	found := false
	for _, v := range violations {
		if v.Invariant == "revoked-access" {
			found = true
		}
	}
	if !found {
		t.Fatalf("CheckInvariants() = %v, want a revoked-access violation", violations)
	}
}

func TestIntegrityDisabled(t *testing.T) {
	store, clk := newTestStore(t)
	_ = clk

	config := DefaultStoreConfig()
	config.IntegrityChecks = false
	plain, err := NewStore(config, store.clk, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	cap, err := plain.Create(fileResource, Rights{Read: true}, alice, Validity{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(cap.Checksum) != 0 {
		t.Fatal("checksum set with integrity checks disabled")
	}
	if result := plain.Validate(cap.ID, Rights{Read: true}, fileResource, alice); result.Decision != Allow {
		t.Fatalf("Validate = %s (%s)", result.Decision, result.Reason)
	}
}
