// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warden-foundation/warden/audit"
	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/ref"
)

// Errors returned by store operations. Validation outcomes are not
// errors — they are ValidationResult values; these sentinels cover the
// mutating operations (create, delegate, revoke).
var (
	// ErrUsageLimitExceeded covers both the per-owner live-capability
	// quota (create, delegate) and the delegation depth bound
	// (delegate). The wrapped message carries the counts.
	ErrUsageLimitExceeded = errors.New("capability: usage limit exceeded")

	// ErrDelegationNotAllowed means the source capability does not
	// carry the delegate right.
	ErrDelegationNotAllowed = errors.New("capability: delegation not allowed")

	// ErrCapabilityNotFound means no stored capability has the given ID.
	ErrCapabilityNotFound = errors.New("capability: capability not found")

	// ErrCapabilityRevoked means the operation's source capability has
	// been revoked. Never locally recoverable — only a fresh issuance
	// by a proper authority resolves it.
	ErrCapabilityRevoked = errors.New("capability: capability revoked")

	// ErrInsufficientRights means the caller lacks the authority the
	// operation requires (e.g., revoking without being kernel,
	// delegator, or revoke-right holder).
	ErrInsufficientRights = errors.New("capability: insufficient rights")
)

// StoreConfig is supplied once at construction by the host. The store
// never discovers configuration from its environment.
type StoreConfig struct {
	// MaxCapabilitiesPerProcess bounds the live (unrevoked)
	// capabilities any single owner may hold.
	MaxCapabilitiesPerProcess int

	// MaxDelegationDepth bounds the attenuation chain length of any
	// stored capability.
	MaxDelegationDepth int

	// IntegrityChecks enables keyed BLAKE3 checksums over capability
	// identity fields, verified on every validation.
	IntegrityChecks bool

	// IntegrityKey is the 32-byte checksum key. When nil and
	// IntegrityChecks is set, a random key is generated at
	// construction (checksums then do not survive a store rebuild,
	// which is fine — capabilities do not either).
	IntegrityKey []byte
}

// DefaultStoreConfig returns the limits used when the host supplies
// none.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxCapabilitiesPerProcess: 1024,
		MaxDelegationDepth:        8,
		IntegrityChecks:           true,
	}
}

// Stats are the store's monotonic operation counters.
type Stats struct {
	TotalCreated       uint64
	Active             uint64
	Revoked            uint64
	TotalValidations   uint64
	ValidationFailures uint64
}

// Store owns every capability in the system. It is a single-writer
// value: the internal mutex makes it a conforming mutex-guarded
// handle, or the host may confine it to one goroutine. Operations
// taking an explicit now are pure functions of (store state, inputs,
// instant); the convenience variants read the injected clock.
type Store struct {
	mu       sync.Mutex
	config   StoreConfig
	clk      clock.Clock
	recorder *audit.Recorder

	capabilities map[ref.CapabilityID]*Capability

	// liveByOwner counts unrevoked capabilities per owner, enforcing
	// MaxCapabilitiesPerProcess.
	liveByOwner map[ref.ProcessID]int

	// children indexes delegation edges (parent ID to child IDs) so
	// revocation cascades do not scan the whole store.
	children map[ref.CapabilityID][]ref.CapabilityID

	// revocations is the ledger, independent of per-capability flags.
	// Validation consults both.
	revocations map[ref.CapabilityID]RevocationRecord

	// idTemporal and idCounter generate CapabilityIDs: the temporal
	// half is fixed at construction, the counter half is monotonic.
	idTemporal uint64
	idCounter  uint64

	stats Stats
}

// NewStore constructs a Store. clk must be non-nil (inject
// clock.Real() in production). recorder may be nil to disable the
// audit stream.
func NewStore(config StoreConfig, clk clock.Clock, recorder *audit.Recorder) (*Store, error) {
	if clk == nil {
		return nil, errors.New("capability: nil clock")
	}
	if config.MaxCapabilitiesPerProcess <= 0 {
		return nil, fmt.Errorf("capability: MaxCapabilitiesPerProcess must be positive, got %d", config.MaxCapabilitiesPerProcess)
	}
	if config.MaxDelegationDepth <= 0 {
		return nil, fmt.Errorf("capability: MaxDelegationDepth must be positive, got %d", config.MaxDelegationDepth)
	}
	if config.IntegrityChecks {
		switch len(config.IntegrityKey) {
		case 0:
			key := make([]byte, checksumKeySize)
			if _, err := rand.Read(key); err != nil {
				return nil, fmt.Errorf("capability: generating integrity key: %w", err)
			}
			config.IntegrityKey = key
		case checksumKeySize:
		default:
			return nil, fmt.Errorf("capability: integrity key must be %d bytes, got %d", checksumKeySize, len(config.IntegrityKey))
		}
	}

	return &Store{
		config:       config,
		clk:          clk,
		recorder:     recorder,
		capabilities: make(map[ref.CapabilityID]*Capability),
		liveByOwner:  make(map[ref.ProcessID]int),
		children:     make(map[ref.CapabilityID][]ref.CapabilityID),
		revocations:  make(map[ref.CapabilityID]RevocationRecord),
		idTemporal:   uint64(clk.Now().UnixNano()),
	}, nil
}

// nextIDLocked mints a fresh CapabilityID. IDs are never reused: the
// counter only increments, and revoked IDs stay in the map forever.
func (s *Store) nextIDLocked() ref.CapabilityID {
	s.idCounter++
	return ref.NewCapabilityID(s.idTemporal, s.idCounter)
}

// Create mints a kernel-issued capability at the injected clock's now.
func (s *Store) Create(resource ref.ResourceID, rights Rights, owner ref.ProcessID, validity Validity) (Capability, error) {
	return s.CreateAt(resource, rights, owner, validity, s.clk.Now())
}

// CreateAt mints a kernel-issued capability. Precondition: the owner's
// live capability count is strictly below MaxCapabilitiesPerProcess;
// otherwise ErrUsageLimitExceeded carrying the count and the limit.
func (s *Store) CreateAt(resource ref.ResourceID, rights Rights, owner ref.ProcessID, validity Validity, now time.Time) (Capability, error) {
	if resource.IsZero() {
		return Capability{}, errors.New("capability: zero resource")
	}
	if owner.IsZero() {
		return Capability{}, errors.New("capability: zero owner")
	}
	rights.NormalizeCustom()

	s.mu.Lock()
	defer s.mu.Unlock()

	if live := s.liveByOwner[owner]; live >= s.config.MaxCapabilitiesPerProcess {
		return Capability{}, fmt.Errorf("%w: owner %s holds %d of %d live capabilities",
			ErrUsageLimitExceeded, owner, live, s.config.MaxCapabilitiesPerProcess)
	}

	cap := &Capability{
		ID:        s.nextIDLocked(),
		Resource:  resource,
		Rights:    rights.clone(),
		Owner:     owner,
		Issuer:    Issuer{Kind: IssuerKernel},
		Validity:  validity.clone(),
		CreatedAt: now,
		Version:   1,
	}
	if s.config.IntegrityChecks {
		cap.Checksum = s.checksum(cap)
	}

	s.capabilities[cap.ID] = cap
	s.liveByOwner[owner]++
	s.stats.TotalCreated++
	s.stats.Active++

	s.recorder.Emit(audit.Record{
		At:         now,
		Type:       audit.EventCapabilityCreated,
		Capability: cap.ID,
		Process:    owner,
		Resource:   resource,
		Detail:     cap.Rights.String(),
	})

	return cap.clone(), nil
}

// Validate checks a capability against a request at the injected
// clock's now.
func (s *Store) Validate(capID ref.CapabilityID, required Rights, resource ref.ResourceID, requestor ref.ProcessID) ValidationResult {
	return s.ValidateAt(capID, required, resource, requestor, s.clk.Now())
}

// ValidateAt checks whether the identified capability authorizes the
// requestor to exercise the required rights on the resource. Checks
// run in a fixed order and short-circuit on the first failure — the
// order is contract, not accident:
//
//	existence → integrity → revocation → expiration → usage →
//	time restrictions → process restrictions → rights → resource type
//
// Revocation consults both the capability's own flag and the
// independent revocation ledger; either suffices to deny. The resource
// check compares type tags only, never full resource identity.
//
// Every call increments TotalValidations; denials additionally
// increment ValidationFailures. A successful validation stamps
// LastValidatedAt (but does not consume a use — only the driver
// interface increments use counts, on grant).
func (s *Store) ValidateAt(capID ref.CapabilityID, required Rights, resource ref.ResourceID, requestor ref.ProcessID, now time.Time) ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalValidations++

	cap, exists := s.capabilities[capID]
	if !exists {
		return s.denyLocked(nil, capID, requestor, ReasonCapabilityNotFound, Rights{}, now)
	}

	if s.config.IntegrityChecks && !s.verifyChecksumLocked(cap) {
		return s.denyLocked(nil, capID, requestor, ReasonIntegrityCheckFailed, Rights{}, now)
	}

	_, ledgered := s.revocations[capID]
	if cap.Flags.Revoked || ledgered {
		return s.denyLocked(cap, capID, requestor, ReasonCapabilityRevoked, Rights{}, now)
	}

	if cap.Validity.expired(now) {
		return s.denyLocked(cap, capID, requestor, ReasonCapabilityExpired, Rights{}, now)
	}

	if cap.Validity.usesExhausted() {
		return s.denyLocked(cap, capID, requestor, ReasonUsageLimitExceeded, Rights{}, now)
	}

	if !cap.Validity.timeAllowed(now) {
		return s.denyLocked(cap, capID, requestor, ReasonTimeRestrictionViolated, Rights{}, now)
	}

	if !cap.Validity.processAllowed(requestor) {
		return s.denyLocked(cap, capID, requestor, ReasonProcessRestrictionViolated, Rights{}, now)
	}

	if missing := required.Minus(cap.Rights); !missing.IsEmpty() {
		return s.denyLocked(cap, capID, requestor, ReasonInsufficientRights, missing, now)
	}

	if !resource.SameType(cap.Resource) {
		return s.denyLocked(cap, capID, requestor, ReasonWrongResourceType, Rights{}, now)
	}

	cap.LastValidatedAt = now
	snapshot := cap.clone()

	s.recorder.Emit(audit.Record{
		At:         now,
		Type:       audit.EventCapabilityValidated,
		Capability: capID,
		Process:    requestor,
		Resource:   cap.Resource,
	})

	return ValidationResult{Decision: Allow, Capability: &snapshot}
}

// denyLocked counts the failure, emits the audit event, and builds the
// deny result. cap may be nil for existence and integrity failures.
func (s *Store) denyLocked(cap *Capability, capID ref.CapabilityID, requestor ref.ProcessID, reason DenyReason, missing Rights, now time.Time) ValidationResult {
	s.stats.ValidationFailures++

	eventType := audit.EventCapabilityDenied
	switch reason {
	case ReasonCapabilityExpired:
		eventType = audit.EventCapabilityExpired
	case ReasonUsageLimitExceeded:
		eventType = audit.EventCapabilityUsageLimit
	}
	s.recorder.Emit(audit.Record{
		At:         now,
		Type:       eventType,
		Capability: capID,
		Process:    requestor,
		Reason:     reason.String(),
	})

	result := ValidationResult{Decision: Deny, Reason: reason, MissingRights: missing}
	if cap != nil {
		snapshot := cap.clone()
		result.Capability = &snapshot
	}
	return result
}

// Delegate produces an attenuated child capability at the injected
// clock's now.
func (s *Store) Delegate(capID ref.CapabilityID, to ref.ProcessID, requested Rights, delegator ref.ProcessID) (Capability, error) {
	return s.DelegateAt(capID, to, requested, delegator, s.clk.Now())
}

// DelegateAt produces a new capability for process `to`, attenuated
// from the source capability. Preconditions: the source carries the
// delegate right (ErrDelegationNotAllowed), is not revoked
// (ErrCapabilityRevoked), its chain is below MaxDelegationDepth, and
// the recipient is under its live-capability quota (both
// ErrUsageLimitExceeded).
//
// The child's rights are the field-wise AND of the source's rights and
// the requested rights — asking for a right the source lacks drops it
// silently, it is not an error. The child's admin flag is forced false
// regardless of the source's. The source capability is never mutated.
func (s *Store) DelegateAt(capID ref.CapabilityID, to ref.ProcessID, requested Rights, delegator ref.ProcessID, now time.Time) (Capability, error) {
	if to.IsZero() {
		return Capability{}, errors.New("capability: zero recipient")
	}
	requested.NormalizeCustom()

	s.mu.Lock()
	defer s.mu.Unlock()

	source, exists := s.capabilities[capID]
	if !exists {
		return Capability{}, fmt.Errorf("%w: %s", ErrCapabilityNotFound, capID)
	}
	if _, ledgered := s.revocations[capID]; source.Flags.Revoked || ledgered {
		return Capability{}, fmt.Errorf("%w: %s", ErrCapabilityRevoked, capID)
	}
	if !source.Rights.Delegate {
		return Capability{}, fmt.Errorf("%w: %s", ErrDelegationNotAllowed, capID)
	}
	if depth := source.DelegationDepth(); depth >= s.config.MaxDelegationDepth {
		return Capability{}, fmt.Errorf("%w: delegation depth %d at limit %d",
			ErrUsageLimitExceeded, depth, s.config.MaxDelegationDepth)
	}
	if live := s.liveByOwner[to]; live >= s.config.MaxCapabilitiesPerProcess {
		return Capability{}, fmt.Errorf("%w: recipient %s holds %d of %d live capabilities",
			ErrUsageLimitExceeded, to, live, s.config.MaxCapabilitiesPerProcess)
	}

	newRights := source.Rights.Intersect(requested)

	// The child inherits the source's validity constraints with a
	// fresh use count. Constraints never loosen across delegation.
	childValidity := source.Validity.clone()
	childValidity.UseCount = 0

	chain := make([]AttenuationRecord, 0, len(source.AttenuationChain)+1)
	chain = append(chain, AttenuationRecord{
		Attenuator:    delegator,
		RightsRemoved: source.Rights.Minus(newRights),
		Timestamp:     now,
	})
	for _, record := range source.AttenuationChain {
		chain = append(chain, record)
	}

	child := &Capability{
		ID:       s.nextIDLocked(),
		Resource: source.Resource,
		Rights:   newRights,
		Owner:    to,
		Issuer: Issuer{
			Kind:      IssuerDelegated,
			Parent:    source.ID,
			Delegator: delegator,
		},
		Validity:         childValidity,
		AttenuationChain: chain,
		// Admin never propagates across delegation.
		Flags:     Flags{Admin: false},
		CreatedAt: now,
		Version:   1,
	}
	if s.config.IntegrityChecks {
		child.Checksum = s.checksum(child)
	}

	s.capabilities[child.ID] = child
	s.children[source.ID] = append(s.children[source.ID], child.ID)
	s.liveByOwner[to]++
	s.stats.TotalCreated++
	s.stats.Active++

	s.recorder.Emit(audit.Record{
		At:         now,
		Type:       audit.EventCapabilityDelegated,
		Capability: child.ID,
		Process:    to,
		Resource:   child.Resource,
		Detail:     child.Rights.String(),
	})

	return child.clone(), nil
}

// Revoke revokes a capability at the injected clock's now.
func (s *Store) Revoke(capID ref.CapabilityID, revoker ref.ProcessID, reason string) (int, error) {
	return s.RevokeAt(capID, revoker, reason, s.clk.Now())
}

// RevokeAt revokes the identified capability and cascades through its
// delegation descendants (full transitive closure — revoking a parent
// revokes grandchildren too). Returns the number of capabilities
// revoked, including the target. Revoking an already-revoked
// capability is a no-op returning 0.
//
// Authority: the revoker must be the kernel (for kernel-issued
// capabilities), the delegator recorded on a delegated capability, or
// the capability's owner holding the revoke right. Anything else is
// ErrInsufficientRights.
//
// Revocation is one-way: the flag is never cleared, the ledger entry
// never removed, and the ID never reissued.
func (s *Store) RevokeAt(capID ref.CapabilityID, revoker ref.ProcessID, reason string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, exists := s.capabilities[capID]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrCapabilityNotFound, capID)
	}

	authorized := false
	switch {
	case target.Issuer.Kind == IssuerKernel && revoker == KernelProcess:
		authorized = true
	case target.Issuer.Kind == IssuerDelegated && target.Issuer.Delegator == revoker:
		authorized = true
	case target.Rights.Revoke && target.Owner == revoker:
		authorized = true
	}
	if !authorized {
		return 0, fmt.Errorf("%w: %s may not revoke %s", ErrInsufficientRights, revoker, capID)
	}

	if target.Flags.Revoked {
		return 0, nil
	}

	// Walk the delegation tree breadth-first. Every reachable
	// descendant is revoked in the same atomic step, so no validation
	// interleaves between a parent's revocation and its children's.
	revoked := 0
	queue := []ref.CapabilityID{capID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		cap := s.capabilities[id]
		if cap == nil || cap.Flags.Revoked {
			continue
		}

		cap.Flags.Revoked = true
		cap.RevokedAt = now
		s.revocations[id] = RevocationRecord{
			Capability: id,
			Revoker:    revoker,
			Reason:     reason,
			RevokedAt:  now,
			Cascaded:   id != capID,
		}
		s.liveByOwner[cap.Owner]--
		s.stats.Active--
		s.stats.Revoked++
		revoked++

		queue = append(queue, s.children[id]...)
	}

	s.recorder.Emit(audit.Record{
		At:         now,
		Type:       audit.EventCapabilityRevoked,
		Capability: capID,
		Process:    revoker,
		Reason:     reason,
		Count:      uint64(revoked),
	})

	return revoked, nil
}

// Get returns a snapshot of the identified capability, revoked or not.
func (s *Store) Get(capID ref.CapabilityID) (Capability, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cap, exists := s.capabilities[capID]
	if !exists {
		return Capability{}, false
	}
	return cap.clone(), true
}

// IsRevoked consults the revocation ledger.
func (s *Store) IsRevoked(capID ref.CapabilityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ledgered := s.revocations[capID]
	return ledgered
}

// Stats returns a copy of the operation counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// incrementUseLocked is called by the driver interface after a grant.
func (s *Store) incrementUse(capID ref.CapabilityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap, exists := s.capabilities[capID]; exists {
		cap.Validity.UseCount++
	}
}
