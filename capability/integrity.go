// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"bytes"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/warden-foundation/warden/lib/codec"
	"github.com/warden-foundation/warden/lib/ref"
)

// checksumKeySize is the keyed-BLAKE3 key length.
const checksumKeySize = 32

// checksumFields is the canonical encoding input for a capability's
// checksum: the immutable identity fields only. Mutable bookkeeping
// (use count, flags, revocation and validation timestamps) is excluded
// so normal operation never invalidates a checksum — only corruption
// or tampering does.
type checksumFields struct {
	ID        ref.CapabilityID    `cbor:"1,keyasint"`
	Resource  ref.ResourceID      `cbor:"2,keyasint"`
	Rights    Rights              `cbor:"3,keyasint"`
	Owner     ref.ProcessID       `cbor:"4,keyasint"`
	Issuer    Issuer              `cbor:"5,keyasint"`
	Chain     []AttenuationRecord `cbor:"6,keyasint,omitempty"`
	CreatedAt int64               `cbor:"7,keyasint"`
	Version   uint32              `cbor:"8,keyasint"`
}

// checksum computes the keyed BLAKE3 digest of a capability's identity
// fields under the store's integrity key.
func (s *Store) checksum(cap *Capability) []byte {
	encoded, err := codec.Marshal(checksumFields{
		ID:        cap.ID,
		Resource:  cap.Resource,
		Rights:    cap.Rights,
		Owner:     cap.Owner,
		Issuer:    cap.Issuer,
		Chain:     cap.AttenuationChain,
		CreatedAt: cap.CreatedAt.UnixNano(),
		Version:   cap.Version,
	})
	if err != nil {
		// The field types all have total encodings; a failure here is a
		// programming error, not a data condition.
		panic("capability: encoding checksum fields: " + err.Error())
	}

	hasher, err := blake3.NewKeyed(s.config.IntegrityKey)
	if err != nil {
		panic("capability: constructing keyed hasher: " + err.Error())
	}
	hasher.Write(encoded)
	return hasher.Sum(nil)
}

// verifyChecksumLocked recomputes and compares a stored capability's
// checksum. A capability stored before integrity checks were enabled
// has no checksum and fails verification.
func (s *Store) verifyChecksumLocked(cap *Capability) bool {
	if len(cap.Checksum) == 0 {
		return false
	}
	return bytes.Equal(cap.Checksum, s.checksum(cap))
}

// InvariantViolation describes one capability found violating a store
// invariant during a CheckInvariants sweep.
type InvariantViolation struct {
	Capability ref.CapabilityID

	// Invariant names the violated property: "checksum",
	// "monotonic-attenuation", "revoked-access", "delegation-depth".
	Invariant string

	Detail string
}

func (v InvariantViolation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.Capability, v.Invariant, v.Detail)
}

// CheckInvariants sweeps every stored capability and reports
// violations of the store's security invariants:
//
//   - checksum: the keyed digest matches the identity fields (only
//     when integrity checks are enabled);
//   - monotonic-attenuation: a delegated capability's rights are a
//     subset of its recorded parent's;
//   - revoked-access: no capability was successfully validated after
//     its revocation instant;
//   - delegation-depth: no chain exceeds the configured bound.
//
// A healthy store returns an empty slice. The sweep holds the store
// lock for its duration; it is a diagnostic for tests and the
// warden-check tool, not a hot-path operation.
func (s *Store) CheckInvariants() []InvariantViolation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var violations []InvariantViolation

	for id, cap := range s.capabilities {
		if s.config.IntegrityChecks && !s.verifyChecksumLocked(cap) {
			violations = append(violations, InvariantViolation{
				Capability: id,
				Invariant:  "checksum",
				Detail:     "stored checksum does not match identity fields",
			})
		}

		if cap.Issuer.Kind == IssuerDelegated {
			parent, exists := s.capabilities[cap.Issuer.Parent]
			if !exists {
				violations = append(violations, InvariantViolation{
					Capability: id,
					Invariant:  "monotonic-attenuation",
					Detail:     fmt.Sprintf("parent %s is not stored", cap.Issuer.Parent),
				})
			} else if !cap.Rights.Subset(parent.Rights) {
				violations = append(violations, InvariantViolation{
					Capability: id,
					Invariant:  "monotonic-attenuation",
					Detail: fmt.Sprintf("rights %s exceed parent rights %s",
						cap.Rights.String(), parent.Rights.String()),
				})
			}
		}

		if cap.Flags.Revoked && !cap.RevokedAt.IsZero() &&
			cap.LastValidatedAt.After(cap.RevokedAt) {
			violations = append(violations, InvariantViolation{
				Capability: id,
				Invariant:  "revoked-access",
				Detail: fmt.Sprintf("validated at %s after revocation at %s",
					cap.LastValidatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
					cap.RevokedAt.Format("2006-01-02T15:04:05.000Z07:00")),
			})
		}

		if depth := cap.DelegationDepth(); depth > s.config.MaxDelegationDepth {
			violations = append(violations, InvariantViolation{
				Capability: id,
				Invariant:  "delegation-depth",
				Detail:     fmt.Sprintf("chain length %d exceeds limit %d", depth, s.config.MaxDelegationDepth),
			})
		}
	}

	return violations
}
