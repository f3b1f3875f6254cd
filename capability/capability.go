// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"time"

	"github.com/warden-foundation/warden/lib/ref"
)

// KernelProcess is the well-known process identity of the kernel
// authority itself. Only the kernel may revoke kernel-issued
// capabilities without holding the revoke right.
var KernelProcess = ref.MustParseProcessID("kernel")

// IssuerKind tags how a capability came into existence.
type IssuerKind uint8

const (
	// IssuerInvalid is the zero value. Never valid.
	IssuerInvalid IssuerKind = iota

	// IssuerKernel marks a capability minted directly by the kernel
	// authority via Store.Create.
	IssuerKernel

	// IssuerDelegated marks a capability produced by delegation from a
	// parent capability. Parent and Delegator are set.
	IssuerDelegated

	// IssuerDriver marks a capability minted by a driver for a
	// resource it mediates. Driver is set.
	IssuerDriver
)

// String returns the wire name of the issuer kind.
func (k IssuerKind) String() string {
	switch k {
	case IssuerKernel:
		return "kernel"
	case IssuerDelegated:
		return "delegated"
	case IssuerDriver:
		return "driver"
	default:
		return "invalid"
	}
}

// Issuer is the tagged origin of a capability. Exactly the fields
// implied by Kind are set; the rest stay zero.
type Issuer struct {
	Kind IssuerKind `cbor:"1,keyasint"`

	// Parent is the capability this one was delegated from. Set only
	// for IssuerDelegated. Revocation cascades follow these
	// references.
	Parent ref.CapabilityID `cbor:"2,keyasint,omitempty"`

	// Delegator is the process that performed the delegation. Set only
	// for IssuerDelegated. The delegator retains revocation authority
	// over the child.
	Delegator ref.ProcessID `cbor:"3,keyasint,omitempty"`

	// Driver is the issuing driver. Set only for IssuerDriver.
	Driver ref.DriverID `cbor:"4,keyasint,omitempty"`
}

// AttenuationRecord captures one delegation step: who attenuated,
// which rights were removed relative to the parent, and any constraint
// descriptions added. The chain is append-only; its length is the
// capability's delegation depth.
type AttenuationRecord struct {
	Attenuator       ref.ProcessID `cbor:"1,keyasint"`
	RightsRemoved    Rights        `cbor:"2,keyasint"`
	ConstraintsAdded []string      `cbor:"3,keyasint,omitempty"`
	Timestamp        time.Time     `cbor:"4,keyasint"`
}

// Flags holds the capability's state bits. Revoked is sticky: no
// operation ever clears it.
type Flags struct {
	Revoked bool `cbor:"1,keyasint,omitempty"`

	// Admin marks a capability carrying administrative weight.
	// Delegation always forces Admin false on the child regardless of
	// the parent's value — admin status never propagates.
	Admin bool `cbor:"2,keyasint,omitempty"`
}

// Capability is an unforgeable, resource-scoped, rights-bearing token.
// Capabilities are created only by the store (kernel issuance or
// delegation) and are never deleted — revocation marks them and burns
// their ID forever.
type Capability struct {
	ID       ref.CapabilityID `cbor:"1,keyasint"`
	Resource ref.ResourceID   `cbor:"2,keyasint"`
	Rights   Rights           `cbor:"3,keyasint"`
	Owner    ref.ProcessID    `cbor:"4,keyasint"`
	Issuer   Issuer           `cbor:"5,keyasint"`
	Validity Validity         `cbor:"6,keyasint"`

	// AttenuationChain lists delegation steps newest-first. Empty for
	// kernel- and driver-issued capabilities.
	AttenuationChain []AttenuationRecord `cbor:"7,keyasint,omitempty"`

	Flags     Flags     `cbor:"8,keyasint"`
	CreatedAt time.Time `cbor:"9,keyasint"`
	Version   uint32    `cbor:"10,keyasint"`

	// RevokedAt is the instant Flags.Revoked was set. Zero while the
	// capability is live.
	RevokedAt time.Time `cbor:"11,keyasint,omitempty"`

	// LastValidatedAt is the instant of the most recent successful
	// validation. Feeds the revoked-access invariant check: no
	// capability may have been validated after its revocation.
	LastValidatedAt time.Time `cbor:"12,keyasint,omitempty"`

	// Checksum is the keyed BLAKE3 digest over the capability's
	// immutable identity fields. Set when the store's integrity checks
	// are enabled; verified on every validation.
	Checksum []byte `cbor:"13,keyasint,omitempty"`
}

// DelegationDepth returns the number of delegation steps between this
// capability and its kernel- or driver-issued ancestor.
func (c *Capability) DelegationDepth() int {
	return len(c.AttenuationChain)
}

// clone returns a deep copy. The store hands out clones so callers can
// never mutate stored state through a returned capability.
func (c *Capability) clone() Capability {
	copied := *c
	copied.Rights = c.Rights.clone()
	copied.Validity = c.Validity.clone()
	if len(c.AttenuationChain) > 0 {
		chain := make([]AttenuationRecord, len(c.AttenuationChain))
		for i, record := range c.AttenuationChain {
			chain[i] = record
			chain[i].RightsRemoved = record.RightsRemoved.clone()
			if len(record.ConstraintsAdded) > 0 {
				chain[i].ConstraintsAdded = append([]string(nil), record.ConstraintsAdded...)
			}
		}
		copied.AttenuationChain = chain
	}
	if len(c.Checksum) > 0 {
		copied.Checksum = append([]byte(nil), c.Checksum...)
	}
	return copied
}

// RevocationRecord is the ledger entry written when a capability is
// revoked. The ledger is independent of the capability's own flag:
// validation consults both, so a revocation is observable even if the
// flag were somehow lost.
type RevocationRecord struct {
	Capability ref.CapabilityID `cbor:"1,keyasint"`
	Revoker    ref.ProcessID    `cbor:"2,keyasint"`
	Reason     string           `cbor:"3,keyasint"`
	RevokedAt  time.Time        `cbor:"4,keyasint"`

	// Cascaded is true when the entry was produced by a revocation
	// cascade rather than a direct revoke call.
	Cascaded bool `cbor:"5,keyasint,omitempty"`
}
