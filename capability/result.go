// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

// Decision is the outcome of a capability validation.
type Decision int

const (
	// Deny means the capability does not authorize the request.
	Deny Decision = iota

	// Allow means the capability authorizes the request.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a validation was denied. The values follow
// the exact check order of Store.ValidateAt — validation short-circuits
// on the first failing check, so a result carries the earliest
// applicable reason.
type DenyReason int

const (
	// ReasonCapabilityNotFound means no capability with the given ID
	// is stored.
	ReasonCapabilityNotFound DenyReason = iota

	// ReasonIntegrityCheckFailed means the capability's keyed checksum
	// did not match its fields. Never locally recoverable.
	ReasonIntegrityCheckFailed

	// ReasonCapabilityRevoked means the capability's revoked flag is
	// set or the revocation ledger carries an entry for it. Never
	// locally recoverable.
	ReasonCapabilityRevoked

	// ReasonCapabilityExpired means the validity's expiry has passed.
	ReasonCapabilityExpired

	// ReasonUsageLimitExceeded means the running use count has reached
	// the configured maximum.
	ReasonUsageLimitExceeded

	// ReasonTimeRestrictionViolated means the current instant falls
	// outside the validity's hour window or weekday list.
	ReasonTimeRestrictionViolated

	// ReasonProcessRestrictionViolated means the requestor is on the
	// deny list or absent from a non-empty allow list.
	ReasonProcessRestrictionViolated

	// ReasonInsufficientRights means at least one required right is
	// missing. ValidationResult.MissingRights lists them.
	ReasonInsufficientRights

	// ReasonWrongResourceType means the request's resource type tag
	// does not match the capability's. Only the type tag is compared,
	// never the full resource identity.
	ReasonWrongResourceType
)

// String returns a stable machine-readable reason name. Translation to
// human-facing text is the caller's responsibility.
func (r DenyReason) String() string {
	switch r {
	case ReasonCapabilityNotFound:
		return "capability-not-found"
	case ReasonIntegrityCheckFailed:
		return "integrity-check-failed"
	case ReasonCapabilityRevoked:
		return "capability-revoked"
	case ReasonCapabilityExpired:
		return "capability-expired"
	case ReasonUsageLimitExceeded:
		return "usage-limit-exceeded"
	case ReasonTimeRestrictionViolated:
		return "time-restriction-violated"
	case ReasonProcessRestrictionViolated:
		return "process-restriction-violated"
	case ReasonInsufficientRights:
		return "insufficient-rights"
	case ReasonWrongResourceType:
		return "wrong-resource-type"
	default:
		return "unknown"
	}
}

// ValidationResult is the structured outcome of Store.ValidateAt.
// Callers must branch on Decision; there is no implicit success path.
type ValidationResult struct {
	// Decision is Allow or Deny.
	Decision Decision

	// Reason describes why the check was denied. Only meaningful when
	// Decision is Deny.
	Reason DenyReason

	// MissingRights lists the required rights the capability lacks.
	// Only set when Reason is ReasonInsufficientRights.
	MissingRights Rights

	// Capability is a snapshot of the validated capability. Set on
	// Allow, and on Deny for every reason past existence and
	// integrity (so audit consumers can attribute the denial).
	Capability *Capability
}
