// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strconv"
	"strings"
)

// CapabilityID is the 128-bit identity of a capability, rendered as
// "cap-" followed by 32 lowercase hex digits. The high 64 bits carry a
// temporal component (Unix nanoseconds at store construction), the low
// 64 bits a per-store monotonic counter. IDs are globally unique and
// never reused — a revoked capability's ID stays burned forever.
//
// CapabilityID is an immutable value type. The zero value (both halves
// zero) is not valid; use IsZero to check.
type CapabilityID struct {
	hi uint64
	lo uint64
}

// NewCapabilityID builds a CapabilityID from its two 64-bit halves.
// The capability store is the only producer of fresh IDs; everything
// else receives IDs from the store or parses them off the wire.
func NewCapabilityID(hi, lo uint64) CapabilityID {
	return CapabilityID{hi: hi, lo: lo}
}

// ParseCapabilityID validates and parses the "cap-<32 hex>" form.
func ParseCapabilityID(raw string) (CapabilityID, error) {
	if raw == "" {
		return CapabilityID{}, fmt.Errorf("empty capability ID")
	}
	rest, found := strings.CutPrefix(raw, "cap-")
	if !found {
		return CapabilityID{}, fmt.Errorf("capability ID must start with \"cap-\": %q", raw)
	}
	if len(rest) != 32 {
		return CapabilityID{}, fmt.Errorf("capability ID must have 32 hex digits, got %d: %q", len(rest), raw)
	}
	hi, err := strconv.ParseUint(rest[:16], 16, 64)
	if err != nil {
		return CapabilityID{}, fmt.Errorf("capability ID high half: %q", raw)
	}
	lo, err := strconv.ParseUint(rest[16:], 16, 64)
	if err != nil {
		return CapabilityID{}, fmt.Errorf("capability ID low half: %q", raw)
	}
	id := CapabilityID{hi: hi, lo: lo}
	if id.IsZero() {
		return CapabilityID{}, fmt.Errorf("capability ID is all zero: %q", raw)
	}
	return id, nil
}

// MustParseCapabilityID is like ParseCapabilityID but panics on error.
func MustParseCapabilityID(raw string) CapabilityID {
	id, err := ParseCapabilityID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseCapabilityID(%q): %v", raw, err))
	}
	return id
}

// String returns the "cap-<32 hex>" rendering.
func (c CapabilityID) String() string {
	return fmt.Sprintf("cap-%016x%016x", c.hi, c.lo)
}

// IsZero reports whether the CapabilityID is the zero value.
func (c CapabilityID) IsZero() bool { return c.hi == 0 && c.lo == 0 }

// Halves returns the high and low 64-bit halves.
func (c CapabilityID) Halves() (hi, lo uint64) { return c.hi, c.lo }

// MarshalText implements encoding.TextMarshaler.
func (c CapabilityID) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return nil, nil
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset capability ID).
func (c *CapabilityID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*c = CapabilityID{}
		return nil
	}
	parsed, err := ParseCapabilityID(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
