// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"time"

	"github.com/warden-foundation/warden/lib/ref"
)

// HourWindow restricts capability use to a daily window of wall-clock
// hours, inclusive of Start and exclusive of End. A window where Start
// > End wraps midnight (e.g., {22, 6} allows 22:00-05:59).
type HourWindow struct {
	Start uint8 `cbor:"1,keyasint"`
	End   uint8 `cbor:"2,keyasint"`
}

// Contains reports whether the given hour (0-23) falls inside the
// window.
func (w HourWindow) Contains(hour int) bool {
	start, end := int(w.Start), int(w.End)
	if start <= end {
		return hour >= start && hour < end
	}
	// Wraps midnight.
	return hour >= start || hour < end
}

// Validity bundles the optional constraints on when and by whom a
// capability may be used. Every field is optional; the zero value is
// an unrestricted, non-expiring validity.
type Validity struct {
	// ExpiresAt is the instant after which validation fails with
	// ReasonCapabilityExpired. Zero means no expiry.
	ExpiresAt time.Time `cbor:"1,keyasint,omitempty"`

	// MaxUses caps the number of granted accesses. Zero means
	// unlimited. UseCount is the running total, incremented by the
	// driver interface on each grant.
	MaxUses  uint64 `cbor:"2,keyasint,omitempty"`
	UseCount uint64 `cbor:"3,keyasint,omitempty"`

	// Hours, when non-nil, restricts use to a daily wall-clock window.
	Hours *HourWindow `cbor:"4,keyasint,omitempty"`

	// Days, when non-empty, restricts use to the listed weekdays.
	Days []time.Weekday `cbor:"5,keyasint,omitempty"`

	// AllowedProcesses, when non-empty, is a closed list of requestors
	// permitted to use the capability. DeniedProcesses is checked
	// first; a process on both lists is denied.
	AllowedProcesses []ref.ProcessID `cbor:"6,keyasint,omitempty"`
	DeniedProcesses  []ref.ProcessID `cbor:"7,keyasint,omitempty"`
}

// expired reports whether the capability has expired at the given
// instant. Expiry is inclusive: a capability expires exactly at
// ExpiresAt.
func (v Validity) expired(now time.Time) bool {
	return !v.ExpiresAt.IsZero() && !now.Before(v.ExpiresAt)
}

// usesExhausted reports whether the running use count has reached the
// configured maximum.
func (v Validity) usesExhausted() bool {
	return v.MaxUses > 0 && v.UseCount >= v.MaxUses
}

// timeAllowed reports whether the given instant falls inside the
// configured hour window and weekday list.
func (v Validity) timeAllowed(now time.Time) bool {
	if v.Hours != nil && !v.Hours.Contains(now.Hour()) {
		return false
	}
	if len(v.Days) > 0 {
		weekday := now.Weekday()
		allowed := false
		for _, day := range v.Days {
			if day == weekday {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

// processAllowed reports whether the requestor passes the deny list
// then the allow list, in that order.
func (v Validity) processAllowed(requestor ref.ProcessID) bool {
	for _, denied := range v.DeniedProcesses {
		if denied == requestor {
			return false
		}
	}
	if len(v.AllowedProcesses) == 0 {
		return true
	}
	for _, allowed := range v.AllowedProcesses {
		if allowed == requestor {
			return true
		}
	}
	return false
}

// clone returns a deep copy of the validity (slices and the hour
// window are otherwise shared).
func (v Validity) clone() Validity {
	copied := v
	if v.Hours != nil {
		window := *v.Hours
		copied.Hours = &window
	}
	if len(v.Days) > 0 {
		copied.Days = append([]time.Weekday(nil), v.Days...)
	}
	if len(v.AllowedProcesses) > 0 {
		copied.AllowedProcesses = append([]ref.ProcessID(nil), v.AllowedProcesses...)
	}
	if len(v.DeniedProcesses) > 0 {
		copied.DeniedProcesses = append([]ref.ProcessID(nil), v.DeniedProcesses...)
	}
	return copied
}
