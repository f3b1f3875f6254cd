// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"sort"
	"strings"
)

// Rights is the set of operations a capability permits on its resource:
// eight well-known boolean flags plus an open list of custom named
// rights for driver-defined operations. Rights only ever shrink across
// delegation, never grow.
type Rights struct {
	Read     bool `cbor:"1,keyasint,omitempty"`
	Write    bool `cbor:"2,keyasint,omitempty"`
	Delete   bool `cbor:"3,keyasint,omitempty"`
	Execute  bool `cbor:"4,keyasint,omitempty"`
	Create   bool `cbor:"5,keyasint,omitempty"`
	List     bool `cbor:"6,keyasint,omitempty"`
	Delegate bool `cbor:"7,keyasint,omitempty"`
	Revoke   bool `cbor:"8,keyasint,omitempty"`

	// Custom holds driver-defined named rights (e.g., "compact",
	// "snapshot"). Stored sorted and deduplicated.
	Custom []string `cbor:"9,keyasint,omitempty"`
}

// NormalizeCustom sorts and deduplicates the custom rights list in
// place. Constructors call this so that set operations and equality
// behave predictably.
func (r *Rights) NormalizeCustom() {
	if len(r.Custom) == 0 {
		r.Custom = nil
		return
	}
	sort.Strings(r.Custom)
	deduped := r.Custom[:1]
	for _, right := range r.Custom[1:] {
		if right != deduped[len(deduped)-1] {
			deduped = append(deduped, right)
		}
	}
	r.Custom = deduped
}

// HasCustom reports whether the named custom right is present.
func (r Rights) HasCustom(name string) bool {
	for _, right := range r.Custom {
		if right == name {
			return true
		}
	}
	return false
}

// Subset reports whether every right in r is also present in other.
// This is the monotonic-attenuation relation: for any delegated
// capability d with parent p, d.Rights.Subset(p.Rights) must hold.
func (r Rights) Subset(other Rights) bool {
	if r.Read && !other.Read {
		return false
	}
	if r.Write && !other.Write {
		return false
	}
	if r.Delete && !other.Delete {
		return false
	}
	if r.Execute && !other.Execute {
		return false
	}
	if r.Create && !other.Create {
		return false
	}
	if r.List && !other.List {
		return false
	}
	if r.Delegate && !other.Delegate {
		return false
	}
	if r.Revoke && !other.Revoke {
		return false
	}
	for _, right := range r.Custom {
		if !other.HasCustom(right) {
			return false
		}
	}
	return true
}

// Intersect returns the field-wise AND of r and other. Delegation uses
// this to compute the child's rights: requested rights the parent does
// not hold are dropped silently, not rejected.
func (r Rights) Intersect(other Rights) Rights {
	result := Rights{
		Read:     r.Read && other.Read,
		Write:    r.Write && other.Write,
		Delete:   r.Delete && other.Delete,
		Execute:  r.Execute && other.Execute,
		Create:   r.Create && other.Create,
		List:     r.List && other.List,
		Delegate: r.Delegate && other.Delegate,
		Revoke:   r.Revoke && other.Revoke,
	}
	for _, right := range r.Custom {
		if other.HasCustom(right) {
			result.Custom = append(result.Custom, right)
		}
	}
	result.NormalizeCustom()
	return result
}

// Minus returns the rights present in r but absent from other. The
// attenuation chain records Minus(parent, child) as the rights removed
// by a delegation step.
func (r Rights) Minus(other Rights) Rights {
	result := Rights{
		Read:     r.Read && !other.Read,
		Write:    r.Write && !other.Write,
		Delete:   r.Delete && !other.Delete,
		Execute:  r.Execute && !other.Execute,
		Create:   r.Create && !other.Create,
		List:     r.List && !other.List,
		Delegate: r.Delegate && !other.Delegate,
		Revoke:   r.Revoke && !other.Revoke,
	}
	for _, right := range r.Custom {
		if !other.HasCustom(right) {
			result.Custom = append(result.Custom, right)
		}
	}
	result.NormalizeCustom()
	return result
}

// IsEmpty reports whether no rights at all are set.
func (r Rights) IsEmpty() bool {
	return !r.Read && !r.Write && !r.Delete && !r.Execute &&
		!r.Create && !r.List && !r.Delegate && !r.Revoke &&
		len(r.Custom) == 0
}

// String renders the rights as a comma-separated list, e.g.
// "read,write,custom:snapshot". Empty rights render as "(none)".
func (r Rights) String() string {
	var names []string
	if r.Read {
		names = append(names, "read")
	}
	if r.Write {
		names = append(names, "write")
	}
	if r.Delete {
		names = append(names, "delete")
	}
	if r.Execute {
		names = append(names, "execute")
	}
	if r.Create {
		names = append(names, "create")
	}
	if r.List {
		names = append(names, "list")
	}
	if r.Delegate {
		names = append(names, "delegate")
	}
	if r.Revoke {
		names = append(names, "revoke")
	}
	for _, right := range r.Custom {
		names = append(names, "custom:"+right)
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ",")
}

// clone returns a deep copy (the Custom slice is shared state
// otherwise).
func (r Rights) clone() Rights {
	copied := r
	if len(r.Custom) > 0 {
		copied.Custom = append([]string(nil), r.Custom...)
	}
	return copied
}
