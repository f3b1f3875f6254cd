// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// ProcessID identifies a hosted process (e.g., "app/ingest/worker-3").
// Process IDs are assigned by the host runtime; the kernel core treats
// them as opaque beyond grammar validation.
//
// ProcessID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type ProcessID struct {
	id string
}

// ParseProcessID validates and wraps a raw process ID string.
func ParseProcessID(raw string) (ProcessID, error) {
	if err := validateLocalpart("process", raw); err != nil {
		return ProcessID{}, err
	}
	return ProcessID{id: raw}, nil
}

// MustParseProcessID is like ParseProcessID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseProcessID(raw string) ProcessID {
	p, err := ParseProcessID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseProcessID(%q): %v", raw, err))
	}
	return p
}

// String returns the process ID string.
func (p ProcessID) String() string { return p.id }

// IsZero reports whether the ProcessID is the zero value.
func (p ProcessID) IsZero() bool { return p.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (p ProcessID) MarshalText() ([]byte, error) {
	if p.id == "" {
		return nil, nil
	}
	return []byte(p.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset process ID).
func (p *ProcessID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = ProcessID{}
		return nil
	}
	parsed, err := ParseProcessID(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ModuleID identifies an application module hosted inside a
// containment region (e.g., "billing/importer").
//
// ModuleID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type ModuleID struct {
	id string
}

// ParseModuleID validates and wraps a raw module ID string.
func ParseModuleID(raw string) (ModuleID, error) {
	if err := validateLocalpart("module", raw); err != nil {
		return ModuleID{}, err
	}
	return ModuleID{id: raw}, nil
}

// MustParseModuleID is like ParseModuleID but panics on error.
func MustParseModuleID(raw string) ModuleID {
	m, err := ParseModuleID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseModuleID(%q): %v", raw, err))
	}
	return m
}

// String returns the module ID string.
func (m ModuleID) String() string { return m.id }

// IsZero reports whether the ModuleID is the zero value.
func (m ModuleID) IsZero() bool { return m.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (m ModuleID) MarshalText() ([]byte, error) {
	if m.id == "" {
		return nil, nil
	}
	return []byte(m.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ModuleID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*m = ModuleID{}
		return nil
	}
	parsed, err := ParseModuleID(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DriverID identifies a kernel driver that can issue capabilities for
// the resources it mediates (e.g., "driver/net").
//
// DriverID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type DriverID struct {
	id string
}

// ParseDriverID validates and wraps a raw driver ID string.
func ParseDriverID(raw string) (DriverID, error) {
	if err := validateLocalpart("driver", raw); err != nil {
		return DriverID{}, err
	}
	return DriverID{id: raw}, nil
}

// MustParseDriverID is like ParseDriverID but panics on error.
func MustParseDriverID(raw string) DriverID {
	d, err := ParseDriverID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseDriverID(%q): %v", raw, err))
	}
	return d
}

// String returns the driver ID string.
func (d DriverID) String() string { return d.id }

// IsZero reports whether the DriverID is the zero value.
func (d DriverID) IsZero() bool { return d.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (d DriverID) MarshalText() ([]byte, error) {
	if d.id == "" {
		return nil, nil
	}
	return []byte(d.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DriverID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = DriverID{}
		return nil
	}
	parsed, err := ParseDriverID(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// RegionID identifies a fault containment region (e.g.,
// "region/app/billing"). Region parent/child relations are stored as
// RegionIDs and resolved through the containment registry.
//
// RegionID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type RegionID struct {
	id string
}

// ParseRegionID validates and wraps a raw region ID string.
func ParseRegionID(raw string) (RegionID, error) {
	if err := validateLocalpart("region", raw); err != nil {
		return RegionID{}, err
	}
	return RegionID{id: raw}, nil
}

// MustParseRegionID is like ParseRegionID but panics on error.
func MustParseRegionID(raw string) RegionID {
	r, err := ParseRegionID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseRegionID(%q): %v", raw, err))
	}
	return r
}

// String returns the region ID string.
func (r RegionID) String() string { return r.id }

// IsZero reports whether the RegionID is the zero value.
func (r RegionID) IsZero() bool { return r.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (r RegionID) MarshalText() ([]byte, error) {
	if r.id == "" {
		return nil, nil
	}
	return []byte(r.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RegionID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = RegionID{}
		return nil
	}
	parsed, err := ParseRegionID(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
