// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier value types for the kernel
// core: capability IDs, process/module/driver IDs, containment region
// IDs, and typed resource identifiers.
//
// Every type is an immutable value validated at construction. The zero
// value is never valid; use IsZero to check. Parse functions reject
// malformed input so that downstream code never handles an unvalidated
// identifier. All types implement encoding.TextMarshaler and
// encoding.TextUnmarshaler, so they serialize as text strings in both
// JSON and CBOR.
//
// Relations between kernel objects (delegation parents, region
// parent/child links) are expressed through these identifiers and
// resolved through a store or registry — never through embedded
// pointers.
package ref
