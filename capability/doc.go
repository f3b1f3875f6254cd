// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability implements the kernel's capability store: the
// single authority that issues, validates, delegates, attenuates, and
// revokes the unforgeable access tokens every other subsystem uses for
// authorization. There is no ambient-authority path — a process that
// holds no capability for a resource cannot touch it.
//
// The Store is a single-writer value guarded by an internal mutex; the
// host may instead own it from one goroutine. Every operation is total:
// outcomes are returned, never panicked or thrown. Operations that read
// the clock take an explicit time (the ...At variants) so behavior is a
// pure function of store state, inputs, and the given instant.
//
// Three invariants hold for all time:
//
//   - Monotonic attenuation: a delegated capability's rights are a
//     field-wise subset of its parent's rights at delegation time.
//     Requested rights the parent lacks are silently dropped.
//   - One-way revocation: once revoked, always revoked. A fresh
//     capability for the same resource needs a new ID.
//   - Bounded delegation: the attenuation chain never exceeds the
//     configured maximum depth.
//
// CheckInvariants verifies these plus ID uniqueness and the
// revoked-access property (no capability validated after its
// revocation instant) against a live store.
package capability
