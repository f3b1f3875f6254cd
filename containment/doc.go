// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package containment implements fault containment regions (FCRs): the
// isolation boundaries within which faults are absorbed before they
// may cross, under policy, into another region.
//
// The package has four cooperating parts:
//
//   - The [Registry] owns per-region health state machines and fault
//     history. Region relations (parent, children) are identifier
//     references resolved through the registry, never owning pointers.
//   - The [Gateway] is the sole channel through which fault and
//     recovery events cross a region boundary, draining by event-type
//     priority under a backpressure policy.
//   - The [Controller] converts a trapped hosted unit into a
//     checkpointed [RestartableProcess] and applies bounded,
//     exponential-backoff restart policy.
//   - [TemporalGuard] and [SpatialGuard] bound operation duration and
//     resource usage, mapping violations to deterministic
//     continue/warn/fail outcomes.
//
// Registry and Gateway are mutex-guarded single-writer values, same
// ownership model as the capability store. Guard checks are pure
// functions of their inputs.
package containment
