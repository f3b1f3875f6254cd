// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit provides the kernel core's append-only audit stream:
// structured records for every capability and containment decision,
// written as framed CBOR to a sink file. Frames are individually
// compressed (zstd, lz4, or stored raw) and optionally sealed with
// XChaCha20-Poly1305 for at-rest confidentiality.
//
// The core only ever writes this stream. Reading it back (Reader) is
// for external log consumers and for tests — no kernel decision ever
// depends on audit contents.
package audit
