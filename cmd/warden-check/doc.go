// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Warden-check validates a warden deployment without starting it: it
// loads the host configuration and the containment policy, runs the
// capability store through a self-check with the configured limits and
// integrity key, and verifies that the audit sink on disk decodes
// cleanly. Deployment scripts can use it as a preflight gate.
//
// Exit codes:
//
//	0  all checks passed
//	1  one or more findings (printed to stderr)
//	2  error (unreadable files, bad arguments)
package main
