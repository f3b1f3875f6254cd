// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the host-supplied warden configuration.
//
// Configuration comes from a single YAML file named by either the
// WARDEN_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search — configuration stays deterministic
// and auditable, with no hidden overrides.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// capability integrity checks cannot be disabled and the audit sink
// is required.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${WARDEN_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// The kernel core itself never reads configuration; the host loads a
// [Config] once and passes the derived values to the store, registry,
// gateway, and guards at construction.
package config
