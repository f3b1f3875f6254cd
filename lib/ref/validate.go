// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// validateLocalpart checks a path-style identifier segment string:
// non-empty, lowercase ASCII letters, digits, and the separators
// '.', '_', '-', '/'. No leading or trailing '/', no empty segments.
//
// This is the shared grammar for process, module, driver, and region
// identifiers (e.g., "app/ingest/worker-3").
func validateLocalpart(kind, raw string) error {
	if raw == "" {
		return fmt.Errorf("empty %s ID", kind)
	}
	if raw[0] == '/' || raw[len(raw)-1] == '/' {
		return fmt.Errorf("%s ID has leading or trailing slash: %q", kind, raw)
	}
	previousSlash := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			previousSlash = false
		case c == '/':
			if previousSlash {
				return fmt.Errorf("%s ID has empty path segment: %q", kind, raw)
			}
			previousSlash = true
		default:
			return fmt.Errorf("%s ID has invalid character %q: %q", kind, c, raw)
		}
	}
	return nil
}
