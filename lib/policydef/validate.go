// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policydef

import (
	"fmt"
	"sort"
	"time"

	"github.com/warden-foundation/warden/lib/ref"
)

// regionKindNames are the kind names accepted as keys in Kinds.
var regionKindNames = map[string]bool{
	"kernel":        true,
	"driver":        true,
	"application":   true,
	"host-boundary": true,
}

// Validate checks a Policy for structural issues. Returns a list of
// human-readable issue descriptions. An empty list means the policy is
// valid.
//
// Structural checks include:
//   - Kinds keys must name a known region kind
//   - Regions keys must be valid region identifiers
//   - Duration fields must be parseable and positive when set
//   - restart_backoff_factor must be at least 1 when set
//   - Counts and ceilings must not be negative
func Validate(policy *Policy) []string {
	var issues []string

	issues = append(issues, validateBlock(policy.Defaults, "defaults")...)

	for _, name := range sortedKeys(policy.Kinds) {
		prefix := fmt.Sprintf("kinds[%q]", name)
		if !regionKindNames[name] {
			issues = append(issues, prefix+": unknown region kind")
		}
		issues = append(issues, validateBlock(policy.Kinds[name], prefix)...)
	}

	for _, name := range sortedKeys(policy.Regions) {
		prefix := fmt.Sprintf("regions[%q]", name)
		if _, err := ref.ParseRegionID(name); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", prefix, err))
		}
		issues = append(issues, validateBlock(policy.Regions[name], prefix)...)
	}

	issues = append(issues, validateDurationField(policy.Guards.MaxOperationTime, "guards.max_operation_time")...)
	if policy.Guards.MaxMailboxDepth < 0 {
		issues = append(issues, "guards.max_mailbox_depth: must not be negative")
	}
	if policy.Guards.MaxQueueDepth < 0 {
		issues = append(issues, "guards.max_queue_depth: must not be negative")
	}
	if policy.Guards.MaxConnections < 0 {
		issues = append(issues, "guards.max_connections: must not be negative")
	}
	if policy.Gateway.MaxPendingEvents < 0 {
		issues = append(issues, "gateway.max_pending_events: must not be negative")
	}

	return issues
}

func validateBlock(block RegionPolicy, prefix string) []string {
	var issues []string

	if block.FaultThreshold < 0 {
		issues = append(issues, prefix+".fault_threshold: must not be negative")
	}
	if block.RestartMaxAttempts < 0 {
		issues = append(issues, prefix+".restart_max_attempts: must not be negative")
	}
	if block.RestartBackoffFactor != 0 && block.RestartBackoffFactor < 1 {
		issues = append(issues, prefix+".restart_backoff_factor: must be at least 1 (delays never shrink)")
	}

	issues = append(issues, validateDurationField(block.FaultWindow, prefix+".fault_window")...)
	issues = append(issues, validateDurationField(block.QuarantineTimeout, prefix+".quarantine_timeout")...)
	issues = append(issues, validateDurationField(block.RestartBaseDelay, prefix+".restart_base_delay")...)
	issues = append(issues, validateDurationField(block.RestartMaxDelay, prefix+".restart_max_delay")...)

	return issues
}

func validateDurationField(value, name string) []string {
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", name, err)}
	}
	if parsed <= 0 {
		return []string{name + ": must be positive"}
	}
	return nil
}

func sortedKeys(m map[string]RegionPolicy) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
