// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package policydef provides parsing, validation, and resolution for
// containment policy definitions. A policy document declares the fault
// thresholds, quarantine timeouts, restart backoff, guard ceilings, and
// gateway queue bound that the containment layer enforces, authored on
// disk as JSONC (JSON extended with comments and trailing commas).
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Policy
//  2. Validate: structural checks (parseable durations, sane bounds)
//  3. RegionConfig / GuardLimits / GatewayPolicy: resolve the effective
//     settings for a region, most specific declaration first
package policydef

import (
	"time"

	"github.com/warden-foundation/warden/containment"
	"github.com/warden-foundation/warden/lib/ref"
)

// RegionPolicy is one declaration block of containment settings. Zero
// fields inherit from the next less specific block; duration fields are
// time.ParseDuration strings ("60s", "5m").
type RegionPolicy struct {
	FaultThreshold    int    `json:"fault_threshold,omitempty"`
	FaultWindow       string `json:"fault_window,omitempty"`
	QuarantineTimeout string `json:"quarantine_timeout,omitempty"`

	RestartMaxAttempts   int     `json:"restart_max_attempts,omitempty"`
	RestartBaseDelay     string  `json:"restart_base_delay,omitempty"`
	RestartBackoffFactor float64 `json:"restart_backoff_factor,omitempty"`
	RestartMaxDelay      string  `json:"restart_max_delay,omitempty"`
}

// GuardPolicy declares resource ceilings for fail-fast guards. Zero
// fields leave the corresponding ceiling disabled.
type GuardPolicy struct {
	MaxOperationTime string `json:"max_operation_time,omitempty"`
	MaxPayloadBytes  uint64 `json:"max_payload_bytes,omitempty"`
	MaxMemoryBytes   uint64 `json:"max_memory_bytes,omitempty"`
	MaxMailboxDepth  int    `json:"max_mailbox_depth,omitempty"`
	MaxQueueDepth    int    `json:"max_queue_depth,omitempty"`
	MaxConnections   int    `json:"max_connections,omitempty"`
}

// GatewayPolicy declares the supervision event queue bound.
type GatewayPolicy struct {
	MaxPendingEvents int `json:"max_pending_events,omitempty"`
}

// Policy is a full containment policy document.
//
// Resolution order for a region, most specific first: the entry in
// Regions keyed by the region's identifier, then the entry in Kinds
// keyed by the region kind name ("kernel", "driver", "application",
// "host-boundary"), then Defaults, then the package defaults compiled
// into the containment layer.
type Policy struct {
	// Name identifies the policy document in logs and audit records.
	Name string `json:"name,omitempty"`

	Defaults RegionPolicy            `json:"defaults,omitempty"`
	Kinds    map[string]RegionPolicy `json:"kinds,omitempty"`
	Regions  map[string]RegionPolicy `json:"regions,omitempty"`

	Guards  GuardPolicy   `json:"guards,omitempty"`
	Gateway GatewayPolicy `json:"gateway,omitempty"`
}

// RegionConfig resolves the effective containment settings for the
// region id of the given kind. The policy must have passed Validate;
// unparseable durations are treated as unset here.
func (p *Policy) RegionConfig(id ref.RegionID, kind containment.RegionKind) containment.RegionConfig {
	config := containment.DefaultRegionConfig()

	// Least specific first, so later blocks win.
	p.Defaults.apply(&config)
	if block, ok := p.Kinds[kind.String()]; ok {
		block.apply(&config)
	}
	if block, ok := p.Regions[id.String()]; ok {
		block.apply(&config)
	}
	return config
}

// GuardLimits resolves the guard ceilings declared by the policy.
func (p *Policy) GuardLimits() containment.SpatialLimits {
	return containment.SpatialLimits{
		MaxPayloadBytes: p.Guards.MaxPayloadBytes,
		MaxMemoryBytes:  p.Guards.MaxMemoryBytes,
		MaxMailboxDepth: p.Guards.MaxMailboxDepth,
		MaxQueueDepth:   p.Guards.MaxQueueDepth,
		MaxConnections:  p.Guards.MaxConnections,
	}
}

// OperationBudget resolves the per-operation time budget for temporal
// guards, or zero when the policy declares none.
func (p *Policy) OperationBudget() time.Duration {
	budget, _ := parseDuration(p.Guards.MaxOperationTime)
	return budget
}

// GatewayPolicy resolves the supervision gateway settings.
func (p *Policy) GatewayPolicy() containment.GatewayPolicy {
	resolved := containment.DefaultGatewayPolicy()
	if p.Gateway.MaxPendingEvents > 0 {
		resolved.MaxPendingEvents = p.Gateway.MaxPendingEvents
	}
	return resolved
}

// apply overlays the block's set fields onto config.
func (b RegionPolicy) apply(config *containment.RegionConfig) {
	if b.FaultThreshold > 0 {
		config.FaultThreshold = b.FaultThreshold
	}
	if window, ok := parseDurationOK(b.FaultWindow); ok {
		config.FaultWindow = window
	}
	if timeout, ok := parseDurationOK(b.QuarantineTimeout); ok {
		config.QuarantineTimeout = timeout
	}
	if b.RestartMaxAttempts > 0 {
		config.Restart.MaxAttempts = b.RestartMaxAttempts
	}
	if delay, ok := parseDurationOK(b.RestartBaseDelay); ok {
		config.Restart.BaseDelay = delay
	}
	if b.RestartBackoffFactor >= 1 {
		config.Restart.BackoffFactor = b.RestartBackoffFactor
	}
	if delay, ok := parseDurationOK(b.RestartMaxDelay); ok {
		config.Restart.MaxDelay = delay
	}
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

func parseDurationOK(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}
