// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/warden-foundation/warden/audit"
	"github.com/warden-foundation/warden/capability"
	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/config"
	"github.com/warden-foundation/warden/lib/policydef"
	"github.com/warden-foundation/warden/lib/ref"
	"github.com/warden-foundation/warden/lib/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	flagSet := pflag.NewFlagSet("warden-check", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "configuration file (default: $WARDEN_CONFIG)")
	policyPath := flagSet.String("policy", "", "containment policy file (default: paths.policy from the config)")
	auditPath := flagSet.String("audit", "", "audit sink to verify (default: audit.sink_path from the config)")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if *showVersion {
		fmt.Printf("warden-check %s\n", version.Info())
		return 0
	}

	var findings []string

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			findings = append(findings, "config: "+line)
		}
	} else {
		fmt.Println("ok: configuration")
	}

	if path := pickPath(*policyPath, cfg.Paths.Policy); path != "" {
		policy, err := policydef.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		if issues := policydef.Validate(policy); len(issues) != 0 {
			for _, issue := range issues {
				findings = append(findings, "policy: "+issue)
			}
		} else {
			fmt.Printf("ok: policy %s\n", path)
		}
	}

	storeFindings, err := storeSelfCheck(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if len(storeFindings) == 0 {
		fmt.Println("ok: capability store self-check")
	}
	findings = append(findings, storeFindings...)

	if path := pickPath(*auditPath, cfg.Audit.SinkPath); path != "" {
		count, issue, err := verifyAuditSink(path, cfg.Audit.SealKeyFile)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		case issue != "":
			findings = append(findings, "audit: "+issue)
		default:
			fmt.Printf("ok: audit sink %s (%d records)\n", path, count)
		}
	}

	if len(findings) != 0 {
		for _, finding := range findings {
			fmt.Fprintln(os.Stderr, finding)
		}
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// pickPath prefers the explicit flag value over the configured one.
func pickPath(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

// storeSelfCheck runs a capability store through a create → validate →
// delegate → revoke cycle with the configured limits and integrity key,
// then sweeps its invariants. The store is in-memory and throwaway;
// this exercises the configuration, not stored state.
func storeSelfCheck(cfg *config.Config) ([]string, error) {
	storeConfig := capability.StoreConfig{
		MaxCapabilitiesPerProcess: cfg.Store.MaxCapabilitiesPerProcess,
		MaxDelegationDepth:        cfg.Store.MaxDelegationDepth,
		IntegrityChecks:           cfg.Store.IntegrityChecks,
	}
	if cfg.Store.IntegrityKeyFile != "" {
		key, err := loadKeyFile(cfg.Store.IntegrityKeyFile)
		if err != nil {
			return nil, fmt.Errorf("integrity key: %w", err)
		}
		storeConfig.IntegrityKey = key
	}

	store, err := capability.NewStore(storeConfig, clock.Real(), nil)
	if err != nil {
		return nil, fmt.Errorf("constructing store: %w", err)
	}

	var findings []string
	resource := ref.MustResource(ref.ResourceFile, "/warden/self-check")
	probe := ref.MustParseProcessID("self-check")
	rights := capability.Rights{Read: true, Write: true, Delegate: true, Revoke: true}

	cap, err := store.Create(resource, rights, probe, capability.Validity{})
	if err != nil {
		return nil, fmt.Errorf("self-check create: %w", err)
	}
	result := store.Validate(cap.ID, capability.Rights{Read: true}, resource, probe)
	if result.Decision != capability.Allow {
		findings = append(findings, fmt.Sprintf("store: self-check validation denied: %s", result.Reason))
	}

	child, err := store.Delegate(cap.ID, ref.MustParseProcessID("self-check-peer"), capability.Rights{Read: true}, probe)
	if err != nil {
		return nil, fmt.Errorf("self-check delegate: %w", err)
	}
	count, err := store.Revoke(cap.ID, probe, "self-check complete")
	if err != nil {
		return nil, fmt.Errorf("self-check revoke: %w", err)
	}
	if count != 2 {
		findings = append(findings, fmt.Sprintf("store: revocation cascade reached %d capabilities, want 2", count))
	}
	if result := store.Validate(child.ID, capability.Rights{Read: true}, resource, probe); result.Decision == capability.Allow {
		findings = append(findings, "store: delegated capability survived revocation of its source")
	}

	for _, violation := range store.CheckInvariants() {
		findings = append(findings, fmt.Sprintf("store: %s: %s (%s)", violation.Capability, violation.Invariant, violation.Detail))
	}
	return findings, nil
}

// verifyAuditSink decodes every frame of the sink. A missing sink file
// is a finding, not an error: the deployment may simply not have run
// yet.
func verifyAuditSink(path, sealKeyFile string) (int, string, error) {
	var sealKey []byte
	if sealKeyFile != "" {
		key, err := loadKeyFile(sealKeyFile)
		if err != nil {
			return 0, "", fmt.Errorf("seal key: %w", err)
		}
		sealKey = key
	}

	reader, err := audit.OpenReader(path, sealKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Sprintf("sink %s does not exist yet", path), nil
		}
		return 0, "", err
	}
	defer reader.Close()

	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Sprintf("sink %s: %v", path, err), nil
	}
	return len(records), "", nil
}

// loadKeyFile reads a hex-encoded key from disk.
func loadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}
