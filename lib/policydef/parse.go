// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policydef

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Policy. The input is JSON extended with
// // line comments, /* block comments */, and trailing commas.
func Parse(data []byte) (*Policy, error) {
	stripped := jsonc.ToJSON(data)

	var policy Policy
	if err := json.Unmarshal(stripped, &policy); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}

	return &policy, nil
}

// ReadFile reads a JSONC policy file from disk and parses it into a
// Policy. Returns a descriptive error if the file cannot be read or
// the JSON is malformed.
func ReadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	policy, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return policy, nil
}
